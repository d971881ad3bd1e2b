package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validLastN() DurationSpec {
	return DurationSpec{Type: DurationLastN, LastN: 4, Frequency: FrequencyQuarterly}
}

func TestOperator_Holds(t *testing.T) {
	assert.True(t, OpGT.Holds(2, 1))
	assert.False(t, OpGT.Holds(1, 1))
	assert.True(t, OpGE.Holds(1, 1))
	assert.True(t, OpLT.Holds(1, 2))
	assert.True(t, OpLE.Holds(2, 2))
	assert.True(t, OpEQ.Holds(3, 3))
	assert.False(t, Operator("!=").Holds(1, 2))
}

func TestNewAbsolute_RejectsBadOperator(t *testing.T) {
	_, err := NewAbsolute("≥", 1, validLastN())
	assert.Error(t, err)
}

func TestNewRelative_RejectsBadMode(t *testing.T) {
	_, err := NewRelative(OpGE, 5, "mom", validLastN())
	assert.Error(t, err)
}

func TestNewTrend_Bounds(t *testing.T) {
	_, err := NewTrend(TrendPositive, 1, 0, validLastN())
	assert.Error(t, err, "n below 2")

	_, err = NewTrend(TrendPosToNeg, 4, 4, validLastN())
	assert.Error(t, err, "m must be below n")

	cfg, err := NewTrend(TrendPosToNeg, 4, 2, validLastN())
	require.NoError(t, err)
	assert.Equal(t, MethodTrend, cfg.Kind)
	assert.Equal(t, 2, cfg.Trend.M)
}

func TestNewDirection(t *testing.T) {
	cfg, err := NewDirection(DirectionEither, validLastN())
	require.NoError(t, err)
	assert.Equal(t, MethodDirection, cfg.Kind)

	_, err = NewDirection("sideways", validLastN())
	assert.Error(t, err)
}

func TestMethodConfig_Validate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     MethodConfig
		wantErr bool
	}{
		{
			"valid absolute",
			MethodConfig{Kind: MethodAbsolute, Absolute: &AbsoluteMethod{Operator: OpGT, Threshold: 1}, Duration: validLastN()},
			false,
		},
		{
			"kind without variant",
			MethodConfig{Kind: MethodAbsolute, Duration: validLastN()},
			true,
		},
		{
			"unknown kind",
			MethodConfig{Kind: "fuzzy", Duration: validLastN()},
			true,
		},
		{
			"custom range missing bounds",
			MethodConfig{
				Kind:     MethodDirection,
				Duration: DurationSpec{Type: DurationCustomRange, Frequency: FrequencyQuarterly},
				Direction: &DirectionMethod{
					Direction: DirectionEither,
				},
			},
			true,
		},
		{
			"unknown frequency",
			MethodConfig{
				Kind:      MethodDirection,
				Direction: &DirectionMethod{Direction: DirectionEither},
				Duration:  DurationSpec{Type: DurationLastN, LastN: 2, Frequency: "monthly"},
			},
			true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
