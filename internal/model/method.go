package model

import "github.com/rotisserie/eris"

// MethodKind discriminates the four comparison methods.
type MethodKind string

const (
	MethodAbsolute  MethodKind = "absolute"
	MethodRelative  MethodKind = "relative"
	MethodTrend     MethodKind = "trend"
	MethodDirection MethodKind = "direction"
)

// Operator is a threshold comparison operator.
type Operator string

const (
	OpGT Operator = ">"
	OpGE Operator = ">="
	OpLT Operator = "<"
	OpLE Operator = "<="
	OpEQ Operator = "="
)

// Holds reports whether "value op threshold" is true. Unknown operators
// never hold.
func (op Operator) Holds(value, threshold float64) bool {
	switch op {
	case OpGT:
		return value > threshold
	case OpGE:
		return value >= threshold
	case OpLT:
		return value < threshold
	case OpLE:
		return value <= threshold
	case OpEQ:
		return value == threshold
	default:
		return false
	}
}

// Valid reports whether op is one of the five supported operators.
func (op Operator) Valid() bool {
	switch op {
	case OpGT, OpGE, OpLT, OpLE, OpEQ:
		return true
	}
	return false
}

// RelativeMode selects the step interval of a relative (percent-change)
// method. The mode drives window construction upstream; the evaluator
// itself only sees consecutive observations.
type RelativeMode string

const (
	RelativeYoY RelativeMode = "yoy"
	RelativeQoQ RelativeMode = "qoq"
)

// TrendKind names the pattern a trend method looks for.
type TrendKind string

const (
	TrendPositive TrendKind = "positive"
	TrendNegative TrendKind = "negative"
	TrendPosToNeg TrendKind = "pos-to-neg"
	TrendNegToPos TrendKind = "neg-to-pos"
)

// DirectionKind names the required first-to-last movement.
type DirectionKind string

const (
	DirectionPositive DirectionKind = "positive"
	DirectionNegative DirectionKind = "negative"
	DirectionEither   DirectionKind = "either"
)

// DurationType selects how a method's evaluation window is built.
type DurationType string

const (
	DurationLastN       DurationType = "last_n"
	DurationCustomRange DurationType = "custom_range"
)

// DurationSpec describes the evaluation window of a method. For LastN,
// LastN <= 0 means "most recent observation only". For CustomRange the
// bounds are period literals ("YYYY-Qx" for quarterly data, "YYYY" for
// yearly data).
type DurationSpec struct {
	Type      DurationType `json:"type" yaml:"type"`
	LastN     int          `json:"last_n,omitempty" yaml:"last_n,omitempty"`
	Start     string       `json:"start,omitempty" yaml:"start,omitempty"`
	End       string       `json:"end,omitempty" yaml:"end,omitempty"`
	Frequency Frequency    `json:"frequency" yaml:"frequency"`
}

// AbsoluteMethod requires every value in the window to satisfy
// "value Operator Threshold".
type AbsoluteMethod struct {
	Operator  Operator `json:"operator" yaml:"operator"`
	Threshold float64  `json:"threshold" yaml:"threshold"`
}

// RelativeMethod requires every consecutive percent change in the window to
// satisfy "change Operator Threshold". Threshold is in percent.
type RelativeMethod struct {
	Operator  Operator     `json:"operator" yaml:"operator"`
	Threshold float64      `json:"threshold" yaml:"threshold"`
	Mode      RelativeMode `json:"mode" yaml:"mode"`
}

// TrendMethod looks for a monotonic run or a reversal pattern over the last
// N observations. M is the sub-window length for the reversal kinds; 0
// means "zero-line crossing" semantics instead.
type TrendMethod struct {
	Kind TrendKind `json:"kind" yaml:"kind"`
	N    int       `json:"n" yaml:"n"`
	M    int       `json:"m,omitempty" yaml:"m,omitempty"`
}

// DirectionMethod compares the first and last value of the window.
type DirectionMethod struct {
	Direction DirectionKind `json:"direction" yaml:"direction"`
}

// MethodConfig is the tagged union of the four method variants. Exactly one
// of the variant pointers is set, matching Kind. Construct via the New*
// helpers so invalid configurations are rejected up front instead of
// surfacing as false verdicts mid-run.
type MethodConfig struct {
	Kind      MethodKind       `json:"kind" yaml:"kind"`
	Absolute  *AbsoluteMethod  `json:"absolute,omitempty" yaml:"absolute,omitempty"`
	Relative  *RelativeMethod  `json:"relative,omitempty" yaml:"relative,omitempty"`
	Trend     *TrendMethod     `json:"trend,omitempty" yaml:"trend,omitempty"`
	Direction *DirectionMethod `json:"direction,omitempty" yaml:"direction,omitempty"`
	Duration  DurationSpec     `json:"duration" yaml:"duration"`
}

// NewAbsolute builds a validated absolute method config.
func NewAbsolute(op Operator, threshold float64, dur DurationSpec) (MethodConfig, error) {
	if !op.Valid() {
		return MethodConfig{}, eris.Errorf("model: invalid absolute operator %q", op)
	}
	if err := validateDuration(dur); err != nil {
		return MethodConfig{}, err
	}
	return MethodConfig{
		Kind:     MethodAbsolute,
		Absolute: &AbsoluteMethod{Operator: op, Threshold: threshold},
		Duration: dur,
	}, nil
}

// NewRelative builds a validated relative method config.
func NewRelative(op Operator, threshold float64, mode RelativeMode, dur DurationSpec) (MethodConfig, error) {
	if !op.Valid() {
		return MethodConfig{}, eris.Errorf("model: invalid relative operator %q", op)
	}
	if mode != RelativeYoY && mode != RelativeQoQ {
		return MethodConfig{}, eris.Errorf("model: invalid relative mode %q", mode)
	}
	if err := validateDuration(dur); err != nil {
		return MethodConfig{}, err
	}
	return MethodConfig{
		Kind:     MethodRelative,
		Relative: &RelativeMethod{Operator: op, Threshold: threshold, Mode: mode},
		Duration: dur,
	}, nil
}

// NewTrend builds a validated trend method config. m == 0 selects the
// zero-line-crossing variant for the reversal kinds.
func NewTrend(kind TrendKind, n, m int, dur DurationSpec) (MethodConfig, error) {
	switch kind {
	case TrendPositive, TrendNegative, TrendPosToNeg, TrendNegToPos:
	default:
		return MethodConfig{}, eris.Errorf("model: invalid trend kind %q", kind)
	}
	if n < 2 {
		return MethodConfig{}, eris.Errorf("model: trend window n must be >= 2, got %d", n)
	}
	if m < 0 || m >= n {
		return MethodConfig{}, eris.Errorf("model: trend sub-window m must be in [0, n), got %d", m)
	}
	if err := validateDuration(dur); err != nil {
		return MethodConfig{}, err
	}
	return MethodConfig{
		Kind:     MethodTrend,
		Trend:    &TrendMethod{Kind: kind, N: n, M: m},
		Duration: dur,
	}, nil
}

// NewDirection builds a validated direction method config.
func NewDirection(dir DirectionKind, dur DurationSpec) (MethodConfig, error) {
	switch dir {
	case DirectionPositive, DirectionNegative, DirectionEither:
	default:
		return MethodConfig{}, eris.Errorf("model: invalid direction %q", dir)
	}
	if err := validateDuration(dur); err != nil {
		return MethodConfig{}, err
	}
	return MethodConfig{
		Kind:      MethodDirection,
		Direction: &DirectionMethod{Direction: dir},
		Duration:  dur,
	}, nil
}

// Validate checks that the config's Kind matches its populated variant and
// that the duration is well formed. Used when configs arrive from YAML or
// JSON instead of the New* constructors.
func (m MethodConfig) Validate() error {
	switch m.Kind {
	case MethodAbsolute:
		if m.Absolute == nil {
			return eris.New("model: absolute method config missing absolute block")
		}
		if !m.Absolute.Operator.Valid() {
			return eris.Errorf("model: invalid absolute operator %q", m.Absolute.Operator)
		}
	case MethodRelative:
		if m.Relative == nil {
			return eris.New("model: relative method config missing relative block")
		}
		if !m.Relative.Operator.Valid() {
			return eris.Errorf("model: invalid relative operator %q", m.Relative.Operator)
		}
		if m.Relative.Mode != RelativeYoY && m.Relative.Mode != RelativeQoQ {
			return eris.Errorf("model: invalid relative mode %q", m.Relative.Mode)
		}
	case MethodTrend:
		if m.Trend == nil {
			return eris.New("model: trend method config missing trend block")
		}
		if m.Trend.N < 2 {
			return eris.Errorf("model: trend window n must be >= 2, got %d", m.Trend.N)
		}
		if m.Trend.M < 0 || m.Trend.M >= m.Trend.N {
			return eris.Errorf("model: trend sub-window m must be in [0, n), got %d", m.Trend.M)
		}
	case MethodDirection:
		if m.Direction == nil {
			return eris.New("model: direction method config missing direction block")
		}
		switch m.Direction.Direction {
		case DirectionPositive, DirectionNegative, DirectionEither:
		default:
			return eris.Errorf("model: invalid direction %q", m.Direction.Direction)
		}
	default:
		return eris.Errorf("model: unknown method kind %q", m.Kind)
	}
	return validateDuration(m.Duration)
}

func validateDuration(dur DurationSpec) error {
	switch dur.Type {
	case DurationLastN:
		// LastN <= 0 degrades to "most recent only" at window time; accepted.
	case DurationCustomRange:
		if dur.Start == "" || dur.End == "" {
			return eris.New("model: custom range duration requires start and end")
		}
	default:
		return eris.Errorf("model: unknown duration type %q", dur.Type)
	}
	switch dur.Frequency {
	case FrequencyQuarterly, FrequencyYearly:
	default:
		return eris.Errorf("model: unknown frequency %q", dur.Frequency)
	}
	return nil
}
