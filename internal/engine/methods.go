package engine

import (
	"math"

	"github.com/sells-group/kpi-screener/internal/model"
)

// evaluateMethod dispatches an already-windowed series to the evaluator for
// its method kind. Every evaluator is fail-closed: short windows, missing
// (NaN) values, and undefined computations all yield false. An unknown kind
// yields false too, but request validation rejects those before a run
// starts.
func evaluateMethod(window model.Series, method model.MethodConfig) bool {
	values := window.Values()
	if hasMissing(values) {
		return false
	}

	switch method.Kind {
	case model.MethodAbsolute:
		if method.Absolute == nil {
			return false
		}
		return evalAbsolute(values, *method.Absolute)
	case model.MethodRelative:
		if method.Relative == nil {
			return false
		}
		return evalRelative(values, *method.Relative)
	case model.MethodTrend:
		if method.Trend == nil {
			return false
		}
		return evalTrend(values, *method.Trend)
	case model.MethodDirection:
		if method.Direction == nil {
			return false
		}
		return evalDirection(values, *method.Direction)
	}
	return false
}

func hasMissing(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

// evalAbsolute passes when every value in the window satisfies the
// operator against the threshold.
func evalAbsolute(values []float64, m model.AbsoluteMethod) bool {
	if len(values) == 0 {
		return false
	}
	for _, v := range values {
		if !m.Operator.Holds(v, m.Threshold) {
			return false
		}
	}
	return true
}

// evalRelative passes when every consecutive percent change satisfies the
// operator against the threshold (in percent). A zero previous value makes
// the change undefined and fails the whole window. The YoY/QoQ mode already
// shaped the window upstream; here only consecutive pairs matter.
func evalRelative(values []float64, m model.RelativeMethod) bool {
	if len(values) < 2 {
		return false
	}
	for i := 1; i < len(values); i++ {
		prev, curr := values[i-1], values[i]
		if prev == 0 {
			return false
		}
		change := (curr - prev) / math.Abs(prev) * 100
		if !m.Operator.Holds(change, m.Threshold) {
			return false
		}
	}
	return true
}

// evalTrend examines the last N values of the window.
//
// Positive/Negative require strict monotonicity across all consecutive
// pairs. The reversal kinds with M > 0 search for any offset where an
// M-value run is strictly monotonic in the leading direction and the value
// immediately after moves the other way; with M == 0 they look for any
// adjacent pair crossing the zero line in the required direction.
func evalTrend(values []float64, m model.TrendMethod) bool {
	if len(values) < m.N {
		return false
	}
	vals := values[len(values)-m.N:]

	switch m.Kind {
	case model.TrendPositive:
		return strictlyMonotonic(vals, true)
	case model.TrendNegative:
		return strictlyMonotonic(vals, false)
	case model.TrendPosToNeg:
		if m.M > 0 {
			return hasReversal(vals, m.M, true)
		}
		return crossesZero(vals, true)
	case model.TrendNegToPos:
		if m.M > 0 {
			return hasReversal(vals, m.M, false)
		}
		return crossesZero(vals, false)
	}
	return false
}

func strictlyMonotonic(vals []float64, increasing bool) bool {
	if len(vals) < 2 {
		return false
	}
	for i := 1; i < len(vals); i++ {
		if increasing && vals[i] <= vals[i-1] {
			return false
		}
		if !increasing && vals[i] >= vals[i-1] {
			return false
		}
	}
	return true
}

// hasReversal searches for an m-long strictly monotonic run followed
// immediately by a move in the opposite direction. Existence is enough;
// the first match wins.
func hasReversal(vals []float64, m int, risingFirst bool) bool {
	if len(vals) < m+1 {
		return false
	}
	for i := 0; i+m < len(vals); i++ {
		run := vals[i : i+m]
		if m > 1 && !strictlyMonotonic(run, risingFirst) {
			continue
		}
		next, last := vals[i+m], vals[i+m-1]
		if risingFirst && next < last {
			return true
		}
		if !risingFirst && next > last {
			return true
		}
	}
	return false
}

// crossesZero looks for an adjacent sign transition: positive to
// non-positive, or negative to non-negative.
func crossesZero(vals []float64, posToNeg bool) bool {
	for i := 0; i+1 < len(vals); i++ {
		if posToNeg && vals[i] > 0 && vals[i+1] <= 0 {
			return true
		}
		if !posToNeg && vals[i] < 0 && vals[i+1] >= 0 {
			return true
		}
	}
	return false
}

// evalDirection compares the first and last value of the period-ascending
// window. Both movements are strict; "either" passes on any window with at
// least two points.
func evalDirection(values []float64, m model.DirectionMethod) bool {
	if len(values) < 2 {
		return false
	}
	first, last := values[0], values[len(values)-1]
	switch m.Direction {
	case model.DirectionPositive:
		return last > first
	case model.DirectionNegative:
		return last < first
	case model.DirectionEither:
		return true
	}
	return false
}
