// Package engine implements the KPI filter evaluation core: time-window
// selection, the four comparison methods, and boolean logic tree
// construction and evaluation. Everything here is pure and stateless;
// callers may evaluate stocks concurrently without coordination.
package engine

import (
	"go.uber.org/zap"

	"github.com/sells-group/kpi-screener/internal/model"
)

// SelectWindow returns the sub-series of a KPI history relevant to one
// method evaluation.
//
// LastN takes the last N observations in ascending period order, clamped to
// the series length; N <= 0 degrades to the single most recent observation.
//
// CustomRange keeps observations with start <= period <= end, comparing by
// year and then by quarter: an observation in the start year is included
// only when its quarter >= the start quarter, one in the end year only when
// its quarter <= the end quarter, and strictly-between years are always
// included. When either bound fails to parse, the input is returned
// unfiltered. That fail-open fallback mirrors the upstream UI behavior and
// is intentionally inconsistent with the engine's fail-closed rules; see
// DESIGN.md before changing it.
func SelectWindow(series model.Series, dur model.DurationSpec) model.Series {
	if len(series) == 0 {
		return series
	}

	switch dur.Type {
	case model.DurationLastN:
		n := dur.LastN
		if n <= 0 {
			n = 1
		}
		return series.Tail(n)

	case model.DurationCustomRange:
		start, end, ok := parseRangeBounds(dur)
		if !ok {
			zap.L().Debug("engine: unparseable custom range bounds, leaving series unfiltered",
				zap.String("start", dur.Start),
				zap.String("end", dur.End),
			)
			return series
		}
		var out model.Series
		for _, obs := range series {
			if inRange(obs.Period, start, end) {
				out = append(out, obs)
			}
		}
		return out
	}

	return series
}

// parseRangeBounds parses the custom-range bounds per the duration's
// frequency: "YYYY-Qx" literals for quarterly data, bare years for yearly
// data. Yearly bounds deliberately drop any quarter component.
func parseRangeBounds(dur model.DurationSpec) (start, end model.PeriodKey, ok bool) {
	if dur.Frequency == model.FrequencyQuarterly {
		start, ok = model.ParseQuarter(dur.Start)
		if !ok {
			return model.PeriodKey{}, model.PeriodKey{}, false
		}
		end, ok = model.ParseQuarter(dur.End)
		if !ok {
			return model.PeriodKey{}, model.PeriodKey{}, false
		}
		return start, end, true
	}

	start, ok = model.ParsePeriod(dur.Start)
	if !ok {
		return model.PeriodKey{}, model.PeriodKey{}, false
	}
	end, ok = model.ParsePeriod(dur.End)
	if !ok {
		return model.PeriodKey{}, model.PeriodKey{}, false
	}
	start.Quarter, end.Quarter = 0, 0
	return start, end, true
}

// inRange applies the inclusive boundary rule. Yearly bounds (quarter 0)
// compare on year alone so quarterly observations in the boundary years are
// kept whole.
func inRange(p, start, end model.PeriodKey) bool {
	if p.Year < start.Year || p.Year > end.Year {
		return false
	}
	if start.Quarter == 0 && end.Quarter == 0 {
		return true
	}
	if p.Year == start.Year && p.Quarter < start.Quarter {
		return false
	}
	if p.Year == end.Year && p.Quarter > end.Quarter {
		return false
	}
	return true
}
