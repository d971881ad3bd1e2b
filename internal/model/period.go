package model

// Frequency selects the reporting interval of a KPI series.
type Frequency string

const (
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyYearly    Frequency = "yearly"
)

// PeriodKey identifies one fiscal period. Quarter is 0 for yearly data,
// 1-4 for quarterly data. PeriodKeys are comparable: year first, then
// quarter.
type PeriodKey struct {
	Year    int `json:"year"`
	Quarter int `json:"quarter,omitempty"`
}

// Compare returns -1, 0 or 1 ordering p against other by year, then quarter.
func (p PeriodKey) Compare(other PeriodKey) int {
	if p.Year != other.Year {
		if p.Year < other.Year {
			return -1
		}
		return 1
	}
	if p.Quarter != other.Quarter {
		if p.Quarter < other.Quarter {
			return -1
		}
		return 1
	}
	return 0
}

// Before reports whether p is strictly earlier than other.
func (p PeriodKey) Before(other PeriodKey) bool { return p.Compare(other) < 0 }

// Yearly reports whether p carries no quarter component.
func (p PeriodKey) Yearly() bool { return p.Quarter == 0 }

// String renders the period in its literal form: "2023-Q2" for quarterly
// periods, "2023" for yearly ones.
func (p PeriodKey) String() string {
	if p.Quarter == 0 {
		return formatYear(p.Year)
	}
	return formatYear(p.Year) + "-Q" + string(rune('0'+p.Quarter))
}

func formatYear(y int) string {
	// Years outside 1000-9999 never appear in period literals; pad defensively
	// so String stays inverse of ParsePeriod for valid data.
	buf := [4]byte{'0', '0', '0', '0'}
	for i := 3; i >= 0 && y > 0; i-- {
		buf[i] = byte('0' + y%10)
		y /= 10
	}
	return string(buf[:])
}

// ParseQuarter parses a quarter literal of the exact form "YYYY-Qx" with
// x in 1-4. The second return is false for any other input, including
// yearly literals.
func ParseQuarter(s string) (PeriodKey, bool) {
	if len(s) != 7 || s[4] != '-' || s[5] != 'Q' {
		return PeriodKey{}, false
	}
	year, ok := parseYear(s[:4])
	if !ok {
		return PeriodKey{}, false
	}
	q := s[6]
	if q < '1' || q > '4' {
		return PeriodKey{}, false
	}
	return PeriodKey{Year: year, Quarter: int(q - '0')}, true
}

// ParsePeriod parses either a quarter literal ("YYYY-Qx") or a bare
// 4-digit year. The second return is false for malformed input.
func ParsePeriod(s string) (PeriodKey, bool) {
	if len(s) == 7 {
		return ParseQuarter(s)
	}
	if len(s) == 4 {
		year, ok := parseYear(s)
		if !ok {
			return PeriodKey{}, false
		}
		return PeriodKey{Year: year}, true
	}
	return PeriodKey{}, false
}

func parseYear(s string) (int, bool) {
	year := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		year = year*10 + int(c-'0')
	}
	return year, true
}
