package models

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityCaution Severity = "caution"
	SeverityWarning Severity = "warning"
)

// Rank orders severities; unknown values rank below info.
func (s Severity) Rank() int {
	switch s {
	case SeverityInfo:
		return 1
	case SeverityCaution:
		return 2
	case SeverityWarning:
		return 3
	default:
		return 0
	}
}

func (s Severity) Valid() bool {
	return s.Rank() > 0
}

// AtLeast reports whether s meets the bar set by min. A caution bar is
// satisfied by warning as well.
func (s Severity) AtLeast(min Severity) bool {
	return min.Valid() && s.Rank() >= min.Rank()
}

// Max returns the higher of the two severities. Folding with Max never
// downgrades.
func (s Severity) Max(o Severity) Severity {
	if o.Rank() > s.Rank() {
		return o
	}
	return s
}

type Units string

const (
	UnitsMetric   Units = "metric"
	UnitsImperial Units = "imperial"
)

func (u Units) Valid() bool {
	return u == UnitsMetric || u == UnitsImperial
}

// OrDefault falls back to metric for empty or unknown values.
func (u Units) OrDefault() Units {
	if u.Valid() {
		return u
	}
	return UnitsMetric
}
