package risk

import (
	"fmt"
	"strings"

	"github.com/mr1hm/event-weather-alerts/internal/models"
)

type MatchKind string

const (
	MatchThreshold MatchKind = "threshold"
	MatchCondition MatchKind = "condition"
)

// Match is one reason an event's configuration wants to be notified.
type Match struct {
	Kind     MatchKind
	Reason   string
	Severity models.Severity
}

// EvaluateConfig checks a snapshot and its findings against an event's
// thresholds and condition toggles. An empty result means the event does not
// want to hear about this reading. Zero-valued maxima are treated as unset.
func EvaluateConfig(cfg *models.AlertConfig, s models.WeatherSnapshot, risks []models.RiskFinding) []Match {
	var matches []Match
	t := cfg.Thresholds
	l := limitsFor(s.Units)

	threshold := func(format string, args ...any) {
		matches = append(matches, Match{
			Kind:     MatchThreshold,
			Reason:   fmt.Sprintf(format, args...),
			Severity: models.SeverityCaution,
		})
	}

	if t.TemperatureMax > 0 && s.Temperature > t.TemperatureMax {
		threshold("Temperature %.1f%s is above the configured maximum of %.1f%s", s.Temperature, l.tempUnit, t.TemperatureMax, l.tempUnit)
	}
	if s.Temperature < t.TemperatureMin {
		threshold("Temperature %.1f%s is below the configured minimum of %.1f%s", s.Temperature, l.tempUnit, t.TemperatureMin, l.tempUnit)
	}
	if t.RainfallMax > 0 && s.Rainfall > t.RainfallMax {
		threshold("Rainfall %.1f mm is above the configured maximum of %.1f mm", s.Rainfall, t.RainfallMax)
	}
	if t.WindSpeedMax > 0 && s.WindSpeed > t.WindSpeedMax {
		threshold("Wind speed %.1f %s is above the configured maximum of %.1f %s", s.WindSpeed, l.windUnit, t.WindSpeedMax, l.windUnit)
	}
	if t.HumidityMax > 0 && s.Humidity > t.HumidityMax {
		threshold("Humidity %.0f%% is above the configured maximum of %.0f%%", s.Humidity, t.HumidityMax)
	}

	c := cfg.Conditions
	for _, r := range risks {
		var enabled bool
		switch r.Type {
		case models.RiskThunderstorm:
			enabled = c.Thunderstorm
		case models.RiskCyclone:
			enabled = c.Tornado
		case models.RiskHeavyRain:
			enabled = c.HeavyRain
		case models.RiskHeatwave:
			enabled = c.ExtremeHeat
		}
		if enabled {
			matches = append(matches, Match{Kind: MatchCondition, Reason: r.Detail, Severity: r.Severity})
		}
	}

	cond := strings.ToLower(s.Condition)
	if c.Snow && strings.Contains(cond, "snow") {
		matches = append(matches, Match{Kind: MatchCondition, Reason: "Snow", Severity: models.SeverityCaution})
	}
	if c.Fog && (strings.Contains(cond, "fog") || strings.Contains(cond, "mist")) {
		matches = append(matches, Match{Kind: MatchCondition, Reason: "Fog", Severity: models.SeverityCaution})
	}

	return matches
}
