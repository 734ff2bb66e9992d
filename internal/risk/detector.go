// Package risk turns weather snapshots into typed risk findings and
// human-readable alert bundles. Everything here is pure.
package risk

import (
	"fmt"
	"strings"

	"github.com/mr1hm/event-weather-alerts/internal/models"
)

type limits struct {
	heatCaution float64
	heatWarning float64
	windCaution float64
	windWarning float64
	freezing    float64
	tempUnit    string
	windUnit    string
}

var (
	metricLimits = limits{
		heatCaution: 35, heatWarning: 40,
		windCaution: 40, windWarning: 60,
		freezing: 0, tempUnit: "°C", windUnit: "km/h",
	}
	imperialLimits = limits{
		heatCaution: 95, heatWarning: 104,
		windCaution: 25, windWarning: 37,
		freezing: 32, tempUnit: "°F", windUnit: "mph",
	}
)

// Rainfall is reported in millimetres regardless of unit system.
const (
	rainCaution = 5.0
	rainWarning = 10.0
)

func limitsFor(u models.Units) limits {
	if u == models.UnitsImperial {
		return imperialLimits
	}
	return metricLimits
}

type Assessment struct {
	HasRisk bool                 `json:"hasRisk"`
	Risks   []models.RiskFinding `json:"risks"`
	Summary string               `json:"summary"`
}

// DetectRisks applies the fixed risk rules to a snapshot. Findings are
// additive; THUNDERSTORM and CYCLONE can both fire for a tornado.
func DetectRisks(s models.WeatherSnapshot) Assessment {
	l := limitsFor(s.Units)
	cond := strings.ToLower(s.Condition)
	risks := make([]models.RiskFinding, 0)

	if s.Temperature > l.heatCaution {
		sev := models.SeverityCaution
		if s.Temperature > l.heatWarning {
			sev = models.SeverityWarning
		}
		risks = append(risks, models.RiskFinding{
			Type:     models.RiskHeatwave,
			Severity: sev,
			Detail:   fmt.Sprintf("Extreme heat: %.1f%s", s.Temperature, l.tempUnit),
		})
	}

	if strings.Contains(cond, "thunderstorm") || strings.Contains(cond, "tornado") {
		risks = append(risks, models.RiskFinding{
			Type:     models.RiskThunderstorm,
			Severity: models.SeverityWarning,
			Detail:   fmt.Sprintf("Thunderstorm activity: %s", describe(s)),
		})
	}

	if strings.Contains(cond, "rain") && s.Rainfall > rainCaution {
		sev := models.SeverityCaution
		if s.Rainfall > rainWarning {
			sev = models.SeverityWarning
		}
		risks = append(risks, models.RiskFinding{
			Type:     models.RiskHeavyRain,
			Severity: sev,
			Detail:   fmt.Sprintf("Heavy rain: %.1f mm in the last hour", s.Rainfall),
		})
	}

	if s.WindSpeed > l.windCaution {
		sev := models.SeverityCaution
		if s.WindSpeed > l.windWarning {
			sev = models.SeverityWarning
		}
		risks = append(risks, models.RiskFinding{
			Type:     models.RiskStrongWind,
			Severity: sev,
			Detail:   fmt.Sprintf("Strong wind: %.1f %s", s.WindSpeed, l.windUnit),
		})
	}

	if strings.Contains(cond, "tornado") || strings.Contains(cond, "squall") {
		risks = append(risks, models.RiskFinding{
			Type:     models.RiskCyclone,
			Severity: models.SeverityWarning,
			Detail:   fmt.Sprintf("Cyclonic conditions: %s", describe(s)),
		})
	}

	return Assessment{
		HasRisk: len(risks) > 0,
		Risks:   risks,
		Summary: summarize(risks),
	}
}

func summarize(risks []models.RiskFinding) string {
	if len(risks) == 0 {
		return "No weather risks detected"
	}
	parts := make([]string, 0, len(risks))
	for _, r := range risks {
		parts = append(parts, r.Detail)
	}
	return strings.Join(parts, "; ")
}

func describe(s models.WeatherSnapshot) string {
	if s.Description != "" {
		return s.Description
	}
	return s.Condition
}
