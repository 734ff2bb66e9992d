package risk

import (
	"fmt"
	"strings"

	"github.com/mr1hm/event-weather-alerts/internal/models"
)

const calmMessage = "Weather conditions look normal. No alerts at this time."

const humidityNotice = 85.0

type Notification struct {
	HasAlert bool            `json:"hasAlert"`
	Alerts   []string        `json:"notifications"`
	Type     models.Severity `json:"type"`
	Message  string          `json:"message"`
}

// BuildNotification folds the detected risks and a few supplementary checks
// into one alert bundle. Type only ever moves up.
func BuildNotification(s models.WeatherSnapshot) Notification {
	return buildFrom(s, DetectRisks(s).Risks)
}

func buildFrom(s models.WeatherSnapshot, risks []models.RiskFinding) Notification {
	l := limitsFor(s.Units)
	cond := strings.ToLower(s.Condition)
	n := Notification{Type: models.SeverityInfo}

	for _, r := range risks {
		n.add(alertLine(r), r.Severity)
	}

	if s.Temperature < l.freezing {
		n.add(fmt.Sprintf("Freezing temperatures: %.1f%s. Risk of ice on walkways.", s.Temperature, l.tempUnit), models.SeverityWarning)
	}
	if strings.Contains(cond, "snow") {
		n.add("Snowfall expected. Allow extra time for travel and clear entrances.", models.SeverityCaution)
	}
	if strings.Contains(cond, "fog") || strings.Contains(cond, "mist") {
		n.add("Reduced visibility due to fog or mist.", models.SeverityCaution)
	}
	if s.Humidity > humidityNotice {
		n.add(fmt.Sprintf("High humidity: %.0f%%. Keep attendees hydrated.", s.Humidity), models.SeverityInfo)
	}

	n.finish()
	return n
}

func alertLine(r models.RiskFinding) string {
	return fmt.Sprintf("[%s] %s", strings.ToUpper(string(r.Severity)), r.Detail)
}

func (n *Notification) add(line string, sev models.Severity) {
	n.Alerts = append(n.Alerts, line)
	n.Type = n.Type.Max(sev)
}

func (n *Notification) finish() {
	n.HasAlert = len(n.Alerts) > 0
	if n.HasAlert {
		n.Message = strings.Join(n.Alerts, "\n")
	} else {
		n.Message = calmMessage
	}
}

// WithMatches appends configured threshold breaches that are not already
// covered by a risk line and folds their severity in.
func (n Notification) WithMatches(matches []Match) Notification {
	out := Notification{
		Alerts: append([]string(nil), n.Alerts...),
		Type:   n.Type,
	}
	for _, m := range matches {
		if m.Kind == MatchThreshold {
			out.add(m.Reason, m.Severity)
		} else {
			out.Type = out.Type.Max(m.Severity)
		}
	}
	out.finish()
	return out
}
