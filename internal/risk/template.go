package risk

import (
	"fmt"
	"regexp"

	"github.com/mr1hm/event-weather-alerts/internal/models"
)

const notAvailable = "N/A"

// TemplateFields is the closed set of values an alert template may reference.
type TemplateFields struct {
	EventName        string
	WeatherCondition string
	Temperature      string
	WindSpeed        string
	Humidity         string
	Rainfall         string
}

type placeholder struct {
	get      func(TemplateFields) string
	fallback string
}

var placeholders = map[string]placeholder{
	"eventName":        {func(f TemplateFields) string { return f.EventName }, notAvailable},
	"weatherCondition": {func(f TemplateFields) string { return f.WeatherCondition }, notAvailable},
	"temperature":      {func(f TemplateFields) string { return f.Temperature }, notAvailable},
	"windSpeed":        {func(f TemplateFields) string { return f.WindSpeed }, notAvailable},
	"humidity":         {func(f TemplateFields) string { return f.Humidity }, notAvailable},
	"rainfall":         {func(f TemplateFields) string { return f.Rainfall }, "0"},
}

var placeholderRe = regexp.MustCompile(`\{(\w+)\}`)

// NewTemplateFields formats a snapshot for template substitution.
func NewTemplateFields(eventName string, s *models.WeatherSnapshot) TemplateFields {
	f := TemplateFields{EventName: eventName}
	if s == nil {
		return f
	}
	l := limitsFor(s.Units)
	f.WeatherCondition = s.Condition
	if s.Description != "" {
		f.WeatherCondition = s.Description
	}
	f.Temperature = fmt.Sprintf("%.1f%s", s.Temperature, l.tempUnit)
	f.WindSpeed = fmt.Sprintf("%.1f %s", s.WindSpeed, l.windUnit)
	f.Humidity = fmt.Sprintf("%.0f%%", s.Humidity)
	if s.Rainfall > 0 {
		f.Rainfall = fmt.Sprintf("%.1f mm", s.Rainfall)
	}
	return f
}

// RenderTemplate substitutes known placeholders. Unknown ones are left as-is;
// ValidateTemplate rejects them before a template is stored.
func RenderTemplate(tmpl string, f TemplateFields) string {
	return placeholderRe.ReplaceAllStringFunc(tmpl, func(m string) string {
		p, ok := placeholders[m[1:len(m)-1]]
		if !ok {
			return m
		}
		if v := p.get(f); v != "" {
			return v
		}
		return p.fallback
	})
}

func ValidateTemplate(tmpl string) error {
	for _, m := range placeholderRe.FindAllStringSubmatch(tmpl, -1) {
		if _, ok := placeholders[m[1]]; !ok {
			return fmt.Errorf("unknown template placeholder {%s}", m[1])
		}
	}
	return nil
}
