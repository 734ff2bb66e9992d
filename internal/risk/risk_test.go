package risk

import (
	"strings"
	"testing"

	"github.com/mr1hm/event-weather-alerts/internal/models"
)

func snapshot(temp float64, cond string, wind, humidity, rain float64) models.WeatherSnapshot {
	return models.WeatherSnapshot{
		Temperature: temp,
		Condition:   cond,
		WindSpeed:   wind,
		Humidity:    humidity,
		Rainfall:    rain,
		Units:       models.UnitsMetric,
	}
}

func riskTypes(risks []models.RiskFinding) []models.RiskType {
	out := make([]models.RiskType, 0, len(risks))
	for _, r := range risks {
		out = append(out, r.Type)
	}
	return out
}

func TestDetectRisks_Cases(t *testing.T) {
	tests := []struct {
		name       string
		snap       models.WeatherSnapshot
		wantType   models.RiskType
		wantSev    models.Severity
		wantNotice models.Severity
	}{
		{"A heatwave", snapshot(42, "Clear", 10, 30, 0), models.RiskHeatwave, models.SeverityWarning, models.SeverityWarning},
		{"B heavy rain", snapshot(25, "Rain", 20, 60, 12), models.RiskHeavyRain, models.SeverityWarning, models.SeverityWarning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := DetectRisks(tt.snap)
			if !a.HasRisk || len(a.Risks) != 1 {
				t.Fatalf("expected exactly one risk, got %v", riskTypes(a.Risks))
			}
			if a.Risks[0].Type != tt.wantType || a.Risks[0].Severity != tt.wantSev {
				t.Errorf("expected %s/%s, got %s/%s", tt.wantType, tt.wantSev, a.Risks[0].Type, a.Risks[0].Severity)
			}
			n := BuildNotification(tt.snap)
			if n.Type != tt.wantNotice {
				t.Errorf("expected notification type %s, got %s", tt.wantNotice, n.Type)
			}
		})
	}
}

func TestBuildNotification_HumidityOnly(t *testing.T) {
	s := snapshot(20, "Clear", 15, 90, 0)

	a := DetectRisks(s)
	if a.HasRisk || len(a.Risks) != 0 {
		t.Fatalf("expected no risks, got %v", riskTypes(a.Risks))
	}
	if a.Summary != "No weather risks detected" {
		t.Errorf("unexpected summary %q", a.Summary)
	}

	n := BuildNotification(s)
	if n.Type != models.SeverityInfo {
		t.Errorf("expected info, got %s", n.Type)
	}
	if len(n.Alerts) != 1 || !strings.Contains(n.Alerts[0], "humidity") {
		t.Errorf("expected humidity notice, got %v", n.Alerts)
	}
}

func TestDetectRisks_HeatBoundaries(t *testing.T) {
	tests := []struct {
		temp  float64
		units models.Units
		want  models.Severity // empty means no finding
	}{
		{35, models.UnitsMetric, ""},
		{35.5, models.UnitsMetric, models.SeverityCaution},
		{40, models.UnitsMetric, models.SeverityCaution},
		{40.1, models.UnitsMetric, models.SeverityWarning},
		{95, models.UnitsImperial, ""},
		{100, models.UnitsImperial, models.SeverityCaution},
		{104, models.UnitsImperial, models.SeverityCaution},
		{105, models.UnitsImperial, models.SeverityWarning},
	}

	for _, tt := range tests {
		s := models.WeatherSnapshot{Temperature: tt.temp, Condition: "Clear", Units: tt.units}
		a := DetectRisks(s)
		if tt.want == "" {
			if a.HasRisk {
				t.Errorf("%.1f %s: expected no risk, got %v", tt.temp, tt.units, riskTypes(a.Risks))
			}
			continue
		}
		if len(a.Risks) != 1 || a.Risks[0].Type != models.RiskHeatwave || a.Risks[0].Severity != tt.want {
			t.Errorf("%.1f %s: expected HEATWAVE/%s, got %+v", tt.temp, tt.units, tt.want, a.Risks)
		}
	}
}

func TestDetectRisks_Wind(t *testing.T) {
	tests := []struct {
		wind  float64
		units models.Units
		want  models.Severity
	}{
		{40, models.UnitsMetric, ""},
		{45, models.UnitsMetric, models.SeverityCaution},
		{61, models.UnitsMetric, models.SeverityWarning},
		{26, models.UnitsImperial, models.SeverityCaution},
		{38, models.UnitsImperial, models.SeverityWarning},
	}
	for _, tt := range tests {
		a := DetectRisks(models.WeatherSnapshot{Temperature: 20, Condition: "Clouds", WindSpeed: tt.wind, Units: tt.units})
		if tt.want == "" {
			if a.HasRisk {
				t.Errorf("wind %.0f: expected no risk", tt.wind)
			}
			continue
		}
		if len(a.Risks) != 1 || a.Risks[0].Type != models.RiskStrongWind || a.Risks[0].Severity != tt.want {
			t.Errorf("wind %.0f %s: expected STRONG_WIND/%s, got %+v", tt.wind, tt.units, tt.want, a.Risks)
		}
	}
}

func TestDetectRisks_RainNeedsCondition(t *testing.T) {
	a := DetectRisks(snapshot(20, "Clouds", 0, 50, 12))
	if a.HasRisk {
		t.Errorf("rainfall without a rain condition should not be HEAVY_RAIN: %v", riskTypes(a.Risks))
	}
	a = DetectRisks(snapshot(20, "Light Rain", 0, 50, 7))
	if len(a.Risks) != 1 || a.Risks[0].Severity != models.SeverityCaution {
		t.Errorf("expected HEAVY_RAIN/caution, got %+v", a.Risks)
	}
}

func TestDetectRisks_TornadoProducesBoth(t *testing.T) {
	a := DetectRisks(snapshot(25, "Tornado", 10, 50, 0))
	got := riskTypes(a.Risks)
	if len(got) != 2 || got[0] != models.RiskThunderstorm || got[1] != models.RiskCyclone {
		t.Fatalf("expected THUNDERSTORM and CYCLONE, got %v", got)
	}
	for _, r := range a.Risks {
		if r.Severity != models.SeverityWarning {
			t.Errorf("%s should be warning, got %s", r.Type, r.Severity)
		}
	}
}

func TestDetectRisks_AllFive(t *testing.T) {
	s := snapshot(45, "Thunderstorm with rain, tornado squall", 70, 50, 20)
	a := DetectRisks(s)
	if len(a.Risks) != 5 {
		t.Fatalf("expected 5 findings, got %v", riskTypes(a.Risks))
	}
}

func TestBuildNotification_Supplementary(t *testing.T) {
	tests := []struct {
		name string
		snap models.WeatherSnapshot
		want models.Severity
	}{
		{"sub-zero forces warning", snapshot(-3, "Clear", 5, 40, 0), models.SeverityWarning},
		{"snow escalates to caution", snapshot(1, "Snow", 5, 40, 0), models.SeverityCaution},
		{"mist escalates to caution", snapshot(10, "Mist", 5, 40, 0), models.SeverityCaution},
		{"fog does not downgrade warning", snapshot(42, "Fog", 5, 40, 0), models.SeverityWarning},
		{"calm", snapshot(20, "Clear", 5, 40, 0), models.SeverityInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := BuildNotification(tt.snap)
			if n.Type != tt.want {
				t.Errorf("expected %s, got %s (%v)", tt.want, n.Type, n.Alerts)
			}
		})
	}

	calm := BuildNotification(snapshot(20, "Clear", 5, 40, 0))
	if calm.HasAlert || calm.Message != calmMessage {
		t.Errorf("expected calm default, got %+v", calm)
	}
}

func TestBuildNotification_TypeNeverBelowAnyFinding(t *testing.T) {
	conds := []string{"Clear", "Rain", "Thunderstorm", "Snow", "Fog", "Squall", "Tornado"}
	for _, cond := range conds {
		for temp := -10.0; temp <= 50; temp += 7.5 {
			for wind := 0.0; wind <= 80; wind += 20 {
				for _, rain := range []float64{0, 6, 15} {
					s := snapshot(temp, cond, wind, 88, rain)
					n := BuildNotification(s)
					for _, r := range DetectRisks(s).Risks {
						if n.Type.Rank() < r.Severity.Rank() {
							t.Fatalf("%+v: type %s below finding %s/%s", s, n.Type, r.Type, r.Severity)
						}
					}
					if n.Message != strings.Join(n.Alerts, "\n") {
						t.Fatalf("message is not the joined alerts for %+v", s)
					}
				}
			}
		}
	}
}

func TestEvaluateConfig(t *testing.T) {
	cfg := models.DefaultAlertConfig("evt")

	if m := EvaluateConfig(cfg, snapshot(20, "Clear", 10, 50, 0), nil); len(m) != 0 {
		t.Errorf("expected no matches for calm weather, got %+v", m)
	}

	s := snapshot(42, "Clear", 10, 30, 0)
	m := EvaluateConfig(cfg, s, DetectRisks(s).Risks)
	if len(m) != 2 {
		t.Fatalf("expected threshold and condition match, got %+v", m)
	}

	cfg.Conditions.ExtremeHeat = false
	cfg.Thresholds.TemperatureMax = 0
	if m := EvaluateConfig(cfg, s, DetectRisks(s).Risks); len(m) != 0 {
		t.Errorf("expected no matches with heat toggled off, got %+v", m)
	}

	cfg = models.DefaultAlertConfig("evt")
	cfg.Thresholds.HumidityMax = 80
	hum := snapshot(20, "Clear", 10, 85, 0)
	m = EvaluateConfig(cfg, hum, nil)
	if len(m) != 1 || m[0].Kind != MatchThreshold {
		t.Fatalf("expected humidity threshold match, got %+v", m)
	}
	n := BuildNotification(hum).WithMatches(m)
	if n.Type != models.SeverityCaution || !n.HasAlert {
		t.Errorf("expected threshold breach to escalate to caution, got %+v", n)
	}
}

func TestRenderTemplate(t *testing.T) {
	s := &models.WeatherSnapshot{Temperature: 31.26, Condition: "Rain", Description: "heavy rain", WindSpeed: 12, Humidity: 77, Units: models.UnitsMetric}
	tmpl := "{eventName}: {weatherCondition}, {temperature}, wind {windSpeed}, humidity {humidity}, rain {rainfall} {unknown}"

	got := RenderTemplate(tmpl, NewTemplateFields("Summer Fest", s))
	want := "Summer Fest: heavy rain, 31.3°C, wind 12.0 km/h, humidity 77%, rain 0 {unknown}"
	if got != want {
		t.Errorf("got %q\nwant %q", got, want)
	}

	got = RenderTemplate("{eventName} {weatherCondition} {rainfall}", NewTemplateFields("", nil))
	if got != "N/A N/A 0" {
		t.Errorf("expected fallbacks, got %q", got)
	}
}

func TestValidateTemplate(t *testing.T) {
	if err := ValidateTemplate("Alert for {eventName} at {temperature}"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateTemplate("Alert for {event}"); err == nil {
		t.Error("expected error for unknown placeholder")
	}
}
