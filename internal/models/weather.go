package models

import "time"

// WeatherSnapshot is a single provider reading for a coordinate pair.
// Wind speed is km/h for metric and mph for imperial.
type WeatherSnapshot struct {
	Location    string    `json:"location"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Temperature float64   `json:"temperature"`
	FeelsLike   float64   `json:"feelsLike"`
	Humidity    float64   `json:"humidity"`
	WindSpeed   float64   `json:"windSpeed"`
	Condition   string    `json:"condition"`
	Description string    `json:"description"`
	Visibility  float64   `json:"visibility"`
	Rainfall    float64   `json:"rainfall"` // mm, last hour
	Pressure    float64   `json:"pressure"`
	Units       Units     `json:"units"`
	FetchedAt   time.Time `json:"fetchedAt"`
}

type ForecastDay struct {
	Date        time.Time `json:"date"`
	TempMin     float64   `json:"tempMin"`
	TempMax     float64   `json:"tempMax"`
	Humidity    float64   `json:"humidity"`
	WindSpeed   float64   `json:"windSpeed"`
	Rainfall    float64   `json:"rainfall"`
	Condition   string    `json:"condition"`
	Description string    `json:"description"`
}

type RiskType string

const (
	RiskHeatwave     RiskType = "HEATWAVE"
	RiskHeavyRain    RiskType = "HEAVY_RAIN"
	RiskThunderstorm RiskType = "THUNDERSTORM"
	RiskStrongWind   RiskType = "STRONG_WIND"
	RiskCyclone      RiskType = "CYCLONE"
)

type RiskFinding struct {
	Type     RiskType `json:"type"`
	Severity Severity `json:"severity"`
	Detail   string   `json:"detail"`
}
