package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mr1hm/event-weather-alerts/internal/models"
)

// Client talks to an OpenWeatherMap-compatible API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type currentResponse struct {
	Name    string `json:"name"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  float64 `json:"humidity"`
		Pressure  float64 `json:"pressure"`
		TempMin   float64 `json:"temp_min"`
		TempMax   float64 `json:"temp_max"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Rain struct {
		OneHour   float64 `json:"1h"`
		ThreeHour float64 `json:"3h"`
	} `json:"rain"`
	Visibility float64 `json:"visibility"`
	Coord      struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"coord"`
	Dt int64 `json:"dt"`
}

type forecastResponse struct {
	List []currentResponse `json:"list"`
}

type uvResponse struct {
	Value float64 `json:"value"`
}

func (c *Client) get(ctx context.Context, path string, params url.Values, dest any) error {
	params.Set("appid", c.APIKey)
	reqURL := c.BaseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("error while doing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d - status: %s", resp.StatusCode, resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("error decoding resp.Body: %w", err)
	}
	return nil
}

func coordParams(lat, lon float64, units models.Units) url.Values {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', 4, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', 4, 64))
	if units != "" {
		params.Set("units", string(units))
	}
	return params
}

// FetchCurrent returns the current conditions with wind normalised to km/h
// (metric) or mph (imperial).
func (c *Client) FetchCurrent(ctx context.Context, lat, lon float64, units models.Units) (*models.WeatherSnapshot, error) {
	units = units.OrDefault()

	var data currentResponse
	if err := c.get(ctx, "/data/2.5/weather", coordParams(lat, lon, units), &data); err != nil {
		return nil, &models.WeatherFetchError{Op: "current", Err: err}
	}
	if len(data.Weather) == 0 {
		return nil, &models.WeatherFetchError{Op: "current", Err: fmt.Errorf("response has no weather conditions")}
	}

	return &models.WeatherSnapshot{
		Location:    data.Name,
		Latitude:    lat,
		Longitude:   lon,
		Temperature: data.Main.Temp,
		FeelsLike:   data.Main.FeelsLike,
		Humidity:    data.Main.Humidity,
		WindSpeed:   normalizeWind(data.Wind.Speed, units),
		Condition:   data.Weather[0].Main,
		Description: data.Weather[0].Description,
		Visibility:  data.Visibility,
		Rainfall:    data.Rain.OneHour,
		Pressure:    data.Main.Pressure,
		Units:       units,
		FetchedAt:   time.Now().UTC(),
	}, nil
}

// slotsPerDay is the number of 3-hour forecast slots in 24h.
const slotsPerDay = 8

const maxForecastDays = 5

// FetchForecast samples the 3-hourly forecast once per ~24h, up to five days.
func (c *Client) FetchForecast(ctx context.Context, lat, lon float64, units models.Units) ([]models.ForecastDay, error) {
	units = units.OrDefault()

	var data forecastResponse
	if err := c.get(ctx, "/data/2.5/forecast", coordParams(lat, lon, units), &data); err != nil {
		return nil, &models.WeatherFetchError{Op: "forecast", Err: err}
	}

	days := make([]models.ForecastDay, 0, maxForecastDays)
	for i := 0; i < len(data.List) && len(days) < maxForecastDays; i += slotsPerDay {
		slot := data.List[i]
		day := models.ForecastDay{
			Date:      time.Unix(slot.Dt, 0).UTC(),
			TempMin:   slot.Main.TempMin,
			TempMax:   slot.Main.TempMax,
			Humidity:  slot.Main.Humidity,
			WindSpeed: normalizeWind(slot.Wind.Speed, units),
			Rainfall:  slot.Rain.ThreeHour,
		}
		if len(slot.Weather) > 0 {
			day.Condition = slot.Weather[0].Main
			day.Description = slot.Weather[0].Description
		}
		days = append(days, day)
	}

	return days, nil
}

func (c *Client) FetchUVIndex(ctx context.Context, lat, lon float64) (float64, error) {
	var data uvResponse
	if err := c.get(ctx, "/data/2.5/uvi", coordParams(lat, lon, ""), &data); err != nil {
		return 0, &models.WeatherFetchError{Op: "uv index", Err: err}
	}
	return data.Value, nil
}

// normalizeWind converts the provider's m/s to km/h for metric. Imperial
// readings already arrive in mph.
func normalizeWind(speed float64, units models.Units) float64 {
	if units == models.UnitsImperial {
		return speed
	}
	return speed * 3.6
}
