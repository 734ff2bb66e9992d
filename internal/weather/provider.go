// Package weather fetches and caches weather readings for event locations.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mr1hm/event-weather-alerts/internal/models"
)

type Fetcher interface {
	FetchCurrent(ctx context.Context, lat, lon float64, units models.Units) (*models.WeatherSnapshot, error)
	FetchForecast(ctx context.Context, lat, lon float64, units models.Units) ([]models.ForecastDay, error)
	FetchUVIndex(ctx context.Context, lat, lon float64) (float64, error)
}

const defaultFetchTimeout = 15 * time.Second

// Provider fronts a Fetcher with a TTL cache. Concurrent misses for the
// same key share one outbound call, which is bounded by fetchTimeout rather
// than by the context of whichever caller started it.
type Provider struct {
	fetcher      Fetcher
	cache        Cache
	ttl          time.Duration
	fetchTimeout time.Duration
	group        singleflight.Group
}

func NewProvider(fetcher Fetcher, cache Cache, ttl time.Duration) *Provider {
	return &Provider{
		fetcher:      fetcher,
		cache:        cache,
		ttl:          ttl,
		fetchTimeout: defaultFetchTimeout,
	}
}

func cacheKey(kind string, lat, lon float64, units models.Units) string {
	return fmt.Sprintf("%s:%.4f,%.4f:%s", kind, lat, lon, units)
}

func (p *Provider) Current(ctx context.Context, lat, lon float64, units models.Units) (*models.WeatherSnapshot, error) {
	units = units.OrDefault()
	var snap models.WeatherSnapshot
	err := p.cached(ctx, cacheKey("current", lat, lon, units), &snap, func(ctx context.Context) (any, error) {
		return p.fetcher.FetchCurrent(ctx, lat, lon, units)
	})
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (p *Provider) Forecast(ctx context.Context, lat, lon float64, units models.Units) ([]models.ForecastDay, error) {
	units = units.OrDefault()
	var days []models.ForecastDay
	err := p.cached(ctx, cacheKey("forecast", lat, lon, units), &days, func(ctx context.Context) (any, error) {
		return p.fetcher.FetchForecast(ctx, lat, lon, units)
	})
	if err != nil {
		return nil, err
	}
	return days, nil
}

// UVIndex is supplementary: failures are logged and reported as nil.
func (p *Provider) UVIndex(ctx context.Context, lat, lon float64) *float64 {
	var uv float64
	err := p.cached(ctx, cacheKey("uv", lat, lon, ""), &uv, func(ctx context.Context) (any, error) {
		return p.fetcher.FetchUVIndex(ctx, lat, lon)
	})
	if err != nil {
		slog.Warn("uv index unavailable", "lat", lat, "lon", lon, "error", err)
		return nil
	}
	return &uv
}

func (p *Provider) cached(ctx context.Context, key string, dest any, fetch func(context.Context) (any, error)) error {
	data, ok, err := p.cache.Get(ctx, key)
	if err != nil {
		slog.Warn("weather cache read failed", "key", key, "error", err)
	}
	if !ok {
		ch := p.group.DoChan(key, func() (any, error) {
			fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.fetchTimeout)
			defer cancel()

			// Another caller may have filled the cache while we waited.
			if data, ok, _ := p.cache.Get(fctx, key); ok {
				return data, nil
			}
			result, err := fetch(fctx)
			if err != nil {
				return nil, err
			}
			encoded, err := json.Marshal(result)
			if err != nil {
				return nil, fmt.Errorf("encode %s: %w", key, err)
			}
			if err := p.cache.Set(fctx, key, encoded, p.ttl); err != nil {
				slog.Warn("weather cache write failed", "key", key, "error", err)
			}
			return encoded, nil
		})

		select {
		case <-ctx.Done():
			return ctx.Err()
		case res := <-ch:
			if res.Err != nil {
				return res.Err
			}
			data = res.Val.([]byte)
		}
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return &models.WeatherFetchError{Op: "decode cached " + key, Err: err}
	}
	return nil
}
