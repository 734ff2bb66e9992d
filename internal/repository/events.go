package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mr1hm/event-weather-alerts/internal/models"
)

const eventColumns = `id, name, organizer_id, venue, latitude, longitude, starts_at, status, weather_status, updated_at`

func (s *SQLiteDB) AddEvent(ctx context.Context, e *models.Event) error {
	if e.WeatherStatus == "" {
		e.WeatherStatus = models.WeatherNormal
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (`+eventColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Name, e.OrganizerID, e.Venue,
		nullFloat(e.Latitude), nullFloat(e.Longitude),
		toMillis(e.StartsAt), string(e.Status), string(e.WeatherStatus), toMillis(e.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (s *SQLiteDB) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

// ListUpcomingEvents returns located events that are ongoing, or scheduled
// to start within lookahead of now, soonest first.
func (s *SQLiteDB) ListUpcomingEvents(ctx context.Context, now time.Time, lookahead time.Duration) ([]models.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events
		WHERE latitude IS NOT NULL AND longitude IS NOT NULL
			AND starts_at <= ?
			AND (status = ? OR (status = ? AND starts_at >= ?))
		ORDER BY starts_at ASC`,
		toMillis(now.Add(lookahead)),
		string(models.EventOngoing),
		string(models.EventScheduled), toMillis(now),
	)
	if err != nil {
		return nil, fmt.Errorf("query upcoming events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

func (s *SQLiteDB) UpdateEventState(ctx context.Context, id string, status models.EventStatus, weather models.WeatherStatus) error {
	return updateEventState(ctx, s.db, id, status, weather)
}

func updateEventState(ctx context.Context, q querier, id string, status models.EventStatus, weather models.WeatherStatus) error {
	res, err := q.ExecContext(ctx,
		`UPDATE events SET status = ?, weather_status = ?, updated_at = ? WHERE id = ?`,
		string(status), string(weather), toMillis(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("update event state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update event state: %w", err)
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(sc scanner) (*models.Event, error) {
	var (
		e                   models.Event
		lat, lon            sql.NullFloat64
		startsAt, updatedAt int64
		status, weather     string
	)
	if err := sc.Scan(&e.ID, &e.Name, &e.OrganizerID, &e.Venue, &lat, &lon, &startsAt, &status, &weather, &updatedAt); err != nil {
		return nil, err
	}
	if lat.Valid {
		e.Latitude = &lat.Float64
	}
	if lon.Valid {
		e.Longitude = &lon.Float64
	}
	e.StartsAt = fromMillis(startsAt)
	e.UpdatedAt = fromMillis(updatedAt)
	e.Status = models.EventStatus(status)
	e.WeatherStatus = models.WeatherStatus(weather)
	return &e, nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
