package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mr1hm/event-weather-alerts/internal/models"
)

const alertConfigColumns = `event_id, enabled, units, thresholds, conditions, notifications, automation,
	polling_interval, template, last_checked, created_by, updated_by, created_at, updated_at`

func (s *SQLiteDB) GetAlertConfig(ctx context.Context, eventID string) (*models.AlertConfig, error) {
	return getAlertConfig(ctx, s.db, eventID)
}

func getAlertConfig(ctx context.Context, q querier, eventID string) (*models.AlertConfig, error) {
	var (
		cfg                                   models.AlertConfig
		enabled                               int
		units                                 string
		thresholds, conditions, notifications string
		automation                            string
		lastChecked                           sql.NullInt64
		createdAt, updatedAt                  int64
	)
	err := q.QueryRowContext(ctx, `SELECT `+alertConfigColumns+` FROM alert_configs WHERE event_id = ?`, eventID).Scan(
		&cfg.EventID, &enabled, &units, &thresholds, &conditions, &notifications, &automation,
		&cfg.PollingInterval, &cfg.Template, &lastChecked, &cfg.CreatedBy, &cfg.UpdatedBy, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get alert config: %w", err)
	}

	for _, f := range []struct {
		name string
		data string
		dest any
	}{
		{"thresholds", thresholds, &cfg.Thresholds},
		{"conditions", conditions, &cfg.Conditions},
		{"notifications", notifications, &cfg.Notifications},
		{"automation", automation, &cfg.Automation},
	} {
		if err := decodeJSON(f.data, f.dest); err != nil {
			return nil, fmt.Errorf("decode alert config %s: %w", f.name, err)
		}
	}

	cfg.Enabled = enabled != 0
	cfg.Units = models.Units(units)
	cfg.LastChecked = timePtr(lastChecked)
	cfg.CreatedAt = fromMillis(createdAt)
	cfg.UpdatedAt = fromMillis(updatedAt)
	cfg.Persisted = true
	return &cfg, nil
}

// UpsertAlertConfig reads the stored config (or the default), applies the
// mutation and writes it back in one transaction. Creation fields are only
// set on first write.
func (s *SQLiteDB) UpsertAlertConfig(ctx context.Context, eventID, actorID string, apply func(*models.AlertConfig) error) (*models.AlertConfig, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	cfg, err := getAlertConfig(ctx, tx, eventID)
	if errors.Is(err, models.ErrNotFound) {
		cfg = models.DefaultAlertConfig(eventID)
	} else if err != nil {
		return nil, err
	}

	if err := apply(cfg); err != nil {
		return nil, err
	}
	cfg.EventID = eventID
	cfg.Normalize()

	now := time.Now().UTC()
	if !cfg.Persisted {
		cfg.CreatedBy = actorID
		cfg.CreatedAt = now
	}
	cfg.UpdatedBy = actorID
	cfg.UpdatedAt = now

	thresholds, err := encodeJSON(cfg.Thresholds)
	if err != nil {
		return nil, fmt.Errorf("encode thresholds: %w", err)
	}
	conditions, err := encodeJSON(cfg.Conditions)
	if err != nil {
		return nil, fmt.Errorf("encode conditions: %w", err)
	}
	notifications, err := encodeJSON(cfg.Notifications)
	if err != nil {
		return nil, fmt.Errorf("encode notifications: %w", err)
	}
	automation, err := encodeJSON(cfg.Automation)
	if err != nil {
		return nil, fmt.Errorf("encode automation: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO alert_configs (`+alertConfigColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(event_id) DO UPDATE SET
			enabled = excluded.enabled,
			units = excluded.units,
			thresholds = excluded.thresholds,
			conditions = excluded.conditions,
			notifications = excluded.notifications,
			automation = excluded.automation,
			polling_interval = excluded.polling_interval,
			template = excluded.template,
			updated_by = excluded.updated_by,
			updated_at = excluded.updated_at`,
		cfg.EventID, boolInt(cfg.Enabled), string(cfg.Units), thresholds, conditions, notifications, automation,
		cfg.PollingInterval, cfg.Template, nullMillis(cfg.LastChecked),
		cfg.CreatedBy, cfg.UpdatedBy, toMillis(cfg.CreatedAt), toMillis(cfg.UpdatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("upsert alert config: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit alert config: %w", err)
	}
	cfg.Persisted = true
	return cfg, nil
}

func (s *SQLiteDB) DeleteAlertConfig(ctx context.Context, eventID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM alert_configs WHERE event_id = ?`, eventID)
	if err != nil {
		return fmt.Errorf("delete alert config: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete alert config: %w", err)
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}

// TouchLastChecked is a no-op for events without a stored config.
func (s *SQLiteDB) TouchLastChecked(ctx context.Context, eventID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE alert_configs SET last_checked = ? WHERE event_id = ?`,
		toMillis(at), eventID,
	)
	if err != nil {
		return fmt.Errorf("touch last checked: %w", err)
	}
	return nil
}

func (s *SQLiteDB) ClaimCheck(ctx context.Context, eventID string, now time.Time, interval time.Duration) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE alert_configs SET last_checked = ?
		WHERE event_id = ? AND enabled = 1
			AND (last_checked IS NULL OR last_checked <= ?)`,
		toMillis(now), eventID, toMillis(now.Add(-interval)),
	)
	if err != nil {
		return false, fmt.Errorf("claim check: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim check: %w", err)
	}
	return n == 1, nil
}

func (s *SQLiteDB) CountEnabledAlertConfigs(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM alert_configs WHERE enabled = 1`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count alert configs: %w", err)
	}
	return n, nil
}
