package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/mr1hm/event-weather-alerts/internal/models"
)

// ensureSystemConfig inserts the default singleton if it does not exist yet.
func (s *SQLiteDB) ensureSystemConfig(ctx context.Context) error {
	def := models.DefaultSystemConfig()
	roles, err := encodeJSON(def.AllowedRoles)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO system_config (id, enabled, auto_polling, default_polling_interval, allowed_roles, require_approval, updated_by, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, '', ?)
		ON CONFLICT(id) DO NOTHING`,
		def.ID, boolInt(def.Enabled), boolInt(def.AutoPolling), def.DefaultPollingInterval,
		roles, boolInt(def.RequireApproval), toMillis(time.Now()),
	)
	return err
}

func (s *SQLiteDB) GetSystemConfig(ctx context.Context) (*models.SystemConfig, error) {
	return getSystemConfig(ctx, s.db)
}

func getSystemConfig(ctx context.Context, q querier) (*models.SystemConfig, error) {
	var (
		sc                                    models.SystemConfig
		enabled, autoPolling, requireApproval int
		roles                                 string
		updatedAt                             int64
	)
	err := q.QueryRowContext(ctx,
		`SELECT id, enabled, auto_polling, default_polling_interval, allowed_roles, require_approval, updated_by, updated_at
		FROM system_config WHERE id = ?`, models.SystemConfigID,
	).Scan(&sc.ID, &enabled, &autoPolling, &sc.DefaultPollingInterval, &roles, &requireApproval, &sc.UpdatedBy, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("get system config: %w", err)
	}
	if err := decodeJSON(roles, &sc.AllowedRoles); err != nil {
		return nil, fmt.Errorf("decode allowed roles: %w", err)
	}
	sc.Enabled = enabled != 0
	sc.AutoPolling = autoPolling != 0
	sc.RequireApproval = requireApproval != 0
	sc.UpdatedAt = fromMillis(updatedAt)
	return &sc, nil
}

func (s *SQLiteDB) UpdateSystemConfig(ctx context.Context, actorID string, apply func(*models.SystemConfig) error) (*models.SystemConfig, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	sc, err := getSystemConfig(ctx, tx)
	if err != nil {
		return nil, err
	}
	if err := apply(sc); err != nil {
		return nil, err
	}
	sc.Normalize()
	sc.UpdatedBy = actorID
	sc.UpdatedAt = time.Now().UTC()

	roles := sc.AllowedRoles
	if roles == nil {
		roles = []models.Role{}
	}
	rolesJSON, err := encodeJSON(roles)
	if err != nil {
		return nil, fmt.Errorf("encode allowed roles: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE system_config SET enabled = ?, auto_polling = ?, default_polling_interval = ?,
			allowed_roles = ?, require_approval = ?, updated_by = ?, updated_at = ?
		WHERE id = ?`,
		boolInt(sc.Enabled), boolInt(sc.AutoPolling), sc.DefaultPollingInterval,
		rolesJSON, boolInt(sc.RequireApproval), sc.UpdatedBy, toMillis(sc.UpdatedAt), sc.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update system config: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit system config: %w", err)
	}
	return sc, nil
}
