package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mr1hm/event-weather-alerts/internal/models"
)

const alertLogColumns = `id, event_id, alert_type, severity, weather, risks, message, notifications, actions,
	trigger, triggered_by, acknowledged, acknowledged_by, acknowledged_at, created_at`

// AddAlertLog assigns an id and creation time when they are unset.
func (s *SQLiteDB) AddAlertLog(ctx context.Context, l *models.AlertLog) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	if l.Risks == nil {
		l.Risks = []models.RiskFinding{}
	}
	if l.Actions == nil {
		l.Actions = []models.AutomationRecord{}
	}

	weather, err := encodeJSON(l.Weather)
	if err != nil {
		return fmt.Errorf("encode weather: %w", err)
	}
	risks, err := encodeJSON(l.Risks)
	if err != nil {
		return fmt.Errorf("encode risks: %w", err)
	}
	notifications, err := encodeJSON(l.Notifications)
	if err != nil {
		return fmt.Errorf("encode notifications: %w", err)
	}
	actions, err := encodeJSON(l.Actions)
	if err != nil {
		return fmt.Errorf("encode actions: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO alert_logs (`+alertLogColumns+`, pending_approvals)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.EventID, l.AlertType, string(l.Severity), weather, risks, l.Message, notifications, actions,
		string(l.Trigger), l.TriggeredBy, boolInt(l.Acknowledged), l.AcknowledgedBy, nullMillis(l.AcknowledgedAt),
		toMillis(l.CreatedAt), l.PendingApprovals(),
	)
	if err != nil {
		return fmt.Errorf("insert alert log: %w", err)
	}
	return nil
}

func (s *SQLiteDB) GetAlertLog(ctx context.Context, id string) (*models.AlertLog, error) {
	return getAlertLog(ctx, s.db, id)
}

func getAlertLog(ctx context.Context, q querier, id string) (*models.AlertLog, error) {
	row := q.QueryRowContext(ctx, `SELECT `+alertLogColumns+` FROM alert_logs WHERE id = ?`, id)
	l, err := scanAlertLog(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get alert log: %w", err)
	}
	return l, nil
}

// UpdateAlertLogActions rewrites the automation records, the only part of a
// log besides acknowledgement that changes after creation.
func (s *SQLiteDB) UpdateAlertLogActions(ctx context.Context, id string, actions []models.AutomationRecord) error {
	return updateAlertLogActions(ctx, s.db, id, actions)
}

// ApplyAlertActions saves an event's state together with the automation
// records that produced it. Either both writes land or neither does.
func (s *SQLiteDB) ApplyAlertActions(ctx context.Context, logID string, actions []models.AutomationRecord, eventID string, status models.EventStatus, weather models.WeatherStatus) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := updateEventState(ctx, tx, eventID, status, weather); err != nil {
		return err
	}
	if err := updateAlertLogActions(ctx, tx, logID, actions); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit alert actions: %w", err)
	}
	return nil
}

func updateAlertLogActions(ctx context.Context, q querier, id string, actions []models.AutomationRecord) error {
	data, err := encodeJSON(actions)
	if err != nil {
		return fmt.Errorf("encode actions: %w", err)
	}
	pending := (&models.AlertLog{Actions: actions}).PendingApprovals()

	res, err := q.ExecContext(ctx,
		`UPDATE alert_logs SET actions = ?, pending_approvals = ? WHERE id = ?`,
		data, pending, id,
	)
	if err != nil {
		return fmt.Errorf("update alert log actions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update alert log actions: %w", err)
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (s *SQLiteDB) AcknowledgeAlertLog(ctx context.Context, id, actorID string, at time.Time) (*models.AlertLog, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	l, err := getAlertLog(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if l.Acknowledged {
		return nil, models.ErrAlreadyAcknowledged
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE alert_logs SET acknowledged = 1, acknowledged_by = ?, acknowledged_at = ? WHERE id = ?`,
		actorID, toMillis(at), id,
	); err != nil {
		return nil, fmt.Errorf("acknowledge alert log: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit acknowledgement: %w", err)
	}

	ackAt := fromMillis(toMillis(at))
	l.Acknowledged = true
	l.AcknowledgedBy = actorID
	l.AcknowledgedAt = &ackAt
	return l, nil
}

// ListAlertLogs returns matching logs, newest first. A zero Limit returns
// every match.
func (s *SQLiteDB) ListAlertLogs(ctx context.Context, opts AlertLogFilter) ([]models.AlertLog, error) {
	where, args := buildAlertLogWhere(opts)
	query := `SELECT ` + alertLogColumns + ` FROM alert_logs` + where + ` ORDER BY created_at DESC, id DESC`
	if opts.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, opts.Limit, max(opts.Offset, 0))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query alert logs: %w", err)
	}
	defer rows.Close()

	var logs []models.AlertLog
	for rows.Next() {
		l, err := scanAlertLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan alert log: %w", err)
		}
		logs = append(logs, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alert logs: %w", err)
	}
	return logs, nil
}

// CountAlertLogs ignores Limit and Offset.
func (s *SQLiteDB) CountAlertLogs(ctx context.Context, opts AlertLogFilter) (int, error) {
	where, args := buildAlertLogWhere(opts)
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM alert_logs`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count alert logs: %w", err)
	}
	return n, nil
}

// AlertLogGroup is one severity/type bucket of matching logs.
type AlertLogGroup struct {
	Severity         models.Severity
	AlertType        string
	Count            int
	Unacknowledged   int
	ManualTriggers   int
	PendingApprovals int
	Sent             int
	Failed           int
}

// SummarizeAlertLogs aggregates matching logs per severity and alert type.
// It ignores Limit and Offset.
func (s *SQLiteDB) SummarizeAlertLogs(ctx context.Context, opts AlertLogFilter) ([]AlertLogGroup, error) {
	where, args := buildAlertLogWhere(opts)
	query := `SELECT severity, alert_type, COUNT(*),
			COALESCE(SUM(1 - acknowledged), 0),
			COALESCE(SUM(trigger = ?), 0),
			COALESCE(SUM(pending_approvals), 0),
			COALESCE(SUM(
				COALESCE(json_extract(notifications, '$.email.sent'), 0) +
				COALESCE(json_extract(notifications, '$.sms.sent'), 0) +
				COALESCE(json_extract(notifications, '$.whatsapp.sent'), 0)), 0),
			COALESCE(SUM(
				COALESCE(json_extract(notifications, '$.email.failed'), 0) +
				COALESCE(json_extract(notifications, '$.sms.failed'), 0) +
				COALESCE(json_extract(notifications, '$.whatsapp.failed'), 0)), 0)
		FROM alert_logs` + where + `
		GROUP BY severity, alert_type
		ORDER BY severity, alert_type`

	rows, err := s.db.QueryContext(ctx, query, append([]any{string(models.TriggerManual)}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("summarize alert logs: %w", err)
	}
	defer rows.Close()

	var groups []AlertLogGroup
	for rows.Next() {
		var (
			g        AlertLogGroup
			severity string
		)
		if err := rows.Scan(&severity, &g.AlertType, &g.Count, &g.Unacknowledged, &g.ManualTriggers,
			&g.PendingApprovals, &g.Sent, &g.Failed); err != nil {
			return nil, fmt.Errorf("scan alert log summary: %w", err)
		}
		g.Severity = models.Severity(severity)
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alert log summary: %w", err)
	}
	return groups, nil
}

func buildAlertLogWhere(opts AlertLogFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if opts.EventID != "" {
		conds = append(conds, "event_id = ?")
		args = append(args, opts.EventID)
	}
	if opts.Since != nil {
		conds = append(conds, "created_at >= ?")
		args = append(args, toMillis(*opts.Since))
	}
	if opts.Severity != nil {
		conds = append(conds, "severity = ?")
		args = append(args, string(*opts.Severity))
	}
	if opts.AlertType != "" {
		conds = append(conds, "alert_type = ?")
		args = append(args, opts.AlertType)
	}
	if opts.Acknowledged != nil {
		conds = append(conds, "acknowledged = ?")
		args = append(args, boolInt(*opts.Acknowledged))
	}
	if opts.PendingOnly {
		conds = append(conds, "pending_approvals > 0")
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanAlertLog(sc scanner) (*models.AlertLog, error) {
	var (
		l                      models.AlertLog
		severity, trigger      string
		weather, risks         string
		notifications, actions string
		acknowledged           int
		acknowledgedAt         sql.NullInt64
		createdAt              int64
	)
	if err := sc.Scan(
		&l.ID, &l.EventID, &l.AlertType, &severity, &weather, &risks, &l.Message, &notifications, &actions,
		&trigger, &l.TriggeredBy, &acknowledged, &l.AcknowledgedBy, &acknowledgedAt, &createdAt,
	); err != nil {
		return nil, err
	}

	for _, f := range []struct {
		name string
		data string
		dest any
	}{
		{"weather", weather, &l.Weather},
		{"risks", risks, &l.Risks},
		{"notifications", notifications, &l.Notifications},
		{"actions", actions, &l.Actions},
	} {
		if err := decodeJSON(f.data, f.dest); err != nil {
			return nil, fmt.Errorf("decode alert log %s: %w", f.name, err)
		}
	}

	l.Severity = models.Severity(severity)
	l.Trigger = models.Trigger(trigger)
	l.Acknowledged = acknowledged != 0
	l.AcknowledgedAt = timePtr(acknowledgedAt)
	l.CreatedAt = fromMillis(createdAt)
	return &l, nil
}
