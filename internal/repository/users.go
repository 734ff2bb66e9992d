package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mr1hm/event-weather-alerts/internal/models"
)

const userColumns = `u.id, u.name, u.email, u.phone, u.role, u.assigned_events, u.preferences, u.created_at`

func (s *SQLiteDB) AddUser(ctx context.Context, u *models.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	assigned := u.AssignedEvents
	if assigned == nil {
		assigned = []string{}
	}
	assignedJSON, err := encodeJSON(assigned)
	if err != nil {
		return fmt.Errorf("encode assigned events: %w", err)
	}
	prefsJSON, err := encodeJSON(u.Preferences)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, phone, role, assigned_events, preferences, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, u.Phone, string(u.Role), assignedJSON, prefsJSON, toMillis(u.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *SQLiteDB) GetUser(ctx context.Context, id string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users u WHERE u.id = ?`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *SQLiteDB) ListUsersByRoles(ctx context.Context, roles ...models.Role) ([]models.User, error) {
	if len(roles) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(roles)), ",")
	args := make([]any, len(roles))
	for i, r := range roles {
		args[i] = string(r)
	}

	return s.queryUsers(ctx,
		`SELECT `+userColumns+` FROM users u WHERE u.role IN (`+placeholders+`) ORDER BY u.created_at ASC, u.id ASC`,
		args...)
}

func (s *SQLiteDB) AddBooking(ctx context.Context, b *models.Booking) error {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bookings (id, event_id, user_id, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		b.ID, b.EventID, b.UserID, string(b.Status), toMillis(b.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

func (s *SQLiteDB) ListAttendees(ctx context.Context, eventID string) ([]models.User, error) {
	return s.queryUsers(ctx,
		`SELECT `+userColumns+` FROM users u
		JOIN (
			SELECT user_id, MIN(created_at) AS booked_at FROM bookings
			WHERE event_id = ? AND status IN (?, ?)
			GROUP BY user_id
		) b ON b.user_id = u.id
		ORDER BY b.booked_at ASC, u.id ASC`,
		eventID, string(models.BookingConfirmed), string(models.BookingPaid))
}

func (s *SQLiteDB) queryUsers(ctx context.Context, query string, args ...any) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

func scanUser(sc scanner) (*models.User, error) {
	var (
		u               models.User
		role            string
		assigned, prefs string
		createdAt       int64
	)
	if err := sc.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &role, &assigned, &prefs, &createdAt); err != nil {
		return nil, err
	}
	if err := decodeJSON(assigned, &u.AssignedEvents); err != nil {
		return nil, fmt.Errorf("decode assigned events: %w", err)
	}
	if err := decodeJSON(prefs, &u.Preferences); err != nil {
		return nil, fmt.Errorf("decode preferences: %w", err)
	}
	u.Role = models.Role(role)
	u.CreatedAt = fromMillis(createdAt)
	return &u, nil
}
