package repository

import (
	"context"
	"errors"
	"time"

	"github.com/mr1hm/event-weather-alerts/internal/models"
)

type AlertLogFilter struct {
	Limit        int
	Offset       int
	EventID      string
	Since        *time.Time
	Severity     *models.Severity
	AlertType    string
	Acknowledged *bool
	PendingOnly  bool // only logs with actions awaiting approval
}

type EventRepository interface {
	AddEvent(ctx context.Context, e *models.Event) error
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	ListUpcomingEvents(ctx context.Context, now time.Time, lookahead time.Duration) ([]models.Event, error)
	UpdateEventState(ctx context.Context, id string, status models.EventStatus, weather models.WeatherStatus) error
}

type UserRepository interface {
	AddUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	ListUsersByRoles(ctx context.Context, roles ...models.Role) ([]models.User, error)
}

type BookingRepository interface {
	AddBooking(ctx context.Context, b *models.Booking) error
	// ListAttendees returns users holding a confirmed or paid booking.
	ListAttendees(ctx context.Context, eventID string) ([]models.User, error)
}

type AlertConfigRepository interface {
	GetAlertConfig(ctx context.Context, eventID string) (*models.AlertConfig, error)
	UpsertAlertConfig(ctx context.Context, eventID, actorID string, apply func(*models.AlertConfig) error) (*models.AlertConfig, error)
	DeleteAlertConfig(ctx context.Context, eventID string) error
	TouchLastChecked(ctx context.Context, eventID string, at time.Time) error
	// ClaimCheck atomically stamps last_checked if the stored value is older
	// than interval, and reports whether this caller won the claim.
	ClaimCheck(ctx context.Context, eventID string, now time.Time, interval time.Duration) (bool, error)
	CountEnabledAlertConfigs(ctx context.Context) (int, error)
}

type SystemConfigRepository interface {
	GetSystemConfig(ctx context.Context) (*models.SystemConfig, error)
	UpdateSystemConfig(ctx context.Context, actorID string, apply func(*models.SystemConfig) error) (*models.SystemConfig, error)
}

type AlertLogRepository interface {
	AddAlertLog(ctx context.Context, l *models.AlertLog) error
	GetAlertLog(ctx context.Context, id string) (*models.AlertLog, error)
	UpdateAlertLogActions(ctx context.Context, id string, actions []models.AutomationRecord) error
	ApplyAlertActions(ctx context.Context, logID string, actions []models.AutomationRecord, eventID string, status models.EventStatus, weather models.WeatherStatus) error
	AcknowledgeAlertLog(ctx context.Context, id, actorID string, at time.Time) (*models.AlertLog, error)
	ListAlertLogs(ctx context.Context, opts AlertLogFilter) ([]models.AlertLog, error)
	CountAlertLogs(ctx context.Context, opts AlertLogFilter) (int, error)
	SummarizeAlertLogs(ctx context.Context, opts AlertLogFilter) ([]AlertLogGroup, error)
}

// Store is everything the service persists or reads.
type Store interface {
	EventRepository
	UserRepository
	BookingRepository
	AlertConfigRepository
	SystemConfigRepository
	AlertLogRepository
}

// AlertConfigOrDefault returns the stored config or an unpersisted default.
func AlertConfigOrDefault(ctx context.Context, repo AlertConfigRepository, eventID string) (*models.AlertConfig, error) {
	cfg, err := repo.GetAlertConfig(ctx, eventID)
	if errors.Is(err, models.ErrNotFound) {
		return models.DefaultAlertConfig(eventID), nil
	}
	return cfg, err
}
