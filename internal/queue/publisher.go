package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/mr1hm/event-weather-alerts/internal/models"
)

// AlertEvent is the message published for every stored alert log.
type AlertEvent struct {
	AlertID          string               `json:"alertId"`
	EventID          string               `json:"eventId"`
	AlertType        string               `json:"alertType"`
	Severity         models.Severity      `json:"severity"`
	Message          string               `json:"message"`
	Risks            []models.RiskFinding `json:"risks"`
	Trigger          models.Trigger       `json:"trigger"`
	Sent             int                  `json:"sent"`
	Failed           int                  `json:"failed"`
	PendingApprovals int                  `json:"pendingApprovals"`
	CreatedAt        time.Time            `json:"createdAt"`
}

func NewAlertEvent(l *models.AlertLog) AlertEvent {
	return AlertEvent{
		AlertID:          l.ID,
		EventID:          l.EventID,
		AlertType:        l.AlertType,
		Severity:         l.Severity,
		Message:          l.Message,
		Risks:            l.Risks,
		Trigger:          l.Trigger,
		Sent:             l.Notifications.TotalSent(),
		Failed:           l.Notifications.TotalFailed(),
		PendingApprovals: l.PendingApprovals(),
		CreatedAt:        l.CreatedAt,
	}
}

func encode(l *models.AlertLog) ([]byte, error) {
	return json.Marshal(NewAlertEvent(l))
}

type Publisher interface {
	Publish(ctx context.Context, l *models.AlertLog) error
	Close() error
}

// Multi publishes to every wrapped publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, l *models.AlertLog) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, l); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
