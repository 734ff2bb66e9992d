package alerting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mr1hm/event-weather-alerts/internal/models"
	"github.com/mr1hm/event-weather-alerts/internal/notification"
	"github.com/mr1hm/event-weather-alerts/internal/queue"
	"github.com/mr1hm/event-weather-alerts/internal/recipients"
	"github.com/mr1hm/event-weather-alerts/internal/repository"
	"github.com/mr1hm/event-weather-alerts/internal/risk"
)

const systemActor = "system"

type WeatherSource interface {
	Current(ctx context.Context, lat, lon float64, units models.Units) (*models.WeatherSnapshot, error)
	Forecast(ctx context.Context, lat, lon float64, units models.Units) ([]models.ForecastDay, error)
	UVIndex(ctx context.Context, lat, lon float64) *float64
}

type RecipientResolver interface {
	Resolve(ctx context.Context, event *models.Event, flags models.RoleFlags) ([]recipients.Recipient, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, rcpts []recipients.Recipient, msg notification.Message, settings models.NotificationSettings) models.Deliveries
}

type Automator interface {
	Decide(cfg *models.AlertConfig, severity models.Severity, requireApproval bool) []models.AutomationRecord
	Execute(ctx context.Context, logID string, event *models.Event, records []models.AutomationRecord, actorID string) ([]models.AutomationRecord, error)
	Approve(ctx context.Context, logID string, index int, actorID string) (*models.AlertLog, error)
}

type Broadcaster interface {
	Broadcast(l *models.AlertLog)
}

type Deps struct {
	Store      repository.Store
	Weather    WeatherSource
	Resolver   RecipientResolver
	Dispatcher Dispatcher
	Automation Automator

	// Optional sinks for stored alerts.
	Broadcaster Broadcaster
	Publisher   queue.Publisher
}

// Service runs the alert pipeline for one event at a time: fetch, detect,
// gate, notify, automate, log.
type Service struct {
	Deps
	now func() time.Time
}

func NewService(d Deps) *Service {
	return &Service{Deps: d, now: time.Now}
}

type CheckOptions struct {
	Trigger     models.Trigger
	ActorID     string
	ForceNotify bool
}

type CheckResult struct {
	Notified     bool                   `json:"notified"`
	Weather      models.WeatherSnapshot `json:"weather"`
	Assessment   risk.Assessment        `json:"assessment"`
	Notification risk.Notification      `json:"notification"`
	Reasons      []string               `json:"reasons,omitempty"`
	Alert        *models.AlertLog       `json:"alert,omitempty"`
}

// Trigger runs a manual check. It is not gated by lastChecked, so two
// overlapping triggers both run.
func (s *Service) Trigger(ctx context.Context, eventID, actorID string, force bool) (*CheckResult, error) {
	event, err := s.Store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	cfg, err := s.Store.GetAlertConfig(ctx, eventID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, &models.ConfigurationError{EventID: eventID, Reason: "weather alerts are not configured"}
	}
	if err != nil {
		return nil, &models.PersistenceError{Op: "load alert config", Err: err}
	}
	if !cfg.Enabled {
		return nil, &models.ConfigurationError{EventID: eventID, Reason: "weather alerts are disabled for this event"}
	}

	return s.Check(ctx, event, cfg, CheckOptions{Trigger: models.TriggerManual, ActorID: actorID, ForceNotify: force})
}

// Check evaluates the event's current weather against cfg and, when the
// reading matches the config or ForceNotify is set, notifies recipients,
// runs automation and stores an alert log. lastChecked is stamped either way.
func (s *Service) Check(ctx context.Context, event *models.Event, cfg *models.AlertConfig, opts CheckOptions) (*CheckResult, error) {
	if !event.HasCoordinates() {
		return nil, &models.ConfigurationError{EventID: event.ID, Reason: "event has no coordinates"}
	}

	sys, err := s.Store.GetSystemConfig(ctx)
	if err != nil {
		return nil, &models.PersistenceError{Op: "load system config", Err: err}
	}
	if !sys.Enabled {
		return nil, &models.ConfigurationError{Reason: "weather alerts are disabled"}
	}

	snap, err := s.Weather.Current(ctx, *event.Latitude, *event.Longitude, cfg.Units)
	if err != nil {
		return nil, err
	}

	assessment := risk.DetectRisks(*snap)
	matches := risk.EvaluateConfig(cfg, *snap, assessment.Risks)
	notif := risk.BuildNotification(*snap).WithMatches(matches)

	result := &CheckResult{
		Weather:      *snap,
		Assessment:   assessment,
		Notification: notif,
	}
	for _, m := range matches {
		result.Reasons = append(result.Reasons, m.Reason)
	}

	if opts.ForceNotify || len(matches) > 0 {
		alert, err := s.notify(ctx, event, cfg, sys, snap, assessment, notif, matches, opts)
		if err != nil {
			return nil, err
		}
		result.Notified = true
		result.Alert = alert
	}

	if err := s.Store.TouchLastChecked(ctx, event.ID, s.now()); err != nil {
		slog.Warn("failed to update last checked", "event_id", event.ID, "error", err)
	}
	return result, nil
}

func (s *Service) notify(
	ctx context.Context,
	event *models.Event,
	cfg *models.AlertConfig,
	sys *models.SystemConfig,
	snap *models.WeatherSnapshot,
	assessment risk.Assessment,
	notif risk.Notification,
	matches []risk.Match,
	opts CheckOptions,
) (*models.AlertLog, error) {
	body := notif.Message
	if cfg.Template != "" {
		body = risk.RenderTemplate(cfg.Template, risk.NewTemplateFields(event.Name, snap))
	}
	msg := notification.Message{
		EventID:   event.ID,
		EventName: event.Name,
		Severity:  notif.Type,
		Alerts:    notif.Alerts,
		Body:      body,
	}

	rcpts, err := s.Resolver.Resolve(ctx, event, cfg.Notifications.Recipients())
	if err != nil {
		slog.Error("failed to resolve recipients", "event_id", event.ID, "error", err)
	}
	deliveries := s.Dispatcher.Dispatch(ctx, rcpts, msg, cfg.Notifications)

	actor := opts.ActorID
	if opts.Trigger != models.TriggerManual || actor == "" {
		actor = systemActor
	}

	// The log is stored before any automation touches the event, so every
	// mutation has a record to point at.
	alert := &models.AlertLog{
		EventID:       event.ID,
		AlertType:     alertType(assessment.Risks, matches),
		Severity:      notif.Type,
		Weather:       *snap,
		Risks:         assessment.Risks,
		Message:       body,
		Notifications: deliveries,
		Actions:       s.Automation.Decide(cfg, notif.Type, sys.RequireApproval),
		Trigger:       opts.Trigger,
		CreatedAt:     s.now().UTC(),
	}
	if opts.Trigger == models.TriggerManual {
		alert.TriggeredBy = opts.ActorID
	}

	if err := s.Store.AddAlertLog(ctx, alert); err != nil {
		return nil, &models.PersistenceError{Op: "save alert log", Err: err}
	}

	actions, err := s.Automation.Execute(ctx, alert.ID, event, alert.Actions, actor)
	if err != nil {
		slog.Error("automation failed", "event_id", event.ID, "alert_id", alert.ID, "error", err)
	}
	alert.Actions = actions

	slog.Info("weather alert recorded",
		"event_id", event.ID,
		"alert_id", alert.ID,
		"severity", alert.Severity,
		"type", alert.AlertType,
		"sent", deliveries.TotalSent(),
		"failed", deliveries.TotalFailed(),
		"pending_approvals", alert.PendingApprovals(),
	)

	if s.Broadcaster != nil {
		s.Broadcaster.Broadcast(alert)
	}
	if s.Publisher != nil {
		if err := s.Publisher.Publish(ctx, alert); err != nil {
			slog.Warn("failed to publish alert", "alert_id", alert.ID, "error", err)
		}
	}
	return alert, nil
}

// alertType names the log after its most severe finding, falling back to
// the kind of config match.
func alertType(risks []models.RiskFinding, matches []risk.Match) string {
	var top *models.RiskFinding
	for i := range risks {
		if top == nil || risks[i].Severity.Rank() > top.Severity.Rank() {
			top = &risks[i]
		}
	}
	if top != nil {
		return string(top.Type)
	}
	for _, m := range matches {
		if m.Kind == risk.MatchThreshold {
			return "THRESHOLD"
		}
	}
	if len(matches) > 0 {
		return "CONDITION"
	}
	return "GENERAL"
}

type CurrentWeather struct {
	Weather      models.WeatherSnapshot `json:"weather"`
	UVIndex      *float64               `json:"uvIndex"`
	Assessment   risk.Assessment        `json:"assessment"`
	Notification risk.Notification      `json:"notification"`
}

// Current reads weather for an event without notifying anyone.
func (s *Service) Current(ctx context.Context, eventID string) (*CurrentWeather, error) {
	event, cfg, err := s.locate(ctx, eventID)
	if err != nil {
		return nil, err
	}

	snap, err := s.Weather.Current(ctx, *event.Latitude, *event.Longitude, cfg.Units)
	if err != nil {
		return nil, err
	}
	return &CurrentWeather{
		Weather:      *snap,
		UVIndex:      s.Weather.UVIndex(ctx, *event.Latitude, *event.Longitude),
		Assessment:   risk.DetectRisks(*snap),
		Notification: risk.BuildNotification(*snap),
	}, nil
}

func (s *Service) Forecast(ctx context.Context, eventID string) ([]models.ForecastDay, error) {
	event, cfg, err := s.locate(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return s.Weather.Forecast(ctx, *event.Latitude, *event.Longitude, cfg.Units)
}

func (s *Service) locate(ctx context.Context, eventID string) (*models.Event, *models.AlertConfig, error) {
	event, err := s.Store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, nil, err
	}
	if !event.HasCoordinates() {
		return nil, nil, &models.ConfigurationError{EventID: eventID, Reason: "event has no coordinates"}
	}
	cfg, err := repository.AlertConfigOrDefault(ctx, s.Store, eventID)
	if err != nil {
		return nil, nil, fmt.Errorf("load alert config: %w", err)
	}
	return event, cfg, nil
}

func (s *Service) Acknowledge(ctx context.Context, alertID, actorID string) (*models.AlertLog, error) {
	return s.Store.AcknowledgeAlertLog(ctx, alertID, actorID, s.now().UTC())
}

func (s *Service) Approve(ctx context.Context, alertID string, index int, actorID string) (*models.AlertLog, error) {
	return s.Automation.Approve(ctx, alertID, index, actorID)
}
