package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mr1hm/event-weather-alerts/internal/models"
)

type EventStore interface {
	GetEvent(ctx context.Context, id string) (*models.Event, error)
}

type LogStore interface {
	GetAlertLog(ctx context.Context, id string) (*models.AlertLog, error)
	UpdateAlertLogActions(ctx context.Context, id string, actions []models.AutomationRecord) error
	// ApplyAlertActions writes the event state and the log's records in one
	// transaction.
	ApplyAlertActions(ctx context.Context, logID string, actions []models.AutomationRecord, eventID string, status models.EventStatus, weather models.WeatherStatus) error
}

type Executor struct {
	events EventStore
	logs   LogStore
	now    func() time.Time

	// serialises approvals so a pending action runs once
	mu sync.Mutex
}

func NewExecutor(events EventStore, logs LogStore) *Executor {
	return &Executor{
		events: events,
		logs:   logs,
		now:    time.Now,
	}
}

// Decide evaluates every automation rule against severity and returns one
// unexecuted record per action that fires.
func (x *Executor) Decide(cfg *models.AlertConfig, severity models.Severity, requireApproval bool) []models.AutomationRecord {
	var records []models.AutomationRecord
	for _, action := range models.AutomationActions {
		rule := cfg.Automation.Rule(action)
		if !rule.Enabled || !severity.AtLeast(rule.Threshold) {
			continue
		}
		records = append(records, models.AutomationRecord{
			Action:           action,
			RequiresApproval: requireApproval || (action == models.ActionMarkCancelled && rule.RequireManualApproval),
		})
	}
	return records
}

// Execute applies the records that need no approval to event and stores the
// new event state and the stamped records on log logID in one write. If that
// write fails nothing is marked executed and the event is left as it was.
// On success event reflects the new state.
func (x *Executor) Execute(ctx context.Context, logID string, event *models.Event, records []models.AutomationRecord, actorID string) ([]models.AutomationRecord, error) {
	var (
		immediate []int
		working   = *event
	)
	for i, rec := range records {
		if rec.RequiresApproval || rec.Executed {
			continue
		}
		applyAction(&working, rec.Action)
		immediate = append(immediate, i)
	}
	if len(immediate) == 0 {
		return records, nil
	}

	at := x.now().UTC()
	out := append([]models.AutomationRecord(nil), records...)
	for _, i := range immediate {
		out[i].Executed = true
		out[i].ExecutedBy = actorID
		out[i].ExecutedAt = &at
		out[i].Error = ""
	}

	if err := x.logs.ApplyAlertActions(ctx, logID, out, event.ID, working.Status, working.WeatherStatus); err != nil {
		failed := append([]models.AutomationRecord(nil), records...)
		for _, i := range immediate {
			failed[i].Error = err.Error()
		}
		if werr := x.logs.UpdateAlertLogActions(ctx, logID, failed); werr != nil {
			slog.Warn("failed to record automation error", "alert_id", logID, "error", werr)
		}
		return failed, fmt.Errorf("save event state: %w", err)
	}

	event.Status = working.Status
	event.WeatherStatus = working.WeatherStatus

	slog.Info("automation executed", "alert_id", logID, "event_id", event.ID, "actions", len(immediate), "status", event.Status, "weather_status", event.WeatherStatus)
	return out, nil
}

// Approve executes the pending action at index on the alert log. It fails
// with ErrAlreadyExecuted on repeat approval and ErrApprovalNotRequired for
// actions that never needed one. The event and the record are saved
// together, so a failed save leaves the action pending.
func (x *Executor) Approve(ctx context.Context, logID string, index int, actorID string) (*models.AlertLog, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	log, err := x.logs.GetAlertLog(ctx, logID)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(log.Actions) {
		return nil, models.ErrInvalidActionIndex
	}

	rec := &log.Actions[index]
	if rec.Executed {
		return nil, models.ErrAlreadyExecuted
	}
	if !rec.RequiresApproval {
		return nil, models.ErrApprovalNotRequired
	}

	event, err := x.events.GetEvent(ctx, log.EventID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, &models.ConfigurationError{EventID: log.EventID, Reason: "event no longer exists"}
		}
		return nil, err
	}

	applyAction(event, rec.Action)

	at := x.now().UTC()
	rec.Approved = true
	rec.ApprovedBy = actorID
	rec.ApprovedAt = &at
	rec.Executed = true
	rec.ExecutedBy = actorID
	rec.ExecutedAt = &at
	rec.Error = ""

	if err := x.logs.ApplyAlertActions(ctx, log.ID, log.Actions, event.ID, event.Status, event.WeatherStatus); err != nil {
		return nil, &models.PersistenceError{Op: "record approval", Err: err}
	}

	slog.Info("automation approved", "alert_id", log.ID, "event_id", event.ID, "action", rec.Action, "actor", actorID)
	return log, nil
}

// applyAction mutates the event for one action. A cancelled weather status
// is never overwritten by a later action in the same evaluation.
func applyAction(e *models.Event, action models.AutomationAction) {
	if e.WeatherStatus == models.WeatherCancelled && action != models.ActionMarkCancelled {
		return
	}
	switch action {
	case models.ActionMarkOnHold:
		e.WeatherStatus = models.WeatherOnHold
	case models.ActionMarkDelayed:
		e.WeatherStatus = models.WeatherDelayed
	case models.ActionMarkCancelled:
		e.WeatherStatus = models.WeatherCancelled
		e.Status = models.EventCancelled
	case models.ActionRestrictEntry:
		e.WeatherStatus = models.WeatherEntryRestricted
	}
}
