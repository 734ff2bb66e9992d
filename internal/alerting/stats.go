package alerting

import (
	"context"
	"fmt"
	"time"

	"github.com/mr1hm/event-weather-alerts/internal/models"
	"github.com/mr1hm/event-weather-alerts/internal/repository"
)

type Stats struct {
	TotalAlerts      int                     `json:"totalAlerts"`
	BySeverity       map[models.Severity]int `json:"bySeverity"`
	ByType           map[string]int          `json:"byType"`
	Unacknowledged   int                     `json:"unacknowledged"`
	PendingApprovals int                     `json:"pendingApprovals"`
	Sent             int                     `json:"notificationsSent"`
	Failed           int                     `json:"notificationsFailed"`
	ManualTriggers   int                     `json:"manualTriggers"`
	MonitoredEvents  int                     `json:"monitoredEvents,omitempty"`
	Since            *time.Time              `json:"since,omitempty"`
}

// statsWindow is how far back Stats looks when no since is given.
const statsWindow = 24 * time.Hour

// Stats summarises alert logs for one event, or for every event when
// eventID is empty. A nil since covers the trailing statsWindow.
func (s *Service) Stats(ctx context.Context, eventID string, since *time.Time) (*Stats, error) {
	if since == nil {
		from := s.now().UTC().Add(-statsWindow)
		since = &from
	}

	groups, err := s.Store.SummarizeAlertLogs(ctx, repository.AlertLogFilter{EventID: eventID, Since: since})
	if err != nil {
		return nil, fmt.Errorf("summarize alert logs: %w", err)
	}

	st := &Stats{
		BySeverity: map[models.Severity]int{
			models.SeverityInfo:    0,
			models.SeverityCaution: 0,
			models.SeverityWarning: 0,
		},
		ByType: map[string]int{},
		Since:  since,
	}
	for _, g := range groups {
		st.TotalAlerts += g.Count
		st.BySeverity[g.Severity] += g.Count
		st.ByType[g.AlertType] += g.Count
		st.Unacknowledged += g.Unacknowledged
		st.ManualTriggers += g.ManualTriggers
		st.PendingApprovals += g.PendingApprovals
		st.Sent += g.Sent
		st.Failed += g.Failed
	}

	if eventID == "" {
		n, err := s.Store.CountEnabledAlertConfigs(ctx)
		if err != nil {
			return nil, fmt.Errorf("count monitored events: %w", err)
		}
		st.MonitoredEvents = n
	}
	return st, nil
}
