package alerting

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/mr1hm/event-weather-alerts/internal/config"
	"github.com/mr1hm/event-weather-alerts/internal/models"
	"github.com/mr1hm/event-weather-alerts/internal/worker"
)

var errSkipped = errors.New("check skipped")

type sweepJob struct {
	event models.Event
	sys   *models.SystemConfig
}

type SweepResult struct {
	Considered int
	Checked    int
	Skipped    int
	Failed     int
}

// Scheduler polls upcoming events on a fixed tick. Each event is checked at
// most once per its polling interval, across all sweepers sharing the store.
type Scheduler struct {
	svc       *Service
	interval  time.Duration
	lookahead time.Duration
	pool      *worker.Pool[sweepJob]
	wg        sync.WaitGroup
}

func NewScheduler(svc *Service, cfg config.SchedulerConfig, workers config.WorkerConfig) *Scheduler {
	s := &Scheduler{
		svc:       svc,
		interval:  cfg.Interval,
		lookahead: cfg.Lookahead,
	}
	s.pool = worker.NewPool("weather-sweep", workers.Count, workers.BufferSize, s.process)
	return s
}

func (s *Scheduler) Start(ctx context.Context) {
	s.pool.Start(ctx)

	s.wg.Add(1)
	go s.run(ctx)
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()
	slog.Info("starting weather scheduler", "interval", s.interval, "lookahead", s.lookahead)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("weather scheduler shutting down")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Stop waits for the tick loop to exit; cancel the Start context first.
func (s *Scheduler) Stop() {
	s.wg.Wait()
	s.pool.Stop()
	slog.Info("weather scheduler stopped")
}

// Sweep runs one polling pass. System state is re-read every pass so
// toggling alerts or auto-polling takes effect on the next tick.
func (s *Scheduler) Sweep(ctx context.Context) SweepResult {
	var res SweepResult

	sys, err := s.svc.Store.GetSystemConfig(ctx)
	if err != nil {
		slog.Error("sweep: failed to load system config", "error", err)
		return res
	}
	if !sys.Enabled {
		slog.Debug("sweep skipped, weather alerts disabled")
		return res
	}
	if !sys.AutoPolling {
		slog.Debug("sweep skipped, manual-only mode")
		return res
	}

	events, err := s.svc.Store.ListUpcomingEvents(ctx, s.svc.now(), s.lookahead)
	if err != nil {
		slog.Error("sweep: failed to list upcoming events", "error", err)
		return res
	}

	jobs := make([]sweepJob, len(events))
	for i, e := range events {
		jobs[i] = sweepJob{event: e, sys: sys}
	}

	res.Considered = len(jobs)
	for i, err := range s.pool.RunBatch(ctx, jobs) {
		switch {
		case err == nil:
			res.Checked++
		case errors.Is(err, errSkipped):
			res.Skipped++
		default:
			res.Failed++
			slog.Error("scheduled weather check failed", "event_id", jobs[i].event.ID, "error", err)
		}
	}

	slog.Debug("sweep complete",
		"considered", res.Considered,
		"checked", res.Checked,
		"skipped", res.Skipped,
		"failed", res.Failed,
	)
	return res
}

func (s *Scheduler) process(ctx context.Context, job sweepJob) error {
	event := job.event

	cfg, err := s.svc.Store.GetAlertConfig(ctx, event.ID)
	if errors.Is(err, models.ErrNotFound) {
		return errSkipped
	}
	if err != nil {
		return err
	}
	if !cfg.Enabled {
		return errSkipped
	}

	claimed, err := s.svc.Store.ClaimCheck(ctx, event.ID, s.svc.now(), job.sys.PollingInterval(cfg))
	if err != nil {
		return err
	}
	if !claimed {
		return errSkipped
	}

	_, err = s.svc.Check(ctx, &event, cfg, CheckOptions{Trigger: models.TriggerAuto})
	return err
}
