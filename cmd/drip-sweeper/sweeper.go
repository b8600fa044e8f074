package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dukex/drip/pkg/delayqueue"
	"github.com/dukex/drip/pkg/eventbus"
	"github.com/dukex/drip/pkg/events"
	"github.com/dukex/drip/pkg/persistence"
)

// DelayQueue is the slice of the delay queue the sweeper drains.
type DelayQueue interface {
	PopDue(ctx context.Context, now time.Time) ([]delayqueue.DueResumption, error)
}

// Sweeper runs the engine's scheduled work: draining due resumptions off the
// delay queue back onto the event bus, and reporting executions that have
// been parked too long. It holds no execution logic itself.
type Sweeper struct {
	id             string
	persistence    persistence.Persistence
	eventBus       eventbus.EventBus
	delayQueue     DelayQueue
	staleAfterDays int
	logger         *slog.Logger
}

// NewSweeper creates a new Sweeper instance.
func NewSweeper(
	id string,
	p persistence.Persistence,
	eventBus eventbus.EventBus,
	delayQueue DelayQueue,
	staleAfterDays int,
	logger *slog.Logger,
) *Sweeper {
	return &Sweeper{
		id:             id,
		persistence:    p,
		eventBus:       eventBus,
		delayQueue:     delayQueue,
		staleAfterDays: staleAfterDays,
		logger:         logger.With("module", "sweeper"),
	}
}

// Start schedules the sweep jobs and blocks until shutdown.
func (s *Sweeper) Start(ctx context.Context, drainSchedule, staleSchedule string) error {
	sCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	scheduler := cron.New()

	_, err := scheduler.AddFunc(drainSchedule, func() {
		if err := s.DrainDelayQueue(sCtx); err != nil {
			s.logger.Error("Delay queue drain failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid drain schedule %q: %w", drainSchedule, err)
	}

	_, err = scheduler.AddFunc(staleSchedule, func() {
		if err := s.ReportStaleExecutions(sCtx); err != nil {
			s.logger.Error("Stale execution report failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid stale schedule %q: %w", staleSchedule, err)
	}

	scheduler.Start()
	defer scheduler.Stop()

	s.logger.Info("Sweeper started",
		"drain_schedule", drainSchedule,
		"stale_schedule", staleSchedule,
		"stale_after_days", s.staleAfterDays)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-signals:
		s.logger.Info("Received signal, shutting down", "signal", sig)
	case <-sCtx.Done():
		s.logger.Info("Sweeper context cancelled, stopping...")
	}

	return nil
}

// DrainDelayQueue pops every due resumption and publishes a resume event for
// it. The runner re-checks execution state on receipt, so resuming an
// already-terminal execution is harmless.
func (s *Sweeper) DrainDelayQueue(ctx context.Context) error {
	due, err := s.delayQueue.PopDue(ctx, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to pop due resumptions: %w", err)
	}

	for _, resumption := range due {
		resumeEvent := events.StepResume{
			BaseEvent:   events.NewBaseEvent(events.StepResumeEvent, resumption.JourneyID, resumption.OrganizationID),
			ExecutionID: resumption.ExecutionID,
			StepIDs:     []string{resumption.StepID},
			Reason:      events.ResumeReasonDelayElapsed,
		}

		if err := s.eventBus.Publish(ctx, resumption.ExecutionID, resumeEvent); err != nil {
			// The entry is already off the queue; losing it parks the
			// execution until the stale report surfaces it.
			s.logger.Error("Failed to publish resume event",
				"execution_id", resumption.ExecutionID,
				"step_id", resumption.StepID,
				"error", err)
		}
	}

	if len(due) > 0 {
		s.logger.Info("Drained delay queue", "resumed", len(due))
	}

	return nil
}

// ReportStaleExecutions logs active executions older than the configured
// age. Report only: deciding what to do with a run parked on a gate that
// never resolved is an operator call.
func (s *Sweeper) ReportStaleExecutions(ctx context.Context) error {
	cutoff := time.Now().UTC().AddDate(0, 0, -s.staleAfterDays)

	stale, err := s.persistence.Executions().FindStale(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to find stale executions: %w", err)
	}

	for _, execution := range stale {
		s.logger.Warn("Stale execution",
			"execution_id", execution.ID,
			"journey_id", execution.JourneyID,
			"contact_id", execution.ContactID,
			"current_step_id", execution.CurrentStepID,
			"started_at", execution.StartedAt)
	}

	s.logger.Info("Stale execution report completed", "stale_count", len(stale), "older_than_days", s.staleAfterDays)

	return nil
}
