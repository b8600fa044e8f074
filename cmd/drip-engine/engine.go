package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukex/drip/pkg/engine"
	"github.com/dukex/drip/pkg/eventbus"
	"github.com/dukex/drip/pkg/events"
	"github.com/dukex/drip/pkg/persistence"
)

// Engine wires the journey execution engine: it consumes foreign domain
// events through the trigger resumers, advances executions on its own
// lifecycle events, and parks delayed paths on the delay queue.
type Engine struct {
	id           string
	persistence  persistence.Persistence
	eventBus     eventbus.EventBus
	inboundBus   eventbus.InboundEventBus
	runner       *engine.Runner
	starter      *engine.Starter
	logger       *slog.Logger
	restartCount int
}

// NewEngine creates a new Engine instance.
func NewEngine(
	id string,
	p persistence.Persistence,
	eventBus eventbus.EventBus,
	inboundBus eventbus.InboundEventBus,
	delays engine.DelayScheduler,
	logger *slog.Logger,
) *Engine {
	executor := engine.NewStepExecutor(engine.NewSplitEvaluator(), logger)
	runner := engine.NewRunner(p, eventBus, executor, delays, logger)
	starter := engine.NewStarter(p, eventBus, engine.NewEntryGuard(), logger)

	return &Engine{
		id:          id,
		persistence: p,
		eventBus:    eventBus,
		inboundBus:  inboundBus,
		runner:      runner,
		starter:     starter,
		logger:      logger.With("module", "engine"),
	}
}

// Start begins the engine service.
func (e *Engine) Start(ctx context.Context) {
	eCtx, cancel := context.WithCancel(ctx)

	e.logger.Info("Starting engine")

	e.handleSignals(eCtx, cancel)
	e.run(eCtx)
}

// handleSignals sets up signal handling for graceful shutdown and restart.
func (e *Engine) handleSignals(ctx context.Context, cancel context.CancelFunc) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-signals
		e.logger.Info("Received signal", "signal", sig)

		switch sig {
		case syscall.SIGHUP:
			e.logger.Info("Reloading configuration...")
			e.restart(ctx, cancel)
		case syscall.SIGINT, syscall.SIGTERM:
			e.logger.Info("Shutting down gracefully...")
			cancel()
			os.Exit(0)
		default:
			e.logger.Warn("Unhandled signal received", "signal", sig)
		}
	}()
}

// restart handles service restart with exponential backoff.
func (e *Engine) restart(ctx context.Context, cancel context.CancelFunc) {
	e.restartCount++
	newCtx := context.WithoutCancel(ctx)

	cancel()

	if e.restartCount > 5 {
		e.logger.Error("Restart limit reached, exiting...")
		os.Exit(1)
	}

	backoff := time.Duration(e.restartCount) * time.Second
	e.logger.Info("Restarting engine...", "backoff", backoff)
	time.Sleep(backoff)

	e.Start(newCtx)
}

// run registers the handlers and blocks until the context ends.
func (e *Engine) run(ctx context.Context) {
	if err := e.registerHandlers(ctx); err != nil {
		e.logger.Error("Failed to register handlers", "error", err)

		return
	}

	<-ctx.Done()
	e.logger.Info("Engine context cancelled, stopping...")
}

func (e *Engine) registerHandlers(ctx context.Context) error {
	resumers := []interface {
		Register(bus eventbus.InboundEventBus) error
	}{
		engine.NewEventTriggerResumer(e.persistence, e.starter, e.logger),
		engine.NewScoreTriggerResumer(e.persistence, e.starter, e.logger),
		engine.NewIntentTriggerResumer(e.persistence, e.starter, e.logger),
		engine.NewSegmentTriggerResumer(e.persistence, e.starter, e.logger),
		engine.NewGateResumer(e.persistence, e.eventBus, e.logger),
	}

	for _, resumer := range resumers {
		if err := resumer.Register(e.inboundBus); err != nil {
			return fmt.Errorf("failed to register resumer: %w", err)
		}
	}

	if err := e.eventBus.Handle(events.ExecutionStartedEvent, e.handleExecutionStarted); err != nil {
		return fmt.Errorf("failed to register execution started handler: %w", err)
	}

	if err := e.eventBus.Handle(events.StepResumeEvent, e.handleStepResume); err != nil {
		return fmt.Errorf("failed to register step resume handler: %w", err)
	}

	if err := e.inboundBus.Subscribe(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to inbound events: %w", err)
	}

	if err := e.eventBus.Subscribe(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to engine events: %w", err)
	}

	return nil
}

// handleExecutionStarted advances a freshly created execution from its
// version's entry markers.
func (e *Engine) handleExecutionStarted(ctx context.Context, event any) error {
	started, ok := event.(*events.ExecutionStarted)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", event)
	}

	version, err := e.persistence.Versions().GetByID(ctx, started.JourneyVersionID)
	if err != nil {
		return fmt.Errorf("failed to load journey version: %w", err)
	}

	stepIDs := make([]string, 0)
	for _, step := range version.Definition.TriggerSteps() {
		stepIDs = append(stepIDs, step.ID)
	}

	if len(stepIDs) == 0 {
		e.logger.WarnContext(ctx, "Version has no entry markers",
			"version_id", started.JourneyVersionID, "execution_id", started.ExecutionID)

		return nil
	}

	return e.runner.Advance(ctx, started.ExecutionID, stepIDs)
}

// handleStepResume advances an execution after a delay elapsed or a gate
// resolved.
func (e *Engine) handleStepResume(ctx context.Context, event any) error {
	resume, ok := event.(*events.StepResume)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", event)
	}

	e.logger.InfoContext(ctx, "Resuming execution",
		"execution_id", resume.ExecutionID, "reason", resume.Reason, "steps", len(resume.StepIDs))

	return e.runner.Advance(ctx, resume.ExecutionID, resume.StepIDs)
}
