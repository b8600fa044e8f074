package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/dukex/drip/pkg/cmd"
	"github.com/dukex/drip/pkg/delayqueue"
	"github.com/dukex/drip/pkg/log"
	trc "github.com/dukex/drip/pkg/tracer"
)

func main() {
	command := &cli.Command{
		Name:                  "drip-engine",
		Usage:                 "Start the Drip journey execution engine",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "engine-id",
				Aliases: []string{"id"},
				Usage:   "Custom engine ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("ENGINE_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "event-bus",
				Usage:    "Event bus type (kafka, gochannel)",
				Required: true,
				Sources:  cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:     "redis-url",
				Usage:    "Redis connection URL for the delay queue",
				Required: true,
				Sources:  cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			tracerProvider, err := trc.InitTracer(ctx, "drip-engine")
			if err != nil {
				return fmt.Errorf("failed to initialize tracer: %w", err)
			}
			defer func() {
				if err := tracerProvider.Shutdown(ctx); err != nil {
					slog.Error("Failed to shutdown tracer provider", "error", err)
				}
			}()

			engineID := command.String("engine-id")
			if engineID == "" {
				engineID = fmt.Sprintf("engine-%s", uuid.New().String()[:8])
			}

			logger := log.WithModule("drip-engine").With("engine_id", engineID)

			logger.Info("Initializing Drip Engine", "engine_id", engineID)

			eventBus := cmd.NewEventBus(command.String("event-bus"), "drip-engine", logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.Error("Failed to close event bus", "error", err)
				}
			}()

			inboundBus := cmd.NewInboundEventBus(command.String("event-bus"), "drip-engine", logger)
			defer func() {
				if err := inboundBus.Close(); err != nil {
					logger.Error("Failed to close inbound event bus", "error", err)
				}
			}()

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.Error("Failed to close persistence", "error", err)
				}
			}()

			delayQueue, err := delayqueue.NewRedisDelayQueue(command.String("redis-url"), logger)
			if err != nil {
				return fmt.Errorf("failed to create delay queue: %w", err)
			}
			defer func() {
				if err := delayQueue.Close(); err != nil {
					logger.Error("Failed to close delay queue", "error", err)
				}
			}()

			engine := NewEngine(engineID, persistence, eventBus, inboundBus, delayQueue, logger)

			engine.Start(ctx)

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
