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
		Name:                  "drip-sweeper",
		Usage:                 "Start the Drip delay queue and stale execution sweeper",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "sweeper-id",
				Aliases: []string{"id"},
				Usage:   "Custom sweeper ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("SWEEPER_ID"),
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
				Name:    "drain-schedule",
				Usage:   "Cron schedule for draining the delay queue",
				Value:   "@every 30s",
				Sources: cli.EnvVars("DRAIN_SCHEDULE"),
			},
			&cli.StringFlag{
				Name:    "stale-schedule",
				Usage:   "Cron schedule for the stale execution report",
				Value:   "@daily",
				Sources: cli.EnvVars("STALE_SCHEDULE"),
			},
			&cli.IntFlag{
				Name:    "stale-after-days",
				Usage:   "Age in days after which an active execution is reported stale",
				Value:   30,
				Sources: cli.EnvVars("STALE_AFTER_DAYS"),
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

			tracerProvider, err := trc.InitTracer(ctx, "drip-sweeper")
			if err != nil {
				return fmt.Errorf("failed to initialize tracer: %w", err)
			}
			defer func() {
				if err := tracerProvider.Shutdown(ctx); err != nil {
					slog.Error("Failed to shutdown tracer provider", "error", err)
				}
			}()

			sweeperID := command.String("sweeper-id")
			if sweeperID == "" {
				sweeperID = fmt.Sprintf("sweeper-%s", uuid.New().String()[:8])
			}

			logger := log.WithModule("drip-sweeper").With("sweeper_id", sweeperID)

			logger.Info("Initializing Drip Sweeper", "sweeper_id", sweeperID)

			eventBus := cmd.NewEventBus(command.String("event-bus"), "drip-sweeper", logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.Error("Failed to close event bus", "error", err)
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

			sweeper := NewSweeper(
				sweeperID,
				persistence,
				eventBus,
				delayQueue,
				command.Int("stale-after-days"),
				logger,
			)

			return sweeper.Start(ctx, command.String("drain-schedule"), command.String("stale-schedule"))
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
