// Package delayqueue schedules delayed step resumptions on a Redis sorted
// set, scored by resume time. A sweeper drains due entries and publishes
// resume events; the engine itself never sleeps on a delay.
package delayqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const queueKey = "drip:delay-queue"

// DueResumption identifies an execution step whose delay has elapsed.
type DueResumption struct {
	ExecutionID    string `json:"execution_id"`
	StepID         string `json:"step_id"`
	OrganizationID string `json:"organization_id"`
	JourneyID      string `json:"journey_id"`
}

// RedisDelayQueue stores pending resumptions in a ZSET keyed by resume time.
type RedisDelayQueue struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisDelayQueue connects to Redis at the given URL.
func NewRedisDelayQueue(redisURL string, logger *slog.Logger) (*RedisDelayQueue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	return &RedisDelayQueue{
		client: redis.NewClient(opts),
		logger: logger.With("module", "delay_queue"),
	}, nil
}

// ScheduleResumption enqueues a resumption scored by its due time.
func (q *RedisDelayQueue) ScheduleResumption(ctx context.Context, resumption DueResumption, resumeAt time.Time) error {
	member, err := json.Marshal(resumption)
	if err != nil {
		return fmt.Errorf("failed to marshal resumption: %w", err)
	}

	err = q.client.ZAdd(ctx, queueKey, redis.Z{
		Score:  float64(resumeAt.UnixMilli()),
		Member: string(member),
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to schedule resumption: %w", err)
	}

	q.logger.DebugContext(ctx, "Scheduled resumption",
		"execution_id", resumption.ExecutionID,
		"step_id", resumption.StepID,
		"resume_at", resumeAt)

	return nil
}

// PopDue atomically removes and returns all resumptions due at or before now.
func (q *RedisDelayQueue) PopDue(ctx context.Context, now time.Time) ([]DueResumption, error) {
	maxScore := fmt.Sprintf("%d", now.UnixMilli())

	pipe := q.client.TxPipeline()
	rangeCmd := pipe.ZRangeByScore(ctx, queueKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: maxScore,
	})
	pipe.ZRemRangeByScore(ctx, queueKey, "-inf", maxScore)

	_, err := pipe.Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to pop due resumptions: %w", err)
	}

	members := rangeCmd.Val()
	due := make([]DueResumption, 0, len(members))

	for _, member := range members {
		var resumption DueResumption

		if err := json.Unmarshal([]byte(member), &resumption); err != nil {
			q.logger.ErrorContext(ctx, "Dropping unparseable resumption", "member", member, "error", err)

			continue
		}

		due = append(due, resumption)
	}

	return due, nil
}

// HealthCheck verifies the Redis connection.
func (q *RedisDelayQueue) HealthCheck(ctx context.Context) error {
	err := q.client.Ping(ctx).Err()
	if err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}

	return nil
}

// Close releases the Redis connection.
func (q *RedisDelayQueue) Close() error {
	return q.client.Close()
}
