package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/dukex/drip/pkg/delayqueue"
	"github.com/dukex/drip/pkg/eventbus"
	"github.com/dukex/drip/pkg/events"
)

// MockEventBus is a mock implementation of eventbus.EventBus interface.
type MockEventBus struct {
	mock.Mock
}

func (m *MockEventBus) Publish(ctx context.Context, key string, event eventbus.Event) error {
	args := m.Called(ctx, key, event)

	return args.Error(0)
}

func (m *MockEventBus) Handle(eventType events.EventType, handler eventbus.EventHandler) error {
	args := m.Called(eventType, handler)

	return args.Error(0)
}

func (m *MockEventBus) Subscribe(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockEventBus) Close() error {
	args := m.Called()

	return args.Error(0)
}

func (m *MockEventBus) GenerateID() string {
	args := m.Called()

	return args.String(0)
}

// MockInboundEventBus is a mock implementation of eventbus.InboundEventBus interface.
type MockInboundEventBus struct {
	mock.Mock
}

func (m *MockInboundEventBus) Handle(eventType string, handler eventbus.InboundHandler) error {
	args := m.Called(eventType, handler)

	return args.Error(0)
}

func (m *MockInboundEventBus) Subscribe(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockInboundEventBus) Close() error {
	args := m.Called()

	return args.Error(0)
}

// MockDelayScheduler is a mock implementation of engine.DelayScheduler.
type MockDelayScheduler struct {
	mock.Mock
}

func (m *MockDelayScheduler) ScheduleResumption(ctx context.Context, resumption delayqueue.DueResumption, resumeAt time.Time) error {
	args := m.Called(ctx, resumption, resumeAt)

	return args.Error(0)
}

// MockDelayQueue mocks the draining side of the delay queue.
type MockDelayQueue struct {
	mock.Mock
}

func (m *MockDelayQueue) PopDue(ctx context.Context, now time.Time) ([]delayqueue.DueResumption, error) {
	args := m.Called(ctx, now)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]delayqueue.DueResumption), args.Error(1)
}
