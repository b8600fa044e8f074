// Package mocks provides testify mocks for the engine's ports.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/dukex/drip/pkg/models"
	"github.com/dukex/drip/pkg/persistence"
)

// MockJourneyRepository is a mock implementation of persistence.JourneyRepository interface.
type MockJourneyRepository struct {
	mock.Mock
}

func (m *MockJourneyRepository) GetByID(ctx context.Context, id string) (*models.Journey, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Journey), args.Error(1)
}

func (m *MockJourneyRepository) ListByOrganization(ctx context.Context, organizationID string) ([]*models.Journey, error) {
	args := m.Called(ctx, organizationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Journey), args.Error(1)
}

func (m *MockJourneyRepository) Save(ctx context.Context, journey *models.Journey) error {
	args := m.Called(ctx, journey)

	return args.Error(0)
}

func (m *MockJourneyRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

func (m *MockJourneyRepository) FindTriggerConfigs(ctx context.Context, organizationID string, triggerType models.TriggerType) ([]*models.TriggerConfigMatch, error) {
	args := m.Called(ctx, organizationID, triggerType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.TriggerConfigMatch), args.Error(1)
}

// MockVersionRepository is a mock implementation of persistence.VersionRepository interface.
type MockVersionRepository struct {
	mock.Mock
}

func (m *MockVersionRepository) GetByID(ctx context.Context, id string) (*models.JourneyVersion, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.JourneyVersion), args.Error(1)
}

func (m *MockVersionRepository) Save(ctx context.Context, version *models.JourneyVersion) error {
	args := m.Called(ctx, version)

	return args.Error(0)
}

func (m *MockVersionRepository) CurrentPublished(ctx context.Context, journeyID string) (*models.JourneyVersion, error) {
	args := m.Called(ctx, journeyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.JourneyVersion), args.Error(1)
}

func (m *MockVersionRepository) NextVersionNumber(ctx context.Context, journeyID string) (int, error) {
	args := m.Called(ctx, journeyID)

	return args.Int(0), args.Error(1)
}

// MockExecutionRepository is a mock implementation of persistence.ExecutionRepository interface.
type MockExecutionRepository struct {
	mock.Mock
}

func (m *MockExecutionRepository) GetByID(ctx context.Context, id string) (*models.JourneyExecution, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.JourneyExecution), args.Error(1)
}

func (m *MockExecutionRepository) Save(ctx context.Context, execution *models.JourneyExecution) error {
	args := m.Called(ctx, execution)

	return args.Error(0)
}

func (m *MockExecutionRepository) FindActiveForContact(ctx context.Context, journeyID, contactID string) (*models.JourneyExecution, error) {
	args := m.Called(ctx, journeyID, contactID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.JourneyExecution), args.Error(1)
}

func (m *MockExecutionRepository) FindStale(ctx context.Context, olderThan time.Time) ([]*models.JourneyExecution, error) {
	args := m.Called(ctx, olderThan)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.JourneyExecution), args.Error(1)
}

func (m *MockExecutionRepository) HistoryForContact(ctx context.Context, journeyID, contactID string) ([]models.ExecutionSummary, error) {
	args := m.Called(ctx, journeyID, contactID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]models.ExecutionSummary), args.Error(1)
}

func (m *MockExecutionRepository) SaveStepExecution(ctx context.Context, stepExecution *models.StepExecution) error {
	args := m.Called(ctx, stepExecution)

	return args.Error(0)
}

func (m *MockExecutionRepository) PendingStepExecution(ctx context.Context, executionID, stepID string) (*models.StepExecution, error) {
	args := m.Called(ctx, executionID, stepID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.StepExecution), args.Error(1)
}

func (m *MockExecutionRepository) StepExecutions(ctx context.Context, executionID string) ([]*models.StepExecution, error) {
	args := m.Called(ctx, executionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.StepExecution), args.Error(1)
}

// MockPersistence is a mock implementation of persistence.Persistence that
// hands out the typed repository mocks.
type MockPersistence struct {
	mock.Mock

	JourneyRepo   *MockJourneyRepository
	VersionRepo   *MockVersionRepository
	ExecutionRepo *MockExecutionRepository
}

func NewMockPersistence() *MockPersistence {
	return &MockPersistence{
		JourneyRepo:   &MockJourneyRepository{},
		VersionRepo:   &MockVersionRepository{},
		ExecutionRepo: &MockExecutionRepository{},
	}
}

func (m *MockPersistence) Journeys() persistence.JourneyRepository {
	return m.JourneyRepo
}

func (m *MockPersistence) Versions() persistence.VersionRepository {
	return m.VersionRepo
}

func (m *MockPersistence) Executions() persistence.ExecutionRepository {
	return m.ExecutionRepo
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
