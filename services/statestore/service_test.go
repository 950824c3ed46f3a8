package statestore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/clinisight/agent-orchestrator/config"
	"github.com/clinisight/agent-orchestrator/models"
	"github.com/clinisight/agent-orchestrator/services"
	"github.com/clinisight/agent-orchestrator/services/auditlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockStateRepository is a mock implementation of StateRepository
type MockStateRepository struct {
	mock.Mock
}

func (m *MockStateRepository) Upsert(ctx context.Context, state *models.AgentState) (bool, error) {
	args := m.Called(ctx, state)
	return args.Bool(0), args.Error(1)
}

func (m *MockStateRepository) Get(ctx context.Context, tenantID, agentName string) (*models.AgentState, error) {
	args := m.Called(ctx, tenantID, agentName)
	if state := args.Get(0); state != nil {
		return state.(*models.AgentState), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStateRepository) Delete(ctx context.Context, tenantID, agentName string) error {
	args := m.Called(ctx, tenantID, agentName)
	return args.Error(0)
}

func (m *MockStateRepository) ListByTenant(ctx context.Context, tenantID string) ([]*models.AgentState, error) {
	args := m.Called(ctx, tenantID)
	if states := args.Get(0); states != nil {
		return states.([]*models.AgentState), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStateRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

// MockAuditRepository is a mock implementation of AuditRepository
type MockAuditRepository struct {
	mock.Mock
}

func (m *MockAuditRepository) Insert(ctx context.Context, entry *models.AuditEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockAuditRepository) QueryByTimeRange(ctx context.Context, tenantID string, start, end time.Time) ([]*models.AuditEntry, error) {
	args := m.Called(ctx, tenantID, start, end)
	if entries := args.Get(0); entries != nil {
		return entries.([]*models.AuditEntry), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAuditRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

func newTestService(states *MockStateRepository, audits *MockAuditRepository) *Service {
	logger, _ := zap.NewDevelopment()
	storage := config.StorageConfig{
		StateTable:       "agent_states",
		AuditTable:       "audit_entries",
		RetentionHorizon: config.DefaultRetentionHorizon,
		RetryBudget:      3,
		RetryBaseDelay:   time.Millisecond,
		OperationTimeout: 5 * time.Second,
	}
	audit := auditlog.NewService(audits, storage, logger)
	return NewService(states, audit, storage, logger)
}

func capturedEntry(audits *MockAuditRepository) *models.AuditEntry {
	for _, call := range audits.Calls {
		if call.Method == "Insert" {
			return call.Arguments.Get(1).(*models.AuditEntry)
		}
	}
	return nil
}

func TestPut_NewStateAuditsCreate(t *testing.T) {
	states := new(MockStateRepository)
	audits := new(MockAuditRepository)
	service := newTestService(states, audits)

	states.On("Upsert", mock.Anything, mock.Anything).Return(true, nil)
	audits.On("Insert", mock.Anything, mock.Anything).Return(nil)

	state, err := service.Put(context.Background(), "acme-health", "TaskSmith",
		map[string]any{"epicKey": "PROJ-1", "taskCount": 5}, "user-42", "epic decomposition")
	require.NoError(t, err)
	require.NotNil(t, state)

	assert.Equal(t, "acme-health", state.TenantID)
	assert.Equal(t, "TaskSmith", state.AgentName)
	assert.False(t, state.UpdatedAt.IsZero())
	assert.Equal(t, state.UpdatedAt.Add(config.DefaultRetentionHorizon), state.ExpiresAt)

	entry := capturedEntry(audits)
	require.NotNil(t, entry)
	assert.Equal(t, models.AuditActionCreate, entry.Action)
	assert.Equal(t, "acme-health", entry.TenantID)
	assert.Equal(t, []string{"TaskSmith"}, entry.ResourceKeys)
	audits.AssertNumberOfCalls(t, "Insert", 1)
}

func TestPut_ExistingStateAuditsUpdate(t *testing.T) {
	states := new(MockStateRepository)
	audits := new(MockAuditRepository)
	service := newTestService(states, audits)

	states.On("Upsert", mock.Anything, mock.Anything).Return(false, nil)
	audits.On("Insert", mock.Anything, mock.Anything).Return(nil)

	_, err := service.Put(context.Background(), "acme-health", "TaskSmith",
		map[string]any{"epicKey": "PROJ-1"}, "user-42", "epic re-run")
	require.NoError(t, err)

	entry := capturedEntry(audits)
	require.NotNil(t, entry)
	assert.Equal(t, models.AuditActionUpdate, entry.Action)
}

func TestPut_StorageFailureSkipsAudit(t *testing.T) {
	states := new(MockStateRepository)
	audits := new(MockAuditRepository)
	service := newTestService(states, audits)

	states.On("Upsert", mock.Anything, mock.Anything).Return(false, errors.New("connection refused"))

	state, err := service.Put(context.Background(), "acme-health", "TaskSmith",
		map[string]any{"epicKey": "PROJ-1"}, "user-42", "epic decomposition")
	require.Error(t, err)
	assert.Nil(t, state)
	assert.True(t, services.IsStorageError(err))
	audits.AssertNumberOfCalls(t, "Insert", 0)
}

func TestPut_AuditFailureFailsOperation(t *testing.T) {
	states := new(MockStateRepository)
	audits := new(MockAuditRepository)
	service := newTestService(states, audits)

	states.On("Upsert", mock.Anything, mock.Anything).Return(true, nil)
	audits.On("Insert", mock.Anything, mock.Anything).Return(errors.New("audit table unavailable"))

	state, err := service.Put(context.Background(), "acme-health", "TaskSmith",
		map[string]any{"epicKey": "PROJ-1"}, "user-42", "epic decomposition")
	require.Error(t, err)
	assert.Nil(t, state)
	assert.True(t, services.IsAuditWriteError(err))
	assert.False(t, services.IsStorageError(err))
}

func TestPut_UnserializablePayloadIsValidationError(t *testing.T) {
	states := new(MockStateRepository)
	audits := new(MockAuditRepository)
	service := newTestService(states, audits)

	_, err := service.Put(context.Background(), "acme-health", "TaskSmith",
		map[string]any{"bad": make(chan int)}, "user-42", "epic decomposition")
	require.Error(t, err)
	assert.True(t, services.IsValidationError(err))
	states.AssertNumberOfCalls(t, "Upsert", 0)
	audits.AssertNumberOfCalls(t, "Insert", 0)
}

func TestGet_FoundAuditsRead(t *testing.T) {
	states := new(MockStateRepository)
	audits := new(MockAuditRepository)
	service := newTestService(states, audits)

	stored, _ := models.NewAgentState("acme-health", "TaskSmith", map[string]any{"epicKey": "PROJ-1"})
	states.On("Get", mock.Anything, "acme-health", "TaskSmith").Return(stored, nil)
	audits.On("Insert", mock.Anything, mock.Anything).Return(nil)

	state, err := service.Get(context.Background(), "acme-health", "TaskSmith", "user-42", "idempotency check")
	require.NoError(t, err)
	assert.Equal(t, stored, state)

	entry := capturedEntry(audits)
	require.NotNil(t, entry)
	assert.Equal(t, models.AuditActionRead, entry.Action)
	audits.AssertNumberOfCalls(t, "Insert", 1)
}

func TestGet_AbsentStillAuditsRead(t *testing.T) {
	states := new(MockStateRepository)
	audits := new(MockAuditRepository)
	service := newTestService(states, audits)

	states.On("Get", mock.Anything, "acme-health", "CareTrack").Return(nil, nil)
	audits.On("Insert", mock.Anything, mock.Anything).Return(nil)

	state, err := service.Get(context.Background(), "acme-health", "CareTrack", "", "freshness check")
	require.Error(t, err)
	assert.Nil(t, state)
	assert.True(t, services.IsNotFoundError(err))

	// The lookup attempt is audited even though nothing was found.
	entry := capturedEntry(audits)
	require.NotNil(t, entry)
	assert.Equal(t, models.AuditActionRead, entry.Action)
}

func TestDelete_AuditsDelete(t *testing.T) {
	states := new(MockStateRepository)
	audits := new(MockAuditRepository)
	service := newTestService(states, audits)

	states.On("Delete", mock.Anything, "acme-health", "TaskSmith").Return(nil)
	audits.On("Insert", mock.Anything, mock.Anything).Return(nil)

	err := service.Delete(context.Background(), "acme-health", "TaskSmith", "user-42", "tenant offboarding")
	require.NoError(t, err)

	entry := capturedEntry(audits)
	require.NotNil(t, entry)
	assert.Equal(t, models.AuditActionDelete, entry.Action)
	audits.AssertNumberOfCalls(t, "Insert", 1)
}

func TestListByTenant_AuditsAccessWithAgentNames(t *testing.T) {
	states := new(MockStateRepository)
	audits := new(MockAuditRepository)
	service := newTestService(states, audits)

	a, _ := models.NewAgentState("acme-health", "TaskSmith", map[string]any{"epicKey": "PROJ-1"})
	b, _ := models.NewAgentState("acme-health", "CareTrack", map[string]any{"status": "healthy"})
	states.On("ListByTenant", mock.Anything, "acme-health").Return([]*models.AgentState{a, b}, nil)
	audits.On("Insert", mock.Anything, mock.Anything).Return(nil)

	result, err := service.ListByTenant(context.Background(), "acme-health", "user-42", "insights aggregation")
	require.NoError(t, err)
	assert.Len(t, result, 2)

	entry := capturedEntry(audits)
	require.NotNil(t, entry)
	assert.Equal(t, models.AuditActionAccess, entry.Action)
	assert.Equal(t, []string{"TaskSmith", "CareTrack"}, entry.ResourceKeys)
	audits.AssertNumberOfCalls(t, "Insert", 1)
}

func TestListByTenant_EmptyTenant(t *testing.T) {
	states := new(MockStateRepository)
	audits := new(MockAuditRepository)
	service := newTestService(states, audits)

	states.On("ListByTenant", mock.Anything, "empty-tenant").Return(nil, nil)
	audits.On("Insert", mock.Anything, mock.Anything).Return(nil)

	result, err := service.ListByTenant(context.Background(), "empty-tenant", "", "insights aggregation")
	require.NoError(t, err)
	assert.NotNil(t, result)
	assert.Empty(t, result)
}

func TestEveryOperationProducesExactlyOneAuditEntry(t *testing.T) {
	states := new(MockStateRepository)
	audits := new(MockAuditRepository)
	service := newTestService(states, audits)

	stored, _ := models.NewAgentState("acme-health", "TaskSmith", map[string]any{"epicKey": "PROJ-1"})
	states.On("Upsert", mock.Anything, mock.Anything).Return(true, nil)
	states.On("Get", mock.Anything, mock.Anything, mock.Anything).Return(stored, nil)
	states.On("Delete", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	states.On("ListByTenant", mock.Anything, mock.Anything).Return([]*models.AgentState{stored}, nil)
	audits.On("Insert", mock.Anything, mock.Anything).Return(nil)

	ctx := context.Background()
	_, err := service.Put(ctx, "acme-health", "TaskSmith", map[string]any{"v": 1}, "", "w")
	require.NoError(t, err)
	_, err = service.Get(ctx, "acme-health", "TaskSmith", "", "r")
	require.NoError(t, err)
	_, err = service.ListByTenant(ctx, "acme-health", "", "l")
	require.NoError(t, err)
	err = service.Delete(ctx, "acme-health", "TaskSmith", "", "d")
	require.NoError(t, err)

	audits.AssertNumberOfCalls(t, "Insert", 4)
}
