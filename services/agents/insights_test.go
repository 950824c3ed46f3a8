package agents

import (
	"context"
	"errors"
	"testing"

	"github.com/clinisight/agent-orchestrator/models"
	"github.com/clinisight/agent-orchestrator/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func insightsEvent() *models.CanonicalEvent {
	return &models.CanonicalEvent{
		Source:    models.SourceGatewayGet,
		TenantID:  "acme-health",
		EventType: models.EventInsights,
		Data:      map[string]any{},
	}
}

func TestInsights_SummarizesKnownAgents(t *testing.T) {
	store := new(MockStateStore)
	logger, _ := zap.NewDevelopment()
	agent := NewInsights(store, logger)

	tasksmith, err := models.NewAgentState("acme-health", TaskSmithName, map[string]any{
		"epicKey":         "HC-100",
		"subtasksCreated": 5,
	})
	require.NoError(t, err)
	caretrack, err := models.NewAgentState("acme-health", CareTrackName, map[string]any{
		"status": "healthy",
	})
	require.NoError(t, err)

	store.On("ListByTenant", mock.Anything, "acme-health", "", mock.Anything).
		Return([]*models.AgentState{tasksmith, caretrack}, nil)

	result := agent.Invoke(context.Background(), "acme-health", insightsEvent())
	require.Equal(t, StatusSuccess, result.Status)
	assert.Equal(t, "acme-health", result.Body["tenantId"])

	agents := result.Body["agents"].(map[string]any)
	ts := agents[TaskSmithName].(map[string]any)
	assert.Equal(t, "active", ts["status"])
	assert.Contains(t, ts["summary"], "HC-100")
	assert.Contains(t, ts["summary"], "5 subtasks")

	ct := agents[CareTrackName].(map[string]any)
	assert.Contains(t, ct["summary"], "healthy")
}

func TestInsights_EmptyTenantStillReturnsPlaceholders(t *testing.T) {
	store := new(MockStateStore)
	logger, _ := zap.NewDevelopment()
	agent := NewInsights(store, logger)

	store.On("ListByTenant", mock.Anything, "demo-tenant", "", mock.Anything).
		Return([]*models.AgentState{}, nil)

	result := agent.Invoke(context.Background(), "demo-tenant", insightsEvent())
	require.Equal(t, StatusSuccess, result.Status)

	agents := result.Body["agents"].(map[string]any)
	for _, name := range plannedAgents {
		placeholder := agents[name].(map[string]any)
		assert.Equal(t, "not_implemented", placeholder["status"])
	}
}

func TestInsights_UnknownAgentGetsGenericSummary(t *testing.T) {
	store := new(MockStateStore)
	logger, _ := zap.NewDevelopment()
	agent := NewInsights(store, logger)

	other, err := models.NewAgentState("acme-health", "SomeNewAgent", map[string]any{"anything": true})
	require.NoError(t, err)
	store.On("ListByTenant", mock.Anything, "acme-health", "", mock.Anything).
		Return([]*models.AgentState{other}, nil)

	result := agent.Invoke(context.Background(), "acme-health", insightsEvent())
	require.Equal(t, StatusSuccess, result.Status)

	agents := result.Body["agents"].(map[string]any)
	generic := agents["SomeNewAgent"].(map[string]any)
	assert.Equal(t, "active", generic["status"])
	assert.Equal(t, "Agent data available", generic["summary"])
}

func TestInsights_ListFailureIsHardFailure(t *testing.T) {
	store := new(MockStateStore)
	logger, _ := zap.NewDevelopment()
	agent := NewInsights(store, logger)

	store.On("ListByTenant", mock.Anything, "acme-health", "", mock.Anything).
		Return(nil, services.WrapStorage("list failed", errors.New("connection reset")))

	result := agent.Invoke(context.Background(), "acme-health", insightsEvent())
	assert.Equal(t, StatusHardFailure, result.Status)
	assert.Error(t, result.Err)
}

func TestRegistry_UnknownTypeFallsBackToNoop(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	registry := NewRegistry(logger)
	registry.Register(models.EventEpicCreated, NewInsights(new(MockStateStore), logger))

	invoker := registry.Resolve("SOME_FUTURE_EVENT")
	require.NotNil(t, invoker)
	assert.Equal(t, "noop", invoker.Name())

	result := invoker.Invoke(context.Background(), "acme-health", &models.CanonicalEvent{
		TenantID:  "acme-health",
		EventType: "SOME_FUTURE_EVENT",
	})
	assert.Equal(t, StatusSuccess, result.Status)
	assert.Equal(t, "ignored", result.Body["status"])
}

func TestRegistry_ResolvesRegisteredInvoker(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	registry := NewRegistry(logger)
	insights := NewInsights(new(MockStateStore), logger)
	registry.Register(models.EventInsights, insights)

	assert.Equal(t, InsightsName, registry.Resolve(models.EventInsights).Name())
	assert.Contains(t, registry.EventTypes(), models.EventInsights)
}
