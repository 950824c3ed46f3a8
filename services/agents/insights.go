package agents

import (
	"context"
	"fmt"

	"github.com/clinisight/agent-orchestrator/models"
	"go.uber.org/zap"
)

const InsightsName = "Insights"

// plannedAgents are surfaced in the dashboard as placeholders until they
// ship. Keeps the dashboard shape stable while agents roll out.
var plannedAgents = []string{"DealFlow", "MindMesh", "RoadmapSmith"}

// Insights aggregates every agent's persisted state into one dashboard
// payload. It is a pure read: nothing is written beyond the access audit the
// state store records on its behalf.
type Insights struct {
	store  StateStore
	logger *zap.Logger
}

// NewInsights creates the dashboard aggregation agent.
func NewInsights(store StateStore, logger *zap.Logger) *Insights {
	return &Insights{store: store, logger: logger}
}

func (i *Insights) Name() string {
	return InsightsName
}

// Invoke lists the tenant's agent states and summarizes each one. A tenant
// with no state at all still gets a full response of placeholders.
func (i *Insights) Invoke(ctx context.Context, tenantID string, event *models.CanonicalEvent) Result {
	states, err := i.store.ListByTenant(ctx, tenantID, "", "insights aggregation")
	if err != nil {
		return HardFailure(InsightsName, err)
	}

	agentSummaries := make(map[string]any)
	for _, state := range states {
		agentSummaries[state.AgentName] = summarize(state)
	}
	for _, name := range plannedAgents {
		if _, ok := agentSummaries[name]; !ok {
			agentSummaries[name] = map[string]any{
				"status":  "not_implemented",
				"summary": "Coming soon",
			}
		}
	}

	i.logger.Info("insights aggregated",
		zap.String("tenant_id", tenantID),
		zap.Int("agent_count", len(states)))

	return Success(InsightsName, map[string]any{
		"tenantId": tenantID,
		"agents":   agentSummaries,
	})
}

func summarize(state *models.AgentState) map[string]any {
	payload, err := state.Payload()
	if err != nil {
		return map[string]any{"status": "active", "summary": "Agent data available"}
	}

	switch state.AgentName {
	case TaskSmithName:
		epicKey := "unknown epic"
		if key, ok := payload["epicKey"].(string); ok && key != "" {
			epicKey = key
		}
		subtasks := 0
		if n, ok := payload["subtasksCreated"].(float64); ok {
			subtasks = int(n)
		}
		return map[string]any{
			"status":  "active",
			"summary": fmt.Sprintf("Processed %s, created %d subtasks", epicKey, subtasks),
		}
	case CareTrackName:
		status := "active"
		summary := "Compliance sweep data available"
		if s, ok := payload["status"].(string); ok && s != "" {
			summary = fmt.Sprintf("Tenant audit trail is %s", s)
		}
		return map[string]any{"status": status, "summary": summary}
	default:
		return map[string]any{"status": "active", "summary": "Agent data available"}
	}
}
