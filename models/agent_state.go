package models

import (
	"encoding/json"
	"time"
)

// AgentState represents the last known persisted output of one agent for one
// tenant. There is at most one row per (tenant, agent) pair: writes overwrite,
// never append.
type AgentState struct {
	TenantID  string          `json:"tenantId" db:"tenant_id"`
	AgentName string          `json:"agentName" db:"agent_name"`
	StateData json.RawMessage `json:"stateData" db:"state_data"` // JSONB payload
	UpdatedAt time.Time       `json:"updatedAt" db:"updated_at"`
	ExpiresAt time.Time       `json:"expiresAt" db:"expires_at"`
}

// TableName returns the table name for the AgentState model
func (AgentState) TableName() string {
	return "agent_states"
}

// NewAgentState builds a state row from an arbitrary JSON-compatible payload.
// Timestamps are populated by the store on write.
func NewAgentState(tenantID, agentName string, payload any) (*AgentState, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &AgentState{
		TenantID:  tenantID,
		AgentName: agentName,
		StateData: data,
	}, nil
}

// Payload unmarshals the stored state data into a generic map.
func (s *AgentState) Payload() (map[string]any, error) {
	if len(s.StateData) == 0 {
		return map[string]any{}, nil
	}
	var out map[string]any
	if err := json.Unmarshal(s.StateData, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Expired reports whether the row has passed its retention horizon at the
// given instant. Expired-but-not-yet-reaped rows are treated as absent.
func (s *AgentState) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}
