package statestore

import (
	"context"
	"time"

	"github.com/clinisight/agent-orchestrator/config"
	"github.com/clinisight/agent-orchestrator/models"
	"github.com/clinisight/agent-orchestrator/repositories"
	"github.com/clinisight/agent-orchestrator/services"
	"github.com/clinisight/agent-orchestrator/services/auditlog"
	"go.uber.org/zap"
)

const resourceTypeAgentState = "agent_state"

// Service is the audited persistence facade for agent state. Every operation,
// read or write, produces exactly one audit entry, and the entry is durably
// written before the operation reports success. Callers never talk to the
// repositories directly; the audit coupling lives here and cannot be bypassed.
type Service struct {
	states  repositories.StateRepository
	audit   *auditlog.Service
	storage config.StorageConfig
	logger  *zap.Logger
}

// NewService creates a new state store service
func NewService(states repositories.StateRepository, audit *auditlog.Service, storage config.StorageConfig, logger *zap.Logger) *Service {
	return &Service{
		states:  states,
		audit:   audit,
		storage: storage,
		logger:  logger,
	}
}

// Put creates or overwrites the state for (tenant, agent). Concurrent puts to
// the same pair both succeed and the last writer wins. The audit action
// distinguishes CREATE from UPDATE based on whether the row existed.
//
// When the write lands but the audit entry does not, the call returns an
// audit_write error: the operation is reported failed even though the state
// mutated, because an unaudited mutation must never be acknowledged.
func (s *Service) Put(ctx context.Context, tenantID, agentName string, payload any, userID, reason string) (*models.AgentState, error) {
	state, err := models.NewAgentState(tenantID, agentName, payload)
	if err != nil {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "state payload is not JSON-serializable", err)
	}
	now := time.Now().UTC()
	state.UpdatedAt = now
	state.ExpiresAt = now.Add(s.storage.RetentionHorizon)

	opCtx, cancel := context.WithTimeout(ctx, s.storage.OperationTimeout)
	defer cancel()

	created, err := s.states.Upsert(opCtx, state)
	if err != nil {
		return nil, services.WrapStorage("failed to write agent state", err)
	}

	action := models.AuditActionUpdate
	if created {
		action = models.AuditActionCreate
	}
	if _, err := s.audit.Record(ctx, tenantID, agentName, userID, action, resourceTypeAgentState,
		[]string{agentName}, reason, nil); err != nil {
		return nil, err
	}

	return state, nil
}

// Get retrieves the state for (tenant, agent). Absence is reported as a
// not_found domain error, which callers treat as an expected outcome rather
// than a failure. The read is audited either way: knowing that an agent looked
// for state matters even when none was there.
func (s *Service) Get(ctx context.Context, tenantID, agentName string, userID, reason string) (*models.AgentState, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.storage.OperationTimeout)
	defer cancel()

	state, err := s.states.Get(opCtx, tenantID, agentName)
	if err != nil {
		return nil, services.WrapStorage("failed to read agent state", err)
	}

	if _, err := s.audit.Record(ctx, tenantID, agentName, userID, models.AuditActionRead, resourceTypeAgentState,
		[]string{agentName}, reason, nil); err != nil {
		return nil, err
	}

	if state == nil {
		return nil, services.NewDomainError(services.ErrorTypeNotFound, "agent state not found", nil).
			WithDetail("tenantId", tenantID).
			WithDetail("agentName", agentName)
	}
	return state, nil
}

// Delete removes the state for (tenant, agent). Deleting a non-existent pair
// succeeds; the outcome is the same either way and the attempt is audited.
func (s *Service) Delete(ctx context.Context, tenantID, agentName string, userID, reason string) error {
	opCtx, cancel := context.WithTimeout(ctx, s.storage.OperationTimeout)
	defer cancel()

	if err := s.states.Delete(opCtx, tenantID, agentName); err != nil {
		return services.WrapStorage("failed to delete agent state", err)
	}

	_, err := s.audit.Record(ctx, tenantID, agentName, userID, models.AuditActionDelete, resourceTypeAgentState,
		[]string{agentName}, reason, nil)
	return err
}

// ListByTenant retrieves all live states for a tenant. A tenant with no states
// yields an empty slice. The listing is recorded as a single ACCESS entry
// naming every agent whose state was returned.
func (s *Service) ListByTenant(ctx context.Context, tenantID string, userID, reason string) ([]*models.AgentState, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.storage.OperationTimeout)
	defer cancel()

	states, err := s.states.ListByTenant(opCtx, tenantID)
	if err != nil {
		return nil, services.WrapStorage("failed to list agent states", err)
	}

	agentNames := make([]string, len(states))
	for i, st := range states {
		agentNames[i] = st.AgentName
	}
	if _, err := s.audit.Record(ctx, tenantID, "", userID, models.AuditActionAccess, resourceTypeAgentState,
		agentNames, reason, map[string]any{"count": len(states)}); err != nil {
		return nil, err
	}

	if states == nil {
		states = []*models.AgentState{}
	}
	return states, nil
}

// ReapExpired hard-deletes state rows past their retention horizon. The
// timeout keeps a hung pool from stalling the reaper tick.
func (s *Service) ReapExpired(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storage.OperationTimeout)
	defer cancel()

	return s.states.DeleteExpired(ctx, time.Now().UTC())
}
