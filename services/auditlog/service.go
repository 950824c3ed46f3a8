package auditlog

import (
	"context"
	"time"

	"github.com/clinisight/agent-orchestrator/config"
	"github.com/clinisight/agent-orchestrator/models"
	"github.com/clinisight/agent-orchestrator/repositories"
	"github.com/clinisight/agent-orchestrator/services"
	"go.uber.org/zap"
)

// Service is the append-only audit trail. Every state access and mutation in
// the system flows through Record; entries answer who/what/when/where/why and
// are removed only by retention expiry.
type Service struct {
	auditRepo repositories.AuditRepository
	storage   config.StorageConfig
	logger    *zap.Logger
}

// NewService creates a new audit log service
func NewService(auditRepo repositories.AuditRepository, storage config.StorageConfig, logger *zap.Logger) *Service {
	return &Service{
		auditRepo: auditRepo,
		storage:   storage,
		logger:    logger,
	}
}

// Record durably appends one audit entry and returns it. The composite
// ordering key (timestamp + random suffix) is generated here, so entries
// written at the same wall-clock instant still sort deterministically and
// never collide. Safe for concurrent callers; the write is a pure append.
//
// A Record failure is a compliance gap, more severe than an ordinary storage
// failure; it surfaces as a distinct audit_write error so callers and
// telemetry can track it separately.
func (s *Service) Record(ctx context.Context, tenantID, agentName, userID string, action models.AuditAction, resourceType string, resourceKeys []string, reason string, metadata map[string]any) (*models.AuditEntry, error) {
	entry := models.NewAuditEntry(tenantID, agentName, userID, action, resourceType, resourceKeys, reason).
		WithExpiry(s.storage.RetentionHorizon)
	if metadata != nil {
		entry.WithMetadata(metadata)
	}

	ctx, cancel := context.WithTimeout(ctx, s.storage.OperationTimeout)
	defer cancel()

	if err := s.auditRepo.Insert(ctx, entry); err != nil {
		s.logger.Error("audit entry write failed",
			zap.String("tenant_id", tenantID),
			zap.String("agent_name", agentName),
			zap.String("action", string(action)),
			zap.Error(err))
		return nil, services.WrapAuditWrite("failed to record audit entry", err)
	}

	return entry, nil
}

// Query returns a tenant's entries in the half-open interval [start, end),
// ascending by timestamp. The call has no side effects: it may be re-issued
// with a narrower window after a partial failure and returns an identical
// sequence for identical arguments.
func (s *Service) Query(ctx context.Context, tenantID string, start, end time.Time) ([]*models.AuditEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storage.OperationTimeout)
	defer cancel()

	entries, err := s.auditRepo.QueryByTimeRange(ctx, tenantID, start, end)
	if err != nil {
		return nil, services.WrapStorage("failed to query audit trail", err)
	}
	return entries, nil
}

// ReapExpired hard-deletes entries past their retention horizon. The timeout
// keeps a hung pool from stalling the reaper tick.
func (s *Service) ReapExpired(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storage.OperationTimeout)
	defer cancel()

	return s.auditRepo.DeleteExpired(ctx, time.Now().UTC())
}
