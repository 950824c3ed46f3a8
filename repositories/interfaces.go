package repositories

import (
	"context"
	"time"

	"github.com/clinisight/agent-orchestrator/models"
)

// StateRepository handles persistence of agent state rows. One row per
// (tenant, agent) pair; writes are single-row atomic upserts.
type StateRepository interface {
	// Upsert creates or overwrites the row for (tenant, agent). Returns true
	// when the row did not previously exist.
	Upsert(ctx context.Context, state *models.AgentState) (created bool, err error)

	// Get retrieves the row for (tenant, agent). Returns sql.ErrNoRows-style
	// absence as (nil, nil); rows past their expiry are treated as absent.
	Get(ctx context.Context, tenantID, agentName string) (*models.AgentState, error)

	// Delete removes the row for (tenant, agent). Idempotent.
	Delete(ctx context.Context, tenantID, agentName string) error

	// ListByTenant retrieves all live rows for a tenant in last-update order.
	ListByTenant(ctx context.Context, tenantID string) ([]*models.AgentState, error)

	// DeleteExpired hard-deletes rows past their expiry, returning the count.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// AuditRepository handles the append-only audit trail. Insert is a pure
// append with no read-modify-write, so concurrent callers never lose entries.
type AuditRepository interface {
	// Insert appends a new audit entry.
	Insert(ctx context.Context, entry *models.AuditEntry) error

	// QueryByTimeRange retrieves a tenant's entries within [start, end) in
	// ascending timestamp order. Re-issuing the same query returns the same
	// sequence; there are no side effects.
	QueryByTimeRange(ctx context.Context, tenantID string, start, end time.Time) ([]*models.AuditEntry, error)

	// DeleteExpired hard-deletes entries past their expiry, returning the count.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	States StateRepository
	Audits AuditRepository
}
