package agents

import (
	"context"
	"time"

	"github.com/clinisight/agent-orchestrator/models"
	"github.com/clinisight/agent-orchestrator/services"
	"go.uber.org/zap"
)

const CareTrackName = "CareTrack"

// careTrackWindow is how far back the compliance sweep looks for audit
// activity before declaring a tenant stale.
const careTrackWindow = 24 * time.Hour

// CareTrack runs the scheduled compliance sweep for a tenant: it checks
// whether the audit trail shows recent activity and persists a freshness
// summary that Insights and dashboards read later.
type CareTrack struct {
	store  StateStore
	audit  AuditQuerier
	logger *zap.Logger
	now    func() time.Time
}

// NewCareTrack creates the compliance sweep agent.
func NewCareTrack(store StateStore, audit AuditQuerier, logger *zap.Logger) *CareTrack {
	return &CareTrack{
		store:  store,
		audit:  audit,
		logger: logger,
		now:    time.Now,
	}
}

func (c *CareTrack) Name() string {
	return CareTrackName
}

// Invoke performs one sweep. The sweep needs nothing from the event beyond
// the tenant; it reads the prior sweep state, measures audit activity over
// the lookback window, and persists the new summary.
func (c *CareTrack) Invoke(ctx context.Context, tenantID string, event *models.CanonicalEvent) Result {
	log := c.logger.With(zap.String("tenant_id", tenantID))
	log.Info("caretrack sweep started")

	prior, err := c.store.Get(ctx, tenantID, CareTrackName, "", "compliance sweep")
	if err != nil && !services.IsNotFoundError(err) {
		return HardFailure(CareTrackName, err)
	}

	now := c.now().UTC()
	entries, err := c.audit.Query(ctx, tenantID, now.Add(-careTrackWindow), now)
	if err != nil {
		return HardFailure(CareTrackName, err)
	}

	status := "healthy"
	if len(entries) == 0 {
		status = "stale"
	}

	sweepCount := 1
	if prior != nil {
		if payload, payloadErr := prior.Payload(); payloadErr == nil {
			if n, ok := payload["sweepCount"].(float64); ok {
				sweepCount = int(n) + 1
			}
		}
	}

	stateData := map[string]any{
		"status":          status,
		"auditEntries24h": len(entries),
		"lastSweepAt":     now.Format(time.RFC3339),
		"sweepCount":      sweepCount,
	}
	if _, err := c.store.Put(ctx, tenantID, CareTrackName, stateData, "", "compliance sweep summary"); err != nil {
		return HardFailure(CareTrackName, err)
	}

	log.Info("caretrack sweep completed",
		zap.String("status", status),
		zap.Int("audit_entries", len(entries)))

	return Success(CareTrackName, map[string]any{
		"agent":           CareTrackName,
		"status":          "success",
		"tenantStatus":    status,
		"auditEntries24h": len(entries),
		"sweepCount":      sweepCount,
	})
}
