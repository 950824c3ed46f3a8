package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/clinisight/agent-orchestrator/config"
	"github.com/clinisight/agent-orchestrator/models"
	"github.com/clinisight/agent-orchestrator/repositories"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// AuditRepository implements the repositories.AuditRepository interface
type AuditRepository struct {
	db      *DB
	storage config.StorageConfig
	logger  *zap.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *DB, storage config.StorageConfig, logger *zap.Logger) repositories.AuditRepository {
	return &AuditRepository{
		db:      db,
		storage: storage,
		logger:  logger,
	}
}

// Insert appends a new audit entry. This is a pure append with no
// read-modify-write, so concurrent callers never race or lose entries; the
// composite entry key guarantees uniqueness even at identical timestamps.
func (r *AuditRepository) Insert(ctx context.Context, entry *models.AuditEntry) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (
			tenant_id, entry_key, agent_name, user_id, action,
			resource_type, resource_keys, reason, metadata, timestamp, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, r.storage.AuditTable)

	err := withRetry(ctx, r.logger, r.storage.RetryBudget, r.storage.RetryBaseDelay, "audit.insert", func() error {
		_, execErr := r.db.ExecContext(ctx, query,
			entry.TenantID,
			entry.EntryKey,
			entry.AgentName,
			entry.UserID,
			entry.Action,
			entry.ResourceType,
			pq.Array(entry.ResourceKeys),
			entry.Reason,
			entry.Metadata,
			entry.Timestamp,
			entry.ExpiresAt,
		)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}

	r.logger.Debug("audit entry inserted",
		zap.String("tenant_id", entry.TenantID),
		zap.String("entry_key", entry.EntryKey),
		zap.String("action", string(entry.Action)))
	return nil
}

// QueryByTimeRange retrieves a tenant's entries within the half-open interval
// [start, end) in ascending timestamp order. The secondary sort on entry_key
// makes the ordering total: entries sharing a wall-clock timestamp still come
// back in a deterministic sequence, so re-issuing the query after a partial
// failure yields the identical result.
func (r *AuditRepository) QueryByTimeRange(ctx context.Context, tenantID string, start, end time.Time) ([]*models.AuditEntry, error) {
	query := fmt.Sprintf(`
		SELECT tenant_id, entry_key, agent_name, user_id, action,
		       resource_type, resource_keys, reason, metadata, timestamp, expires_at
		FROM %s
		WHERE tenant_id = $1 AND timestamp >= $2 AND timestamp < $3
		ORDER BY timestamp ASC, entry_key ASC
	`, r.storage.AuditTable)

	var entries []*models.AuditEntry
	err := withRetry(ctx, r.logger, r.storage.RetryBudget, r.storage.RetryBaseDelay, "audit.query", func() error {
		rows, queryErr := r.db.QueryContext(ctx, query, tenantID, start, end)
		if queryErr != nil {
			return queryErr
		}
		defer rows.Close()

		entries = entries[:0]
		for rows.Next() {
			entry := &models.AuditEntry{}
			if scanErr := rows.Scan(
				&entry.TenantID,
				&entry.EntryKey,
				&entry.AgentName,
				&entry.UserID,
				&entry.Action,
				&entry.ResourceType,
				pq.Array(&entry.ResourceKeys),
				&entry.Reason,
				&entry.Metadata,
				&entry.Timestamp,
				&entry.ExpiresAt,
			); scanErr != nil {
				return scanErr
			}
			entries = append(entries, entry)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}

	return entries, nil
}

// DeleteExpired hard-deletes entries past their expiry. Expiry is the only
// path by which an audit entry is ever removed.
func (r *AuditRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE expires_at <= $1`, r.storage.AuditTable)

	var count int64
	err := withRetry(ctx, r.logger, r.storage.RetryBudget, r.storage.RetryBaseDelay, "audit.reap", func() error {
		result, execErr := r.db.ExecContext(ctx, query, now)
		if execErr != nil {
			return execErr
		}
		count, _ = result.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to reap expired audit entries: %w", err)
	}
	if count > 0 {
		r.logger.Info("reaped expired audit entries", zap.Int64("count", count))
	}
	return count, nil
}
