package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/clinisight/agent-orchestrator/config"
	"github.com/clinisight/agent-orchestrator/models"
	"github.com/clinisight/agent-orchestrator/repositories"
	"go.uber.org/zap"
)

// StateRepository implements the repositories.StateRepository interface
type StateRepository struct {
	db      *DB
	storage config.StorageConfig
	logger  *zap.Logger
}

// NewStateRepository creates a new agent state repository
func NewStateRepository(db *DB, storage config.StorageConfig, logger *zap.Logger) repositories.StateRepository {
	return &StateRepository{
		db:      db,
		storage: storage,
		logger:  logger,
	}
}

// Upsert creates or overwrites the row for (tenant, agent). The write is a
// single-row atomic upsert: concurrent writers to the same key both succeed
// and the last one to commit wins. The RETURNING clause reports whether the
// row was freshly inserted (xmax = 0) so the caller can audit CREATE vs
// UPDATE correctly.
func (r *StateRepository) Upsert(ctx context.Context, state *models.AgentState) (bool, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (tenant_id, agent_name, state_data, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tenant_id, agent_name)
		DO UPDATE SET state_data = EXCLUDED.state_data,
		              updated_at = EXCLUDED.updated_at,
		              expires_at = EXCLUDED.expires_at
		RETURNING (xmax = 0)
	`, r.storage.StateTable)

	var created bool
	err := withRetry(ctx, r.logger, r.storage.RetryBudget, r.storage.RetryBaseDelay, "state.upsert", func() error {
		return r.db.QueryRowContext(ctx, query,
			state.TenantID,
			state.AgentName,
			state.StateData,
			state.UpdatedAt,
			state.ExpiresAt,
		).Scan(&created)
	})
	if err != nil {
		return false, fmt.Errorf("failed to upsert agent state: %w", err)
	}

	r.logger.Debug("agent state written",
		zap.String("tenant_id", state.TenantID),
		zap.String("agent_name", state.AgentName),
		zap.Bool("created", created))
	return created, nil
}

// Get retrieves the row for (tenant, agent). Rows past their expiry are
// filtered out here, so expired-but-not-yet-reaped rows read as absent.
// Absence is returned as (nil, nil), not as an error.
func (r *StateRepository) Get(ctx context.Context, tenantID, agentName string) (*models.AgentState, error) {
	query := fmt.Sprintf(`
		SELECT tenant_id, agent_name, state_data, updated_at, expires_at
		FROM %s
		WHERE tenant_id = $1 AND agent_name = $2 AND expires_at > $3
	`, r.storage.StateTable)

	state := &models.AgentState{}
	err := withRetry(ctx, r.logger, r.storage.RetryBudget, r.storage.RetryBaseDelay, "state.get", func() error {
		return r.db.QueryRowContext(ctx, query, tenantID, agentName, time.Now().UTC()).Scan(
			&state.TenantID,
			&state.AgentName,
			&state.StateData,
			&state.UpdatedAt,
			&state.ExpiresAt,
		)
	})
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get agent state: %w", err)
	}

	return state, nil
}

// Delete removes the row for (tenant, agent). Deleting a non-existent row is
// not an error.
func (r *StateRepository) Delete(ctx context.Context, tenantID, agentName string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE tenant_id = $1 AND agent_name = $2`, r.storage.StateTable)

	err := withRetry(ctx, r.logger, r.storage.RetryBudget, r.storage.RetryBaseDelay, "state.delete", func() error {
		_, execErr := r.db.ExecContext(ctx, query, tenantID, agentName)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("failed to delete agent state: %w", err)
	}

	r.logger.Debug("agent state deleted",
		zap.String("tenant_id", tenantID),
		zap.String("agent_name", agentName))
	return nil
}

// ListByTenant retrieves all live rows for a tenant in last-update order.
func (r *StateRepository) ListByTenant(ctx context.Context, tenantID string) ([]*models.AgentState, error) {
	query := fmt.Sprintf(`
		SELECT tenant_id, agent_name, state_data, updated_at, expires_at
		FROM %s
		WHERE tenant_id = $1 AND expires_at > $2
		ORDER BY updated_at ASC
	`, r.storage.StateTable)

	var states []*models.AgentState
	err := withRetry(ctx, r.logger, r.storage.RetryBudget, r.storage.RetryBaseDelay, "state.list", func() error {
		rows, queryErr := r.db.QueryContext(ctx, query, tenantID, time.Now().UTC())
		if queryErr != nil {
			return queryErr
		}
		defer rows.Close()

		states = states[:0]
		for rows.Next() {
			state := &models.AgentState{}
			if scanErr := rows.Scan(
				&state.TenantID,
				&state.AgentName,
				&state.StateData,
				&state.UpdatedAt,
				&state.ExpiresAt,
			); scanErr != nil {
				return scanErr
			}
			states = append(states, state)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list agent states: %w", err)
	}

	return states, nil
}

// DeleteExpired hard-deletes rows past their expiry.
func (r *StateRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE expires_at <= $1`, r.storage.StateTable)

	var count int64
	err := withRetry(ctx, r.logger, r.storage.RetryBudget, r.storage.RetryBaseDelay, "state.reap", func() error {
		result, execErr := r.db.ExecContext(ctx, query, now)
		if execErr != nil {
			return execErr
		}
		count, _ = result.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to reap expired agent states: %w", err)
	}
	if count > 0 {
		r.logger.Info("reaped expired agent states", zap.Int64("count", count))
	}
	return count, nil
}
