package postgres

import (
	"github.com/clinisight/agent-orchestrator/config"
	"github.com/clinisight/agent-orchestrator/repositories"
	"go.uber.org/zap"
)

// NewRepositories wires all Postgres-backed repositories over one pool.
func NewRepositories(db *DB, storage config.StorageConfig, logger *zap.Logger) repositories.Repositories {
	return repositories.Repositories{
		States: NewStateRepository(db, storage, logger),
		Audits: NewAuditRepository(db, storage, logger),
	}
}
