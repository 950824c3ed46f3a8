package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/clinisight/agent-orchestrator/config"
	"go.uber.org/zap"
)

// DB wraps the sql.DB connection pool
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// NewDB creates a new database connection pool
func NewDB(cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	dsn := cfg.DSN()

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established",
		zap.String("connection", cfg.LogString()))

	return &DB{
		DB:     db,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (db *DB) Close() error {
	db.logger.Info("closing database connection")
	return db.DB.Close()
}

// HealthCheck performs a health check on the database
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database query check failed: %w", err)
	}

	return nil
}

// Stats returns database connection pool statistics
func (db *DB) Stats() sql.DBStats {
	return db.DB.Stats()
}

// InitSchema initializes the two persistence tables. Both carry an
// expires_at column; the reaper enforces it as a hard deletion trigger.
func (db *DB) InitSchema(ctx context.Context, storage config.StorageConfig) error {
	schema := fmt.Sprintf(`
		-- Agent state table: one row per (tenant, agent), overwritten in place
		CREATE TABLE IF NOT EXISTS %s (
			tenant_id VARCHAR(50) NOT NULL,
			agent_name VARCHAR(100) NOT NULL,
			state_data JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			expires_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (tenant_id, agent_name)
		);

		-- Audit trail: append-only, partitioned by tenant, ordered by
		-- composite entry key
		CREATE TABLE IF NOT EXISTS %s (
			tenant_id VARCHAR(50) NOT NULL,
			entry_key VARCHAR(128) NOT NULL,
			agent_name VARCHAR(100) NOT NULL,
			user_id VARCHAR(255) NOT NULL,
			action VARCHAR(20) NOT NULL,
			resource_type VARCHAR(100) NOT NULL,
			resource_keys TEXT[] NOT NULL DEFAULT '{}',
			reason TEXT NOT NULL DEFAULT '',
			metadata JSONB,
			timestamp TIMESTAMPTZ NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (tenant_id, entry_key)
		);

		CREATE INDEX IF NOT EXISTS idx_%s_expires_at ON %s(expires_at);
		CREATE INDEX IF NOT EXISTS idx_%s_tenant_ts ON %s(tenant_id, timestamp);
		CREATE INDEX IF NOT EXISTS idx_%s_expires_at ON %s(expires_at);
	`,
		storage.StateTable,
		storage.AuditTable,
		storage.StateTable, storage.StateTable,
		storage.AuditTable, storage.AuditTable,
		storage.AuditTable, storage.AuditTable,
	)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	db.logger.Info("database schema initialized",
		zap.String("state_table", storage.StateTable),
		zap.String("audit_table", storage.AuditTable))
	return nil
}
