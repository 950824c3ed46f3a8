package app

import (
	"context"
	"fmt"
	"time"

	"github.com/clinisight/agent-orchestrator/config"
	"github.com/clinisight/agent-orchestrator/middleware"
	"github.com/clinisight/agent-orchestrator/models"
	"github.com/clinisight/agent-orchestrator/repositories"
	"github.com/clinisight/agent-orchestrator/repositories/postgres"
	"github.com/clinisight/agent-orchestrator/scheduler"
	"github.com/clinisight/agent-orchestrator/services/agents"
	"github.com/clinisight/agent-orchestrator/services/auditlog"
	"github.com/clinisight/agent-orchestrator/services/orchestrator"
	"github.com/clinisight/agent-orchestrator/services/statestore"
	"github.com/clinisight/agent-orchestrator/telemetry"
	"github.com/clinisight/agent-orchestrator/tracker"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Logger *zap.Logger

	// Repositories
	Repos repositories.Repositories

	// Services
	AuditLog   *auditlog.Service
	StateStore *statestore.Service
	Reporter   telemetry.Reporter
	Tracker    *tracker.Client

	// Event pipeline
	Registry     *agents.Registry
	Orchestrator *orchestrator.Service
	Scheduler    *scheduler.Scheduler

	// Middleware
	WebhookAuth *middleware.WebhookAuth
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps.initServices(cfg)
	deps.initAgents()
	deps.initPipeline(cfg)

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase initializes the PostgreSQL connection pool, the schema, and
// the repositories over it.
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	db, err := postgres.NewDB(cfg.Database, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create database pool: %w", err)
	}
	d.DB = db

	if err := db.InitSchema(ctx, cfg.Storage); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	d.Repos = postgres.NewRepositories(db, cfg.Storage, d.Logger)
	d.Logger.Info("repositories initialized")
	return nil
}

// initServices initializes the audited persistence services and the external
// collaborators.
func (d *Dependencies) initServices(cfg *config.Config) {
	d.AuditLog = auditlog.NewService(d.Repos.Audits, cfg.Storage, d.Logger)
	d.StateStore = statestore.NewService(d.Repos.States, d.AuditLog, cfg.Storage, d.Logger)
	d.Reporter = telemetry.NewHTTPReporter(cfg.Telemetry, d.Logger)
	d.Tracker = tracker.NewClient(cfg.Tracker, d.Logger)
}

// initAgents builds the agent registry and binds event types to invokers.
func (d *Dependencies) initAgents() {
	registry := agents.NewRegistry(d.Logger)

	// A nil *tracker.Client must not be stored in the interface, or the
	// nil check inside TaskSmith would never fire.
	var issues agents.IssueCreator
	if d.Tracker != nil {
		issues = d.Tracker
		d.Logger.Info("issue tracker integration enabled")
	}

	taskSmith := agents.NewTaskSmith(d.StateStore, issues, d.Logger)
	careTrack := agents.NewCareTrack(d.StateStore, d.AuditLog, d.Logger)
	insights := agents.NewInsights(d.StateStore, d.Logger)

	registry.Register(models.EventEpicCreated, taskSmith)
	registry.Register(models.EventJiraEpicCreated, taskSmith)
	registry.Register(models.EventScheduledCheck, careTrack)
	registry.Register(models.EventCareTrackCheck, careTrack)
	registry.Register(models.EventInsights, insights)

	d.Registry = registry
}

// initPipeline wires the orchestrator, the webhook verifier, and the
// in-process scheduler. The scheduler also drives retention reaping for both
// persistence tables.
func (d *Dependencies) initPipeline(cfg *config.Config) {
	d.Orchestrator = orchestrator.NewService(d.Registry, d.Reporter, cfg.Webhook.DefaultTenant, d.Logger)
	d.WebhookAuth = middleware.NewWebhookAuth(cfg.Webhook.SigningSecret, d.Logger)
	d.Scheduler = scheduler.New(
		cfg.Scheduler,
		cfg.Storage.ReapInterval,
		d.Orchestrator,
		[]scheduler.Reaper{d.StateStore, d.AuditLog},
		d.Logger,
	)
}

// Close gracefully shuts down all dependencies.
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.Scheduler != nil {
		d.Scheduler.Stop()
	}

	if d.Reporter != nil {
		if err := d.Reporter.Stop(5 * time.Second); err != nil {
			errs = append(errs, fmt.Errorf("failed to drain telemetry reporter: %w", err))
		}
	}

	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
