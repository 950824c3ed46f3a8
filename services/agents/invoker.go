package agents

import (
	"context"
	"time"

	"github.com/clinisight/agent-orchestrator/models"
	"go.uber.org/zap"
)

// Status classifies an invocation outcome. SoftFailure is a deliberate
// business-rule rejection and is not an operational error; HardFailure is an
// unexpected breakage that should page someone.
type Status string

const (
	StatusSuccess     Status = "success"
	StatusSoftFailure Status = "rejected"
	StatusHardFailure Status = "error"
)

// Result is the outcome of one agent invocation. Body carries the
// caller-visible response; Err is set only on hard failures and never reaches
// response bodies.
type Result struct {
	AgentName string
	Status    Status
	Body      map[string]any
	Err       error
}

// Success builds a successful result.
func Success(agentName string, body map[string]any) Result {
	return Result{AgentName: agentName, Status: StatusSuccess, Body: body}
}

// SoftFailure builds a business-rule rejection. The reason is caller-visible.
func SoftFailure(agentName, reason string) Result {
	return Result{
		AgentName: agentName,
		Status:    StatusSoftFailure,
		Body: map[string]any{
			"agent":  agentName,
			"status": string(StatusSoftFailure),
			"reason": reason,
		},
	}
}

// HardFailure builds an unexpected-breakage result. The error is kept for
// logging and telemetry; callers expose only a generic message.
func HardFailure(agentName string, err error) Result {
	return Result{AgentName: agentName, Status: StatusHardFailure, Err: err}
}

// Invoker is one agent's entry point. Implementations must be safe for
// concurrent invocations across tenants and must express all failures through
// the Result rather than panicking.
type Invoker interface {
	Name() string
	Invoke(ctx context.Context, tenantID string, event *models.CanonicalEvent) Result
}

// StateStore is the audited persistence surface agents depend on.
type StateStore interface {
	Put(ctx context.Context, tenantID, agentName string, payload any, userID, reason string) (*models.AgentState, error)
	Get(ctx context.Context, tenantID, agentName, userID, reason string) (*models.AgentState, error)
	ListByTenant(ctx context.Context, tenantID, userID, reason string) ([]*models.AgentState, error)
}

// AuditQuerier exposes the audit trail query used by compliance sweeps.
type AuditQuerier interface {
	Query(ctx context.Context, tenantID string, start, end time.Time) ([]*models.AuditEntry, error)
}

// Registry maps event types to invokers. The mapping is fixed at startup;
// unknown event types resolve to a default invoker that acknowledges and
// ignores the event instead of failing the pipeline.
type Registry struct {
	invokers map[string]Invoker
	fallback Invoker
	logger   *zap.Logger
}

// NewRegistry creates a registry with the no-op fallback installed.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		invokers: make(map[string]Invoker),
		fallback: NewNoopInvoker(logger),
		logger:   logger,
	}
}

// Register binds an event type to an invoker. Later registrations for the
// same event type win; registration happens only during startup wiring.
func (r *Registry) Register(eventType string, invoker Invoker) {
	r.invokers[eventType] = invoker
}

// Resolve returns the invoker for an event type, falling back to the default
// no-op invoker for types nothing has claimed.
func (r *Registry) Resolve(eventType string) Invoker {
	if invoker, ok := r.invokers[eventType]; ok {
		return invoker
	}
	r.logger.Warn("no invoker registered for event type, using fallback",
		zap.String("event_type", eventType))
	return r.fallback
}

// EventTypes returns the registered event types, for startup logging.
func (r *Registry) EventTypes() []string {
	types := make([]string, 0, len(r.invokers))
	for t := range r.invokers {
		types = append(types, t)
	}
	return types
}
