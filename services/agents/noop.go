package agents

import (
	"context"

	"github.com/clinisight/agent-orchestrator/models"
	"go.uber.org/zap"
)

// NoopInvoker acknowledges events nothing else handles. Receiving an event
// type we do not understand is not an error: upstream products add webhook
// types without coordination, and failing on them would page on noise.
type NoopInvoker struct {
	logger *zap.Logger
}

// NewNoopInvoker creates the fallback invoker.
func NewNoopInvoker(logger *zap.Logger) *NoopInvoker {
	return &NoopInvoker{logger: logger}
}

func (n *NoopInvoker) Name() string {
	return "noop"
}

// Invoke logs the unhandled event type and reports success with an ignored
// marker so the caller can distinguish handled from acknowledged events.
func (n *NoopInvoker) Invoke(ctx context.Context, tenantID string, event *models.CanonicalEvent) Result {
	n.logger.Info("ignoring unhandled event type",
		zap.String("tenant_id", tenantID),
		zap.String("event_type", event.EventType))

	return Success(n.Name(), map[string]any{
		"agent":     n.Name(),
		"status":    "ignored",
		"eventType": event.EventType,
	})
}
