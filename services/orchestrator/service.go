package orchestrator

import (
	"context"

	"github.com/clinisight/agent-orchestrator/models"
	"github.com/clinisight/agent-orchestrator/services"
	"github.com/clinisight/agent-orchestrator/services/agents"
	"github.com/clinisight/agent-orchestrator/telemetry"
	"github.com/clinisight/agent-orchestrator/utils"
	"go.uber.org/zap"
)

// Service is the single-shot event pipeline: normalize, validate tenant,
// route, invoke, report. One inbound event produces exactly one invocation
// and one response; there is no queueing or fan-out here.
type Service struct {
	registry      *agents.Registry
	reporter      telemetry.Reporter
	defaultTenant string
	logger        *zap.Logger
}

// NewService creates the orchestrator pipeline.
func NewService(registry *agents.Registry, reporter telemetry.Reporter, defaultTenant string, logger *zap.Logger) *Service {
	return &Service{
		registry:      registry,
		reporter:      reporter,
		defaultTenant: defaultTenant,
		logger:        logger,
	}
}

// Process runs the pipeline for one raw inbound event. Validation problems
// and business-rule rejections come back as domain errors or rejected bodies;
// a hard agent failure is reported to telemetry and surfaced as an internal
// error carrying no agent detail.
func (s *Service) Process(ctx context.Context, raw []byte) (map[string]any, error) {
	event, err := Normalize(raw, s.defaultTenant)
	if err != nil {
		return nil, err
	}
	return s.ProcessEvent(ctx, event)
}

// ProcessRaw runs the pipeline from a decoded but unnormalized raw event.
func (s *Service) ProcessRaw(ctx context.Context, raw *models.RawEvent) (map[string]any, error) {
	event, err := NormalizeEvent(raw, s.defaultTenant)
	if err != nil {
		return nil, err
	}
	return s.ProcessEvent(ctx, event)
}

// ProcessEvent runs the pipeline from an already-normalized event. The
// scheduler uses this entry point directly; HTTP traffic goes through Process.
func (s *Service) ProcessEvent(ctx context.Context, event *models.CanonicalEvent) (map[string]any, error) {
	if !utils.ValidateTenantID(event.TenantID) {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "invalid or missing tenantId", nil).
			WithDetail("provided", event.TenantID)
	}

	log := s.logger.With(
		zap.String("tenant_id", event.TenantID),
		zap.String("event_type", event.EventType),
		zap.String("source", string(event.Source)))
	log.Info("orchestrator invoked")

	invoker := s.registry.Resolve(event.EventType)
	result := invoker.Invoke(ctx, event.TenantID, event)

	switch result.Status {
	case agents.StatusSuccess:
		log.Info("orchestrator completed", zap.String("agent", result.AgentName))
		return result.Body, nil

	case agents.StatusSoftFailure:
		// A rejection is a valid outcome, not an operational error. It is
		// visible to the caller and is never reported to telemetry.
		log.Info("agent rejected event",
			zap.String("agent", result.AgentName),
			zap.Any("reason", result.Body["reason"]))
		return result.Body, nil

	default:
		log.Error("agent invocation failed",
			zap.String("agent", result.AgentName),
			zap.Error(result.Err))

		// The error kind rides along as a tag so an audit write failure is
		// distinguishable from ordinary storage breakage at the collector.
		kind := services.GetErrorType(result.Err)
		if kind == "" {
			kind = services.ErrorTypeInternal
		}
		s.reporter.Capture(telemetry.NewReport(
			"agent invocation failed", event.TenantID, event.EventType, result.AgentName).
			WithErrorKind(string(kind)))

		if services.GetErrorType(result.Err) != "" {
			return nil, result.Err
		}
		return nil, services.WrapInternal("agent invocation failed", result.Err)
	}
}
