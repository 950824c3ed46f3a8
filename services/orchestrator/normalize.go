package orchestrator

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/clinisight/agent-orchestrator/models"
	"github.com/clinisight/agent-orchestrator/services"
	"github.com/clinisight/agent-orchestrator/utils"
)

// webhookBody is the JSON body of an API gateway POST.
type webhookBody struct {
	EventType string          `json:"eventType" validate:"required"`
	TenantID  string          `json:"tenantId" validate:"required,tenantid"`
	Data      json.RawMessage `json:"data"`
}

// Normalize turns a raw inbound event into the canonical form. The source is
// classified from the event's shape before any body is parsed: GET requests
// have no body, and deciding the source first is what guarantees the GET path
// never attempts to read one.
//
// defaultTenant is the sentinel used for GET requests that carry no tenantId
// query parameter.
func Normalize(raw []byte, defaultTenant string) (*models.CanonicalEvent, error) {
	payload, err := unwrapStringEncoding(raw)
	if err != nil {
		return nil, err
	}

	var event models.RawEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "malformed event body", err)
	}

	return NormalizeEvent(&event, defaultTenant)
}

// NormalizeEvent normalizes an already-decoded raw event. HTTP handlers build
// the RawEvent from the request directly and enter here.
func NormalizeEvent(event *models.RawEvent, defaultTenant string) (*models.CanonicalEvent, error) {
	switch detectSource(event) {
	case models.SourceGatewayGet:
		return normalizeGatewayGet(event, defaultTenant), nil
	case models.SourceGatewayPost:
		return normalizeGatewayPost(event)
	case models.SourceSchedule:
		return normalizeFields(event, models.SourceSchedule)
	default:
		return normalizeFields(event, models.SourceDirect)
	}
}

// unwrapStringEncoding handles events delivered as a JSON-encoded string (the
// double-encoding some CLI and queue producers emit).
func unwrapStringEncoding(raw []byte) ([]byte, error) {
	trimmed := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(trimmed, `"`) {
		return raw, nil
	}
	var inner string
	if err := json.Unmarshal(raw, &inner); err != nil {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "malformed event body", err)
	}
	return []byte(inner), nil
}

// detectSource classifies the event by shape alone.
func detectSource(event *models.RawEvent) models.EventSource {
	if event.HTTPMethod != "" && event.Headers != nil {
		if strings.EqualFold(event.HTTPMethod, http.MethodGet) {
			return models.SourceGatewayGet
		}
		return models.SourceGatewayPost
	}
	if event.Source != "" && event.DetailType != "" {
		return models.SourceSchedule
	}
	return models.SourceDirect
}

// normalizeGatewayGet builds the canonical event for a bodyless GET. The
// tenant comes from the query string, falling back to the sentinel; the event
// type comes from the request path. Nothing here can fail: a GET with no
// parameters at all is a valid dashboard request for the sentinel tenant.
func normalizeGatewayGet(event *models.RawEvent, defaultTenant string) *models.CanonicalEvent {
	tenantID := event.QueryStringParameters["tenantId"]
	if tenantID == "" {
		tenantID = defaultTenant
	}

	eventType := models.EventUnknown
	if strings.Contains(event.Path, "insights") {
		eventType = models.EventInsights
	}

	return &models.CanonicalEvent{
		Source:     models.SourceGatewayGet,
		TenantID:   tenantID,
		EventType:  eventType,
		Data:       map[string]any{},
		HTTPMethod: event.HTTPMethod,
		Path:       event.Path,
	}
}

func normalizeGatewayPost(event *models.RawEvent) (*models.CanonicalEvent, error) {
	var body webhookBody
	if err := json.Unmarshal([]byte(event.Body), &body); err != nil {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "malformed event body", err)
	}
	if err := utils.ValidateStruct(body); err != nil {
		fields := utils.GetValidationFields(err)
		if _, bad := fields["TenantID"]; bad {
			return nil, services.ErrInvalidTenant
		}
		if _, missing := fields["EventType"]; missing {
			return nil, services.ErrMissingEventType
		}
		return nil, services.NewDomainError(services.ErrorTypeValidation, "invalid event body", err)
	}

	data, err := decodeData(body.Data)
	if err != nil {
		return nil, err
	}

	return &models.CanonicalEvent{
		Source:     models.SourceGatewayPost,
		TenantID:   body.TenantID,
		EventType:  body.EventType,
		Data:       data,
		HTTPMethod: event.HTTPMethod,
		Path:       event.Path,
	}, nil
}

// normalizeFields handles the scheduled and direct shapes, which carry the
// canonical fields at the top level.
func normalizeFields(event *models.RawEvent, source models.EventSource) (*models.CanonicalEvent, error) {
	eventType := event.EventType
	if eventType == "" {
		eventType = event.DetailType
	}
	if eventType == "" {
		return nil, services.ErrMissingEventType
	}
	if event.TenantID == "" {
		return nil, services.ErrInvalidTenant
	}

	data, err := decodeData(event.Data)
	if err != nil {
		return nil, err
	}

	return &models.CanonicalEvent{
		Source:    source,
		TenantID:  event.TenantID,
		EventType: eventType,
		Data:      data,
	}, nil
}

func decodeData(raw json.RawMessage) (map[string]any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "malformed event data", err)
	}
	if data == nil {
		data = map[string]any{}
	}
	return data, nil
}
