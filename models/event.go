package models

import "encoding/json"

// EventSource identifies where a raw inbound event came from. Source
// detection runs before any body parsing: GET requests carry no body, and
// classifying first is what keeps the GET path from ever touching one.
type EventSource string

const (
	SourceGatewayPost EventSource = "api_gateway_post"
	SourceGatewayGet  EventSource = "api_gateway_get"
	SourceSchedule    EventSource = "schedule"
	SourceDirect      EventSource = "direct"
)

// Well-known event types routed by the orchestrator.
const (
	EventEpicCreated     = "EPIC_CREATED"
	EventJiraEpicCreated = "JIRA_EPIC_CREATED"
	EventScheduledCheck  = "SCHEDULED_CHECK"
	EventCareTrackCheck  = "CARETRACK_CHECK"
	EventInsights        = "ROVO_INSIGHTS"
	EventUnknown         = "UNKNOWN"
)

// RawEvent is the wire shape of an inbound event before normalization. The
// populated fields depend on the source:
//   - API gateway: HTTPMethod, Headers, Path, QueryStringParameters, Body
//   - scheduled trigger: Source, DetailType, EventType, TenantID, Data
//   - direct invocation: EventType, TenantID, Data
type RawEvent struct {
	// API gateway shape
	HTTPMethod            string            `json:"httpMethod,omitempty"`
	Path                  string            `json:"path,omitempty"`
	Headers               map[string]string `json:"headers,omitempty"`
	QueryStringParameters map[string]string `json:"queryStringParameters,omitempty"`
	Body                  string            `json:"body,omitempty"`

	// Scheduled trigger shape
	Source     string `json:"source,omitempty"`
	DetailType string `json:"detail-type,omitempty"`

	// Shared payload fields (scheduled and direct)
	EventType string          `json:"eventType,omitempty"`
	TenantID  string          `json:"tenantId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// CanonicalEvent is the normalized internal representation the orchestrator
// builds from a RawEvent. Constructed once per inbound event, consumed
// immediately by routing, never persisted.
type CanonicalEvent struct {
	Source     EventSource    `json:"source"`
	TenantID   string         `json:"tenantId"`
	EventType  string         `json:"eventType"`
	Data       map[string]any `json:"data"`
	HTTPMethod string         `json:"httpMethod,omitempty"`
	Path       string         `json:"path,omitempty"`
}

// DataString returns a string field from the event payload, or empty.
func (e *CanonicalEvent) DataString(key string) string {
	if e.Data == nil {
		return ""
	}
	if v, ok := e.Data[key].(string); ok {
		return v
	}
	return ""
}
