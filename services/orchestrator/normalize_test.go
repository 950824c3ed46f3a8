package orchestrator

import (
	"testing"

	"github.com/clinisight/agent-orchestrator/models"
	"github.com/clinisight/agent-orchestrator/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sentinelTenant = "demo-tenant"

func TestNormalize_GatewayPost(t *testing.T) {
	raw := []byte(`{
		"httpMethod": "POST",
		"path": "/webhook",
		"headers": {"Content-Type": "application/json"},
		"body": "{\"eventType\":\"EPIC_CREATED\",\"tenantId\":\"acme-health\",\"data\":{\"epicKey\":\"HC-100\"}}"
	}`)

	event, err := Normalize(raw, sentinelTenant)
	require.NoError(t, err)
	assert.Equal(t, models.SourceGatewayPost, event.Source)
	assert.Equal(t, "acme-health", event.TenantID)
	assert.Equal(t, models.EventEpicCreated, event.EventType)
	assert.Equal(t, "HC-100", event.Data["epicKey"])
}

func TestNormalize_GatewayGetWithoutTenantUsesSentinel(t *testing.T) {
	// GET carries no body at all. Classification must happen before any body
	// parsing, so the absence of one is never an error.
	raw := []byte(`{
		"httpMethod": "GET",
		"path": "/insights",
		"headers": {"Accept": "application/json"}
	}`)

	event, err := Normalize(raw, sentinelTenant)
	require.NoError(t, err)
	assert.Equal(t, models.SourceGatewayGet, event.Source)
	assert.Equal(t, sentinelTenant, event.TenantID)
	assert.Equal(t, models.EventInsights, event.EventType)
}

func TestNormalize_GatewayGetIgnoresBody(t *testing.T) {
	// Some gateways attach a stale or garbage body to GET requests. The GET
	// path must classify by shape and never attempt to parse it.
	raw := []byte(`{
		"httpMethod": "GET",
		"path": "/insights",
		"headers": {"Accept": "application/json"},
		"queryStringParameters": {"tenantId": "acme-health"},
		"body": "this is not json at all"
	}`)

	event, err := Normalize(raw, sentinelTenant)
	require.NoError(t, err)
	assert.Equal(t, "acme-health", event.TenantID)
	assert.Equal(t, models.EventInsights, event.EventType)
}

func TestNormalize_GatewayGetUnknownPath(t *testing.T) {
	raw := []byte(`{
		"httpMethod": "GET",
		"path": "/something-else",
		"headers": {}
	}`)

	// Headers must be present (even empty) for gateway classification; an
	// empty map still marshals as non-nil.
	event, err := Normalize(raw, sentinelTenant)
	require.NoError(t, err)
	assert.Equal(t, models.EventUnknown, event.EventType)
}

func TestNormalize_ScheduledTrigger(t *testing.T) {
	raw := []byte(`{
		"source": "scheduler",
		"detail-type": "SCHEDULED_CHECK",
		"tenantId": "acme-health",
		"data": {}
	}`)

	event, err := Normalize(raw, sentinelTenant)
	require.NoError(t, err)
	assert.Equal(t, models.SourceSchedule, event.Source)
	assert.Equal(t, models.EventScheduledCheck, event.EventType)
	assert.Equal(t, "acme-health", event.TenantID)
}

func TestNormalize_ScheduledTriggerPrefersExplicitEventType(t *testing.T) {
	raw := []byte(`{
		"source": "scheduler",
		"detail-type": "Scheduled Event",
		"eventType": "CARETRACK_CHECK",
		"tenantId": "acme-health"
	}`)

	event, err := Normalize(raw, sentinelTenant)
	require.NoError(t, err)
	assert.Equal(t, models.EventCareTrackCheck, event.EventType)
}

func TestNormalize_DirectInvocation(t *testing.T) {
	raw := []byte(`{
		"eventType": "ROVO_INSIGHTS",
		"tenantId": "acme-health",
		"data": {"requestedBy": "dashboard"}
	}`)

	event, err := Normalize(raw, sentinelTenant)
	require.NoError(t, err)
	assert.Equal(t, models.SourceDirect, event.Source)
	assert.Equal(t, models.EventInsights, event.EventType)
	assert.Equal(t, "dashboard", event.Data["requestedBy"])
}

func TestNormalize_DoubleEncodedEvent(t *testing.T) {
	raw := []byte(`"{\"eventType\":\"EPIC_CREATED\",\"tenantId\":\"acme-health\",\"data\":{}}"`)

	event, err := Normalize(raw, sentinelTenant)
	require.NoError(t, err)
	assert.Equal(t, models.SourceDirect, event.Source)
	assert.Equal(t, "acme-health", event.TenantID)
}

func TestNormalize_PostMissingTenantIsValidationError(t *testing.T) {
	raw := []byte(`{
		"httpMethod": "POST",
		"path": "/webhook",
		"headers": {},
		"body": "{\"eventType\":\"EPIC_CREATED\",\"data\":{}}"
	}`)

	_, err := Normalize(raw, sentinelTenant)
	require.Error(t, err)
	assert.True(t, services.IsValidationError(err))
}

func TestNormalize_PostMissingEventTypeIsValidationError(t *testing.T) {
	raw := []byte(`{
		"httpMethod": "POST",
		"path": "/webhook",
		"headers": {},
		"body": "{\"tenantId\":\"acme-health\",\"data\":{}}"
	}`)

	_, err := Normalize(raw, sentinelTenant)
	require.Error(t, err)
	assert.True(t, services.IsValidationError(err))
}

func TestNormalize_PostMalformedTenantIsValidationError(t *testing.T) {
	// The body parses fine; the tenant fails the structural rule.
	raw := []byte(`{
		"httpMethod": "POST",
		"path": "/webhook",
		"headers": {},
		"body": "{\"eventType\":\"EPIC_CREATED\",\"tenantId\":\"Acme Health\",\"data\":{}}"
	}`)

	_, err := Normalize(raw, sentinelTenant)
	require.Error(t, err)
	assert.True(t, services.IsValidationError(err))
	assert.ErrorIs(t, err, services.ErrInvalidTenant)
}

func TestNormalize_PostMalformedBodyIsValidationError(t *testing.T) {
	raw := []byte(`{
		"httpMethod": "POST",
		"path": "/webhook",
		"headers": {},
		"body": "{not valid json"
	}`)

	_, err := Normalize(raw, sentinelTenant)
	require.Error(t, err)
	assert.True(t, services.IsValidationError(err))
}

func TestNormalize_MalformedEnvelopeIsValidationError(t *testing.T) {
	_, err := Normalize([]byte(`{broken`), sentinelTenant)
	require.Error(t, err)
	assert.True(t, services.IsValidationError(err))

	_, err = Normalize([]byte(`"also {broken"`), sentinelTenant)
	require.Error(t, err)
	assert.True(t, services.IsValidationError(err))
}

func TestNormalize_DirectMissingEventType(t *testing.T) {
	raw := []byte(`{"tenantId":"acme-health","data":{}}`)

	_, err := Normalize(raw, sentinelTenant)
	require.Error(t, err)
	assert.True(t, services.IsValidationError(err))
}
