package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the kind of action being audited
type AuditAction string

const (
	AuditActionCreate AuditAction = "CREATE"
	AuditActionRead   AuditAction = "READ"
	AuditActionUpdate AuditAction = "UPDATE"
	AuditActionDelete AuditAction = "DELETE"
	AuditActionAccess AuditAction = "ACCESS"
)

// SystemUser is the sentinel acting-user id for operations not attributable
// to a human caller.
const SystemUser = "system"

// AuditEntry is an immutable record of one access or mutation to a tracked
// resource. Once written it is never mutated or deleted except by expiry.
type AuditEntry struct {
	TenantID     string          `json:"tenantId" db:"tenant_id"`
	EntryKey     string          `json:"entryKey" db:"entry_key"` // timestamp#suffix, unique per tenant
	AgentName    string          `json:"agentName" db:"agent_name"`
	UserID       string          `json:"userId" db:"user_id"`
	Action       AuditAction     `json:"action" db:"action"`
	ResourceType string          `json:"resourceType" db:"resource_type"`
	ResourceKeys []string        `json:"resourceKeys" db:"resource_keys"`
	Reason       string          `json:"reason" db:"reason"`
	Metadata     json.RawMessage `json:"metadata,omitempty" db:"metadata"`
	Timestamp    time.Time       `json:"timestamp" db:"timestamp"`
	ExpiresAt    time.Time       `json:"expiresAt" db:"expires_at"`
}

// TableName returns the table name for the AuditEntry model
func (AuditEntry) TableName() string {
	return "audit_entries"
}

// NewAuditEntry creates an entry with its composite ordering key populated.
// The key is the nanosecond timestamp followed by a random suffix, so two
// entries written in the same instant still sort deterministically and never
// collide.
func NewAuditEntry(tenantID, agentName, userID string, action AuditAction, resourceType string, resourceKeys []string, reason string) *AuditEntry {
	now := time.Now().UTC()
	if userID == "" {
		userID = SystemUser
	}
	return &AuditEntry{
		TenantID:     tenantID,
		EntryKey:     fmt.Sprintf("%s#%s", now.Format(time.RFC3339Nano), uuid.NewString()),
		AgentName:    agentName,
		UserID:       userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceKeys: resourceKeys,
		Reason:       reason,
		Timestamp:    now,
	}
}

// WithMetadata attaches auxiliary metadata to the entry.
func (e *AuditEntry) WithMetadata(metadata map[string]any) *AuditEntry {
	if data, err := json.Marshal(metadata); err == nil {
		e.Metadata = data
	}
	return e
}

// WithExpiry stamps the retention-horizon expiry onto the entry.
func (e *AuditEntry) WithExpiry(horizon time.Duration) *AuditEntry {
	e.ExpiresAt = e.Timestamp.Add(horizon)
	return e
}
