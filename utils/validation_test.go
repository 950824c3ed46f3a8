package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTenantID(t *testing.T) {
	tests := []struct {
		name     string
		tenantID string
		valid    bool
	}{
		{"simple tenant", "acme-health", true},
		{"numeric tenant", "tenant-123", true},
		{"minimum length", "abc", true},
		{"maximum length", strings.Repeat("a", 50), true},
		{"empty", "", false},
		{"too short", "ab", false},
		{"too long", strings.Repeat("a", 51), false},
		{"uppercase rejected", "Acme-Health", false},
		{"underscore rejected", "acme_health", false},
		{"spaces rejected", "acme health", false},
		{"path traversal rejected", "../etc/passwd", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, ValidateTenantID(tt.tenantID))
		})
	}
}

func TestValidateStruct_TenantIDRule(t *testing.T) {
	type request struct {
		TenantID string `validate:"required,tenantid"`
	}

	assert.NoError(t, ValidateStruct(request{TenantID: "acme-health"}))

	err := ValidateStruct(request{TenantID: "BAD TENANT"})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	fields := GetValidationFields(err)
	assert.Contains(t, fields["TenantID"], "lowercase")
}

func TestValidateStruct_RequiredRule(t *testing.T) {
	type request struct {
		EventType string `validate:"required"`
	}

	err := ValidateStruct(request{})
	require.Error(t, err)
	fields := GetValidationFields(err)
	assert.Equal(t, "EventType is required", fields["EventType"])
}
