package pii

import (
	"sort"
	"strings"
)

// sensitiveFields are field-name fragments whose values must never be logged
// or persisted in full, regardless of content. Covers personal, healthcare,
// and credential identifiers.
var sensitiveFields = []string{
	// Personal identifiers
	"name", "email", "phone", "address", "street", "city", "zip", "postal",
	"ssn", "social_security", "tax_id",
	"dob", "date_of_birth", "birthdate",

	// Healthcare identifiers
	"patient", "medical_record", "mrn",
	"diagnosis", "condition", "treatment", "medication",
	"prescription", "procedure", "test_result",

	// Authentication material
	"password", "token", "api_key", "secret", "credential",
	"auth", "authorization",
}

// SanitizeMap returns a copy of the map with values of sensitive fields
// replaced by the redaction marker. Nested maps and slices of maps are
// sanitized recursively; the input is not modified.
func SanitizeMap(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	sanitized := make(map[string]any, len(data))
	for key, value := range data {
		if isSensitiveField(key) {
			sanitized[key] = redactionMarker
			continue
		}
		switch v := value.(type) {
		case map[string]any:
			sanitized[key] = SanitizeMap(v)
		case []any:
			items := make([]any, len(v))
			for i, item := range v {
				if m, ok := item.(map[string]any); ok {
					items[i] = SanitizeMap(m)
				} else {
					items[i] = item
				}
			}
			sanitized[key] = items
		default:
			sanitized[key] = value
		}
	}
	return sanitized
}

// FieldWarnings reports the paths of fields in the map whose names suggest
// they carry sensitive content. An empty result means the map is safe to
// persist. Use before writing payloads to the state store.
func FieldWarnings(data map[string]any) []string {
	var warnings []string
	collectFieldWarnings(data, "", &warnings)
	sort.Strings(warnings)
	return warnings
}

func collectFieldWarnings(data map[string]any, path string, warnings *[]string) {
	for key, value := range data {
		current := key
		if path != "" {
			current = path + "." + key
		}
		if isSensitiveField(key) {
			*warnings = append(*warnings, current)
		}
		switch v := value.(type) {
		case map[string]any:
			collectFieldWarnings(v, current, warnings)
		case []any:
			for _, item := range v {
				if m, ok := item.(map[string]any); ok {
					collectFieldWarnings(m, current, warnings)
				}
			}
		}
	}
}

func isSensitiveField(key string) bool {
	lower := strings.ToLower(key)
	for _, fragment := range sensitiveFields {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	return false
}
