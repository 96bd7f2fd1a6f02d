package sqlstore

import "strings"

const redactedValue = "[REDACTED]"

// sensitiveKeyTokens marks payload keys whose values never reach a row.
// Matching is substring based so provider-prefixed variants are caught too.
var sensitiveKeyTokens = []string{
	"password",
	"secret",
	"token",
	"authorization",
	"api_key",
	"apikey",
	"access_key",
	"refresh",
	"credential",
	"digest",
	"cookie",
}

// RedactPayload deep-copies a payload with credential-shaped keys masked.
// The outbox and sync tables outlive any one request, so secrets are masked
// before a row is written rather than at read time.
func RedactPayload(payload map[string]any) map[string]any {
	redacted, ok := redact(payload).(map[string]any)
	if !ok || redacted == nil {
		return map[string]any{}
	}
	return redacted
}

// redact walks maps and slices, masking values under sensitive keys and
// copying everything else as-is.
func redact(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		masked := make(map[string]any, len(typed))
		for key, nested := range typed {
			if sensitiveKey(key) {
				masked[key] = redactedValue
				continue
			}
			masked[key] = redact(nested)
		}
		return masked
	case []any:
		masked := make([]any, len(typed))
		for i, nested := range typed {
			masked[i] = redact(nested)
		}
		return masked
	default:
		return value
	}
}

func sensitiveKey(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return false
	}
	for _, token := range sensitiveKeyTokens {
		if strings.Contains(key, token) {
			return true
		}
	}
	return false
}
