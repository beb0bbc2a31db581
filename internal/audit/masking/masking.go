package masking

import "strings"

const maskToken = "****"

// sensitiveKeys are metadata keys whose values never land in the audit
// trail in the clear. Invitation tokens are credentials until accepted.
var sensitiveKeys = map[string]struct{}{
	"token":         {},
	"password":      {},
	"secret":        {},
	"session_token": {},
}

// MaskSecret redacts a secret while keeping a minimal suffix so operators
// can correlate entries against the real value.
func MaskSecret(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	if len(trimmed) <= 4 {
		return maskToken
	}
	return maskToken + trimmed[len(trimmed)-4:]
}

// Scrub returns a copy of the metadata with sensitive values redacted.
// Nested maps are scrubbed recursively.
func Scrub(input map[string]any) map[string]any {
	if len(input) == 0 {
		return nil
	}

	out := make(map[string]any, len(input))
	for key, value := range input {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" {
			continue
		}
		out[trimmedKey] = scrubValue(trimmedKey, value)
	}
	return out
}

func scrubValue(key string, value any) any {
	if nested, ok := value.(map[string]any); ok {
		return Scrub(nested)
	}
	if _, sensitive := sensitiveKeys[strings.ToLower(key)]; !sensitive {
		return value
	}
	if s, ok := value.(string); ok {
		return MaskSecret(s)
	}
	return maskToken
}
