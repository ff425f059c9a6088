package config

import "strings"

const redactedValue = "***"

var sensitiveKeyFragments = []string{"password", "secret", "token", "access_key_id"}

// RedactSettings returns a copy of settings with sensitive values masked. A value
// is sensitive when its key looks like a credential or when it was read from the
// secrets file.
func RedactSettings(settings, secrets map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(settings))
	for key, value := range settings {
		var mask interface{}
		if secrets != nil {
			mask = secrets[key]
		}
		out[key] = redactValue(key, value, mask)
	}
	return out
}

func redactValue(key string, value, mask interface{}) interface{} {
	if nested, ok := value.(map[string]interface{}); ok {
		nestedMask, _ := mask.(map[string]interface{})
		return RedactSettings(nested, nestedMask)
	}
	if mask != nil || isSensitiveKey(key) {
		if s, ok := value.(string); ok && s == "" {
			return value
		}
		return redactedValue
	}
	return value
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, fragment := range sensitiveKeyFragments {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	return false
}
