package logging

import "strings"

// sensitiveKeys are attribute key fragments whose values are never printed.
var sensitiveKeys = []string{"password", "secret", "token", "dsn"}

// ShouldMask reports whether an attribute with the given key must be masked.
func ShouldMask(key string) bool {
	k := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(k, s) {
			return true
		}
	}
	return false
}

// MaskValue hides all but the last four characters of v.
func MaskValue(v string) string {
	if len(v) <= 4 {
		return "****"
	}
	return "****" + v[len(v)-4:]
}
