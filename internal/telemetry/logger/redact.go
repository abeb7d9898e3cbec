// Package logger provides structured logging for the drawhub server.
package logger

import (
	"log/slog"
	"strings"
)

// Sensitive key patterns that should be redacted. Invite secrets and
// thumbnail correlators are capability tokens: anyone holding them can
// join a session or spoof a thumbnail response.
var sensitiveKeyPatterns = []string{
	"password",
	"secret",
	"token",
	"credential",
	"auth",
	"bearer",
	"correlator",
	"encryption_key",
}

// redactedValue is the placeholder for redacted sensitive data.
const redactedValue = "***REDACTED***"

// redactSensitive checks if an attribute contains sensitive data and
// redacts it if necessary.
func redactSensitive(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindString {
		strVal := a.Value.String()
		keyLower := strings.ToLower(a.Key)
		for _, pattern := range sensitiveKeyPatterns {
			if strings.Contains(keyLower, pattern) {
				if strVal != "" {
					return slog.String(a.Key, MaskValue(strVal))
				}
				break
			}
		}
	}

	// Handle nested groups recursively
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		newAttrs := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			newAttrs[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(newAttrs...)}
	}

	return a
}

// MaskValue partially masks a sensitive value, keeping enough of it to
// correlate log lines: the first 3 characters followed by "...". Values
// too short to mask safely are fully redacted.
func MaskValue(value string) string {
	if len(value) <= 6 {
		return redactedValue
	}
	return value[:3] + "..."
}

// IsSensitiveKey checks if a key name suggests sensitive content.
func IsSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(keyLower, pattern) {
			return true
		}
	}
	return false
}
