package core

import (
	"strings"
	"unicode"
)

const RedactedValue = "[REDACTED]"

// RedactSensitiveMap masks credentials and conversation content in log
// fields. Identifiers used for tracing stay visible.
func RedactSensitiveMap(metadata map[string]any) map[string]any {
	if len(metadata) == 0 {
		return map[string]any{}
	}
	return redactSensitiveMap(metadata)
}

func redactSensitiveMap(source map[string]any) map[string]any {
	target := make(map[string]any, len(source))
	for key, value := range source {
		if shouldRedactKey(key) {
			target[key] = RedactedValue
			continue
		}
		target[key] = redactSensitiveValue(value)
	}
	return target
}

func redactSensitiveValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return redactSensitiveMap(typed)
	case map[string]string:
		out := make(map[string]any, len(typed))
		for key, item := range typed {
			out[key] = item
		}
		return redactSensitiveMap(out)
	case []any:
		out := make([]any, len(typed))
		for i := range typed {
			out[i] = redactSensitiveValue(typed[i])
		}
		return out
	default:
		return value
	}
}

var sensitiveKeyTokens = []string{
	"password",
	"secret",
	"token",
	"authorization",
	"api_key",
	"apikey",
	"signature",
	"content",
	"messages",
	"text",
	"payload",
	"body",
}

// shouldRedactKey matches tokens against whole key segments, so
// "X-Tripline-Signature" and "webhookSecret" are redacted while "context"
// is not.
func shouldRedactKey(key string) bool {
	normalized := normalizeKey(key)
	if normalized == "" || isTraceabilityKey(normalized) {
		return false
	}
	padded := "_" + normalized + "_"
	for _, token := range sensitiveKeyTokens {
		if strings.Contains(padded, "_"+token+"_") {
			return true
		}
	}
	return false
}

// normalizeKey lowercases key and joins its segments with "_". Hyphens, dots,
// spaces and camelCase boundaries all start a new segment.
func normalizeKey(key string) string {
	key = strings.TrimSpace(key)
	var b strings.Builder
	b.Grow(len(key) + 4)
	var prev rune
	for i, r := range key {
		out := r
		switch {
		case r == '-' || r == '.' || r == ' ':
			out = '_'
		case unicode.IsUpper(r):
			if i > 0 && (unicode.IsLower(prev) || unicode.IsDigit(prev)) {
				b.WriteByte('_')
			}
			out = unicode.ToLower(r)
		}
		b.WriteRune(out)
		prev = r
	}
	return strings.Trim(b.String(), "_")
}

func isTraceabilityKey(key string) bool {
	switch key {
	case "event_id",
		"conversation_id",
		"idempotency_key",
		"trace_id",
		"request_id",
		"content_type":
		return true
	default:
		return false
	}
}
