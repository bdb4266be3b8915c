package core

import (
	"context"
	"testing"
)

func TestRedactSensitiveMapPreservesTraceabilityMetadata(t *testing.T) {
	redacted := RedactSensitiveMap(map[string]any{
		"trace_id":        "trace_1",
		"conversation_id": "conv_1",
		"api_key":         "sk_live_1",
		"authorization":   "Bearer sk_live_1",
		"text":            "I don't want to be here anymore",
		"nested":          map[string]any{"webhook_secret": "whsec", "event_id": "evt_nested"},
		"messages":        []any{map[string]any{"content": "hi"}},
		"headers":         map[string]string{"X-Tripline-Signature": "sha256=abc", "Content-Type": "application/json"},
	})

	if redacted["trace_id"] != "trace_1" || redacted["conversation_id"] != "conv_1" {
		t.Fatalf("expected trace identifiers to remain visible, got %#v", redacted)
	}
	for _, key := range []string{"api_key", "authorization", "text", "messages"} {
		if redacted[key] != RedactedValue {
			t.Fatalf("expected %s to be redacted, got %#v", key, redacted[key])
		}
	}
	nested, ok := redacted["nested"].(map[string]any)
	if !ok {
		t.Fatalf("expected nested redacted map")
	}
	if nested["webhook_secret"] != RedactedValue || nested["event_id"] != "evt_nested" {
		t.Fatalf("unexpected nested redaction: %#v", nested)
	}
	headers, ok := redacted["headers"].(map[string]any)
	if !ok {
		t.Fatalf("expected header map to be converted, got %T", redacted["headers"])
	}
	if headers["X-Tripline-Signature"] != RedactedValue || headers["Content-Type"] != "application/json" {
		t.Fatalf("unexpected header redaction: %#v", headers)
	}
}

func TestShouldRedactKeyMatchesWholeSegments(t *testing.T) {
	redacted := []string{
		"X-Tripline-Signature",
		"webhookSecret",
		"APIKey",
		"access_token",
		"request.body",
		"message_text",
	}
	for _, key := range redacted {
		if !shouldRedactKey(key) {
			t.Fatalf("expected %q to be redacted", key)
		}
	}
	visible := []string{
		"Content-Type",
		"content_type",
		"context",
		"request_context",
		"tokenizer",
		"Event-ID",
		"textual_score",
	}
	for _, key := range visible {
		if shouldRedactKey(key) {
			t.Fatalf("expected %q to stay visible", key)
		}
	}
}

func TestLogWithFieldsRedactsBeforeWriting(t *testing.T) {
	logger := newCaptureLogger()
	LogWithFields(context.Background(), logger, LevelWarn, "request failed", map[string]any{
		"operation": "evaluate",
		"api_key":   "sk_live_2",
	})

	records := logger.snapshot()
	if len(records) != 1 {
		t.Fatalf("expected one record, got %d", len(records))
	}
	if records[0].fields["api_key"] != RedactedValue || records[0].fields["operation"] != "evaluate" {
		t.Fatalf("expected api key to be redacted, got %#v", records[0].fields)
	}
}
