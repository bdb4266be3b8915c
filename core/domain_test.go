package core

import (
	"strings"
	"testing"
)

func TestValidateConversation_RequiresExactlyOneInput(t *testing.T) {
	messages := []Message{{Role: RoleUser, Content: "hello"}}

	if err := ValidateConversation(nil, ""); !IsKind(err, ErrorKindValidation) {
		t.Fatalf("expected validation error for empty input, got %v", err)
	}
	if err := ValidateConversation(messages, "hello"); !IsKind(err, ErrorKindValidation) {
		t.Fatalf("expected validation error for both inputs, got %v", err)
	}
	if err := ValidateConversation(messages, ""); err != nil {
		t.Fatalf("expected messages only to pass: %v", err)
	}
	if err := ValidateConversation(nil, "hello"); err != nil {
		t.Fatalf("expected text only to pass: %v", err)
	}
	if err := ValidateConversation(nil, "   "); !IsKind(err, ErrorKindValidation) {
		t.Fatalf("expected blank text to count as absent, got %v", err)
	}
}

func TestValidateConversation_RejectsIncompleteMessages(t *testing.T) {
	err := ValidateConversation([]Message{{Role: RoleUser, Content: "ok"}, {Role: RoleAssistant}}, "")
	if !IsKind(err, ErrorKindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "messages[1].content") {
		t.Fatalf("expected indexed message, got %q", err.Error())
	}
}

func TestScreenRequest_RejectsUnknownThreshold(t *testing.T) {
	req := ScreenRequest{Text: "hi", Threshold: RiskLevel("extreme")}
	if err := req.Validate(); !IsKind(err, ErrorKindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	req.Threshold = RiskLevelHigh
	if err := req.Validate(); err != nil {
		t.Fatalf("expected known threshold to pass: %v", err)
	}
}

func TestRiskLevel_AtLeast(t *testing.T) {
	if !RiskLevelCritical.AtLeast(RiskLevelHigh) {
		t.Fatalf("expected critical >= high")
	}
	if RiskLevelLow.AtLeast(RiskLevelMedium) {
		t.Fatalf("expected low < medium")
	}
	if RiskLevel("bogus").AtLeast(RiskLevelNone) {
		t.Fatalf("expected unknown level to never compare as severe")
	}
}
