package core

import (
	"strconv"
	"strings"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

type RiskLevel string

const (
	RiskLevelNone     RiskLevel = "none"
	RiskLevelLow      RiskLevel = "low"
	RiskLevelMedium   RiskLevel = "medium"
	RiskLevelHigh     RiskLevel = "high"
	RiskLevelCritical RiskLevel = "critical"
)

func (l RiskLevel) Rank() int {
	switch l {
	case RiskLevelNone:
		return 0
	case RiskLevelLow:
		return 1
	case RiskLevelMedium:
		return 2
	case RiskLevelHigh:
		return 3
	case RiskLevelCritical:
		return 4
	default:
		return -1
	}
}

// AtLeast reports whether l is as severe as other. Unknown levels never
// compare as severe.
func (l RiskLevel) AtLeast(other RiskLevel) bool {
	rank := l.Rank()
	return rank >= 0 && rank >= other.Rank()
}

type Message struct {
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp,omitempty"`
}

// ValidateConversation enforces that exactly one of messages or text is
// present.
func ValidateConversation(messages []Message, text string) error {
	hasMessages := len(messages) > 0
	hasText := strings.TrimSpace(text) != ""
	switch {
	case hasMessages && hasText:
		return NewValidationError("provide either messages or text, not both")
	case !hasMessages && !hasText:
		return NewValidationError("either messages or text is required")
	}
	for i, message := range messages {
		if strings.TrimSpace(string(message.Role)) == "" {
			return NewValidationError("messages[" + strconv.Itoa(i) + "].role is required")
		}
		if strings.TrimSpace(message.Content) == "" {
			return NewValidationError("messages[" + strconv.Itoa(i) + "].content is required")
		}
	}
	return nil
}

type EvaluateRequest struct {
	Messages       []Message      `json:"messages,omitempty"`
	Text           string         `json:"text,omitempty"`
	ConversationID string         `json:"conversation_id,omitempty"`
	UserID         string         `json:"user_id,omitempty"`
	Domains        []string       `json:"domains,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

func (r EvaluateRequest) Validate() error {
	return ValidateConversation(r.Messages, r.Text)
}

type ScreenRequest struct {
	Messages  []Message      `json:"messages,omitempty"`
	Text      string         `json:"text,omitempty"`
	Threshold RiskLevel      `json:"threshold,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func (r ScreenRequest) Validate() error {
	if err := ValidateConversation(r.Messages, r.Text); err != nil {
		return err
	}
	if r.Threshold != "" && r.Threshold.Rank() < 0 {
		return NewValidationError("unknown threshold " + string(r.Threshold))
	}
	return nil
}

type RiskSummary struct {
	Level      RiskLevel `json:"level"`
	Score      float64   `json:"score"`
	Confidence float64   `json:"confidence,omitempty"`
	Summary    string    `json:"summary,omitempty"`
}

type DomainAssessment struct {
	Domain    string    `json:"domain"`
	Level     RiskLevel `json:"level"`
	Score     float64   `json:"score"`
	Signals   []string  `json:"signals,omitempty"`
	Rationale string    `json:"rationale,omitempty"`
}

type Flag struct {
	Code        string    `json:"code"`
	Severity    RiskLevel `json:"severity"`
	Description string    `json:"description,omitempty"`
}

type ResourceRef struct {
	Name    string `json:"name"`
	Type    string `json:"type,omitempty"`
	URL     string `json:"url,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Region  string `json:"region,omitempty"`
	Details string `json:"details,omitempty"`
}

type EvaluateResponse struct {
	ID             string             `json:"id"`
	ConversationID string             `json:"conversation_id,omitempty"`
	Risk           RiskSummary        `json:"risk"`
	Domains        []DomainAssessment `json:"domains,omitempty"`
	Flags          []Flag             `json:"flags,omitempty"`
	Resources      []ResourceRef      `json:"resources,omitempty"`
	Action         string             `json:"recommended_action,omitempty"`
	APIVersion     string             `json:"api_version,omitempty"`
	CreatedAt      string             `json:"created_at,omitempty"`
}

type ScreenResponse struct {
	ID         string    `json:"id"`
	Flagged    bool      `json:"flagged"`
	Level      RiskLevel `json:"level"`
	Score      float64   `json:"score"`
	Domains    []string  `json:"domains,omitempty"`
	APIVersion string    `json:"api_version,omitempty"`
}
