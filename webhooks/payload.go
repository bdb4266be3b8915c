package webhooks

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/goliatone/go-tripline/core"
)

type EventType string

const (
	EventRiskElevated EventType = "risk.elevated"
	EventRiskCritical EventType = "risk.critical"
	EventTestPing     EventType = "test.ping"
)

func (e EventType) Known() bool {
	switch e {
	case EventRiskElevated, EventRiskCritical, EventTestPing:
		return true
	default:
		return false
	}
}

// Payload is a verified webhook body. Timestamp is the producer's ISO-8601
// event time and is unrelated to the signing timestamp header.
//
// Only the envelope fields are decoded. Risk, Domains, Flags and Resources
// hold the producer's JSON untouched; use the Decode methods to read them
// into the SDK types when their shape is known.
type Payload struct {
	Event          EventType       `json:"event"`
	EventID        string          `json:"event_id"`
	Timestamp      string          `json:"timestamp"`
	APIVersion     string          `json:"api_version"`
	ConversationID string          `json:"conversation_id,omitempty"`
	Risk           json.RawMessage `json:"risk,omitempty"`
	Domains        json.RawMessage `json:"domains,omitempty"`
	Flags          json.RawMessage `json:"flags,omitempty"`
	Resources      json.RawMessage `json:"resources,omitempty"`
	// Raw holds the exact verified bytes.
	Raw json.RawMessage `json:"-"`
}

// envelope mirrors Payload with conversation_id left raw, since producers
// are free to send it as a number.
type envelope struct {
	Event          EventType       `json:"event"`
	EventID        string          `json:"event_id"`
	Timestamp      string          `json:"timestamp"`
	APIVersion     string          `json:"api_version"`
	ConversationID json.RawMessage `json:"conversation_id"`
	Risk           json.RawMessage `json:"risk"`
	Domains        json.RawMessage `json:"domains"`
	Flags          json.RawMessage `json:"flags"`
	Resources      json.RawMessage `json:"resources"`
}

// ParsePayload decodes a webhook body. It fails only when body is not a JSON
// object or an envelope field has the wrong type.
func ParsePayload(body []byte) (Payload, error) {
	var env envelope
	decoder := json.NewDecoder(bytes.NewReader(body))
	if err := decoder.Decode(&env); err != nil {
		return Payload{}, err
	}
	payload := Payload{
		Event:          env.Event,
		EventID:        env.EventID,
		Timestamp:      env.Timestamp,
		APIVersion:     env.APIVersion,
		ConversationID: rawIdentifier(env.ConversationID),
		Risk:           presentRaw(env.Risk),
		Domains:        presentRaw(env.Domains),
		Flags:          presentRaw(env.Flags),
		Resources:      presentRaw(env.Resources),
		Raw:            append(json.RawMessage(nil), body...),
	}
	return payload, nil
}

func decodePayload(body []byte) (Payload, error) {
	payload, err := ParsePayload(body)
	if err != nil {
		return Payload{}, core.NewSignatureRejection(ReasonInvalidPayload, fmt.Sprintf("authentic webhook body could not be decoded: %v", err))
	}
	return payload, nil
}

// DecodeRisk reads Risk as a core.RiskSummary. It returns nil when the
// payload carries no risk.
func (p Payload) DecodeRisk() (*core.RiskSummary, error) {
	if len(p.Risk) == 0 {
		return nil, nil
	}
	var summary core.RiskSummary
	if err := json.Unmarshal(p.Risk, &summary); err != nil {
		return nil, fmt.Errorf("webhooks: decode risk: %w", err)
	}
	return &summary, nil
}

func (p Payload) DecodeDomains() ([]core.DomainAssessment, error) {
	if len(p.Domains) == 0 {
		return nil, nil
	}
	var domains []core.DomainAssessment
	if err := json.Unmarshal(p.Domains, &domains); err != nil {
		return nil, fmt.Errorf("webhooks: decode domains: %w", err)
	}
	return domains, nil
}

func (p Payload) DecodeFlags() ([]core.Flag, error) {
	if len(p.Flags) == 0 {
		return nil, nil
	}
	var flags []core.Flag
	if err := json.Unmarshal(p.Flags, &flags); err != nil {
		return nil, fmt.Errorf("webhooks: decode flags: %w", err)
	}
	return flags, nil
}

func (p Payload) DecodeResources() ([]core.ResourceRef, error) {
	if len(p.Resources) == 0 {
		return nil, nil
	}
	var resources []core.ResourceRef
	if err := json.Unmarshal(p.Resources, &resources); err != nil {
		return nil, fmt.Errorf("webhooks: decode resources: %w", err)
	}
	return resources, nil
}

// RiskLevel returns risk.level when Risk is an object carrying a string
// level, and "" otherwise. It never fails.
func (p Payload) RiskLevel() core.RiskLevel {
	if len(p.Risk) == 0 {
		return ""
	}
	var summary struct {
		Level json.RawMessage `json:"level"`
	}
	if err := json.Unmarshal(p.Risk, &summary); err != nil {
		return ""
	}
	return core.RiskLevel(rawIdentifier(summary.Level))
}

func presentRaw(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}
	return append(json.RawMessage(nil), raw...)
}

// rawIdentifier renders a JSON string or number as text.
func rawIdentifier(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	var number json.Number
	if err := json.Unmarshal(raw, &number); err == nil {
		return strings.TrimSpace(number.String())
	}
	return ""
}
