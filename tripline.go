// Package tripline is a Go client for the Tripline risk-classification API.
// It calls the evaluate and screen endpoints and verifies the HMAC-signed
// webhooks Tripline delivers when a conversation's risk changes.
package tripline

import (
	"github.com/goliatone/go-tripline/core"
	"github.com/goliatone/go-tripline/webhooks"
)

type Config = core.Config

type WebhookConfig = core.WebhookConfig

type Logger = core.Logger

type LoggerProvider = core.LoggerProvider

type MetricsRecorder = core.MetricsRecorder

type Message = core.Message
type Role = core.Role
type RiskLevel = core.RiskLevel

type EvaluateRequest = core.EvaluateRequest
type EvaluateResponse = core.EvaluateResponse
type ScreenRequest = core.ScreenRequest
type ScreenResponse = core.ScreenResponse

type RiskSummary = core.RiskSummary
type DomainAssessment = core.DomainAssessment
type Flag = core.Flag
type ResourceRef = core.ResourceRef

type ErrorKind = core.ErrorKind

type WebhookPayload = webhooks.Payload

const (
	RoleUser      = core.RoleUser
	RoleAssistant = core.RoleAssistant
	RoleSystem    = core.RoleSystem

	RiskLevelNone     = core.RiskLevelNone
	RiskLevelLow      = core.RiskLevelLow
	RiskLevelMedium   = core.RiskLevelMedium
	RiskLevelHigh     = core.RiskLevelHigh
	RiskLevelCritical = core.RiskLevelCritical

	ErrorKindValidation        = core.ErrorKindValidation
	ErrorKindAuthentication    = core.ErrorKindAuthentication
	ErrorKindRequestValidation = core.ErrorKindRequestValidation
	ErrorKindRateLimit         = core.ErrorKindRateLimit
	ErrorKindServer            = core.ErrorKindServer
	ErrorKindConnection        = core.ErrorKindConnection
	ErrorKindAPI               = core.ErrorKindAPI
	ErrorKindSignature         = core.ErrorKindSignature
)

var (
	KindOf     = core.KindOf
	IsKind     = core.IsKind
	RetryAfter = core.RetryAfter
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

// VerifyWebhook authenticates a raw webhook body. See webhooks.Verify.
func VerifyWebhook(payload []byte, signature string, timestamp string, secret string, opts ...webhooks.VerifyOption) (WebhookPayload, error) {
	return webhooks.Verify(payload, signature, timestamp, secret, opts...)
}

// SignWebhook produces producer headers for payload. See webhooks.Sign.
func SignWebhook(payload []byte, secret string, opts ...webhooks.SignOption) (webhooks.SignedPayload, error) {
	return webhooks.Sign(payload, secret, opts...)
}
