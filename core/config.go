package core

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultServiceName            = "tripline"
	DefaultBaseURL                = "https://api.tripline.net"
	DefaultTimeoutMS              = 30000
	DefaultWebhookMaxAgeSeconds   = 300
	DefaultWebhookSignatureHeader = "X-Tripline-Signature"
	DefaultWebhookTimestampHeader = "X-Tripline-Timestamp"
	DefaultUserAgent              = "go-tripline"
	DefaultMaxResponseBodyBytes   = int64(10 << 20)
)

type WebhookConfig struct {
	Secret          string `koanf:"secret" mapstructure:"secret"`
	SignatureHeader string `koanf:"signature_header" mapstructure:"signature_header"`
	TimestampHeader string `koanf:"timestamp_header" mapstructure:"timestamp_header"`
	// MaxAgeSeconds bounds timestamp skew in both directions. Nil means the
	// default window; zero disables freshness checks and permits replay.
	MaxAgeSeconds *int `koanf:"max_age_seconds" mapstructure:"max_age_seconds"`
}

type Config struct {
	ServiceName string        `koanf:"service_name" mapstructure:"service_name"`
	BaseURL     string        `koanf:"base_url" mapstructure:"base_url"`
	APIKey      string        `koanf:"api_key" mapstructure:"api_key"`
	TimeoutMS   int           `koanf:"timeout_ms" mapstructure:"timeout_ms"`
	UserAgent   string        `koanf:"user_agent" mapstructure:"user_agent"`
	Webhook     WebhookConfig `koanf:"webhook" mapstructure:"webhook"`
}

func DefaultConfig() Config {
	maxAge := DefaultWebhookMaxAgeSeconds
	return Config{
		ServiceName: DefaultServiceName,
		BaseURL:     DefaultBaseURL,
		TimeoutMS:   DefaultTimeoutMS,
		UserAgent:   DefaultUserAgent,
		Webhook: WebhookConfig{
			SignatureHeader: DefaultWebhookSignatureHeader,
			TimestampHeader: DefaultWebhookTimestampHeader,
			MaxAgeSeconds:   &maxAge,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	base := strings.TrimSpace(c.BaseURL)
	if base == "" {
		return fmt.Errorf("core: base_url is required")
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return fmt.Errorf("core: invalid base_url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("core: base_url must use http or https, got %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("core: base_url host is required")
	}
	if c.TimeoutMS < 0 {
		return fmt.Errorf("core: timeout_ms must not be negative")
	}
	if c.Webhook.MaxAgeSeconds != nil && *c.Webhook.MaxAgeSeconds < 0 {
		return fmt.Errorf("core: webhook.max_age_seconds must not be negative")
	}
	return nil
}

// Timeout returns the per-request timeout, falling back to the default when
// unset.
func (c Config) Timeout() time.Duration {
	if c.TimeoutMS <= 0 {
		return time.Duration(DefaultTimeoutMS) * time.Millisecond
	}
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

func (c Config) Endpoint(path string) string {
	return strings.TrimRight(strings.TrimSpace(c.BaseURL), "/") + "/" + strings.TrimLeft(path, "/")
}

func (w WebhookConfig) MaxAge() int {
	if w.MaxAgeSeconds == nil {
		return DefaultWebhookMaxAgeSeconds
	}
	return *w.MaxAgeSeconds
}

func (w WebhookConfig) SignatureHeaderName() string {
	if name := strings.TrimSpace(w.SignatureHeader); name != "" {
		return name
	}
	return DefaultWebhookSignatureHeader
}

func (w WebhookConfig) TimestampHeaderName() string {
	if name := strings.TrimSpace(w.TimestampHeader); name != "" {
		return name
	}
	return DefaultWebhookTimestampHeader
}

// IntPtr is a small helper for optional integer config fields.
func IntPtr(value int) *int {
	return &value
}
