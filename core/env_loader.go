package core

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const DefaultEnvPrefix = "TRIPLINE_"

// EnvConfigLoader reads TRIPLINE_* variables into the raw map consumed by
// CfgxConfigProvider. Files listed in DotEnvFiles are loaded first with
// godotenv and never override variables already present in the environment.
type EnvConfigLoader struct {
	Prefix      string
	DotEnvFiles []string
	// Lookup replaces os.LookupEnv, mostly for tests.
	Lookup func(key string) (string, bool)
}

func NewEnvConfigLoader(files ...string) *EnvConfigLoader {
	return &EnvConfigLoader{
		Prefix:      DefaultEnvPrefix,
		DotEnvFiles: append([]string(nil), files...),
	}
}

func (l *EnvConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if l == nil {
		return map[string]any{}, nil
	}
	if len(l.DotEnvFiles) > 0 {
		existing := make([]string, 0, len(l.DotEnvFiles))
		for _, file := range l.DotEnvFiles {
			if _, err := os.Stat(file); err == nil {
				existing = append(existing, file)
			}
		}
		if len(existing) > 0 {
			if err := godotenv.Load(existing...); err != nil {
				return nil, fmt.Errorf("core: load dotenv: %w", err)
			}
		}
	}

	prefix := l.Prefix
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}
	lookup := l.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(name string) (string, bool) {
		value, ok := lookup(prefix + name)
		if !ok {
			return "", false
		}
		value = strings.TrimSpace(value)
		return value, value != ""
	}

	raw := map[string]any{}
	for key, name := range map[string]string{
		"service_name": "SERVICE_NAME",
		"base_url":     "BASE_URL",
		"api_key":      "API_KEY",
		"user_agent":   "USER_AGENT",
	} {
		if value, ok := get(name); ok {
			raw[key] = value
		}
	}
	if value, ok := get("TIMEOUT_MS"); ok {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("core: invalid %sTIMEOUT_MS %q: %w", prefix, value, err)
		}
		raw["timeout_ms"] = parsed
	}

	webhook := map[string]any{}
	for key, name := range map[string]string{
		"secret":           "WEBHOOK_SECRET",
		"signature_header": "WEBHOOK_SIGNATURE_HEADER",
		"timestamp_header": "WEBHOOK_TIMESTAMP_HEADER",
	} {
		if value, ok := get(name); ok {
			webhook[key] = value
		}
	}
	if value, ok := get("WEBHOOK_MAX_AGE_SECONDS"); ok {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("core: invalid %sWEBHOOK_MAX_AGE_SECONDS %q: %w", prefix, value, err)
		}
		webhook["max_age_seconds"] = parsed
	}
	if len(webhook) > 0 {
		raw["webhook"] = webhook
	}
	return raw, nil
}
