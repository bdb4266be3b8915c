package core

import (
	"context"
	"sort"
	"strings"
)

const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// LogWithFields writes message at level, attaching fields through
// FieldsLogger when the logger supports it and as key/value args otherwise.
// Fields pass through RedactSensitiveMap first.
func LogWithFields(ctx context.Context, logger Logger, level string, message string, fields map[string]any) {
	if logger == nil {
		return
	}
	fields = RedactSensitiveMap(fields)
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if fieldsLogger, ok := logger.(FieldsLogger); ok {
		logger = fieldsLogger.WithFields(fields)
	}
	args := FlattenFields(fields)
	switch strings.ToLower(strings.TrimSpace(level)) {
	case LevelError:
		logger.Error(message, args...)
	case LevelWarn:
		logger.Warn(message, args...)
	case LevelDebug:
		logger.Debug(message, args...)
	default:
		logger.Info(message, args...)
	}
}

// FlattenFields returns key/value pairs sorted by key.
func FlattenFields(fields map[string]any) []any {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	args := make([]any, 0, len(keys)*2)
	for _, key := range keys {
		args = append(args, key, fields[key])
	}
	return args
}
