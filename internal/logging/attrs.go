package logging

import (
	"context"
	"log/slog"
	"time"
)

// Attr is the attribute type used by every helper in this package.
type Attr = slog.Attr

// Bool returns a boolean attribute.
func Bool(key string, value bool) Attr { return slog.Bool(key, value) }

// Duration returns a duration attribute.
func Duration(key string, value time.Duration) Attr { return slog.Duration(key, value) }

// Float64 returns a float attribute.
func Float64(key string, value float64) Attr { return slog.Float64(key, value) }

// Int returns an integer attribute.
func Int(key string, value int) Attr { return slog.Int(key, value) }

// Int64 returns a 64-bit integer attribute.
func Int64(key string, value int64) Attr { return slog.Int64(key, value) }

// String returns a string attribute.
func String(key string, value string) Attr { return slog.String(key, value) }

// Path tags the file being handled.
func Path(path string) Attr { return slog.String(FieldPath, path) }

// RecordID tags an index record.
func RecordID(id int64) Attr { return slog.Int64(FieldRecordID, id) }

// Device tags a device slug.
func Device(slug string) Attr { return slog.String(FieldDevice, slug) }

// DocType tags a taxonomy doc type.
func DocType(slug string) Attr { return slog.String(FieldDocType, slug) }

// Error returns the standard error attribute; a nil error logs as "<nil>".
func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

// Args converts attrs for the variadic slog APIs such as Logger.With.
func Args(attrs ...Attr) []any {
	args := make([]any, 0, len(attrs))
	for _, attr := range attrs {
		args = append(args, attr)
	}
	return args
}

// NewNop returns a logger that discards everything.
func NewNop() *slog.Logger {
	return slog.New(NoopHandler{})
}

// NewComponentLogger tags logger with a component name; nil yields a no-op base.
func NewComponentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(String(FieldComponent, component))
}

func hasKey(attrs []Attr, key string) bool {
	for _, a := range attrs {
		if a.Key == key {
			return true
		}
	}
	return false
}

func withDefault(attrs []Attr, key, value string) []Attr {
	if hasKey(attrs, key) {
		return attrs
	}
	return append(attrs, String(key, value))
}

// WarnWithContext logs a warning that always carries event_type, error_hint
// and impact. Callers override the defaults by passing their own attrs.
func WarnWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	if logger == nil {
		return
	}
	attrs = withDefault(attrs, FieldEventType, eventType)
	attrs = withDefault(attrs, FieldErrorHint, "see meddoc logs for details")
	attrs = withDefault(attrs, FieldImpact, "document handling continued with warnings")
	logger.LogAttrs(context.Background(), slog.LevelWarn, msg, attrs...)
}

// ErrorWithContext logs an error that always carries event_type and error_hint.
func ErrorWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	if logger == nil {
		return
	}
	attrs = withDefault(attrs, FieldEventType, eventType)
	attrs = withDefault(attrs, FieldErrorHint, "see meddoc logs for details")
	logger.LogAttrs(context.Background(), slog.LevelError, msg, attrs...)
}

// NoopHandler discards all log output.
type NoopHandler struct{}

func (NoopHandler) Enabled(context.Context, slog.Level) bool { return false }

func (NoopHandler) Handle(context.Context, slog.Record) error { return nil }

func (NoopHandler) WithAttrs([]slog.Attr) slog.Handler { return NoopHandler{} }

func (NoopHandler) WithGroup(string) slog.Handler { return NoopHandler{} }
