package logger

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// instanceID tells replicas apart in aggregated logs.
var instanceID = resolveInstanceID()

func resolveInstanceID() string {
	for _, key := range []string{"INSTANCE_ID", "HOSTNAME"} {
		if id := os.Getenv(key); id != "" {
			return id
		}
	}
	b := make([]byte, 4)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// GetInstanceID reports the id added to every log line.
func GetInstanceID() string {
	return instanceID
}

// Config selects the level and handler of a Logger.
// Format "json" writes one JSON object per line; anything else uses tint.
type Config struct {
	Level  slog.Level
	Format string
}

type contextKey string

// Context keys copied onto log lines by WithContext.
const (
	ContextKeyRequestID contextKey = "request_id"
	ContextKeyUserID    contextKey = "user_id"
	ContextKeyEventID   contextKey = "event_id"
	ContextKeyOperation contextKey = "operation"
)

// contextFields is the order in which context values appear on a line.
var contextFields = []contextKey{
	ContextKeyRequestID,
	ContextKeyUserID,
	ContextKeyEventID,
	ContextKeyOperation,
}

// Logger is the service-wide structured logger.
type Logger struct {
	*slog.Logger
}

// New builds a Logger writing to stdout. Every line carries instance_id.
func New(config Config) *Logger {
	handler := newHandler(os.Stdout, config)
	return &Logger{
		Logger: slog.New(handler).With(slog.String("instance_id", instanceID)),
	}
}

func newHandler(w io.Writer, config Config) slog.Handler {
	if config.Format == "json" {
		return slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:       config.Level,
			AddSource:   true,
			ReplaceAttr: rfc3339Time,
		})
	}

	return tint.NewHandler(w, &tint.Options{
		Level:      config.Level,
		AddSource:  true,
		TimeFormat: time.Kitchen,
	})
}

func rfc3339Time(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.TimeKey {
		return a
	}
	return slog.String(a.Key, a.Value.Time().Format(time.RFC3339))
}

// FromConfig maps LOG_LEVEL and LOG_FORMAT to a Config.
// Unknown levels mean info; APP_ENV=production forces JSON.
func FromConfig(logLevel, logFormat string) Config {
	config := Config{
		Level:  slog.LevelInfo,
		Format: "text",
	}

	switch logLevel {
	case "debug":
		config.Level = slog.LevelDebug
	case "warn":
		config.Level = slog.LevelWarn
	case "error":
		config.Level = slog.LevelError
	}

	if logFormat != "" {
		config.Format = logFormat
	}

	if os.Getenv("APP_ENV") == "production" {
		config.Format = "json"
	}

	return config
}

// WithContext returns a logger carrying the non-empty context fields of ctx.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	var attrs []any
	for _, key := range contextFields {
		if value, ok := ctx.Value(key).(string); ok && value != "" {
			attrs = append(attrs, slog.String(string(key), value))
		}
	}

	if len(attrs) == 0 {
		return l
	}
	return &Logger{Logger: l.With(attrs...)}
}

// WithComponent tags lines with the emitting component.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("component", component)),
	}
}

// LogError writes msg at error level with err and the context fields of ctx.
func (l *Logger) LogError(ctx context.Context, err error, msg string, args ...interface{}) {
	l.WithContext(ctx).Error(msg, append([]interface{}{"error", err}, args...)...)
}
