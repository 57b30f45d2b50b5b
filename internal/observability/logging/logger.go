package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/kirillkom/catalog-image-sync/internal/core/ports"
)

const redacted = "[REDACTED]"

var sensitiveKeys = map[string]struct{}{
	"password":       {},
	"pass":           {},
	"token":          {},
	"secret":         {},
	"authorization":  {},
	"dsn":            {},
	"host":           {},
	"ftp_host":       {},
	"ftp_password":   {},
	"sync_api_token": {},
	"x-sync-token":   {},
}

func NewJSONLogger(service, level string) *slog.Logger {
	return New(os.Stdout, service, level, nil)
}

// New builds the service logger. When bus is set every record is also published on the
// log topic with sensitive attributes redacted.
func New(w io.Writer, service, level string, bus ports.EventPublisher) *slog.Logger {
	var handler slog.Handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       parseLevel(level),
		ReplaceAttr: redactAttr,
	})
	if bus != nil {
		handler = newBroadcastHandler(handler, bus)
	}
	return slog.New(handler).With("service", service)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func isSensitive(key string) bool {
	_, ok := sensitiveKeys[strings.ToLower(key)]
	return ok
}

func redactAttr(_ []string, a slog.Attr) slog.Attr {
	if isSensitive(a.Key) {
		return slog.String(a.Key, redacted)
	}
	return a
}
