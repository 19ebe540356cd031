// Package notify defines the event surface consumed by external
// notification transports. The core only emits events; delivery (ntfy,
// Slack, email) lives outside this module.
package notify

import (
	"context"

	"github.com/kebairia/backman/internal/logger"
)

// Severity of a notification event.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Event is one operator-facing notification.
type Event struct {
	Title    string
	Message  string
	Severity Severity
}

// Notifier delivers events. Implementations must not block the backup
// pipeline on delivery failures.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// logNotifier writes events to the structured log. It is the default
// Notifier when no external transport is wired in.
type logNotifier struct {
	log logger.Logger
}

// NewLogNotifier returns a Notifier backed by log.
func NewLogNotifier(log logger.Logger) Notifier {
	return &logNotifier{log: log}
}

func (n *logNotifier) Notify(_ context.Context, ev Event) error {
	switch ev.Severity {
	case SeverityError:
		n.log.Error(ev.Title, "message", ev.Message)
	case SeverityWarning:
		n.log.Warn(ev.Title, "message", ev.Message)
	default:
		n.log.Info(ev.Title, "message", ev.Message)
	}
	return nil
}
