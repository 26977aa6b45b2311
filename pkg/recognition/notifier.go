package recognition

import (
	"context"
	"log/slog"

	"github.com/livescribe/livescribe/pkg/events"
)

// Notification levels.
const (
	LevelInfo  = "info"
	LevelError = "error"
)

// Notifier delivers user-facing messages.
type Notifier interface {
	Notify(ctx context.Context, level, message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, level, message string)

func (f NotifierFunc) Notify(ctx context.Context, level, message string) {
	f(ctx, level, message)
}

// EventNotifier publishes notifications as events for a session.
type EventNotifier struct {
	Publisher *events.Publisher
	SessionID string
}

func (n EventNotifier) Notify(ctx context.Context, level, message string) {
	if n.Publisher == nil {
		return
	}
	if err := n.Publisher.Emit(ctx, events.Notification, n.SessionID, events.NotificationData{
		Level:   level,
		Message: message,
	}); err != nil {
		slog.WarnContext(ctx, "notification not published", slog.String("error", err.Error()))
	}
}
