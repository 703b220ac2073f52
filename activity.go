package auth

import (
	"context"
	"log/slog"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventLoginSuccess   ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure   ActivityEventType = "auth.login.failure"
	ActivityEventSignUp         ActivityEventType = "auth.signup"
	ActivityEventSocialLogin    ActivityEventType = "auth.social.login"
	ActivityEventSocialSignUp   ActivityEventType = "auth.social.signup"
	ActivityEventTokenRefreshed ActivityEventType = "auth.token.refreshed"
	ActivityEventLogout         ActivityEventType = "auth.logout"
	ActivityEventForcedLogout   ActivityEventType = "auth.logout.forced"
	ActivityEventBanRejected    ActivityEventType = "auth.ban.rejected"
)

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	UserID     int64
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

// LogActivitySink writes events to the request logger, or logger when
// the context carries none.
func LogActivitySink(logger Logger) ActivitySink {
	logger = ResolveLogger("auth.activity", logger)
	return ActivitySinkFunc(func(ctx context.Context, event ActivityEvent) error {
		args := []any{"event", string(event.EventType), "user_id", event.UserID}
		for k, v := range event.Metadata {
			args = append(args, k, v)
		}
		if ctx != nil {
			if l, ok := ctx.Value(loggerCtxKey{}).(*slog.Logger); ok {
				l.InfoContext(ctx, "activity", args...)
				return nil
			}
		}
		logger.Info("activity", args...)
		return nil
	})
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}
