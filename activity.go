package signup

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventSignupSucceeded   ActivityEventType = "signup.workflow.succeeded"
	ActivityEventSignupFailed      ActivityEventType = "signup.workflow.failed"
	ActivityEventSigninSucceeded   ActivityEventType = "signin.workflow.succeeded"
	ActivityEventSigninFailed      ActivityEventType = "signin.workflow.failed"
	ActivityEventCommentPosted     ActivityEventType = "comment.posted"
	ActivityEventCommentFailed     ActivityEventType = "comment.failed"
	ActivityEventLoginSuccess      ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure      ActivityEventType = "auth.login.failure"
	ActivityEventSubmissionLimited ActivityEventType = "submission.rate_limited"
)

// ActivityEvent captures audit-friendly information about an action.
// Causes that are hidden from the user end up in Metadata.
type ActivityEvent struct {
	EventType  ActivityEventType
	UserID     string
	Outcome    string
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

// LogActivitySink writes events to a Logger
type LogActivitySink struct {
	Logger Logger
}

// Record implements ActivitySink.
func (s LogActivitySink) Record(_ context.Context, event ActivityEvent) error {
	logger := normalizeLogger(s.Logger)
	logger.Info("activity %s user=%s outcome=%s metadata=%v", event.EventType, event.UserID, event.Outcome, event.Metadata)
	return nil
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
