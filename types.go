package signup

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// AccountProvisioner creates account records from submitted profile fields.
type AccountProvisioner interface {
	Provision(ctx context.Context, input SubmissionInput) (AccountHandle, error)
}

// SessionCreator exchanges credentials for an authenticated session
type SessionCreator interface {
	CreateSession(ctx context.Context, creds Credentials) (SessionHandle, error)
}

// SessionContext holds the authenticated user for a client and
// re-reads it on demand.
type SessionContext interface {
	CheckAuthUser(ctx context.Context) (bool, error)
	IsLoading() bool
}

// SessionResolver maps a session token to the user that owns it
type SessionResolver interface {
	ResolveSession(ctx context.Context, token string) (*User, error)
}

// CommentStore persists comments on posts
type CommentStore interface {
	SaveComment(ctx context.Context, input CommentInput) (CommentHandle, error)
}

// Notifier displays a message to the user. Fire and forget.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, n Notification)

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, n Notification) {
	if f == nil {
		return
	}
	f(ctx, n)
}

// Navigator redirects the user to a path.
type Navigator interface {
	Navigate(ctx context.Context, path string)
}

// NavigatorFunc adapts a function to the Navigator interface.
type NavigatorFunc func(ctx context.Context, path string)

// Navigate implements Navigator.
func (f NavigatorFunc) Navigate(ctx context.Context, path string) {
	if f == nil {
		return
	}
	f(ctx, path)
}

// Config holds signup options
type Config interface {
	GetSigningKey() string
	GetTokenExpiration() int
	GetIssuer() string
	GetAudience() []string
	GetContextKey() string
	GetClientKey() string
	GetSuccessRedirect() string
	GetStepTimeout() time.Duration
	GetWorkflowTimeout() time.Duration
	GetPasswordCost() int
	GetSubmissionRate() float64
	GetSubmissionBurst() int
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] SIGNUP "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] SIGNUP "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] SIGNUP "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] SIGNUP "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}
