package signup

import (
	"time"

	"github.com/google/uuid"
)

// Outcome is the single terminal state of one workflow instance
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeAccountCreationFailed
	OutcomeSessionCreationFailed
	OutcomeVerificationFailed
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeAccountCreationFailed:
		return "account_creation_failed"
	case OutcomeSessionCreationFailed:
		return "session_creation_failed"
	case OutcomeVerificationFailed:
		return "verification_failed"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Err returns the sentinel error for a failed outcome, nil on success
func (o Outcome) Err() error {
	switch o {
	case OutcomeSuccess:
		return nil
	case OutcomeAccountCreationFailed:
		return ErrAccountCreationFailed
	case OutcomeSessionCreationFailed:
		return ErrSessionCreationFailed
	case OutcomeVerificationFailed:
		return ErrVerificationFailed
	default:
		return ErrWorkflowCancelled
	}
}

// AccountHandle identifies a provisioned account. The zero value means
// no account was created.
type AccountHandle struct {
	ID       uuid.UUID
	Username string
}

func (h AccountHandle) IsZero() bool {
	return h.ID == uuid.Nil
}

// SessionHandle identifies an authenticated session.
type SessionHandle struct {
	ID        uuid.UUID
	Token     string
	ExpiresAt time.Time
}

func (h SessionHandle) IsZero() bool {
	return h.Token == ""
}

// CommentHandle identifies a saved comment
type CommentHandle struct {
	ID uuid.UUID
}

func (h CommentHandle) IsZero() bool {
	return h.ID == uuid.Nil
}

// Handle is any value that can be absent
type Handle interface {
	IsZero() bool
}

// Result is the tagged outcome of a single service call. Exactly one
// of Value or Err is meaningful.
type Result[T any] struct {
	Value T
	Err   error
}

// Ok wraps a successful value
func Ok[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

// Fail wraps an error, a nil err becomes ErrEmptyHandle
func Fail[T any](err error) Result[T] {
	if err == nil {
		err = ErrEmptyHandle
	}
	return Result[T]{Err: err}
}

// OK reports whether the call produced a value
func (r Result[T]) OK() bool {
	return r.Err == nil
}

// Collect folds a (handle, error) pair into a Result. Returned errors and
// empty handles take the same failure path.
func Collect[T Handle](v T, err error) Result[T] {
	if err != nil {
		return Fail[T](err)
	}
	if v.IsZero() {
		return Fail[T](ErrEmptyHandle)
	}
	return Ok(v)
}

// Check folds a session check into a Result
func Check(authenticated bool, err error) Result[bool] {
	if err != nil {
		return Fail[bool](err)
	}
	if !authenticated {
		return Fail[bool](ErrNotAuthenticated)
	}
	return Ok(true)
}
