package signup

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// GenericRetryMessage is shown for every failed signup step. The
// message never says which backend call failed.
const GenericRetryMessage = "Sign up failed. Please try again."

// SigninRetryMessage is shown for every failed sign in attempt
const SigninRetryMessage = "Sign in failed. Please try again."

// CommentRetryMessage is shown when a comment could not be saved
const CommentRetryMessage = "post comment failed. Please try again."

const (
	TextCodeAccountCreationFailed = "ACCOUNT_CREATION_FAILED"
	TextCodeSessionCreationFailed = "SESSION_CREATION_FAILED"
	TextCodeVerificationFailed    = "SESSION_VERIFICATION_FAILED"
	TextCodeWorkflowCancelled     = "WORKFLOW_CANCELLED"
	TextCodeEmptyHandle           = "EMPTY_HANDLE"
	TextCodeDuplicateAccount      = "DUPLICATE_ACCOUNT"
	TextCodeInvalidCredentials    = "INVALID_CREDENTIALS"
	TextCodeSessionRevoked        = "SESSION_REVOKED"
	TextCodeNotAuthenticated      = "NOT_AUTHENTICATED"
	TextCodeRateLimited           = "SUBMISSION_RATE_LIMITED"
	TextCodeEmptyPassword         = "EMPTY_PASSWORD"
	TextCodeTokenExpired          = "TOKEN_EXPIRED"
	TextCodeTokenMalformed        = "TOKEN_MALFORMED"
	TextCodeUserNotActive         = "USER_NOT_ACTIVE"
)

// ErrAccountCreationFailed the provisioning backend returned no account
var ErrAccountCreationFailed = goerrors.New("account creation failed", goerrors.CategoryOperation).
	WithTextCode(TextCodeAccountCreationFailed).
	WithCode(http.StatusUnprocessableEntity)

// ErrSessionCreationFailed the credential exchange returned no session.
// The account created before it is left in place.
var ErrSessionCreationFailed = goerrors.New("session creation failed", goerrors.CategoryAuth).
	WithTextCode(TextCodeSessionCreationFailed).
	WithCode(goerrors.CodeUnauthorized)

// ErrVerificationFailed the session exists but the refresh reports
// no authenticated user
var ErrVerificationFailed = goerrors.New("session verification failed", goerrors.CategoryAuth).
	WithTextCode(TextCodeVerificationFailed).
	WithCode(goerrors.CodeUnauthorized)

// ErrWorkflowCancelled the caller went away before the chain settled
var ErrWorkflowCancelled = goerrors.New("workflow cancelled", goerrors.CategoryOperation).
	WithTextCode(TextCodeWorkflowCancelled)

// ErrEmptyHandle a service reported success without a handle
var ErrEmptyHandle = goerrors.New("service returned an empty handle", goerrors.CategoryInternal).
	WithTextCode(TextCodeEmptyHandle).
	WithCode(goerrors.CodeInternal)

// ErrDuplicateAccount email or username already taken
var ErrDuplicateAccount = goerrors.New("account already exists", goerrors.CategoryConflict).
	WithTextCode(TextCodeDuplicateAccount).
	WithCode(goerrors.CodeConflict)

// ErrInvalidCredentials unknown email or password mismatch
var ErrInvalidCredentials = goerrors.New("invalid credentials", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrSessionRevoked the session row is missing, expired or revoked
var ErrSessionRevoked = goerrors.New("session revoked or expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeSessionRevoked).
	WithCode(goerrors.CodeUnauthorized)

// ErrNotAuthenticated the session context has no user
var ErrNotAuthenticated = goerrors.New("not authenticated", goerrors.CategoryAuth).
	WithTextCode(TextCodeNotAuthenticated).
	WithCode(goerrors.CodeUnauthorized)

// ErrRateLimited too many submissions from the same client
var ErrRateLimited = goerrors.New("too many submissions", goerrors.CategoryRateLimit).
	WithTextCode(TextCodeRateLimited).
	WithCode(http.StatusTooManyRequests)

// ErrNoEmptyString password must not be empty
var ErrNoEmptyString = goerrors.New("password must not be empty", goerrors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(goerrors.CodeBadRequest)

// ErrTokenExpired session token past its expiration
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed session token could not be parsed
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

// ErrMismatchedHashAndPassword the password does not match the stored hash
var ErrMismatchedHashAndPassword = errors.New("password does not match hash")

// ErrUserNotActive the account exists but cannot log in
var ErrUserNotActive = goerrors.New("user is not active", goerrors.CategoryAuth).
	WithTextCode(TextCodeUserNotActive).
	WithCode(goerrors.CodeForbidden)

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTokenExpired) {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// textCode returns the text code of a rich error, or "" for plain errors
func textCode(err error) string {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode
	}
	return ""
}
