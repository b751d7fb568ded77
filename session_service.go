package signup

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

var (
	_ SessionCreator  = (*SessionService)(nil)
	_ SessionResolver = (*SessionService)(nil)
)

// SessionService exchanges credentials for signed session tokens and
// resolves those tokens back to users.
type SessionService struct {
	repo     RepositoryManager
	tokens   TokenService
	logger   Logger
	activity ActivitySink
	now      func() time.Time
}

// SessionServiceOption configures a SessionService
type SessionServiceOption func(*SessionService)

// WithSessionLogger sets the logger
func WithSessionLogger(logger Logger) SessionServiceOption {
	return func(s *SessionService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSessionActivitySink records login events
func WithSessionActivitySink(sink ActivitySink) SessionServiceOption {
	return func(s *SessionService) {
		s.activity = normalizeActivitySink(sink)
	}
}

// WithSessionClock overrides time.Now
func WithSessionClock(now func() time.Time) SessionServiceOption {
	return func(s *SessionService) {
		if now != nil {
			s.now = now
		}
	}
}

func NewSessionService(repo RepositoryManager, tokens TokenService, opts ...SessionServiceOption) *SessionService {
	s := &SessionService{
		repo:     repo,
		tokens:   tokens,
		logger:   defLogger{},
		activity: noopActivitySink{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSession implements SessionCreator.
func (s *SessionService) CreateSession(ctx context.Context, creds Credentials) (SessionHandle, error) {
	email := strings.TrimSpace(creds.Email)

	user, err := s.repo.Users().GetByIdentifier(ctx, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			s.recordFailure(ctx, "", email, "unknown_identifier")
			return SessionHandle{}, ErrInvalidCredentials
		}
		return SessionHandle{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load user")
	}

	if !user.IsActive() {
		s.recordFailure(ctx, user.ID.String(), email, "inactive")
		return SessionHandle{}, ErrUserNotActive
	}

	if err := ComparePasswordAndHash(creds.Password, user.PasswordHash); err != nil {
		s.recordFailure(ctx, user.ID.String(), email, "password_mismatch")
		return SessionHandle{}, ErrInvalidCredentials
	}

	now := s.now()
	record := &SessionRecord{
		ID:        uuid.New(),
		UserID:    user.ID,
		ExpiresAt: now.Add(s.tokens.TTL()),
		CreatedAt: now,
	}

	token, err := s.tokens.Generate(user, record.ID, record.ExpiresAt)
	if err != nil {
		return SessionHandle{}, err
	}

	if err := s.repo.Sessions().Create(ctx, record); err != nil {
		return SessionHandle{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store session")
	}

	if err := s.repo.Users().TrackSucccessfulLogin(ctx, user); err != nil {
		s.logger.Error("track login for user %s: %v", user.ID, err)
	}

	s.record(ctx, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		UserID:    user.ID.String(),
		Metadata: map[string]any{
			"session_id": record.ID.String(),
		},
	})

	return SessionHandle{
		ID:        record.ID,
		Token:     token,
		ExpiresAt: record.ExpiresAt,
	}, nil
}

// ResolveSession implements SessionResolver. The token must be valid,
// its server side session live and its role still the user's role.
func (s *SessionService) ResolveSession(ctx context.Context, token string) (*User, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return nil, err
	}

	sessionID, err := claims.SessionID()
	if err != nil {
		return nil, ErrTokenMalformed
	}

	record, err := s.repo.Sessions().GetActive(ctx, sessionID, s.now())
	if err != nil {
		return nil, err
	}

	if record.UserID.String() != claims.UserID() {
		return nil, ErrSessionRevoked
	}

	user, err := s.repo.Users().GetByID(ctx, record.UserID.String())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrSessionRevoked
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load session user")
	}

	if !user.IsActive() {
		return nil, ErrSessionRevoked
	}

	if role := claims.Role(); role != "" && role != user.Role {
		s.logger.Debug("session %s issued for role %s, user is now %s", sessionID, role, user.Role)
		return nil, ErrSessionRevoked
	}

	return user, nil
}

// Revoke ends the session behind token. Invalid tokens have nothing
// to revoke.
func (s *SessionService) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	claims, err := s.tokens.Validate(token)
	if err != nil {
		s.logger.Debug("revoke skipped, token invalid: %v", err)
		return nil
	}

	sessionID, err := claims.SessionID()
	if err != nil {
		return nil
	}

	return s.repo.Sessions().Revoke(ctx, sessionID, s.now())
}

func (s *SessionService) recordFailure(ctx context.Context, userID, email, reason string) {
	s.record(ctx, ActivityEvent{
		EventType: ActivityEventLoginFailure,
		UserID:    userID,
		Metadata: map[string]any{
			"email":  email,
			"reason": reason,
		},
	})
}

func (s *SessionService) record(ctx context.Context, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}
	if err := s.activity.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink error: %v", err)
	}
}
