package signup

import (
	"context"
	"sync"

	goerrors "github.com/goliatone/go-errors"
)

var (
	_ SessionContext = (*SessionStore)(nil)
	_ SubmissionLock = (*SessionStore)(nil)
)

// SubmissionLock runs fn while no other submission holds the lock
type SubmissionLock interface {
	Exclusive(ctx context.Context, fn func(ctx context.Context) error) error
}

// SessionStore owns the authenticated user of one client. The token is
// written by session creation and the user only by CheckAuthUser.
//
// Every token change bumps the version. A check that started under an
// older version does not commit its user.
type SessionStore struct {
	resolver SessionResolver
	logger   Logger
	onToken  func(token string)

	mu      sync.RWMutex
	token   string
	user    *User
	version uint64

	loading PendingFlag
	submit  chan struct{}
}

// SessionStoreOption configures a SessionStore
type SessionStoreOption func(*SessionStore)

// WithSessionToken seeds the store with a token, usually read from a cookie
func WithSessionToken(token string) SessionStoreOption {
	return func(s *SessionStore) {
		s.token = token
	}
}

// WithTokenObserver is called after every token change
func WithTokenObserver(fn func(token string)) SessionStoreOption {
	return func(s *SessionStore) {
		s.onToken = fn
	}
}

// WithStoreLogger sets the logger
func WithStoreLogger(logger Logger) SessionStoreOption {
	return func(s *SessionStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewSessionStore(resolver SessionResolver, opts ...SessionStoreOption) *SessionStore {
	s := &SessionStore{
		resolver: resolver,
		logger:   defLogger{},
		submit:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetToken replaces the session token and forgets the current user
func (s *SessionStore) SetToken(token string) {
	s.mu.Lock()
	if s.token == token {
		s.mu.Unlock()
		return
	}
	s.token = token
	s.user = nil
	s.version++
	observer := s.onToken
	s.mu.Unlock()

	if observer != nil {
		observer(token)
	}
}

// Clear drops token and user
func (s *SessionStore) Clear() {
	s.SetToken("")
}

func (s *SessionStore) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// CurrentUser returns the last committed user, nil when signed out
func (s *SessionStore) CurrentUser() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

func (s *SessionStore) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// IsLoading implements SessionContext.
func (s *SessionStore) IsLoading() bool {
	return s.loading.Pending()
}

// CheckAuthUser implements SessionContext. It resolves the current token
// and commits the user unless the token changed in the meantime. A token
// the resolver rejects is dropped only if it is still the current one.
// Other resolver errors leave the session untouched.
func (s *SessionStore) CheckAuthUser(ctx context.Context) (bool, error) {
	done := s.loading.Begin()
	defer done()

	s.mu.RLock()
	token, version := s.token, s.version
	s.mu.RUnlock()

	if token == "" {
		s.commit(nil, version)
		return false, nil
	}

	user, err := s.resolver.ResolveSession(ctx, token)
	if err != nil {
		if isAuthError(err) {
			if !s.clearIfVersion(version) {
				s.logger.Debug("rejected session token was already replaced, kept the newer one")
			}
			return false, nil
		}
		return false, err
	}

	if !s.commit(user, version) {
		s.logger.Debug("session check for user %s is stale, discarded", user.ID)
	}

	return true, nil
}

// Exclusive implements SubmissionLock.
func (s *SessionStore) Exclusive(ctx context.Context, fn func(ctx context.Context) error) error {
	select {
	case s.submit <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-s.submit }()

	return fn(ctx)
}

// Bind returns a SessionCreator that stores every created token here
func (s *SessionStore) Bind(creator SessionCreator) SessionCreator {
	return storeBoundSessions{creator: creator, store: s}
}

func (s *SessionStore) commit(user *User, version uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.version != version {
		return false
	}
	s.user = user
	return true
}

// clearIfVersion drops token and user when no token change happened
// since version was read
func (s *SessionStore) clearIfVersion(version uint64) bool {
	s.mu.Lock()
	if s.version != version {
		s.mu.Unlock()
		return false
	}
	changed := s.token != ""
	s.token = ""
	s.user = nil
	if changed {
		s.version++
	}
	observer := s.onToken
	s.mu.Unlock()

	if changed && observer != nil {
		observer("")
	}
	return true
}

type storeBoundSessions struct {
	creator SessionCreator
	store   *SessionStore
}

func (b storeBoundSessions) CreateSession(ctx context.Context, creds Credentials) (SessionHandle, error) {
	handle, err := b.creator.CreateSession(ctx, creds)
	if err == nil && !handle.IsZero() {
		b.store.SetToken(handle.Token)
	}
	return handle, err
}

func isAuthError(err error) bool {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.Category == goerrors.CategoryAuth
	}
	return false
}
