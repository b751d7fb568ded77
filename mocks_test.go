package signup_test

import (
	"context"
	"sync"

	"github.com/goliatone/go-signup"
	"github.com/stretchr/testify/mock"
)

type MockProvisioner struct {
	mock.Mock
}

func (m *MockProvisioner) Provision(ctx context.Context, input signup.SubmissionInput) (signup.AccountHandle, error) {
	args := m.Called(ctx, input)
	return args.Get(0).(signup.AccountHandle), args.Error(1)
}

type MockSessionCreator struct {
	mock.Mock
}

func (m *MockSessionCreator) CreateSession(ctx context.Context, creds signup.Credentials) (signup.SessionHandle, error) {
	args := m.Called(ctx, creds)
	return args.Get(0).(signup.SessionHandle), args.Error(1)
}

type MockSessionContext struct {
	mock.Mock
}

func (m *MockSessionContext) CheckAuthUser(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *MockSessionContext) IsLoading() bool {
	args := m.Called()
	return args.Bool(0)
}

type MockCommentStore struct {
	mock.Mock
}

func (m *MockCommentStore) SaveComment(ctx context.Context, input signup.CommentInput) (signup.CommentHandle, error) {
	args := m.Called(ctx, input)
	return args.Get(0).(signup.CommentHandle), args.Error(1)
}

// activityRecorder keeps every recorded event
type activityRecorder struct {
	mu     sync.Mutex
	events []signup.ActivityEvent
}

func (r *activityRecorder) Record(_ context.Context, event signup.ActivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *activityRecorder) Events() []signup.ActivityEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]signup.ActivityEvent(nil), r.events...)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
