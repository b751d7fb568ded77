package signup_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goliatone/go-signup"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var scenarioInput = signup.SubmissionInput{
	Name:     "A",
	Username: "a1",
	Email:    "a@x.com",
	Password: "secret",
}

type signupFixture struct {
	accounts   *MockProvisioner
	sessions   *MockSessionCreator
	sessionCtx *MockSessionContext
	rec        *signup.Recorder
	activity   *activityRecorder
	controller *signup.SignupController
}

func newSignupFixture(opts ...signup.ControllerOption) *signupFixture {
	f := &signupFixture{
		accounts:   &MockProvisioner{},
		sessions:   &MockSessionCreator{},
		sessionCtx: &MockSessionContext{},
		rec:        &signup.Recorder{},
		activity:   &activityRecorder{},
	}
	f.sessionCtx.On("IsLoading").Return(false).Maybe()

	opts = append([]signup.ControllerOption{
		signup.WithLogger(nopLogger{}),
		signup.WithActivitySink(f.activity),
	}, opts...)

	f.controller = signup.NewSignupController(f.accounts, f.sessions, f.sessionCtx, f.rec, f.rec, opts...)
	return f
}

func validAccount() signup.AccountHandle {
	return signup.AccountHandle{ID: uuid.New(), Username: "a1"}
}

func validSession() signup.SessionHandle {
	return signup.SessionHandle{ID: uuid.New(), Token: "token", ExpiresAt: time.Now().Add(time.Hour)}
}

func TestSignupController_Success(t *testing.T) {
	f := newSignupFixture()
	creds := signup.Credentials{Email: scenarioInput.Email, Password: scenarioInput.Password}

	f.accounts.On("Provision", mock.Anything, scenarioInput).Return(validAccount(), nil).Once()
	f.sessions.On("CreateSession", mock.Anything, creds).Return(validSession(), nil).Once()
	f.sessionCtx.On("CheckAuthUser", mock.Anything).Return(true, nil).Once()

	outcome := f.controller.Submit(context.Background(), scenarioInput)

	assert.Equal(t, signup.OutcomeSuccess, outcome)
	assert.Equal(t, signup.SubmissionInput{}, f.controller.Form().Values())
	assert.Equal(t, 1, f.controller.Form().Resets())
	assert.Equal(t, []string{"/"}, f.rec.Paths())
	assert.Empty(t, f.rec.Notifications())

	events := f.activity.Events()
	require.Len(t, events, 1)
	assert.Equal(t, signup.ActivityEventSignupSucceeded, events[0].EventType)

	f.accounts.AssertExpectations(t)
	f.sessions.AssertExpectations(t)
	f.sessionCtx.AssertExpectations(t)
}

func TestSignupController_AccountCreationFailed(t *testing.T) {
	tests := []struct {
		name   string
		handle signup.AccountHandle
		err    error
	}{
		{name: "empty handle", handle: signup.AccountHandle{}},
		{name: "returned error", handle: signup.AccountHandle{}, err: errors.New("backend down")},
		{name: "duplicate account", handle: signup.AccountHandle{}, err: signup.ErrDuplicateAccount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newSignupFixture()
			f.accounts.On("Provision", mock.Anything, scenarioInput).Return(tt.handle, tt.err).Once()

			outcome := f.controller.Submit(context.Background(), scenarioInput)

			assert.Equal(t, signup.OutcomeAccountCreationFailed, outcome)
			assert.Equal(t, []signup.Notification{{Title: signup.GenericRetryMessage}}, f.rec.Notifications())
			assert.Empty(t, f.rec.Paths())

			f.sessions.AssertNotCalled(t, "CreateSession", mock.Anything, mock.Anything)
			f.sessionCtx.AssertNotCalled(t, "CheckAuthUser", mock.Anything)

			events := f.activity.Events()
			require.Len(t, events, 1)
			assert.Equal(t, signup.ActivityEventSignupFailed, events[0].EventType)
			assert.Equal(t, "provision", events[0].Metadata["step"])
			assert.Equal(t, signup.TextCodeAccountCreationFailed, events[0].Metadata["outcome_code"])
		})
	}
}

func TestSignupController_SessionCreationFailed(t *testing.T) {
	tests := []struct {
		name   string
		handle signup.SessionHandle
		err    error
	}{
		{name: "empty handle", handle: signup.SessionHandle{}},
		{name: "invalid credentials", handle: signup.SessionHandle{}, err: signup.ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newSignupFixture()
			creds := signup.Credentials{Email: scenarioInput.Email, Password: scenarioInput.Password}

			f.accounts.On("Provision", mock.Anything, scenarioInput).Return(validAccount(), nil).Once()
			f.sessions.On("CreateSession", mock.Anything, creds).Return(tt.handle, tt.err).Once()

			outcome := f.controller.Submit(context.Background(), scenarioInput)

			assert.Equal(t, signup.OutcomeSessionCreationFailed, outcome)
			assert.Equal(t, []signup.Notification{{Title: signup.GenericRetryMessage}}, f.rec.Notifications())
			assert.Empty(t, f.rec.Paths())
			assert.Equal(t, scenarioInput, f.controller.Form().Values())

			f.sessionCtx.AssertNotCalled(t, "CheckAuthUser", mock.Anything)
			f.accounts.AssertNumberOfCalls(t, "Provision", 1)
		})
	}
}

func TestSignupController_VerificationFailed(t *testing.T) {
	tests := []struct {
		name string
		ok   bool
		err  error
	}{
		{name: "not authenticated"},
		{name: "check error", err: errors.New("lookup failed")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newSignupFixture()

			f.accounts.On("Provision", mock.Anything, scenarioInput).Return(validAccount(), nil).Once()
			f.sessions.On("CreateSession", mock.Anything, mock.Anything).Return(validSession(), nil).Once()
			f.sessionCtx.On("CheckAuthUser", mock.Anything).Return(tt.ok, tt.err).Once()

			outcome := f.controller.Submit(context.Background(), scenarioInput)

			assert.Equal(t, signup.OutcomeVerificationFailed, outcome)
			assert.Empty(t, f.rec.Paths())
			assert.Len(t, f.rec.Notifications(), 1)
			assert.Equal(t, 0, f.controller.Form().Resets())
		})
	}
}

func TestSignupController_EveryFailureUsesSameMessage(t *testing.T) {
	outcomes := map[signup.Outcome]func(f *signupFixture){
		signup.OutcomeAccountCreationFailed: func(f *signupFixture) {
			f.accounts.On("Provision", mock.Anything, mock.Anything).Return(signup.AccountHandle{}, nil)
		},
		signup.OutcomeSessionCreationFailed: func(f *signupFixture) {
			f.accounts.On("Provision", mock.Anything, mock.Anything).Return(validAccount(), nil)
			f.sessions.On("CreateSession", mock.Anything, mock.Anything).Return(signup.SessionHandle{}, nil)
		},
		signup.OutcomeVerificationFailed: func(f *signupFixture) {
			f.accounts.On("Provision", mock.Anything, mock.Anything).Return(validAccount(), nil)
			f.sessions.On("CreateSession", mock.Anything, mock.Anything).Return(validSession(), nil)
			f.sessionCtx.On("CheckAuthUser", mock.Anything).Return(false, nil)
		},
	}

	for want, setup := range outcomes {
		t.Run(want.String(), func(t *testing.T) {
			f := newSignupFixture()
			setup(f)

			got := f.controller.Submit(context.Background(), scenarioInput)

			assert.Equal(t, want, got)
			note, ok := f.rec.LastNotification()
			require.True(t, ok)
			assert.Equal(t, signup.GenericRetryMessage, note.Title)
		})
	}
}

func TestSignupController_Cancelled(t *testing.T) {
	f := newSignupFixture()
	ctx, cancel := context.WithCancel(context.Background())

	started := make(chan struct{})
	f.accounts.On("Provision", mock.Anything, scenarioInput).
		Run(func(args mock.Arguments) {
			close(started)
			<-args.Get(0).(context.Context).Done()
		}).
		Return(signup.AccountHandle{}, context.Canceled).Once()

	done := make(chan signup.Outcome, 1)
	go func() {
		done <- f.controller.Submit(ctx, scenarioInput)
	}()

	<-started
	cancel()

	select {
	case outcome := <-done:
		assert.Equal(t, signup.OutcomeCancelled, outcome)
	case <-time.After(2 * time.Second):
		t.Fatal("submit did not return after cancellation")
	}

	assert.Empty(t, f.rec.Paths())
	assert.Len(t, f.rec.Notifications(), 1)
	f.sessions.AssertNotCalled(t, "CreateSession", mock.Anything, mock.Anything)
}

func TestSignupController_StepTimeout(t *testing.T) {
	f := newSignupFixture(signup.WithTimeouts(20*time.Millisecond, time.Second))

	f.accounts.On("Provision", mock.Anything, scenarioInput).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(signup.AccountHandle{}, context.DeadlineExceeded).Once()

	outcome := f.controller.Submit(context.Background(), scenarioInput)

	assert.Equal(t, signup.OutcomeAccountCreationFailed, outcome)
	f.sessions.AssertNotCalled(t, "CreateSession", mock.Anything, mock.Anything)
}

func TestSignupController_PanicIsAFailure(t *testing.T) {
	f := newSignupFixture()

	f.accounts.On("Provision", mock.Anything, scenarioInput).Return(validAccount(), nil).Once()
	f.sessions.On("CreateSession", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { panic("boom") }).
		Return(signup.SessionHandle{}, nil).Once()

	outcome := f.controller.Submit(context.Background(), scenarioInput)

	assert.Equal(t, signup.OutcomeSessionCreationFailed, outcome)
	assert.Len(t, f.rec.Notifications(), 1)
	f.sessionCtx.AssertNotCalled(t, "CheckAuthUser", mock.Anything)
}

func TestSignupController_CustomSuccessPath(t *testing.T) {
	f := newSignupFixture(signup.WithSuccessPath("/welcome"))

	f.accounts.On("Provision", mock.Anything, mock.Anything).Return(validAccount(), nil)
	f.sessions.On("CreateSession", mock.Anything, mock.Anything).Return(validSession(), nil)
	f.sessionCtx.On("CheckAuthUser", mock.Anything).Return(true, nil)

	require.Equal(t, signup.OutcomeSuccess, f.controller.Submit(context.Background(), scenarioInput))
	assert.Equal(t, []string{"/welcome"}, f.rec.Paths())
}

func TestBusyFlag_AllCombinations(t *testing.T) {
	for i := 0; i < 8; i++ {
		account, session, loading := i&1 != 0, i&2 != 0, i&4 != 0
		t.Run(fmt.Sprintf("%t_%t_%t", account, session, loading), func(t *testing.T) {
			want := account || session || loading

			assert.Equal(t, want, signup.BusyFlag(account, session, loading))

			state := signup.BusyState{
				AccountPending: account,
				SessionPending: session,
				SessionLoading: loading,
			}
			assert.Equal(t, want, state.Busy())

			accountFlag, sessionFlag := &signup.PendingFlag{}, &signup.PendingFlag{}
			if account {
				defer accountFlag.Begin()()
			}
			if session {
				defer sessionFlag.Begin()()
			}

			sessionCtx := &MockSessionContext{}
			sessionCtx.On("IsLoading").Return(loading)

			controller := signup.NewSignupController(
				&MockProvisioner{},
				&MockSessionCreator{},
				sessionCtx,
				nil,
				nil,
				signup.WithPendingFlags(accountFlag, sessionFlag),
			)
			assert.Equal(t, want, controller.Busy())
			assert.Equal(t, state, controller.BusyState())
		})
	}
}

func TestSignupController_BusyWhileStepInFlight(t *testing.T) {
	f := newSignupFixture()

	release := make(chan struct{})
	entered := make(chan struct{})
	f.accounts.On("Provision", mock.Anything, scenarioInput).
		Run(func(mock.Arguments) {
			close(entered)
			<-release
		}).
		Return(signup.AccountHandle{}, nil).Once()

	assert.False(t, f.controller.Busy())

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.controller.Submit(context.Background(), scenarioInput)
	}()

	<-entered
	assert.True(t, f.controller.Busy())
	assert.True(t, f.controller.BusyState().AccountPending)

	close(release)
	<-done
	assert.False(t, f.controller.Busy())
}

// accountBook provisions accounts and resolves sessions in memory. It
// tracks how many provisioning calls overlap.
type accountBook struct {
	mu       sync.Mutex
	users    map[string]*signup.User
	tokens   map[string]*signup.User
	inflight atomic.Int32
	maxSeen  atomic.Int32
}

func newAccountBook() *accountBook {
	return &accountBook{
		users:  map[string]*signup.User{},
		tokens: map[string]*signup.User{},
	}
}

func (b *accountBook) Provision(ctx context.Context, input signup.SubmissionInput) (signup.AccountHandle, error) {
	n := b.inflight.Add(1)
	defer b.inflight.Add(-1)
	for {
		seen := b.maxSeen.Load()
		if n <= seen || b.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}

	time.Sleep(5 * time.Millisecond)

	b.mu.Lock()
	defer b.mu.Unlock()
	user := &signup.User{ID: uuid.New(), Username: input.Username, Email: input.Email}
	b.users[input.Email] = user
	return signup.AccountHandle{ID: user.ID, Username: user.Username}, nil
}

func (b *accountBook) CreateSession(ctx context.Context, creds signup.Credentials) (signup.SessionHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	user, ok := b.users[creds.Email]
	if !ok {
		return signup.SessionHandle{}, signup.ErrInvalidCredentials
	}
	token := "token-" + user.ID.String()
	b.tokens[token] = user
	return signup.SessionHandle{ID: uuid.New(), Token: token}, nil
}

func (b *accountBook) ResolveSession(ctx context.Context, token string) (*signup.User, error) {
	time.Sleep(2 * time.Millisecond)
	b.mu.Lock()
	defer b.mu.Unlock()
	user, ok := b.tokens[token]
	if !ok {
		return nil, signup.ErrSessionRevoked
	}
	return user, nil
}

func TestSignupController_ReentrantSubmissionsAreSerialized(t *testing.T) {
	book := newAccountBook()
	store := signup.NewSessionStore(book, signup.WithStoreLogger(nopLogger{}))
	rec := &signup.Recorder{}

	controller := signup.NewSignupController(book, store.Bind(book), store, rec, rec, signup.WithLogger(nopLogger{}))

	inputs := []signup.SubmissionInput{
		{Name: "A", Username: "a1", Email: "a@x.com", Password: "secret"},
		{Name: "B", Username: "b1", Email: "b@x.com", Password: "secret"},
	}

	var wg sync.WaitGroup
	outcomes := make([]signup.Outcome, len(inputs))
	for i, input := range inputs {
		wg.Add(1)
		go func(i int, input signup.SubmissionInput) {
			defer wg.Done()
			outcomes[i] = controller.Submit(context.Background(), input)
		}(i, input)
	}
	wg.Wait()

	for _, outcome := range outcomes {
		assert.Equal(t, signup.OutcomeSuccess, outcome)
	}
	assert.Equal(t, int32(1), book.maxSeen.Load())
	assert.Equal(t, []string{"/", "/"}, rec.Paths())

	user := store.CurrentUser()
	require.NotNil(t, user)
	owner, err := book.ResolveSession(context.Background(), store.Token())
	require.NoError(t, err)
	assert.Equal(t, owner.ID, user.ID)
}

func TestSignupController_SharedLockAcrossControllers(t *testing.T) {
	book := newAccountBook()
	store := signup.NewSessionStore(book, signup.WithStoreLogger(nopLogger{}))

	first := signup.NewSignupController(book, store.Bind(book), store, nil, nil, signup.WithLogger(nopLogger{}))
	second := signup.NewSignupController(book, store.Bind(book), store, nil, nil, signup.WithLogger(nopLogger{}))

	var wg sync.WaitGroup
	for i, c := range []*signup.SignupController{first, second} {
		wg.Add(1)
		go func(i int, c *signup.SignupController) {
			defer wg.Done()
			c.Submit(context.Background(), signup.SubmissionInput{
				Name:     "N",
				Username: fmt.Sprintf("user%d", i),
				Email:    fmt.Sprintf("user%d@x.com", i),
				Password: "secret",
			})
		}(i, c)
	}
	wg.Wait()

	assert.Equal(t, int32(1), book.maxSeen.Load())
}
