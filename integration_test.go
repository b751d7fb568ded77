package signup_test

import (
	"context"
	"testing"

	"github.com/goliatone/go-signup"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestSignupWorkflow_EndToEnd(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)

	store := signup.NewSessionStore(b.sessions, signup.WithStoreLogger(nopLogger{}))
	rec := &signup.Recorder{}
	controller := signup.NewSignupController(b.register, store.Bind(b.sessions), store, rec, rec,
		signup.WithLogger(nopLogger{}),
	)

	outcome := controller.Submit(ctx, scenarioInput)
	require.Equal(t, signup.OutcomeSuccess, outcome)
	assert.Equal(t, []string{"/"}, rec.Paths())
	assert.Equal(t, signup.SubmissionInput{}, controller.Form().Values())

	user := store.CurrentUser()
	require.NotNil(t, user)
	assert.Equal(t, "a1", user.Username)
	assert.NotEmpty(t, store.Token())
	assert.False(t, controller.Busy())

	t.Run("second signup with the same email fails at provisioning", func(t *testing.T) {
		rec := &signup.Recorder{}
		again := signup.NewSignupController(b.register, store.Bind(b.sessions), store, rec, rec,
			signup.WithLogger(nopLogger{}),
		)
		token := store.Token()

		outcome := again.Submit(ctx, scenarioInput)

		assert.Equal(t, signup.OutcomeAccountCreationFailed, outcome)
		assert.Empty(t, rec.Paths())
		assert.Equal(t, token, store.Token())
		assert.Equal(t, user.ID, store.CurrentUser().ID)
	})

	t.Run("sign in after sign out", func(t *testing.T) {
		require.NoError(t, b.sessions.Revoke(ctx, store.Token()))
		store.Clear()

		rec := &signup.Recorder{}
		signin := signup.NewSigninController(store.Bind(b.sessions), store, rec, rec,
			signup.WithLogger(nopLogger{}),
		)

		outcome := signin.Submit(ctx, signup.Credentials{Email: scenarioInput.Email, Password: scenarioInput.Password})

		assert.Equal(t, signup.OutcomeSuccess, outcome)
		assert.Equal(t, user.ID, store.CurrentUser().ID)
	})

	t.Run("comment by the signed in user", func(t *testing.T) {
		rec := &signup.Recorder{}
		comments := signup.NewCommentController(b.repo.Comments(), rec, rec, signup.WithLogger(nopLogger{}))

		res := comments.Submit(ctx, signup.CommentInput{
			Author: store.CurrentUser().ID.String(),
			Post:   "p1",
			Body:   "hello",
		})
		require.True(t, res.OK())

		list, err := b.repo.Comments().ListByPost(ctx, "p1")
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "hello", list[0].Body)
	})
}

func TestSignupWorkflow_SessionFailureKeepsAccount(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)

	store := signup.NewSessionStore(b.sessions, signup.WithStoreLogger(nopLogger{}))
	rec := &signup.Recorder{}

	failing := &MockSessionCreator{}
	failing.On("CreateSession", mock.Anything, signup.Credentials{Email: scenarioInput.Email, Password: scenarioInput.Password}).
		Return(signup.SessionHandle{}, nil)

	controller := signup.NewSignupController(b.register, failing, store, rec, rec, signup.WithLogger(nopLogger{}))

	outcome := controller.Submit(ctx, scenarioInput)
	require.Equal(t, signup.OutcomeSessionCreationFailed, outcome)

	user, err := b.repo.Users().GetByIdentifier(ctx, scenarioInput.Email)
	require.NoError(t, err)
	assert.Equal(t, "a1", user.Username)
	assert.Empty(t, store.Token())
}
