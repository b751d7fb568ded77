package signup_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-signup"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockLogger implements signup.Logger for testing
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Debug(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Info(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Warn(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Error(format string, args ...any) {
	m.Called(format, args)
}

func newTestTokenService() *signup.TokenServiceImpl {
	return signup.NewTokenService([]byte("test-signing-key"), 1, "test-issuer", jwt.ClaimStrings{"test-audience"}, nil)
}

func TestTokenService_GenerateAndValidate(t *testing.T) {
	service := newTestTokenService()
	user := &signup.User{
		ID:       uuid.New(),
		Username: "a1",
		Role:     signup.RoleGuest,
	}
	sessionID := uuid.New()
	expiresAt := time.Now().Add(service.TTL()).Truncate(time.Second)

	token, err := service.Generate(user, sessionID, expiresAt)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := service.Validate(token)
	require.NoError(t, err)

	assert.Equal(t, user.ID.String(), claims.UserID())
	assert.Equal(t, signup.RoleGuest, claims.Role())
	assert.Equal(t, "a1", claims.Handle)
	require.NotNil(t, claims.ExpiresAt)
	assert.Equal(t, expiresAt.Unix(), claims.ExpiresAt.Unix())

	sid, err := claims.SessionID()
	require.NoError(t, err)
	assert.Equal(t, sessionID, sid)
}

func TestTokenService_Validate(t *testing.T) {
	service := newTestTokenService()
	user := &signup.User{ID: uuid.New(), Username: "a1"}

	t.Run("expired token", func(t *testing.T) {
		token, err := service.Generate(user, uuid.New(), time.Now().Add(-time.Minute))
		require.NoError(t, err)

		_, err = service.Validate(token)
		assert.ErrorIs(t, err, signup.ErrTokenExpired)
		assert.True(t, signup.IsTokenExpiredError(err))
	})

	t.Run("malformed token", func(t *testing.T) {
		_, err := service.Validate("not-a-token")
		require.Error(t, err)
		assert.False(t, signup.IsTokenExpiredError(err))
	})

	t.Run("wrong signing key", func(t *testing.T) {
		other := signup.NewTokenService([]byte("other-key"), 1, "test-issuer", jwt.ClaimStrings{"test-audience"}, nil)
		token, err := other.Generate(user, uuid.New(), time.Now().Add(time.Hour))
		require.NoError(t, err)

		_, err = service.Validate(token)
		assert.Error(t, err)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := signup.NewTokenService([]byte("test-signing-key"), 1, "someone-else", jwt.ClaimStrings{"test-audience"}, nil)
		token, err := other.Generate(user, uuid.New(), time.Now().Add(time.Hour))
		require.NoError(t, err)

		_, err = service.Validate(token)
		assert.Error(t, err)
	})

	t.Run("unexpected signing method is logged", func(t *testing.T) {
		logger := &MockLogger{}
		logger.On("Error", mock.Anything, mock.Anything).Return()

		svc := signup.NewTokenService([]byte("test-signing-key"), 1, "", nil, logger)
		token := jwt.NewWithClaims(jwt.SigningMethodNone, &signup.JWTClaims{})
		raw, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = svc.Validate(raw)
		assert.Error(t, err)
		logger.AssertCalled(t, "Error", mock.Anything, mock.Anything)
	})

	t.Run("nil user", func(t *testing.T) {
		_, err := service.Generate(nil, uuid.New(), time.Now().Add(time.Hour))
		assert.Error(t, err)
	})
}

func TestNewTokenServiceFromConfig(t *testing.T) {
	cfg := signup.Options{SigningKey: "k", TokenExpiration: 2}
	service := signup.NewTokenServiceFromConfig(cfg, nil)
	assert.Equal(t, 2*time.Hour, service.TTL())
}
