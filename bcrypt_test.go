package signup_test

import (
	"testing"

	"github.com/goliatone/go-signup"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashPasswordWithCost(t *testing.T) {
	tests := []struct {
		name     string
		password string
		cost     int
		wantErr  bool
	}{
		{
			name:     "Valid password",
			password: "securePassword123!",
			cost:     bcrypt.MinCost,
		},
		{
			name:     "Cost below range is clamped",
			password: "securePassword123!",
			cost:     1,
		},
		{
			name:     "Empty password",
			password: "",
			cost:     bcrypt.MinCost,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := signup.HashPasswordWithCost(tt.password, tt.cost)

			if tt.wantErr {
				assert.ErrorIs(t, err, signup.ErrNoEmptyString)
				return
			}

			require.NoError(t, err)
			assert.NotEmpty(t, hash)

			cost, err := bcrypt.Cost([]byte(hash))
			require.NoError(t, err)
			assert.GreaterOrEqual(t, cost, bcrypt.MinCost)

			assert.NoError(t, signup.ComparePasswordAndHash(tt.password, hash))
		})
	}
}

func TestComparePasswordAndHash(t *testing.T) {
	password := "testPassword123!"
	hash, err := signup.HashPasswordWithCost(password, bcrypt.MinCost)
	require.NoError(t, err)

	tests := []struct {
		name     string
		password string
		hash     string
		wantErr  error
	}{
		{
			name:     "Matching password",
			password: password,
			hash:     hash,
		},
		{
			name:     "Wrong password",
			password: "wrongPassword",
			hash:     hash,
			wantErr:  signup.ErrMismatchedHashAndPassword,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := signup.ComparePasswordAndHash(tt.password, tt.hash)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}

	t.Run("Invalid hash", func(t *testing.T) {
		err := signup.ComparePasswordAndHash(password, "invalidhash")
		assert.Error(t, err)
		assert.NotErrorIs(t, err, signup.ErrMismatchedHashAndPassword)
	})
}
