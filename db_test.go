package signup_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/goliatone/go-signup"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"golang.org/x/crypto/bcrypt"

	_ "github.com/mattn/go-sqlite3"
)

func setupDB(t *testing.T) *bun.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	bunDB := bun.NewDB(db, sqlitedialect.New())
	require.NoError(t, signup.CreateSchema(context.Background(), bunDB))

	t.Cleanup(func() {
		_ = bunDB.Close()
	})

	return bunDB
}

type backend struct {
	db       *bun.DB
	repo     signup.RepositoryManager
	tokens   *signup.TokenServiceImpl
	register *signup.RegisterUserHandler
	sessions *signup.SessionService
}

func setupBackend(t *testing.T) *backend {
	t.Helper()

	db := setupDB(t)
	repo := signup.NewRepositoryManager(db)
	require.NoError(t, repo.Validate())

	tokens := signup.NewTokenService([]byte("test-signing-key"), 1, "go-signup", jwt.ClaimStrings{}, nopLogger{})

	return &backend{
		db:     db,
		repo:   repo,
		tokens: tokens,
		register: signup.NewRegisterUserHandler(repo,
			signup.WithPasswordCost(bcrypt.MinCost),
			signup.WithRegisterLogger(nopLogger{}),
		),
		sessions: signup.NewSessionService(repo, tokens, signup.WithSessionLogger(nopLogger{})),
	}
}
