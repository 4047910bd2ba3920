package auth

import (
	"context"
	"database/sql"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteCreateUsersTable = `CREATE TABLE users (
    id TEXT NOT NULL PRIMARY KEY,
    username TEXT NOT NULL,
    email TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    last_login_at TIMESTAMP NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP,
    deleted_at TIMESTAMP NULL,
    CONSTRAINT uq_users_username UNIQUE (username),
    CONSTRAINT uq_users_email UNIQUE (email)
);`

func setupUsersRepo(t *testing.T) (Users, func()) {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	bunDB := bun.NewDB(db, sqlitedialect.New())

	_, err = bunDB.Exec(sqliteCreateUsersTable)
	require.NoError(t, err)

	cleanup := func() {
		_ = bunDB.Close()
		_ = db.Close()
	}

	return NewUsersRepository(bunDB), cleanup
}

func TestUsersRegisterAndFind(t *testing.T) {
	repo, cleanup := setupUsersRepo(t)
	defer cleanup()

	ctx := context.Background()

	created, err := repo.Register(ctx, &User{
		Username:     "Alice",
		Email:        "Alice@Example.COM",
		PasswordHash: "hashed::secret123",
	})
	require.NoError(t, err)
	require.NotNil(t, created)

	// id is derived deterministically from the normalized email
	wantID, err := hashid.NewUUID("alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, wantID, created.ID)

	// email is stored lowercased, username keeps its casing
	assert.Equal(t, "alice@example.com", created.Email)
	assert.Equal(t, "Alice", created.Username)
	assert.NotNil(t, created.CreatedAt)

	t.Run("find by email is case insensitive", func(t *testing.T) {
		found, err := repo.FindByEmail(ctx, "ALICE@example.com")
		require.NoError(t, err)
		assert.Equal(t, created.ID, found.ID)
	})

	t.Run("find by username is case insensitive", func(t *testing.T) {
		found, err := repo.FindByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, created.ID, found.ID)
		assert.Equal(t, "Alice", found.Username)
	})

	t.Run("find by id", func(t *testing.T) {
		found, err := repo.FindByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", found.Email)
	})

	t.Run("unknown identifiers are not found", func(t *testing.T) {
		_, err := repo.FindByEmail(ctx, "ghost@example.com")
		assert.True(t, repository.IsRecordNotFound(err))

		_, err = repo.FindByUsername(ctx, "ghost")
		assert.True(t, repository.IsRecordNotFound(err))

		_, err = repo.FindByID(ctx, uuid.New())
		assert.True(t, repository.IsRecordNotFound(err))
	})
}

func TestUsersRegisterDuplicates(t *testing.T) {
	repo, cleanup := setupUsersRepo(t)
	defer cleanup()

	ctx := context.Background()

	_, err := repo.Register(ctx, &User{
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: "hashed::secret123",
	})
	require.NoError(t, err)

	t.Run("duplicate email", func(t *testing.T) {
		_, err := repo.Register(ctx, &User{
			Username:     "somebody",
			Email:        "alice@example.com",
			PasswordHash: "hashed::other",
		})
		require.Error(t, err)
		assert.True(t, IsDuplicateKeyError(err))

		var richErr *goerrors.Error
		require.True(t, goerrors.As(err, &richErr))
		assert.Equal(t, goerrors.CategoryConflict, richErr.Category)
	})

	t.Run("duplicate username", func(t *testing.T) {
		_, err := repo.Register(ctx, &User{
			Username:     "alice",
			Email:        "fresh@example.com",
			PasswordHash: "hashed::other",
		})
		require.Error(t, err)
		assert.True(t, IsDuplicateKeyError(err))
	})
}

func TestUsersTrackSuccessfulLogin(t *testing.T) {
	repo, cleanup := setupUsersRepo(t)
	defer cleanup()

	ctx := context.Background()

	created, err := repo.Register(ctx, &User{
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: "hashed::secret123",
	})
	require.NoError(t, err)
	require.Nil(t, created.LastLoginAt)

	err = repo.TrackSuccessfulLogin(ctx, created)
	require.NoError(t, err)
	require.NotNil(t, created.LastLoginAt)

	found, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, found.LastLoginAt)
	assert.Equal(t, created.LastLoginAt.Unix(), found.LastLoginAt.Unix())

	t.Run("unknown user", func(t *testing.T) {
		err := repo.TrackSuccessfulLogin(ctx, &User{ID: uuid.New()})
		assert.True(t, repository.IsRecordNotFound(err))
	})
}
