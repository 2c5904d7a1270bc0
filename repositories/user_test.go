package repositories

import (
	"testing"

	"course-chat/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func setupUserRepository(t *testing.T) IUserRepository {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewUserRepository(db)
}

func TestUserRepository_Create_And_Lookup(t *testing.T) {
	req := require.New(t)
	repo := setupUserRepository(t)

	id, err := repo.CreateUser("alice@example.com", "argon2-hash")
	req.NoError(err)
	req.NotEmpty(id)

	// Both lookup paths resolve the same account
	byEmail, err := repo.GetUserByEmail("alice@example.com")
	req.NoError(err)
	req.Equal(id, byEmail.ID)
	req.Equal("argon2-hash", byEmail.PasswordHash)

	byID, err := repo.GetUserByID(id)
	req.NoError(err)
	req.Equal("alice@example.com", byID.Email)
}

func TestUserRepository_Duplicate_Email_Rejected(t *testing.T) {
	req := require.New(t)
	repo := setupUserRepository(t)

	_, err := repo.CreateUser("alice@example.com", "hash-1")
	req.NoError(err)

	_, err = repo.CreateUser("alice@example.com", "hash-2")
	req.ErrorIs(err, errors.ErrUserAlreadyExists)
}

func TestUserRepository_Unknown_User(t *testing.T) {
	req := require.New(t)
	repo := setupUserRepository(t)

	_, err := repo.GetUserByEmail("nobody@example.com")
	req.Error(err)

	_, err = repo.GetUserByID("missing-id")
	req.Error(err)
}
