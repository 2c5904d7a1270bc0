package auth

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"course-chat/errors"
	"course-chat/mocks"
	"course-chat/repositories"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newVerifierUnderTest(t *testing.T) (*Verifier, *mocks.MockIUserRepository) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	users := mocks.NewMockIUserRepository(ctrl)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewVerifier(users, log), users
}

func TestVerifier_Accepts_Valid_Token_Of_Existing_User(t *testing.T) {
	req := require.New(t)
	verifier, users := newVerifierUnderTest(t)

	token, err := GenerateToken("user-42", []string{"student"}, time.Hour)
	req.NoError(err)

	users.EXPECT().
		GetUserByID("user-42").
		Return(repositories.User{ID: "user-42", Email: "alice@example.com", Roles: []string{"student"}}, nil)

	identity, err := verifier.VerifyCredential(context.Background(), token)
	req.NoError(err)
	req.Equal("user-42", identity.ID)
	req.Equal("alice@example.com", identity.Email)
	req.Equal([]string{"student"}, identity.Roles)
}

func TestVerifier_Rejects_Empty_Credential(t *testing.T) {
	req := require.New(t)
	verifier, _ := newVerifierUnderTest(t)

	_, err := verifier.VerifyCredential(context.Background(), "")
	req.ErrorIs(err, errors.ErrUnauthenticated)
}

func TestVerifier_Rejects_Garbage_Token(t *testing.T) {
	req := require.New(t)
	verifier, _ := newVerifierUnderTest(t)

	_, err := verifier.VerifyCredential(context.Background(), "not-a-jwt")
	req.ErrorIs(err, errors.ErrUnauthenticated)
}

func TestVerifier_Expired_Context_Skips_Storage_Lookup(t *testing.T) {
	req := require.New(t)
	verifier, _ := newVerifierUnderTest(t)
	// No GetUserByID expectation: the dead context must stop the call
	// before it reaches the repository

	token, err := GenerateToken("user-42", nil, time.Hour)
	req.NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = verifier.VerifyCredential(ctx, token)
	req.ErrorIs(err, errors.ErrDispatchTimeout)
}

func TestVerifier_Rejects_Token_Of_Removed_User(t *testing.T) {
	req := require.New(t)
	verifier, users := newVerifierUnderTest(t)

	token, err := GenerateToken("gone-user", nil, time.Hour)
	req.NoError(err)

	users.EXPECT().
		GetUserByID("gone-user").
		Return(repositories.User{}, errors.ErrUserNotFound)

	_, err = verifier.VerifyCredential(context.Background(), token)
	req.ErrorIs(err, errors.ErrUnauthenticated)
}
