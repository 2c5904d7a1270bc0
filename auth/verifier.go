package auth

import (
	"context"
	"fmt"
	"log/slog"

	"course-chat/contract"
	"course-chat/domain"
	"course-chat/errors"
	"course-chat/repositories"
)

var _ contract.IVerifier = (*Verifier)(nil)

// Verifier is the concrete identity verifier consumed by the gateway.
// A credential is a signed JWT; on top of the signature and expiry check,
// the user behind the claims must still exist in storage, so that a token
// issued before an account was removed stops working immediately.
type Verifier struct {
	users repositories.IUserRepository
	log   *slog.Logger
}

func NewVerifier(users repositories.IUserRepository, log *slog.Logger) *Verifier {
	return &Verifier{users: users, log: log}
}

// VerifyCredential maps an opaque credential to a user identity.
// Every failure collapses to ErrUnauthenticated on purpose: the caller
// learns that the handshake failed, not why the token was bad.
func (v *Verifier) VerifyCredential(ctx context.Context, credential string) (domain.UserIdentity, error) {
	if credential == "" {
		return domain.UserIdentity{}, errors.ErrUnauthenticated
	}

	claims, err := ValidateToken(credential)
	if err != nil {
		v.log.Debug("Token validation failed", "err", err)
		return domain.UserIdentity{}, fmt.Errorf("%w: %v", errors.ErrUnauthenticated, err)
	}

	// The deadline is checked before the storage lookup so an expired
	// caller never reaches badger.
	if err := ctx.Err(); err != nil {
		return domain.UserIdentity{}, fmt.Errorf("%w: %v", errors.ErrDispatchTimeout, err)
	}

	user, err := v.users.GetUserByID(claims.UserID)
	if err != nil {
		v.log.Debug("Token refers to a missing user", "user_id", claims.UserID)
		return domain.UserIdentity{}, fmt.Errorf("%w: %v", errors.ErrUnauthenticated, errors.ErrUserNotFound)
	}

	return domain.UserIdentity{ID: user.ID, Email: user.Email, Roles: user.Roles}, nil
}
