package domain

import "github.com/google/uuid"

// SessionID is opaque and unique per live connection. A user with several
// simultaneous devices holds several sessions, each tracked independently.
type SessionID string

// Session is one authenticated live connection. It exists only after the
// gateway has verified the credential; nothing in the chat core operates on
// an unauthenticated connection.
type Session struct {
	ID     SessionID
	UserID string
}

// NewSession binds a fresh session identity to a verified user.
func NewSession(userID string) Session {
	return Session{ID: SessionID(uuid.NewString()), UserID: userID}
}
