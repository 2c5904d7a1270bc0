package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// Chat pipeline failures. All of them are scoped to the session that
	// triggered the operation; none of them terminate the connection.
	ErrUnauthenticated   = fmt.Errorf("credential missing, invalid or expired")
	ErrNotInRoom         = fmt.Errorf("session is not a member of the course room")
	ErrInvalidMessage    = fmt.Errorf("message content is empty")
	ErrPersistenceFailed = fmt.Errorf("message store rejected the write")
	ErrDispatchTimeout   = fmt.Errorf("collaborator call exceeded its deadline")

	// Account failures.
	ErrUserAlreadyExists  = fmt.Errorf("a user with this email already exists")
	ErrInvalidCredentials = fmt.Errorf("invalid email or password")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity requirements")
	ErrTokenGeneration    = fmt.Errorf("token could not be generated")
	ErrUserNotFound       = fmt.Errorf("user no longer exists")

	ErrWorkerPanic = fmt.Errorf("worker panic")
	ErrEmptyWords  = fmt.Errorf("censored word list is empty")
)

// Machine-readable reason codes carried on the wire inside error events.
const (
	ReasonUnauthenticated   = "UNAUTHENTICATED"
	ReasonNotInRoom         = "NOT_IN_ROOM"
	ReasonInvalidMessage    = "INVALID_MESSAGE"
	ReasonPersistenceFailed = "PERSISTENCE_FAILED"
	ReasonDispatchTimeout   = "DISPATCH_TIMEOUT"
	ReasonInternal          = "INTERNAL"
)

// Reason maps a pipeline error to its wire reason code.
// Unknown errors collapse to INTERNAL so internals never leak to clients.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return ReasonUnauthenticated
	case errors.Is(err, ErrNotInRoom):
		return ReasonNotInRoom
	case errors.Is(err, ErrInvalidMessage):
		return ReasonInvalidMessage
	case errors.Is(err, ErrPersistenceFailed):
		return ReasonPersistenceFailed
	case errors.Is(err, ErrDispatchTimeout):
		return ReasonDispatchTimeout
	default:
		return ReasonInternal
	}
}

// Retryable reports whether the caller may retry the same operation as-is.
func Retryable(err error) bool {
	return errors.Is(err, ErrPersistenceFailed) || errors.Is(err, ErrDispatchTimeout)
}

// HTTPStatus maps an error to the status used by the REST surface.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrUnauthenticated), errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, ErrInvalidMessage), errors.Is(err, ErrInvalidPassword):
		return http.StatusBadRequest
	case errors.Is(err, ErrUserAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, ErrNotInRoom):
		return http.StatusForbidden
	case errors.Is(err, ErrPersistenceFailed), errors.Is(err, ErrDispatchTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
