package event

import (
	"time"

	"course-chat/domain"
)

// DomainEvent is anything pushed to a session's sink by the runtime.
type DomainEvent interface {
	CourseID() domain.CourseID
}

// MessageBroadcast carries the canonical persisted copy of a message to
// every current member of the course room, including the sender's own
// session(s). Clients never echo an optimistic local copy.
type MessageBroadcast struct {
	Message domain.Message
}

func (e MessageBroadcast) CourseID() domain.CourseID {
	return e.Message.CourseID
}

// HistoryReplayed delivers the bounded transcript tail to a session that
// just joined, ascending by order key.
type HistoryReplayed struct {
	Course   domain.CourseID
	Messages []domain.Message
}

func (e HistoryReplayed) CourseID() domain.CourseID {
	return e.Course
}

// DeliveryFailure is a sender-scoped failure notice. It is never fanned out
// to the room; only the session that issued the failing operation sees it.
type DeliveryFailure struct {
	Course  domain.CourseID
	Reason  string
	Message string
	At      time.Time
}

func (e DeliveryFailure) CourseID() domain.CourseID {
	return e.Course
}
