//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"course-chat/domain"
	"course-chat/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink is the delivery end of one live session. Consume must not block
// past the supplied context; a full sink drops rather than stalls the room.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// IRegistry is the room membership table shared by all connection tasks.
// Lookups used for broadcast always reflect the most recently completed
// Join/Leave/OnDisconnect for a session.
type IRegistry interface {
	Bind(session domain.Session, sink EventSink)
	Join(sessionID domain.SessionID, course domain.CourseID)
	Leave(sessionID domain.SessionID, course domain.CourseID)
	OnDisconnect(sessionID domain.SessionID)
	IsMember(sessionID domain.SessionID, course domain.CourseID) bool
	SinksForCourse(course domain.CourseID) []EventSink
	SinkForSession(sessionID domain.SessionID) (EventSink, bool)
}

// IMessageStore is the durable append-only transcript keyed by course.
// AppendMessage assigns the durable ID, order key and timestamp.
type IMessageStore interface {
	AppendMessage(ctx context.Context, course domain.CourseID, senderID, content string) (domain.Message, error)
	ReadHistory(ctx context.Context, course domain.CourseID, limit int) ([]domain.Message, error)
}

// IVerifier maps an opaque credential to a user identity, or fails.
type IVerifier interface {
	VerifyCredential(ctx context.Context, credential string) (domain.UserIdentity, error)
}

// IDispatcher is the write path: validate, persist, then fan out.
type IDispatcher interface {
	Send(ctx context.Context, cmd domain.SendMessageCommand) error
	History(ctx context.Context, query domain.HistoryQuery) ([]domain.Message, error)
}

// ISearchIndex indexes every persisted message for transcript search.
type ISearchIndex interface {
	Index(message domain.Message) error
	Search(ctx context.Context, course domain.CourseID, terms string, limit int) ([]domain.Message, error)
}
