package gateway

import (
	"time"

	"course-chat/domain"
	"course-chat/domain/event"
	"course-chat/errors"

	"github.com/samber/lo"
)

// Client to server event types.
const (
	EventJoinCourse  = "joinCourse"
	EventSendMessage = "sendMessage"
	EventLeaveCourse = "leaveCourse"
)

// Server to client event types.
const (
	EventNewMessage = "newMessage"
	EventHistory    = "history"
	EventError      = "error"
)

// ClientEvent is one frame read from a websocket client.
type ClientEvent struct {
	Type    string `json:"type"`
	Course  string `json:"course"`
	Content string `json:"content,omitempty"`
}

// WireMessage is the canonical persisted message as clients see it.
type WireMessage struct {
	ID       string    `json:"id"`
	Course   string    `json:"course"`
	Sender   string    `json:"sender"`
	Content  string    `json:"content"`
	OrderKey uint64    `json:"order_key"`
	At       time.Time `json:"at"`
}

// ServerEvent is one frame written to a websocket client.
type ServerEvent struct {
	Type      string        `json:"type"`
	Course    string        `json:"course"`
	Message   *WireMessage  `json:"message,omitempty"`
	Messages  []WireMessage `json:"messages,omitempty"`
	Reason    string        `json:"reason,omitempty"`
	Detail    string        `json:"detail,omitempty"`
	Retryable bool          `json:"retryable,omitempty"`
}

func toWireMessage(m domain.Message) WireMessage {
	return WireMessage{
		ID:       m.ID.String(),
		Course:   string(m.CourseID),
		Sender:   m.SenderID,
		Content:  m.Content,
		OrderKey: m.OrderKey,
		At:       m.CreatedAt,
	}
}

func toWireMessages(messages []domain.Message) []WireMessage {
	return lo.Map(messages, func(m domain.Message, _ int) WireMessage {
		return toWireMessage(m)
	})
}

// toServerEvent maps a runtime event to its wire frame. Events the wire
// contract does not cover report ok as false and are skipped.
func toServerEvent(e event.DomainEvent) (ServerEvent, bool) {
	switch ev := e.(type) {
	case event.MessageBroadcast:
		wire := toWireMessage(ev.Message)
		return ServerEvent{
			Type:    EventNewMessage,
			Course:  string(ev.CourseID()),
			Message: &wire,
		}, true
	case event.HistoryReplayed:
		return ServerEvent{
			Type:     EventHistory,
			Course:   string(ev.Course),
			Messages: toWireMessages(ev.Messages),
		}, true
	case event.DeliveryFailure:
		return ServerEvent{
			Type:      EventError,
			Course:    string(ev.Course),
			Reason:    ev.Reason,
			Detail:    ev.Message,
			Retryable: ev.Reason == errors.ReasonPersistenceFailed || ev.Reason == errors.ReasonDispatchTimeout,
		}, true
	default:
		return ServerEvent{}, false
	}
}
