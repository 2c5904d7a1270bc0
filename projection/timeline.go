// Package projection builds local timelines from observed events.
// Handles ordering and deduplication for client-side rendering.
// Does not emit events or interact with UI directly.
package projection

import (
	"sort"

	"course-chat/domain"
	"course-chat/domain/event"

	"github.com/google/uuid"
)

// Timeline is a client-local view of one course transcript. History replays
// and live broadcasts may overlap; messages are deduplicated by ID and kept
// sorted by order key so the view converges to the server transcript.
type Timeline struct {
	Course   domain.CourseID
	Messages []domain.Message

	seen map[uuid.UUID]struct{}
}

func NewTimeline(course domain.CourseID) *Timeline {
	return &Timeline{
		Course: course,
		seen:   make(map[uuid.UUID]struct{}),
	}
}

// Consume folds one event into the timeline. Events of other courses are
// ignored.
func (t *Timeline) Consume(e event.DomainEvent) {
	if e.CourseID() != t.Course {
		return
	}
	switch evt := e.(type) {
	case event.MessageBroadcast:
		t.add(evt.Message)
	case event.HistoryReplayed:
		for _, m := range evt.Messages {
			t.add(m)
		}
	}
}

func (t *Timeline) add(m domain.Message) {
	if _, ok := t.seen[m.ID]; ok {
		return
	}
	t.seen[m.ID] = struct{}{}

	t.Messages = append(t.Messages, m)
	// Appends are almost always already in order; the sort is a no-op then.
	sort.Slice(t.Messages, func(i, j int) bool {
		return t.Messages[i].OrderKey < t.Messages[j].OrderKey
	})
}

// Len returns the number of distinct messages observed.
func (t *Timeline) Len() int {
	return len(t.Messages)
}
