package runtime

import (
	"context"
	"testing"

	"course-chat/domain"
	"course-chat/domain/event"

	"github.com/stretchr/testify/require"
)

type Sink struct {
	name string
}

func (s Sink) Consume(ctx context.Context, e event.DomainEvent) error {
	return nil
}

func TestRegistry_Join_One_Course_One_Session(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	session := domain.NewSession("alice")
	course := domain.CourseID("C1")
	sink := Sink{name: "alice-laptop"}

	// Given no session is bound
	req.False(registry.IsMember(session.ID, course))
	req.Nil(registry.SinksForCourse(course))

	// When a bound session joins a course
	registry.Bind(session, sink)
	registry.Join(session.ID, course)

	// Then
	req.True(registry.IsMember(session.ID, course))
	req.Len(registry.SinksForCourse(course), 1)
	req.Contains(registry.SinksForCourse(course), sink)

	got, ok := registry.SinkForSession(session.ID)
	req.True(ok)
	req.Equal(sink, got)
}

func TestRegistry_Join_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	session := domain.NewSession("alice")
	course := domain.CourseID("C1")

	registry.Bind(session, Sink{})

	// When the same session joins twice
	registry.Join(session.ID, course)
	registry.Join(session.ID, course)

	// Then it is still a single member with a single sink
	req.True(registry.IsMember(session.ID, course))
	req.Len(registry.SinksForCourse(course), 1)
}

func TestRegistry_Join_Unbound_Session_Is_NoOp(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	course := domain.CourseID("C1")

	// When an unknown session joins
	registry.Join(domain.SessionID("ghost"), course)

	// Then no membership is created
	req.False(registry.IsMember(domain.SessionID("ghost"), course))
	req.Nil(registry.SinksForCourse(course))
}

func TestRegistry_Multiple_Sessions_Same_User(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	course := domain.CourseID("C1")

	// Given the same user on two devices
	laptop := domain.NewSession("alice")
	phone := domain.NewSession("alice")
	registry.Bind(laptop, Sink{name: "laptop"})
	registry.Bind(phone, Sink{name: "phone"})

	// When both sessions join the same course
	registry.Join(laptop.ID, course)
	registry.Join(phone.ID, course)

	// Then each device has its own delivery target
	sinks := registry.SinksForCourse(course)
	req.Len(sinks, 2)
	req.Contains(sinks, Sink{name: "laptop"})
	req.Contains(sinks, Sink{name: "phone"})

	// And dropping one device leaves the other untouched
	registry.OnDisconnect(phone.ID)
	req.True(registry.IsMember(laptop.ID, course))
	req.False(registry.IsMember(phone.ID, course))
	req.Len(registry.SinksForCourse(course), 1)
}

func TestRegistry_Leave_Removes_Empty_Course(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	session := domain.NewSession("alice")
	course := domain.CourseID("C1")

	registry.Bind(session, Sink{})
	registry.Join(session.ID, course)

	// When the only member leaves
	registry.Leave(session.ID, course)

	// Then the course has no members and no sinks
	req.False(registry.IsMember(session.ID, course))
	req.Nil(registry.SinksForCourse(course))

	// And the session itself is still bound
	_, ok := registry.SinkForSession(session.ID)
	req.True(ok)
}

func TestRegistry_Leave_Only_Affects_One_Course(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	session := domain.NewSession("alice")

	registry.Bind(session, Sink{})
	registry.Join(session.ID, "C1")
	registry.Join(session.ID, "C2")

	// When the session leaves one of its courses
	registry.Leave(session.ID, "C1")

	// Then membership in the other course is intact
	req.False(registry.IsMember(session.ID, "C1"))
	req.True(registry.IsMember(session.ID, "C2"))
}

func TestRegistry_OnDisconnect_Clears_All_Rooms(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	session := domain.NewSession("alice")

	registry.Bind(session, Sink{})
	registry.Join(session.ID, "C1")
	registry.Join(session.ID, "C2")

	// When the connection dies
	registry.OnDisconnect(session.ID)

	// Then the session is gone from every course and its sink is forgotten
	req.False(registry.IsMember(session.ID, "C1"))
	req.False(registry.IsMember(session.ID, "C2"))
	_, ok := registry.SinkForSession(session.ID)
	req.False(ok)

	// And a second disconnect of the same session is harmless
	registry.OnDisconnect(session.ID)
}
