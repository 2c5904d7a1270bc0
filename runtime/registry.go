// Package runtime orchestrates session membership and the per-course
// dispatch pipeline. It contains no transport or domain rules.
package runtime

import (
	"sync"

	"course-chat/contract"
	"course-chat/domain"
)

var _ contract.IRegistry = (*Registry)(nil)

type sessionEntry struct {
	user string
	sink contract.EventSink
	// rooms the session currently belongs to, kept alongside the
	// reverse index so OnDisconnect never scans every course.
	rooms map[domain.CourseID]struct{}
}

// Registry is the room membership table shared by every connection task.
// All mutation happens under one RWMutex, so a lookup performed for a
// broadcast always reflects the most recently completed join, leave or
// disconnect. A user with several devices holds several sessions here,
// each with its own sink.
type Registry struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]*sessionEntry
	members  map[domain.CourseID]map[domain.SessionID]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[domain.SessionID]*sessionEntry),
		members:  make(map[domain.CourseID]map[domain.SessionID]struct{}),
	}
}

// Bind registers an authenticated session and its delivery sink.
// It must happen before any join; joining an unbound session is a no-op.
func (r *Registry) Bind(session domain.Session, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[session.ID] = &sessionEntry{
		user:  session.UserID,
		sink:  sink,
		rooms: make(map[domain.CourseID]struct{}),
	}
}

// Join adds the session to the course room. Joining a room the session is
// already in is a no-op success.
func (r *Registry) Join(sessionID domain.SessionID, course domain.CourseID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.sessions[sessionID]
	if !ok {
		return
	}
	entry.rooms[course] = struct{}{}

	if _, ok := r.members[course]; !ok {
		r.members[course] = make(map[domain.SessionID]struct{})
	}
	r.members[course][sessionID] = struct{}{}
}

// Leave removes the session from the course room; no-op when absent.
// Empty rooms are deleted from the map, not kept around.
func (r *Registry) Leave(sessionID domain.SessionID, course domain.CourseID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(sessionID, course)
}

// OnDisconnect removes the session from every room it was a member of and
// forgets its sink. Called exactly once per connection termination; an
// in-flight broadcast that looks up members afterwards no longer sees the
// session.
func (r *Registry) OnDisconnect(sessionID domain.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.sessions[sessionID]
	if !ok {
		return
	}
	for course := range entry.rooms {
		r.leaveLocked(sessionID, course)
	}
	delete(r.sessions, sessionID)
}

func (r *Registry) leaveLocked(sessionID domain.SessionID, course domain.CourseID) {
	if entry, ok := r.sessions[sessionID]; ok {
		delete(entry.rooms, course)
	}
	if members, ok := r.members[course]; ok {
		delete(members, sessionID)
		if len(members) == 0 {
			delete(r.members, course)
		}
	}
}

// IsMember reports whether the session currently belongs to the course room.
func (r *Registry) IsMember(sessionID domain.SessionID, course domain.CourseID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.members[course]
	if !ok {
		return false
	}
	_, ok = members[sessionID]
	return ok
}

// SinksForCourse resolves the current member sessions of a room into their
// sinks. The two-step lookup keeps one sink per session even when a user
// sits in several rooms; the caller gets one delivery target per device.
func (r *Registry) SinksForCourse(course domain.CourseID) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.members[course]
	if !ok {
		return nil
	}
	sinks := make([]contract.EventSink, 0, len(members))
	for sessionID := range members {
		if entry, ok := r.sessions[sessionID]; ok {
			sinks = append(sinks, entry.sink)
		}
	}
	return sinks
}

// SinkForSession returns the delivery sink of one live session, used for
// sender-scoped failure notices.
func (r *Registry) SinkForSession(sessionID domain.SessionID) (contract.EventSink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.sessions[sessionID]
	if !ok {
		return nil, false
	}
	return entry.sink, true
}
