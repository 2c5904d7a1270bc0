// Package domain contains core concepts of the chat system.
// This file defines Message records and related rules.
// Messages are immutable once persisted and carry a per-course order key.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// CourseID identifies a course chat room. It mirrors the course entity's
// identifier and is opaque to the chat core.
type CourseID string

// Message represents one persisted chat message. It is created by the
// message store, which assigns ID, OrderKey and CreatedAt; the dispatcher
// only ever broadcasts the persisted canonical copy.
type Message struct {
	ID       uuid.UUID
	CourseID CourseID
	SenderID string
	Content  string
	// OrderKey increases monotonically per course and defines the
	// canonical transcript order.
	OrderKey  uint64
	CreatedAt time.Time
}

// ValidContent reports whether a message body survives trimming.
// Whitespace-only content is rejected before it reaches the store.
func ValidContent(content string) bool {
	return strings.TrimSpace(content) != ""
}
