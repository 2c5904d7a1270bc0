package workers

import (
	"context"
	"log/slog"
	"time"

	"course-chat/contract"
	"course-chat/domain"
	"course-chat/domain/event"
	"course-chat/errors"
	"course-chat/moderation"
	"course-chat/observability"

	"github.com/abadojack/whatlanggo"
)

var _ contract.Worker = (*RoomWorker)(nil)

// RoomWorker is the single writer of one course room. It drains the
// course's job channel and runs moderate, persist, broadcast for each
// message in arrival order, which is what guarantees that every member
// observes the transcript in non-decreasing order-key order. Workers of
// different courses run independently and never block each other.
type RoomWorker struct {
	course          domain.CourseID
	jobs            chan domain.SendMessageCommand
	store           contract.IMessageStore
	search          contract.ISearchIndex
	moderator       *moderation.Moderator
	registry        contract.IRegistry
	monitor         *observability.Monitor
	log             *slog.Logger
	dispatchTimeout time.Duration
}

func NewRoomWorker(
	course domain.CourseID,
	jobs chan domain.SendMessageCommand,
	store contract.IMessageStore,
	search contract.ISearchIndex,
	moderator *moderation.Moderator,
	registry contract.IRegistry,
	monitor *observability.Monitor,
	log *slog.Logger,
	dispatchTimeout time.Duration,
) *RoomWorker {
	return &RoomWorker{
		course:          course,
		jobs:            jobs,
		store:           store,
		search:          search,
		moderator:       moderator,
		registry:        registry,
		monitor:         monitor,
		log:             log,
		dispatchTimeout: dispatchTimeout,
	}
}

func (w *RoomWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping room worker", "course", w.course)
			return ctx.Err()
		case cmd, ok := <-w.jobs:
			if !ok {
				return nil
			}
			w.dispatch(ctx, cmd)
		}
	}
}

// dispatch runs one message through moderate, persist, broadcast.
// A message is either fully visible to the room or not visible at all:
// any failure before the store write returns is reported to the sender
// only and nothing is broadcast.
func (w *RoomWorker) dispatch(ctx context.Context, cmd domain.SendMessageCommand) {
	content := cmd.Content
	if w.moderator != nil {
		censored, found := w.moderator.Censor(content)
		if len(found) > 0 {
			info := whatlanggo.Detect(content)
			w.log.Warn("Censored message content",
				"course", w.course,
				"sender", cmd.Session.UserID,
				"words", len(found),
				"lang", info.Lang.Iso6391())
			content = censored
		}
	}

	persistCtx, cancelPersist := context.WithTimeout(ctx, w.dispatchTimeout)
	message, err := w.store.AppendMessage(persistCtx, w.course, cmd.Session.UserID, content)
	cancelPersist()

	// Delivery runs on its own deadline from the worker context. The
	// persist context may already be spent by a slow store, and a notice
	// or broadcast sent on it would be dropped by the sinks.
	deliverCtx, cancelDeliver := context.WithTimeout(ctx, w.dispatchTimeout)
	defer cancelDeliver()

	if err != nil {
		w.monitor.DeliveryError()
		w.log.Error("Persist failed, skipping broadcast",
			"course", w.course, "sender", cmd.Session.UserID, "err", err)
		w.notifySender(deliverCtx, cmd.Session.ID, err)
		return
	}
	w.monitor.MessageDispatched()

	if w.search != nil {
		if err := w.search.Index(message); err != nil {
			// The transcript stays authoritative; a stale index only
			// degrades search results.
			w.log.Warn("Search index update failed", "course", w.course, "err", err)
		}
	}

	// Membership is resolved after the write completes, so a session
	// whose disconnect was processed during the persist is skipped.
	for _, s := range w.registry.SinksForCourse(w.course) {
		if err := s.Consume(deliverCtx, event.MessageBroadcast{Message: message}); err != nil {
			w.monitor.EventDropped()
			w.log.Debug("Member delivery skipped", "course", w.course, "err", err)
			continue
		}
		w.monitor.MessageBroadcast()
	}
}

// notifySender pushes a sender-scoped failure notice; the room never sees it.
func (w *RoomWorker) notifySender(ctx context.Context, sessionID domain.SessionID, cause error) {
	s, ok := w.registry.SinkForSession(sessionID)
	if !ok {
		// Sender already disconnected.
		return
	}
	failure := event.DeliveryFailure{
		Course:  w.course,
		Reason:  errors.Reason(cause),
		Message: cause.Error(),
		At:      time.Now().UTC(),
	}
	if err := s.Consume(ctx, failure); err != nil {
		w.log.Debug("Failure notice dropped", "course", w.course, "err", err)
	}
}
