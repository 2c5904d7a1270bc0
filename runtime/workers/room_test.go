package workers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"course-chat/contract"
	"course-chat/domain"
	"course-chat/domain/event"
	"course-chat/errors"
	"course-chat/mocks"
	"course-chat/moderation"
	"course-chat/observability"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// recordSink buffers delivered events for assertions.
type recordSink struct {
	events chan event.DomainEvent
}

func newRecordSink() *recordSink {
	return &recordSink{events: make(chan event.DomainEvent, 8)}
}

func (s *recordSink) Consume(ctx context.Context, e event.DomainEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.events <- e
	return nil
}

func (s *recordSink) next(t *testing.T) event.DomainEvent {
	t.Helper()
	select {
	case e := <-s.events:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered in time")
		return nil
	}
}

func TestRoomWorker_Censors_Before_Persist(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	moderator, err := moderation.NewModerator([]string{"idiot"}, '*', log)
	req.NoError(err)

	// The store must receive the censored copy: what is persisted is what
	// members see.
	var persisted string
	store := mocks.NewMockIMessageStore(ctrl)
	store.EXPECT().
		AppendMessage(gomock.Any(), domain.CourseID("C1"), "alice", gomock.Any()).
		DoAndReturn(func(_ context.Context, course domain.CourseID, senderID, content string) (domain.Message, error) {
			persisted = content
			return domain.Message{
				ID: uuid.New(), CourseID: course, SenderID: senderID,
				Content: content, OrderKey: 1, CreatedAt: time.Now().UTC(),
			}, nil
		})

	search := mocks.NewMockISearchIndex(ctrl)
	indexed := make(chan domain.Message, 1)
	search.EXPECT().
		Index(gomock.Any()).
		DoAndReturn(func(m domain.Message) error {
			indexed <- m
			return nil
		})

	registry := mocks.NewMockIRegistry(ctrl)
	registry.EXPECT().SinksForCourse(domain.CourseID("C1")).Return(nil)

	jobs := make(chan domain.SendMessageCommand, 1)
	worker := NewRoomWorker(
		"C1", jobs, store, search, &moderator,
		registry, observability.NewMonitor(log), log, time.Second,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = worker.Run(ctx) }()

	// When a member sends a message with a forbidden word in leet speak
	jobs <- domain.SendMessageCommand{
		Course:  "C1",
		Session: domain.Session{ID: "s1", UserID: "alice"},
		Content: "you are an 1d10t sometimes",
	}

	select {
	case m := <-indexed:
		req.NotContains(persisted, "1d10t")
		req.Contains(persisted, "*****")
		req.Equal(persisted, m.Content)
	case <-time.After(2 * time.Second):
		req.Fail("message never reached the search index")
	}
}

func TestRoomWorker_Persist_Timeout_Still_Notifies_Sender(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	// The store consumes its whole deadline before failing
	store := mocks.NewMockIMessageStore(ctrl)
	store.EXPECT().
		AppendMessage(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ domain.CourseID, _, _ string) (domain.Message, error) {
			<-ctx.Done()
			return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrDispatchTimeout, ctx.Err())
		})

	sink := newRecordSink()
	registry := mocks.NewMockIRegistry(ctrl)
	registry.EXPECT().SinkForSession(domain.SessionID("s1")).Return(contract.EventSink(sink), true)

	jobs := make(chan domain.SendMessageCommand, 1)
	worker := NewRoomWorker(
		"C1", jobs, store, nil, nil,
		registry, observability.NewMonitor(log), log, 50*time.Millisecond,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = worker.Run(ctx) }()

	jobs <- domain.SendMessageCommand{
		Course:  "C1",
		Session: domain.Session{ID: "s1", UserID: "alice"},
		Content: "doomed",
	}

	// The sender still receives the retryable notice even though the
	// persist deadline has already fired
	failure, ok := sink.next(t).(event.DeliveryFailure)
	req.True(ok)
	req.Equal(errors.ReasonDispatchTimeout, failure.Reason)
}

func TestRoomWorker_Slow_Persist_Still_Broadcasts(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	// The write lands exactly as the persist deadline fires
	store := mocks.NewMockIMessageStore(ctrl)
	store.EXPECT().
		AppendMessage(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, course domain.CourseID, senderID, content string) (domain.Message, error) {
			<-ctx.Done()
			return domain.Message{
				ID: uuid.New(), CourseID: course, SenderID: senderID,
				Content: content, OrderKey: 1, CreatedAt: time.Now().UTC(),
			}, nil
		})

	sink := newRecordSink()
	registry := mocks.NewMockIRegistry(ctrl)
	registry.EXPECT().
		SinksForCourse(domain.CourseID("C1")).
		Return([]contract.EventSink{sink})

	jobs := make(chan domain.SendMessageCommand, 1)
	worker := NewRoomWorker(
		"C1", jobs, store, nil, nil,
		registry, observability.NewMonitor(log), log, 50*time.Millisecond,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = worker.Run(ctx) }()

	jobs <- domain.SendMessageCommand{
		Course:  "C1",
		Session: domain.Session{ID: "s1", UserID: "alice"},
		Content: "slow but persisted",
	}

	// Members still receive the persisted message
	broadcast, ok := sink.next(t).(event.MessageBroadcast)
	req.True(ok)
	req.Equal("slow but persisted", broadcast.Message.Content)
}

func TestRoomWorker_Stops_On_Context_Cancel(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	store := mocks.NewMockIMessageStore(ctrl)
	registry := mocks.NewMockIRegistry(ctrl)

	jobs := make(chan domain.SendMessageCommand)
	worker := NewRoomWorker(
		"C1", jobs, store, nil, nil,
		registry, observability.NewMonitor(log), log, time.Second,
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		req.ErrorIs(err, context.Canceled)
	case <-time.After(time.Second):
		req.Fail("worker should stop when its context is canceled")
	}
}
