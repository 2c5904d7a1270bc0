package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"course-chat/contract"
	"course-chat/domain"
	"course-chat/errors"
	"course-chat/moderation"
	"course-chat/observability"
	"course-chat/runtime/workers"
)

var _ contract.IDispatcher = (*Dispatcher)(nil)
var _ contract.Worker = (*Dispatcher)(nil)

// Dispatcher routes send commands to per-course room workers. Each course
// gets its own job channel and its own worker goroutine, created on first
// use and supervised for restart. Validation failures are reported
// synchronously to the caller; everything past enqueue is the worker's job.
type Dispatcher struct {
	registry        contract.IRegistry
	store           contract.IMessageStore
	search          contract.ISearchIndex
	moderator       *moderation.Moderator
	monitor         *observability.Monitor
	supervisor      contract.ISupervisor
	log             *slog.Logger
	bufferSize      int
	dispatchTimeout time.Duration

	started   chan struct{}
	startOnce sync.Once

	mu    sync.Mutex
	ctx   context.Context
	rooms map[domain.CourseID]chan domain.SendMessageCommand
}

func NewDispatcher(
	registry contract.IRegistry,
	store contract.IMessageStore,
	search contract.ISearchIndex,
	moderator *moderation.Moderator,
	monitor *observability.Monitor,
	supervisor contract.ISupervisor,
	log *slog.Logger,
	bufferSize int,
	dispatchTimeout time.Duration,
) *Dispatcher {
	return &Dispatcher{
		registry:        registry,
		store:           store,
		search:          search,
		moderator:       moderator,
		monitor:         monitor,
		supervisor:      supervisor,
		log:             log,
		bufferSize:      bufferSize,
		started:         make(chan struct{}),
		rooms:           make(map[domain.CourseID]chan domain.SendMessageCommand),
		dispatchTimeout: dispatchTimeout,
	}
}

// Run pins the supervision context used to start room workers, then waits
// for shutdown. The dispatcher itself does no work; it only spawns.
// Sends are rejected until Run has started, so every room worker lives
// under a context that observes shutdown.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.mu.Lock()
	d.ctx = ctx
	d.mu.Unlock()
	d.startOnce.Do(func() { close(d.started) })

	<-ctx.Done()
	return ctx.Err()
}

// Send validates the command against the caller's current state, then hands
// it to the course worker. The content is trimmed before it is queued so
// the stored copy matches what members receive.
func (d *Dispatcher) Send(ctx context.Context, cmd domain.SendMessageCommand) error {
	cmd.Content = strings.TrimSpace(cmd.Content)
	if !domain.ValidContent(cmd.Content) {
		return fmt.Errorf("%w: empty content", errors.ErrInvalidMessage)
	}
	if !d.registry.IsMember(cmd.Session.ID, cmd.Course) {
		return fmt.Errorf("%w: session %s not joined to course %s",
			errors.ErrNotInRoom, cmd.Session.ID, cmd.Course)
	}

	select {
	case <-d.started:
	default:
		return fmt.Errorf("%w: dispatcher not running", errors.ErrDispatchTimeout)
	}

	jobs := d.roomFor(cmd.Course)

	select {
	case jobs <- cmd:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", errors.ErrDispatchTimeout, ctx.Err())
	case <-time.After(d.dispatchTimeout):
		d.monitor.EventDropped()
		return fmt.Errorf("%w: course %s queue full", errors.ErrDispatchTimeout, cmd.Course)
	}
}

// History returns the stored transcript of a course in ascending order.
func (d *Dispatcher) History(ctx context.Context, query domain.HistoryQuery) ([]domain.Message, error) {
	return d.store.ReadHistory(ctx, query.Course, query.Limit)
}

// roomFor returns the job channel of a course, starting its worker on
// first use. Workers are never torn down while the dispatcher runs; an
// idle channel costs nothing and keeps ordering stable across rejoins.
func (d *Dispatcher) roomFor(course domain.CourseID) chan domain.SendMessageCommand {
	d.mu.Lock()
	defer d.mu.Unlock()

	if jobs, ok := d.rooms[course]; ok {
		return jobs
	}

	jobs := make(chan domain.SendMessageCommand, d.bufferSize)
	d.rooms[course] = jobs

	// Send has already seen the started channel close, so the supervision
	// context is pinned by now.
	ctx := d.ctx
	worker := workers.NewRoomWorker(
		course, jobs,
		d.store, d.search, d.moderator,
		d.registry, d.monitor,
		d.log, d.dispatchTimeout,
	)
	d.supervisor.Start(ctx, worker)
	d.log.Info("Started room worker", "course", course)
	return jobs
}
