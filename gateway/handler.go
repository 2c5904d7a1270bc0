// Package gateway exposes the chat runtime over websocket and REST.
package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"course-chat/contract"
	"course-chat/domain"
	"course-chat/domain/event"
	"course-chat/errors"
	"course-chat/observability"
	"course-chat/services"
	"course-chat/sink"

	"github.com/coder/websocket"
)

// WSHandler upgrades authenticated requests to chat sessions. Each accepted
// connection gets a fresh session identity, one sink and two loops: the
// read loop owns inbound frames and membership, the write loop is the only
// writer of the socket.
type WSHandler struct {
	verifier     contract.IVerifier
	chat         services.IChatService
	registry     contract.IRegistry
	monitor      *observability.Monitor
	log          *slog.Logger
	sinkBuffer   int
	historyLimit int
	callTimeout  time.Duration
}

func NewWSHandler(
	verifier contract.IVerifier,
	chat services.IChatService,
	registry contract.IRegistry,
	monitor *observability.Monitor,
	log *slog.Logger,
	sinkBuffer, historyLimit int,
	callTimeout time.Duration,
) *WSHandler {
	return &WSHandler{
		verifier:     verifier,
		chat:         chat,
		registry:     registry,
		monitor:      monitor,
		log:          log,
		sinkBuffer:   sinkBuffer,
		historyLimit: historyLimit,
		callTimeout:  callTimeout,
	}
}

// credentialFrom extracts the handshake credential. Browser websocket
// clients cannot set headers, so the token query parameter is accepted too.
func credentialFrom(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	verifyCtx, cancelVerify := context.WithTimeout(r.Context(), h.callTimeout)
	identity, err := h.verifier.VerifyCredential(verifyCtx, credentialFrom(r))
	cancelVerify()
	if err != nil {
		// No session exists for a rejected handshake; refuse the upgrade.
		h.log.Info("Handshake rejected", "remote", r.RemoteAddr, "err", err)
		http.Error(w, errors.Reason(err), errors.HTTPStatus(err))
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{})
	if err != nil {
		h.log.Error("Websocket accept failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "session ended")

	session := domain.NewSession(identity.ID)
	sessionSink := sink.NewSessionSink(h.sinkBuffer, h.log)
	h.registry.Bind(session, sessionSink)
	h.monitor.SessionOpened()
	h.log.Info("Session opened", "session", session.ID, "user", identity.ID)

	// Courses this connection joined, tracked locally so the gauge can be
	// settled when the socket dies without explicit leaves.
	joined := make(map[domain.CourseID]struct{})

	defer func() {
		h.registry.OnDisconnect(session.ID)
		for range joined {
			h.monitor.RoomLeft()
		}
		h.monitor.SessionClosed()
		h.log.Info("Session closed", "session", session.ID, "user", identity.ID)
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go h.writeLoop(ctx, cancel, conn, session, sessionSink)
	h.readLoop(ctx, conn, session, sessionSink, joined)
}

// readLoop owns all inbound frames of one session. It is the only caller
// of Join/Leave for the session, so membership changes are sequential.
func (h *WSHandler) readLoop(
	ctx context.Context,
	conn *websocket.Conn,
	session domain.Session,
	sessionSink *sink.SessionSink,
	joined map[domain.CourseID]struct{},
) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			h.log.Debug("Read loop ended", "session", session.ID, "err", err)
			return
		}

		var ev ClientEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			h.notify(ctx, sessionSink, "", errors.ErrInvalidMessage)
			continue
		}
		course := domain.CourseID(ev.Course)

		switch ev.Type {
		case EventJoinCourse:
			h.chat.Join(session, course)
			if _, ok := joined[course]; !ok {
				joined[course] = struct{}{}
				h.monitor.RoomJoined()
			}
			h.replayHistory(ctx, sessionSink, session, course)

		case EventSendMessage:
			sendCtx, cancelSend := context.WithTimeout(ctx, h.callTimeout)
			err := h.chat.Send(sendCtx, domain.SendMessageCommand{
				Course:  course,
				Session: session,
				Content: ev.Content,
			})
			cancelSend()
			if err != nil {
				h.notify(ctx, sessionSink, ev.Course, err)
			}

		case EventLeaveCourse:
			h.chat.Leave(session, course)
			if _, ok := joined[course]; ok {
				delete(joined, course)
				h.monitor.RoomLeft()
			}

		default:
			h.notify(ctx, sessionSink, ev.Course, errors.ErrInvalidMessage)
		}
	}
}

// writeLoop is the single writer of the socket. It drains the session sink
// so broadcasts, history replays and failure notices come out serialized.
func (h *WSHandler) writeLoop(
	ctx context.Context,
	cancel context.CancelFunc,
	conn *websocket.Conn,
	session domain.Session,
	sessionSink *sink.SessionSink,
) {
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-sessionSink.Events:
			frame, ok := toServerEvent(e)
			if !ok {
				continue
			}
			data, err := json.Marshal(frame)
			if err != nil {
				h.log.Error("Frame marshal failed", "session", session.ID, "err", err)
				continue
			}
			if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
				h.log.Debug("Write loop ended", "session", session.ID, "err", err)
				return
			}
		}
	}
}

// replayHistory pushes the transcript tail to the joining session through
// its sink, keeping the socket's single-writer discipline.
func (h *WSHandler) replayHistory(ctx context.Context, sessionSink *sink.SessionSink, session domain.Session, course domain.CourseID) {
	readCtx, cancelRead := context.WithTimeout(ctx, h.callTimeout)
	defer cancelRead()

	messages, err := h.chat.History(readCtx, domain.HistoryQuery{Course: course, Limit: h.historyLimit})
	if err != nil {
		h.log.Error("History replay failed", "session", session.ID, "course", course, "err", err)
		h.notify(ctx, sessionSink, string(course), err)
		return
	}
	replay := event.HistoryReplayed{Course: course, Messages: messages}
	if err := sessionSink.Consume(ctx, replay); err != nil {
		h.log.Debug("History replay dropped", "session", session.ID, "err", err)
	}
}

// notify reports a session-scoped failure through the sink.
func (h *WSHandler) notify(ctx context.Context, sessionSink *sink.SessionSink, course string, cause error) {
	failure := event.DeliveryFailure{
		Course:  domain.CourseID(course),
		Reason:  errors.Reason(cause),
		Message: cause.Error(),
		At:      time.Now().UTC(),
	}
	if err := sessionSink.Consume(ctx, failure); err != nil {
		h.log.Debug("Failure notice dropped", "err", err)
	}
}
