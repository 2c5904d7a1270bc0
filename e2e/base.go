package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"course-chat/auth"
	"course-chat/gateway"
	"course-chat/moderation"
	"course-chat/observability"
	"course-chat/repositories"
	"course-chat/runtime"
	"course-chat/runtime/workers"
	"course-chat/services"

	"github.com/blugelabs/bluge"
	"github.com/coder/websocket"
	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/stretchr/testify/suite"
)

// BaseChatSuite boots the whole chat server in-process behind an httptest
// listener, so scenarios exercise the real REST and websocket surface.
type BaseChatSuite struct {
	suite.Suite
	Config Config

	server *httptest.Server
	cancel context.CancelFunc
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseChatSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
}

// SetupTest assembles a fresh server with empty storage for each scenario.
func (s *BaseChatSuite) SetupTest() {
	req := s.Require()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := badger.Open(badger.DefaultOptions(s.T().TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	s.T().Cleanup(func() { _ = db.Close() })

	indexWriter, err := bluge.OpenWriter(bluge.InMemoryOnlyConfig())
	req.NoError(err)
	s.T().Cleanup(func() { _ = indexWriter.Close() })

	messageRepository := repositories.NewMessageRepository(db, log, 50)
	s.T().Cleanup(messageRepository.Close)
	userRepository := repositories.NewUserRepository(db)
	searchRepository := repositories.NewSearchRepository(indexWriter, log)

	censored, err := runtime.LoadCensoredWords()
	req.NoError(err)
	moderator, err := moderation.NewModerator(censored.Words, '*', log)
	req.NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	sup := workers.NewSupervisor(log, 100*time.Millisecond)
	registry := runtime.NewRegistry()
	monitor := observability.NewMonitor(log)

	dispatcher := runtime.NewDispatcher(
		registry, messageRepository, searchRepository, &moderator, monitor,
		sup, log, 16, 2*time.Second,
	)
	sup.Add(dispatcher)
	go sup.Run(ctx)

	verifier := auth.NewVerifier(userRepository, log)
	authService := services.NewAuthService(userRepository, time.Hour)
	chatService := services.NewChatService(dispatcher, registry, searchRepository)

	wsHandler := gateway.NewWSHandler(verifier, chatService, registry, monitor, log, 32, 50, 2*time.Second)
	router := gateway.Router(authService, chatService, verifier, wsHandler, monitor, log, 50, 2*time.Second)

	s.server = httptest.NewServer(router)
}

func (s *BaseChatSuite) TearDownTest() {
	if s.server != nil {
		s.server.Close()
	}
	if s.cancel != nil {
		s.cancel()
	}
}

// Step prints a colorized scenario header in the test log.
func (s *BaseChatSuite) Step(t *testing.T, name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	t.Log(header)
}

// RegisterUser creates an account over REST and returns its token.
func (s *BaseChatSuite) RegisterUser(email string) string {
	req := s.Require()

	body, err := json.Marshal(map[string]string{"email": email, "password": "ComplexPass123!!"})
	req.NoError(err)

	resp, err := http.Post(s.server.URL+"/api/auth/register", "application/json", bytes.NewReader(body))
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusCreated, resp.StatusCode)

	var out struct {
		Token string `json:"token"`
	}
	req.NoError(json.NewDecoder(resp.Body).Decode(&out))

	if s.Config.DebugJSON {
		s.T().Logf("register %s -> %s", email, out.Token)
	}
	return out.Token
}

// Connect opens an authenticated websocket session.
func (s *BaseChatSuite) Connect(ctx context.Context, token string) *websocket.Conn {
	req := s.Require()

	wsURL := strings.Replace(s.server.URL, "http://", "ws://", 1) + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": []string{"Bearer " + token}},
	})
	req.NoError(err)
	s.T().Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "test over") })
	return conn
}

// Send writes one client frame.
func (s *BaseChatSuite) Send(ctx context.Context, conn *websocket.Conn, ev gateway.ClientEvent) {
	data, err := json.Marshal(ev)
	s.Require().NoError(err)
	s.Require().NoError(conn.Write(ctx, websocket.MessageText, data))
}

// Recv reads one server frame, failing the test on timeout.
func (s *BaseChatSuite) Recv(ctx context.Context, conn *websocket.Conn) gateway.ServerEvent {
	req := s.Require()

	readCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, data, err := conn.Read(readCtx)
	req.NoError(err)

	var frame gateway.ServerEvent
	req.NoError(json.Unmarshal(data, &frame))
	if s.Config.DebugJSON {
		s.T().Logf("recv %s", string(data))
	}
	return frame
}
