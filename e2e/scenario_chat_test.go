package e2e

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"course-chat/gateway"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/suite"
)

type ChatScenarioSuite struct {
	BaseChatSuite
}

func TestChatScenarios(t *testing.T) {
	suite.Run(t, new(ChatScenarioSuite))
}

func (s *ChatScenarioSuite) TestTwoStudentsExchangeOrderedMessages() {
	req := s.Require()
	ctx := context.Background()
	s.Step(s.T(), "two students, one course, ordered transcript")

	aliceToken := s.RegisterUser("alice@example.com")
	bobToken := s.RegisterUser("bob@example.com")

	alice := s.Connect(ctx, aliceToken)
	bob := s.Connect(ctx, bobToken)

	// Both join the same course; each join answers with a history replay
	s.Send(ctx, alice, gateway.ClientEvent{Type: gateway.EventJoinCourse, Course: "C1"})
	s.Send(ctx, bob, gateway.ClientEvent{Type: gateway.EventJoinCourse, Course: "C1"})

	req.Equal(gateway.EventHistory, s.Recv(ctx, alice).Type)
	req.Equal(gateway.EventHistory, s.Recv(ctx, bob).Type)

	// Alice sends two messages
	s.Send(ctx, alice, gateway.ClientEvent{Type: gateway.EventSendMessage, Course: "C1", Content: "hello"})
	s.Send(ctx, alice, gateway.ClientEvent{Type: gateway.EventSendMessage, Course: "C1", Content: "world"})

	// Every member observes them in order, sender included
	for _, conn := range []*websocket.Conn{alice, bob} {
		first := s.Recv(ctx, conn)
		second := s.Recv(ctx, conn)

		req.Equal(gateway.EventNewMessage, first.Type)
		req.Equal("hello", first.Message.Content)
		req.Equal("world", second.Message.Content)
		req.Less(first.Message.OrderKey, second.Message.OrderKey)
	}
}

func (s *ChatScenarioSuite) TestHistoryReplayOnRejoin() {
	req := s.Require()
	ctx := context.Background()
	s.Step(s.T(), "history replay for a late joiner")

	aliceToken := s.RegisterUser("alice@example.com")
	alice := s.Connect(ctx, aliceToken)

	s.Send(ctx, alice, gateway.ClientEvent{Type: gateway.EventJoinCourse, Course: "C1"})
	req.Empty(s.Recv(ctx, alice).Messages)

	s.Send(ctx, alice, gateway.ClientEvent{Type: gateway.EventSendMessage, Course: "C1", Content: "for the record"})
	req.Equal(gateway.EventNewMessage, s.Recv(ctx, alice).Type)

	// A second device of the same user joins later
	phone := s.Connect(ctx, aliceToken)
	s.Send(ctx, phone, gateway.ClientEvent{Type: gateway.EventJoinCourse, Course: "C1"})

	history := s.Recv(ctx, phone)
	req.Equal(gateway.EventHistory, history.Type)
	req.Len(history.Messages, 1)
	req.Equal("for the record", history.Messages[0].Content)
}

func (s *ChatScenarioSuite) TestSendWithoutJoinRejected() {
	req := s.Require()
	ctx := context.Background()
	s.Step(s.T(), "sending without membership")

	token := s.RegisterUser("alice@example.com")
	conn := s.Connect(ctx, token)

	s.Send(ctx, conn, gateway.ClientEvent{Type: gateway.EventSendMessage, Course: "C1", Content: "sneaky"})

	frame := s.Recv(ctx, conn)
	req.Equal(gateway.EventError, frame.Type)
	req.Equal("NOT_IN_ROOM", frame.Reason)
	req.False(frame.Retryable)
}

func (s *ChatScenarioSuite) TestCoursesAreIsolated() {
	req := s.Require()
	ctx := context.Background()
	s.Step(s.T(), "messages never cross course rooms")

	aliceToken := s.RegisterUser("alice@example.com")
	bobToken := s.RegisterUser("bob@example.com")

	alice := s.Connect(ctx, aliceToken)
	bob := s.Connect(ctx, bobToken)

	s.Send(ctx, alice, gateway.ClientEvent{Type: gateway.EventJoinCourse, Course: "C1"})
	s.Send(ctx, bob, gateway.ClientEvent{Type: gateway.EventJoinCourse, Course: "C2"})
	req.Equal(gateway.EventHistory, s.Recv(ctx, alice).Type)
	req.Equal(gateway.EventHistory, s.Recv(ctx, bob).Type)

	s.Send(ctx, alice, gateway.ClientEvent{Type: gateway.EventSendMessage, Course: "C1", Content: "only for C1"})
	s.Send(ctx, bob, gateway.ClientEvent{Type: gateway.EventSendMessage, Course: "C2", Content: "only for C2"})

	// Each member sees only their own course's message
	req.Equal("only for C1", s.Recv(ctx, alice).Message.Content)
	req.Equal("only for C2", s.Recv(ctx, bob).Message.Content)
}

func (s *ChatScenarioSuite) TestBadTokenHandshakeRefused() {
	req := s.Require()
	ctx := context.Background()
	s.Step(s.T(), "handshake with a bad credential")

	wsURL := strings.Replace(s.server.URL, "http://", "ws://", 1) + "/ws"
	_, resp, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": []string{"Bearer not-a-token"}},
	})

	req.Error(err)
	req.NotNil(resp)
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *ChatScenarioSuite) TestRestHistoryAndSearch() {
	req := s.Require()
	ctx := context.Background()
	s.Step(s.T(), "transcript over REST")

	token := s.RegisterUser("alice@example.com")
	conn := s.Connect(ctx, token)

	s.Send(ctx, conn, gateway.ClientEvent{Type: gateway.EventJoinCourse, Course: "C1"})
	req.Equal(gateway.EventHistory, s.Recv(ctx, conn).Type)

	s.Send(ctx, conn, gateway.ClientEvent{Type: gateway.EventSendMessage, Course: "C1", Content: "the homework is due friday"})
	req.Equal(gateway.EventNewMessage, s.Recv(ctx, conn).Type)

	// History endpoint returns the persisted transcript
	httpReq, err := http.NewRequest(http.MethodGet, s.server.URL+"/api/chat/C1", nil)
	req.NoError(err)
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(httpReq)
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusOK, resp.StatusCode)

	var history []gateway.WireMessage
	req.NoError(json.NewDecoder(resp.Body).Decode(&history))
	req.Len(history, 1)
	req.Equal("the homework is due friday", history[0].Content)

	// Search sees the message because indexing precedes the broadcast
	searchReq, err := http.NewRequest(http.MethodGet, s.server.URL+"/api/chat/C1/search?q=homework", nil)
	req.NoError(err)
	searchReq.Header.Set("Authorization", "Bearer "+token)

	searchResp, err := http.DefaultClient.Do(searchReq)
	req.NoError(err)
	defer searchResp.Body.Close()
	req.Equal(http.StatusOK, searchResp.StatusCode)

	var results []gateway.WireMessage
	req.NoError(json.NewDecoder(searchResp.Body).Decode(&results))
	req.Len(results, 1)
	req.Equal(history[0].ID, results[0].ID)

	// Without a credential the transcript stays private
	anon, err := http.Get(s.server.URL + "/api/chat/C1")
	req.NoError(err)
	defer anon.Body.Close()
	req.Equal(http.StatusUnauthorized, anon.StatusCode)
}
