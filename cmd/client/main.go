package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"course-chat/domain"
	"course-chat/domain/event"
	"course-chat/gateway"
	"course-chat/projection"

	"github.com/Netflix/go-env"
	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables. A token can be
// supplied directly, or email and password are exchanged for one at startup.
type Config struct {
	ServerAddress string `env:"CHAT_SERVER_ADDR,default=localhost:8080"`
	CourseID      string `env:"CHAT_COURSE_ID,default=demo-course"`
	Token         string `env:"CHAT_TOKEN"`
	Email         string `env:"CHAT_EMAIL"`
	Password      string `env:"CHAT_PASSWORD"`
	Colours       bool   `env:"CHAT_COLOURS,default=true"`
	LogLevel      string `env:"LOG_LEVEL,default=info"`
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

// run handles the websocket client lifecycle: configuration, login,
// connection, history rendering and the interactive send loop.
func run() (int, error) {
	// 1. Load configuration from environment variables.
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Setup context to handle termination signals (Ctrl+C).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Resolve the credential.
	token := config.Token
	if token == "" {
		var err error
		token, err = login(ctx, config)
		if err != nil {
			return exitRuntime, err
		}
	}

	// 4. Open the websocket and join the course room.
	wsURL := fmt.Sprintf("ws://%s/ws", config.ServerAddress)
	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": []string{"Bearer " + token}},
	})
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to server at %s: %w", config.ServerAddress, err)
	}
	defer func() {
		log.Info("Closing connection...")
		_ = conn.Close(websocket.StatusNormalClosure, "client exit")
	}()

	if err := send(ctx, conn, gateway.ClientEvent{Type: gateway.EventJoinCourse, Course: config.CourseID}); err != nil {
		return exitRuntime, fmt.Errorf("join failed: %w", err)
	}

	log.Info("Connected", "server", config.ServerAddress, "course", config.CourseID)

	// 5. Stdin loop: each line becomes a sendMessage event.
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			content := strings.TrimSpace(scanner.Text())
			if content == "" {
				continue
			}
			ev := gateway.ClientEvent{Type: gateway.EventSendMessage, Course: config.CourseID, Content: content}
			if err := send(ctx, conn, ev); err != nil {
				return
			}
		}
	}()

	// 6. Reception loop. The timeline deduplicates overlap between the
	// history replay and live broadcasts.
	timeline := projection.NewTimeline(domain.CourseID(config.CourseID))
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return exitOK, nil
			}
			return exitRuntime, fmt.Errorf("connection error: %w", err)
		}

		var frame gateway.ServerEvent
		if err := json.Unmarshal(data, &frame); err != nil {
			log.Warn("Unreadable frame", "err", err)
			continue
		}

		switch frame.Type {
		case gateway.EventHistory:
			timeline.Consume(event.HistoryReplayed{
				Course:   domain.CourseID(frame.Course),
				Messages: toDomain(frame.Messages),
			})
			renderHistory(frame.Messages)
		case gateway.EventNewMessage:
			if frame.Message == nil {
				continue
			}
			m := toDomain([]gateway.WireMessage{*frame.Message})[0]
			before := timeline.Len()
			timeline.Consume(event.MessageBroadcast{Message: m})
			if timeline.Len() == before {
				continue // already rendered from the history replay
			}
			renderLive(config.Colours, *frame.Message)
		case gateway.EventError:
			renderError(config.Colours, frame)
		}
	}
}

// login exchanges email and password for a token over the REST surface.
func login(ctx context.Context, config Config) (string, error) {
	if config.Email == "" || config.Password == "" {
		return "", fmt.Errorf("no credential: set CHAT_TOKEN or CHAT_EMAIL and CHAT_PASSWORD")
	}

	body, _ := json.Marshal(map[string]string{"email": config.Email, "password": config.Password})
	url := fmt.Sprintf("http://%s/api/auth/login", config.ServerAddress)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("login request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login refused with status %d", resp.StatusCode)
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.Token, nil
}

func send(ctx context.Context, conn *websocket.Conn, ev gateway.ClientEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

func toDomain(messages []gateway.WireMessage) []domain.Message {
	out := make([]domain.Message, 0, len(messages))
	for _, m := range messages {
		id, _ := uuid.Parse(m.ID)
		out = append(out, domain.Message{
			ID:        id,
			CourseID:  domain.CourseID(m.Course),
			SenderID:  m.Sender,
			Content:   m.Content,
			OrderKey:  m.OrderKey,
			CreatedAt: m.At,
		})
	}
	return out
}

// renderHistory prints the transcript tail as a table.
func renderHistory(messages []gateway.WireMessage) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"#", "Time", "Sender", "Message"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for _, m := range messages {
		table.Append([]string{
			fmt.Sprintf("%d", m.OrderKey),
			m.At.Format(time.TimeOnly),
			m.Sender,
			m.Content,
		})
	}
	table.Render()
}

func renderLive(colours bool, m gateway.WireMessage) {
	line := fmt.Sprintf("[%s] %s: %s", m.At.Format(time.TimeOnly), m.Sender, m.Content)
	if colours {
		line = color.New(color.BgBlack, color.FgGreen).Render(line)
	}
	fmt.Println(line)
}

func renderError(colours bool, frame gateway.ServerEvent) {
	line := fmt.Sprintf("!! %s: %s", frame.Reason, frame.Detail)
	if colours {
		line = color.New(color.BgBlack, color.FgRed).Render(line)
	}
	fmt.Println(line)
}
