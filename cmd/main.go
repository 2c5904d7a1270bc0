package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"course-chat/auth"
	"course-chat/gateway"
	"course-chat/internal"
	"course-chat/moderation"
	"course-chat/observability"
	"course-chat/repositories"
	"course-chat/runtime"
	"course-chat/runtime/workers"
	"course-chat/services"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting. Keeping it separate from main means every
// defer (database close, index close) executes before the process exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Storage (BadgerDB transcript + Bluge search index)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.INFO))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	indexWriter, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return fmt.Errorf("search index opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing search index...")
		_ = indexWriter.Close()
	}()

	// 3. Repositories & Moderation
	messageRepository := repositories.NewMessageRepository(db, log, config.HistoryLimit)
	defer messageRepository.Close()
	userRepository := repositories.NewUserRepository(db)
	searchRepository := repositories.NewSearchRepository(indexWriter, log)

	censored, err := runtime.LoadCensoredWords()
	if err != nil {
		return fmt.Errorf("censored words loading failed: %w", err)
	}
	log.Info("Loaded censored dictionaries", "languages", censored.Languages, "words", len(censored.Words))
	censoredChar, err := CharacterRune(config.ModerationCharReplacement)
	if err != nil {
		return err
	}
	moderator, err := moderation.NewModerator(censored.Words, censoredChar, log)
	if err != nil {
		return fmt.Errorf("moderator build failed: %w", err)
	}

	// 4. Supervision & Dispatch
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sup := workers.NewSupervisor(log, config.RestartInterval)
	registry := runtime.NewRegistry()
	monitor := observability.NewMonitor(log)

	dispatcher := runtime.NewDispatcher(
		registry, messageRepository, searchRepository, &moderator, monitor,
		sup, log, config.BufferSize, config.DispatchTimeout,
	)
	heartbeat := workers.NewHeartbeat(monitor, log, config.HeartbeatInterval)
	sup.Add(dispatcher, heartbeat)
	go sup.Run(ctx)

	// 5. Services & Gateway
	verifier := auth.NewVerifier(userRepository, log)
	authService := services.NewAuthService(userRepository, config.AuthTokenDuration)
	chatService := services.NewChatService(dispatcher, registry, searchRepository)

	wsHandler := gateway.NewWSHandler(
		verifier, chatService, registry, monitor, log,
		config.ConnectionBufferSize, config.HistoryLimit, config.DispatchTimeout,
	)
	router := gateway.Router(
		authService, chatService, verifier, wsHandler,
		monitor, log, config.HistoryLimit, config.DispatchTimeout,
	)

	if config.DebugPort > 0 {
		internal.StartDebugServer(db, config.DebugPort, "/inspect", internal.MessageMapper, func() map[string]any {
			stats := monitor.Snapshot()
			return map[string]any{
				"Sessions":   stats.ActiveSessions,
				"Rooms":      stats.JoinedRooms,
				"Dispatched": stats.MessagesDispatched,
				"Broadcast":  stats.MessagesBroadcast,
			}
		})
		log.Info("Debug inspector enabled", "url", fmt.Sprintf("http://localhost:%d/inspect", config.DebugPort))
	}

	// 6. HTTP Server
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{
		Addr:              address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting chat server", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 8. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown incomplete", "err", err)
	}
	sup.Stop()
	log.Info("Program stopped cleanly")

	return nil
}
