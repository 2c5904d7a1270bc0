package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"course-chat/contract"
	"course-chat/domain"
	"course-chat/errors"
	"course-chat/observability"
	"course-chat/services"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

type identityKey struct{}

// IdentityFromContext returns the verified identity set by RequireAuth.
func IdentityFromContext(ctx context.Context) (domain.UserIdentity, bool) {
	identity, ok := ctx.Value(identityKey{}).(domain.UserIdentity)
	return identity, ok
}

// RequireAuth verifies the bearer token before the wrapped handler runs.
func RequireAuth(verifier contract.IVerifier, callTimeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			credential := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			verifyCtx, cancel := context.WithTimeout(r.Context(), callTimeout)
			identity, err := verifier.VerifyCredential(verifyCtx, credential)
			cancel()
			if err != nil {
				writeError(w, err)
				return
			}
			ctx := context.WithValue(r.Context(), identityKey{}, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Router assembles the REST and websocket surface of the chat server.
func Router(
	authService services.IAuthService,
	chatService services.IChatService,
	verifier contract.IVerifier,
	wsHandler *WSHandler,
	monitor *observability.Monitor,
	log *slog.Logger,
	historyLimit int,
	callTimeout time.Duration,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)

	r.Post("/api/auth/register", handleRegister(authService, log))
	r.Post("/api/auth/login", handleLogin(authService, log))

	r.Group(func(r chi.Router) {
		r.Use(RequireAuth(verifier, callTimeout))
		r.Get("/api/chat/{courseID}", handleHistory(chatService, historyLimit))
		r.Get("/api/chat/{courseID}/search", handleSearch(chatService, historyLimit))
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, monitor.Snapshot())
	})
	r.Get("/ws", wsHandler.ServeHTTP)

	return r
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

func handleRegister(authService services.IAuthService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req credentialsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		token, err := authService.Register(req.Email, req.Password)
		if err != nil {
			log.Info("Registration refused", "email", req.Email, "err", err)
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, tokenResponse{Token: string(token)})
	}
}

func handleLogin(authService services.IAuthService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req credentialsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		token, err := authService.Login(req.Email, req.Password)
		if err != nil {
			log.Info("Login refused", "email", req.Email, "err", err)
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, tokenResponse{Token: string(token)})
	}
}

// handleHistory serves the transcript of one course, ascending by order
// key, bounded by the limit query parameter capped at the server default.
func handleHistory(chatService services.IChatService, historyLimit int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		course := domain.CourseID(chi.URLParam(r, "courseID"))
		messages, err := chatService.History(r.Context(), domain.HistoryQuery{
			Course: course,
			Limit:  boundedLimit(r, historyLimit),
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toWireMessages(messages))
	}
}

func handleSearch(chatService services.IChatService, historyLimit int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		course := domain.CourseID(chi.URLParam(r, "courseID"))
		terms := r.URL.Query().Get("q")
		if strings.TrimSpace(terms) == "" {
			http.Error(w, "missing q parameter", http.StatusBadRequest)
			return
		}
		messages, err := chatService.Search(r.Context(), course, terms, boundedLimit(r, historyLimit))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toWireMessages(messages))
	}
}

func boundedLimit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 || limit > fallback {
		return fallback
	}
	return limit
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, errors.HTTPStatus(err), map[string]string{
		"reason": errors.Reason(err),
		"error":  err.Error(),
	})
}
