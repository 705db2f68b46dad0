package router

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"chatbot-backend/internal/handlers"
	"chatbot-backend/internal/middleware"
	"chatbot-backend/internal/websocket"
)

type Options struct {
	FrontendURL      string
	RelayRequireAuth bool
}

func New(
	logger *slog.Logger,
	jwtAuth *middleware.JWTAuth,
	conversationHandler *handlers.ConversationHandler,
	relayHandler *handlers.RelayHandler,
	wsHub *websocket.Hub,
	opts Options,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.AccessLog(logger))
	r.Use(chimiddleware.Recoverer)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// ──── Relay ────
	// The CORS layer answers preflight before auth so OPTIONS never needs a token.
	r.Route("/functions/v1", func(r chi.Router) {
		r.Use(middleware.CORS(middleware.RelayCORS))
		if opts.RelayRequireAuth {
			r.Use(jwtAuth.Middleware)
		}
		r.Handle("/generate-chat", relayHandler)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.CORS(middleware.APICORS(opts.FrontendURL)))

		// ──── Conversation Routes ────
		r.Route("/conversations", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/current", conversationHandler.Current)
			r.Get("/{id}/messages", conversationHandler.ListMessages)
			r.Post("/{id}/messages", conversationHandler.CreateMessage)
		})

		// ──── WebSocket ────
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r
}
