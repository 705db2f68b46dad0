package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatbot-backend/internal/config"
	"chatbot-backend/internal/database"
	"chatbot-backend/internal/handlers"
	"chatbot-backend/internal/logging"
	"chatbot-backend/internal/middleware"
	"chatbot-backend/internal/repository"
	"chatbot-backend/internal/router"
	"chatbot-backend/internal/services"
	"chatbot-backend/internal/websocket"
)

func main() {
	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogJSON)
	logger.Info("starting chatbot backend", "env", cfg.Env)

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(cfg.DatabaseURL)
	if err != nil {
		logger.Error("postgres connection failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("postgres connected")

	// ──── Step 3: Run Database Migrations ────
	if err := database.RunMigrations(pool, "migrations", logger); err != nil {
		logger.Error("database migration failed", "err", err)
		os.Exit(1)
	}

	// ──── Step 4: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(cfg.RedisURL)
	if err != nil {
		logger.Error("redis connection failed", "err", err)
		os.Exit(1)
	}
	defer redisClients.Close()
	logger.Info("redis connected")

	// ──── Initialize Repositories ────
	conversationRepo := repository.NewConversationRepo(pool)
	messageRepo := repository.NewMessageRepo(pool)

	// ──── Step 5: Initialize Upstream Completer ────
	completer := newCompleter(cfg)
	if !completer.Configured() {
		logger.Warn("upstream API key not set; relay will answer with a configuration error", "provider", cfg.UpstreamProvider)
	}

	// ──── Initialize Services & Handlers ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	messageService := services.NewMessageService(conversationRepo, messageRepo, redisClients.Publish, logger)

	conversationHandler := handlers.NewConversationHandler(messageService)
	relayHandler := handlers.NewRelayHandler(completer, cfg.DefaultModel, logger)

	// ──── Step 6: Start WebSocket Hub ────
	wsHub := websocket.NewHub(redisClients.PubSub, jwtAuth, conversationRepo, logger)

	// ──── Step 7: Start HTTP Server ────
	r := router.New(logger, jwtAuth, conversationHandler, relayHandler, wsHub, router.Options{
		FrontendURL:      cfg.FrontendURL,
		RelayRequireAuth: cfg.RelayRequireAuth,
	})

	server := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Port),
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		// Leave room for a slow upstream completion.
		WriteTimeout: time.Duration(cfg.UpstreamTimeoutSeconds+15) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan

		logger.Info("shutting down", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("graceful shutdown failed", "err", err)
		}
	}()

	logger.Info("chatbot backend ready",
		"addr", server.Addr,
		"relay", "/functions/v1/generate-chat",
		"api", "/api/v1",
		"provider", cfg.UpstreamProvider,
	)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
		os.Exit(1)
	}
}

func newCompleter(cfg *config.Config) services.Completer {
	if cfg.UpstreamProvider == config.ProviderGemini {
		return services.NewGeminiClient(cfg.GeminiAPIKey)
	}
	return services.NewOpenRouterClient(services.OpenRouterConfig{
		APIKey:  cfg.OpenRouterAPIKey,
		BaseURL: cfg.OpenRouterBaseURL,
		Referer: cfg.OpenRouterReferer,
		Title:   cfg.OpenRouterTitle,
		Timeout: time.Duration(cfg.UpstreamTimeoutSeconds) * time.Second,
	})
}
