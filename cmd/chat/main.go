package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"chatbot-backend/internal/chat"
	"chatbot-backend/internal/client"
	"chatbot-backend/internal/config"
	"chatbot-backend/internal/logging"
	"chatbot-backend/internal/middleware"
	"chatbot-backend/internal/models"
)

func main() {
	cfg := config.LoadClient()

	flag.StringVar(&cfg.APIURL, "api", cfg.APIURL, "chat server base URL")
	flag.StringVar(&cfg.Token, "token", cfg.Token, "bearer token")
	flag.StringVar(&cfg.UserID, "user", cfg.UserID, "user id for a locally minted dev token (needs JWT_SECRET)")
	flag.Parse()

	logger := logging.New(cfg.LogLevel, false)

	session, err := resolveSession(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Please sign in to chat:", err)
		os.Exit(1)
	}

	api := client.New(cfg.APIURL, session.AccessToken, time.Duration(cfg.TimeoutSeconds)*time.Second, logger)
	view := &terminal{out: os.Stdout, printed: make(map[uuid.UUID]struct{})}

	orch := chat.NewOrchestrator(session, api, api, api, view,
		chat.WithLogger(logger),
		chat.WithOnChange(view.render),
	)
	defer orch.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := orch.Init(ctx); err != nil {
		os.Exit(1)
	}
	fmt.Fprintln(os.Stdout, "Connected. Type a message and press enter, /quit to leave.")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok || strings.TrimSpace(line) == "/quit" {
				return
			}
			orch.SetInput(line)
			if !orch.CanSend() {
				continue
			}
			view.thinking()
			// Failures are already shown through Notify.
			orch.Send(ctx)
		}
	}
}

func resolveSession(cfg *config.ClientConfig) (chat.Session, error) {
	if cfg.Token != "" {
		userID, err := middleware.UnverifiedUserID(cfg.Token)
		if err != nil {
			return chat.Session{}, err
		}
		return chat.Session{UserID: userID, AccessToken: cfg.Token}, nil
	}

	if cfg.JWTSecret == "" || cfg.UserID == "" {
		return chat.Session{}, fmt.Errorf("set CHAT_TOKEN, or JWT_SECRET and CHAT_USER_ID")
	}
	userID, err := uuid.Parse(cfg.UserID)
	if err != nil {
		return chat.Session{}, fmt.Errorf("invalid user id: %w", err)
	}
	token, err := middleware.NewJWTAuth(cfg.JWTSecret).GenerateAccessToken(userID, 24*time.Hour)
	if err != nil {
		return chat.Session{}, err
	}
	return chat.Session{UserID: userID, AccessToken: token}, nil
}

// terminal prints each message once, in the order the view settles on.
type terminal struct {
	mu      sync.Mutex
	out     io.Writer
	printed map[uuid.UUID]struct{}
}

func (t *terminal) render(msgs []models.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, m := range msgs {
		if _, ok := t.printed[m.ID]; ok {
			continue
		}
		t.printed[m.ID] = struct{}{}
		fmt.Fprintf(t.out, "[%s] %s: %s\n", m.CreatedAt.Local().Format("15:04"), speaker(m.Role), m.Content)
	}
}

func (t *terminal) thinking() {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.out, "...")
}

func (t *terminal) Notify(title, description string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, "%s: %s\n", title, description)
}

func speaker(r models.Role) string {
	switch r {
	case models.RoleUser:
		return "you"
	case models.RoleAssistant:
		return "assistant"
	}
	return string(r)
}
