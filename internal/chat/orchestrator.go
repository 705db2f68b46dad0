package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"chatbot-backend/internal/models"
)

// ContextWindow is how many already loaded messages accompany a new user
// message to the relay.
const ContextWindow = 10

var (
	ErrNoSession      = errors.New("chat: no active session")
	ErrNotReady       = errors.New("chat: conversation not ready")
	ErrSendInProgress = errors.New("chat: a message is already being sent")
	ErrClosed         = errors.New("chat: view closed")
)

type State int

const (
	StateUninitialized State = iota
	StateResolvingIdentity
	StateConversationReady
	StateIdle
	StateSending
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateResolvingIdentity:
		return "resolving-identity"
	case StateConversationReady:
		return "conversation-ready"
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Session is the authenticated identity the view was opened with.
type Session struct {
	UserID      uuid.UUID
	AccessToken string
}

// Store is the backing store as seen by one signed-in user.
type Store interface {
	EnsureConversation(ctx context.Context) (*models.Conversation, error)
	ListMessages(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error)
	InsertMessage(ctx context.Context, conversationID uuid.UUID, role models.Role, content string) (*models.Message, error)
}

// Relay turns a bounded conversation into a reply. An empty reply is not an
// error.
type Relay interface {
	Generate(ctx context.Context, messages []models.ChatMessage) (string, error)
}

type Subscriber interface {
	Subscribe(ctx context.Context, conversationID uuid.UUID) (Subscription, error)
}

// Subscription delivers rows inserted into one conversation. Inserts is
// closed when the subscription ends.
type Subscription interface {
	Inserts() <-chan models.Message
	Close() error
}

// Notifier shows a failure to the user.
type Notifier interface {
	Notify(title, description string)
}

type Option func(*Orchestrator)

// WithOnChange registers the view's render callback. It receives a copy of
// the rendered list and must not call back into the Orchestrator.
func WithOnChange(fn func([]models.Message)) Option {
	return func(o *Orchestrator) { o.onChange = fn }
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.log = logger }
}

// Orchestrator drives one mounted chat view: it owns the rendered message
// list, the input, and the live subscription for the view's lifetime.
type Orchestrator struct {
	session    Session
	store      Store
	relay      Relay
	subscriber Subscriber
	notifier   Notifier
	onChange   func([]models.Message)
	log        *slog.Logger

	mu           sync.Mutex
	state        State
	conversation *models.Conversation
	messages     []models.Message
	seen         map[uuid.UUID]struct{}
	input        string

	sub       Subscription
	pumpDone  chan struct{}
	closeOnce sync.Once
}

func NewOrchestrator(session Session, store Store, relay Relay, subscriber Subscriber, notifier Notifier, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		session:    session,
		store:      store,
		relay:      relay,
		subscriber: subscriber,
		notifier:   notifier,
		log:        slog.Default(),
		state:      StateUninitialized,
		seen:       make(map[uuid.UUID]struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Init runs the mount sequence once: identity, conversation, initial load,
// live subscription. On success the view is idle.
func (o *Orchestrator) Init(ctx context.Context) error {
	o.mu.Lock()
	if o.state != StateUninitialized {
		o.mu.Unlock()
		return fmt.Errorf("chat: init called in state %s", o.state)
	}
	o.state = StateResolvingIdentity
	o.mu.Unlock()

	if o.session.UserID == uuid.Nil {
		o.resetIfOpen()
		return ErrNoSession
	}

	conv, err := o.store.EnsureConversation(ctx)
	if err != nil {
		if !o.resetIfOpen() {
			return ErrClosed
		}
		o.notifier.Notify("Failed to create chat", err.Error())
		return fmt.Errorf("ensure conversation: %w", err)
	}

	o.mu.Lock()
	if o.state == StateClosed {
		o.mu.Unlock()
		return ErrClosed
	}
	o.conversation = conv
	o.state = StateConversationReady
	o.mu.Unlock()

	// A failed load still leaves a usable, empty view; the live feed and
	// later writes fill it in.
	loaded, err := o.store.ListMessages(ctx, conv.ID)
	if err != nil && o.State() != StateClosed {
		o.log.Error("load messages", "conversation_id", conv.ID, "err", err)
		o.notifier.Notify("Failed to load messages", err.Error())
	}
	o.merge(loaded...)

	sub, err := o.subscriber.Subscribe(ctx, conv.ID)
	if err != nil {
		o.log.Warn("live updates unavailable", "conversation_id", conv.ID, "err", err)
	}

	o.mu.Lock()
	if o.state == StateClosed {
		o.mu.Unlock()
		if sub != nil {
			sub.Close()
		}
		return ErrClosed
	}
	if sub != nil {
		o.sub = sub
		o.pumpDone = make(chan struct{})
		go o.pump(sub, o.pumpDone)
	}
	o.state = StateIdle
	o.mu.Unlock()
	return nil
}

// resetIfOpen returns the view to uninitialized unless it was closed
// meanwhile. It reports whether the view is still open.
func (o *Orchestrator) resetIfOpen() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == StateClosed {
		return false
	}
	o.state = StateUninitialized
	return true
}

func (o *Orchestrator) pump(sub Subscription, done chan struct{}) {
	defer close(done)
	for m := range sub.Inserts() {
		o.merge(m)
	}
}

// SetInput replaces the input field.
func (o *Orchestrator) SetInput(text string) {
	o.mu.Lock()
	o.input = text
	o.mu.Unlock()
}

func (o *Orchestrator) Input() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.input
}

// CanSend reports whether the send action should be enabled.
func (o *Orchestrator) CanSend() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state == StateIdle && strings.TrimSpace(o.input) != ""
}

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) Conversation() *models.Conversation {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.conversation
}

// Messages returns a copy of the rendered list in creation order.
func (o *Orchestrator) Messages() []models.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]models.Message(nil), o.messages...)
}

// Send runs the send sequence for the current input. A blank input or a view
// without a conversation is a silent no-op. Failures are shown through the
// Notifier and returned; nothing is retried.
func (o *Orchestrator) Send(ctx context.Context) error {
	o.mu.Lock()
	text := strings.TrimSpace(o.input)
	switch {
	case o.conversation == nil || text == "":
		o.mu.Unlock()
		return nil
	case o.state == StateSending:
		o.mu.Unlock()
		return ErrSendInProgress
	case o.state != StateIdle:
		o.mu.Unlock()
		return ErrNotReady
	}
	o.state = StateSending
	conversationID := o.conversation.ID
	prior := append([]models.Message(nil), o.messages...)
	o.mu.Unlock()

	defer o.finishSending()

	userMsg, err := o.store.InsertMessage(ctx, conversationID, models.RoleUser, text)
	if err != nil {
		return o.fail("save message", err)
	}

	o.mu.Lock()
	o.input = ""
	o.mu.Unlock()
	o.merge(*userMsg)

	reply, err := o.relay.Generate(ctx, BuildContext(prior, text))
	if err != nil {
		return o.fail("generate reply", err)
	}
	if reply == "" {
		return nil
	}

	assistantMsg, err := o.store.InsertMessage(ctx, conversationID, models.RoleAssistant, reply)
	if err != nil {
		return o.fail("save reply", err)
	}
	o.merge(*assistantMsg)
	return nil
}

func (o *Orchestrator) finishSending() {
	o.mu.Lock()
	if o.state == StateSending {
		o.state = StateIdle
	}
	o.mu.Unlock()
}

func (o *Orchestrator) fail(step string, err error) error {
	o.log.Error("send failed", "step", step, "err", err)
	desc := err.Error()
	if desc == "" {
		desc = "Failed to send message"
	}
	o.notifier.Notify("Error", desc)
	return fmt.Errorf("%s: %w", step, err)
}

// Close tears the view down and releases the live subscription. In-flight
// writes and relay calls are left to finish on their own.
func (o *Orchestrator) Close() error {
	var err error
	o.closeOnce.Do(func() {
		o.mu.Lock()
		o.state = StateClosed
		sub, done := o.sub, o.pumpDone
		o.sub = nil
		o.mu.Unlock()

		if sub != nil {
			err = sub.Close()
			<-done
		}
	})
	return err
}

// merge adds messages not rendered yet, keyed by id, keeping the list in
// creation order whatever order they arrive in.
func (o *Orchestrator) merge(msgs ...models.Message) {
	if len(msgs) == 0 {
		return
	}

	o.mu.Lock()
	if o.state == StateClosed {
		o.mu.Unlock()
		return
	}
	added := false
	for _, m := range msgs {
		if _, dup := o.seen[m.ID]; dup {
			continue
		}
		if o.conversation != nil && m.ConversationID != uuid.Nil && m.ConversationID != o.conversation.ID {
			continue
		}
		o.seen[m.ID] = struct{}{}
		i := sort.Search(len(o.messages), func(i int) bool { return m.Before(o.messages[i]) })
		o.messages = append(o.messages, models.Message{})
		copy(o.messages[i+1:], o.messages[i:])
		o.messages[i] = m
		added = true
	}
	var snapshot []models.Message
	if added && o.onChange != nil {
		snapshot = append([]models.Message(nil), o.messages...)
	}
	o.mu.Unlock()

	if snapshot != nil {
		o.onChange(snapshot)
	}
}

// BuildContext is the relay payload for a new user message: the last
// ContextWindow prior messages followed by the new one.
func BuildContext(prior []models.Message, text string) []models.ChatMessage {
	if len(prior) > ContextWindow {
		prior = prior[len(prior)-ContextWindow:]
	}
	out := make([]models.ChatMessage, 0, len(prior)+1)
	for _, m := range prior {
		out = append(out, m.ChatMessage())
	}
	return append(out, models.ChatMessage{Role: string(models.RoleUser), Content: text})
}
