// Package runtime binds one character to its storage, cache, credential,
// and baseline plugin set, forming the live agent instance the gateway
// routes messages to.
package runtime

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/personacore/personad/character"
	"github.com/personacore/personad/store"
)

// Message is one inbound user message.
type Message struct {
	Text     string `json:"text"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

// Reply is one outbound agent message.
type Reply struct {
	User string `json:"user"`
	Text string `json:"text"`
}

// Responder is the reasoning engine boundary. The runtime persists messages
// and delegates response generation to whatever implementation is wired in.
type Responder interface {
	Respond(ctx context.Context, rt *AgentRuntime, msg *Message) ([]Reply, error)
}

// Options carries the inputs an AgentRuntime binds at construction.
type Options struct {
	Character *character.Character
	Store     *store.Store
	Cache     store.Cache

	// Token is the resolved model-provider credential; empty means the
	// provider needs none.
	Token string

	// Responder overrides the default acknowledgment responder.
	Responder Responder

	// Plugins are added after the baseline set.
	Plugins []Plugin

	Logger *zap.Logger
}

// AgentRuntime is the live process-state of one agent. It exclusively owns
// its store and cache; it is torn down only on process exit.
type AgentRuntime struct {
	character *character.Character
	store     *store.Store
	cache     store.Cache
	token     string
	responder Responder
	plugins   []Plugin
	logger    *zap.Logger

	initialized bool
}

// New constructs a runtime bound to the given character, storage, cache, and
// credential, plus the fixed baseline plugin set. Construction does no I/O;
// Initialize must run before the runtime handles messages.
func New(opts Options) (*AgentRuntime, error) {
	if opts.Character == nil {
		return nil, fmt.Errorf("runtime: character is required")
	}
	if opts.Character.ID == "" {
		return nil, fmt.Errorf("runtime: character %s has no ID", opts.Character.Name)
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("runtime: store is required")
	}
	if opts.Cache == nil {
		return nil, fmt.Errorf("runtime: cache is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	responder := opts.Responder
	if responder == nil {
		responder = &ackResponder{}
	}

	rt := &AgentRuntime{
		character: opts.Character,
		store:     opts.Store,
		cache:     opts.Cache,
		token:     opts.Token,
		responder: responder,
		plugins:   append(BaselinePlugins(), opts.Plugins...),
		logger: logger.With(
			zap.String("component", "runtime"),
			zap.String("agent", opts.Character.Name),
		),
	}

	rt.logger.Info("runtime created",
		zap.String("agent_id", opts.Character.ID),
		zap.String("provider", opts.Character.ModelProvider),
		zap.Bool("has_token", opts.Token != ""),
		zap.Int("plugins", len(rt.plugins)),
	)

	return rt, nil
}

// Initialize runs plugin initialization in order. It must complete before
// clients attach.
func (r *AgentRuntime) Initialize(ctx context.Context) error {
	if r.initialized {
		return nil
	}

	for _, p := range r.plugins {
		if err := p.Init(ctx, r); err != nil {
			return fmt.Errorf("init plugin %s: %w", p.Name(), err)
		}
		r.logger.Debug("plugin initialized", zap.String("plugin", p.Name()))
	}

	r.initialized = true
	return nil
}

// Character returns the bound character definition.
func (r *AgentRuntime) Character() *character.Character { return r.character }

// ID returns the agent's stable identifier.
func (r *AgentRuntime) ID() string { return r.character.ID }

// Name returns the agent's display name.
func (r *AgentRuntime) Name() string { return r.character.Name }

// Store returns the runtime's exclusively owned store.
func (r *AgentRuntime) Store() *store.Store { return r.store }

// Cache returns the runtime's agent-scoped cache.
func (r *AgentRuntime) Cache() store.Cache { return r.cache }

// Token returns the resolved provider credential (may be empty).
func (r *AgentRuntime) Token() string { return r.token }

// Plugins returns the runtime's plugin set.
func (r *AgentRuntime) Plugins() []Plugin { return r.plugins }

// Logger returns the runtime's logger, already tagged with the agent name.
func (r *AgentRuntime) Logger() *zap.Logger { return r.logger }

// ProcessMessage persists the inbound message, delegates to the responder,
// persists the replies, and returns them.
func (r *AgentRuntime) ProcessMessage(ctx context.Context, msg *Message) ([]Reply, error) {
	if !r.initialized {
		return nil, fmt.Errorf("runtime %s not initialized", r.character.Name)
	}
	if msg == nil || msg.Text == "" {
		return nil, fmt.Errorf("empty message")
	}

	if err := r.store.CreateMemory(ctx, &store.Memory{
		AgentID:  r.character.ID,
		UserID:   msg.UserID,
		UserName: msg.UserName,
		Role:     "user",
		Text:     msg.Text,
	}); err != nil {
		return nil, err
	}

	replies, err := r.responder.Respond(ctx, r, msg)
	if err != nil {
		return nil, fmt.Errorf("respond: %w", err)
	}

	for _, reply := range replies {
		if err := r.store.CreateMemory(ctx, &store.Memory{
			AgentID: r.character.ID,
			Role:    "agent",
			Text:    reply.Text,
		}); err != nil {
			return nil, err
		}
	}

	return replies, nil
}

// ackResponder is the stand-in responder used when no reasoning engine is
// wired in. It acknowledges the message in the character's voice.
type ackResponder struct{}

func (a *ackResponder) Respond(_ context.Context, rt *AgentRuntime, msg *Message) ([]Reply, error) {
	return []Reply{{
		User: rt.character.Name,
		Text: fmt.Sprintf("%s heard: %s", rt.character.Name, msg.Text),
	}}, nil
}

// startedAtKey is the cache key the bootstrap plugin writes on Init.
const startedAtKey = "bootstrap:started_at"

// StartedAt reads the bootstrap timestamp from the agent cache.
func (r *AgentRuntime) StartedAt(ctx context.Context) (time.Time, error) {
	v, err := r.cache.Get(ctx, startedAtKey)
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339Nano, v)
}
