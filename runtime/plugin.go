package runtime

import (
	"context"
	"time"
)

// Client is a started communication-client handle bound to one runtime.
type Client interface {
	// Name returns the client type name, e.g. "direct" or "websocket".
	Name() string
	// Stop shuts the client down.
	Stop(ctx context.Context) error
}

// ClientStarter is the capability interface every client variant implements.
// Start may return a nil Client to signal "nothing to attach"; the attacher
// skips nil handles rather than aborting.
type ClientStarter interface {
	// Name returns the client type name this starter handles.
	Name() string
	// Start attaches the client to a runtime and returns its handle.
	Start(ctx context.Context, rt *AgentRuntime) (Client, error)
}

// Plugin is a capability extension attached to a runtime. Baseline plugins
// are always included; character-declared plugins are resolved by the
// reasoning engine and may contribute additional client starters.
type Plugin interface {
	// Name returns the unique plugin name.
	Name() string
	// Init initializes the plugin against the runtime. Called during
	// runtime initialization, before clients attach.
	Init(ctx context.Context, rt *AgentRuntime) error
	// Clients returns the client starters this plugin contributes.
	Clients() []ClientStarter
}

// BaselinePlugins returns the fixed capability set every runtime carries,
// independent of character configuration.
func BaselinePlugins() []Plugin {
	return []Plugin{&bootstrapPlugin{}}
}

// bootstrapPlugin seeds the agent cache with startup state. It is part of
// the baseline set so every runtime records when it came up.
type bootstrapPlugin struct{}

func (b *bootstrapPlugin) Name() string { return "bootstrap" }

func (b *bootstrapPlugin) Init(ctx context.Context, rt *AgentRuntime) error {
	return rt.Cache().Set(ctx, startedAtKey, time.Now().UTC().Format(time.RFC3339Nano), 0)
}

func (b *bootstrapPlugin) Clients() []ClientStarter { return nil }
