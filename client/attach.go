package client

import (
	"context"

	"go.uber.org/zap"

	"github.com/personacore/personad/runtime"
)

// Attacher starts the communication clients a character declares.
type Attacher struct {
	logger *zap.Logger
}

// NewAttacher creates a client attacher.
func NewAttacher(logger *zap.Logger) *Attacher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Attacher{logger: logger.With(zap.String("component", "client_attacher"))}
}

// Attach starts every client declared for the runtime's character: built-in
// declared types first, then clients declared by the character's plugins,
// then starters contributed by runtime plugins, all in declaration order.
// A single client failing to start (or returning no handle) is logged and
// skipped; it never aborts the others.
func (a *Attacher) Attach(ctx context.Context, rt *runtime.AgentRuntime) []runtime.Client {
	ch := rt.Character()
	logger := a.logger.With(zap.String("agent", ch.Name))

	var handles []runtime.Client

	start := func(starter runtime.ClientStarter, source string) {
		c, err := starter.Start(ctx, rt)
		if err != nil {
			logger.Warn("client failed to start",
				zap.String("client", starter.Name()),
				zap.String("source", source),
				zap.Error(err))
			return
		}
		if c == nil {
			logger.Debug("client returned no handle, skipping",
				zap.String("client", starter.Name()),
				zap.String("source", source))
			return
		}
		handles = append(handles, c)
	}

	for _, name := range ch.Clients {
		starter, ok := Lookup(name)
		if !ok {
			logger.Warn("unknown client type declared, skipping",
				zap.String("client", name))
			continue
		}
		start(starter, "character")
	}

	for _, ref := range ch.Plugins {
		for _, name := range ref.Clients {
			starter, ok := Lookup(name)
			if !ok {
				logger.Warn("unknown client type declared by plugin, skipping",
					zap.String("plugin", ref.Name),
					zap.String("client", name))
				continue
			}
			start(starter, "plugin:"+ref.Name)
		}
	}

	for _, p := range rt.Plugins() {
		for _, starter := range p.Clients() {
			start(starter, "runtime-plugin:"+p.Name())
		}
	}

	logger.Info("clients attached", zap.Int("count", len(handles)))
	return handles
}
