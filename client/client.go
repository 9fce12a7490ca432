// Package client provides the built-in communication client types and the
// attacher that starts a character's declared clients against a runtime.
package client

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/personacore/personad/runtime"
)

// Builtin client type names.
const (
	TypeDirect    = "direct"
	TypeWebSocket = "websocket"
)

// Lookup resolves a built-in client starter by type name, case-insensitively.
func Lookup(name string) (runtime.ClientStarter, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case TypeDirect:
		return &directStarter{}, true
	case TypeWebSocket:
		return &websocketStarter{}, true
	default:
		return nil, false
	}
}

// handle is the common client handle for built-in clients. The actual
// transports are served by the gateway; the handle records that the client
// is attached and enabled for its runtime.
type handle struct {
	name   string
	logger *zap.Logger
}

func (h *handle) Name() string { return h.name }

func (h *handle) Stop(context.Context) error {
	h.logger.Debug("client stopped", zap.String("client", h.name))
	return nil
}

// directStarter enables the HTTP message route for an agent.
type directStarter struct{}

func (s *directStarter) Name() string { return TypeDirect }

func (s *directStarter) Start(_ context.Context, rt *runtime.AgentRuntime) (runtime.Client, error) {
	logger := rt.Logger()
	logger.Info("direct client attached, agent reachable via gateway message route")
	return &handle{name: TypeDirect, logger: logger}, nil
}

// websocketStarter enables the gateway's websocket chat route for an agent.
type websocketStarter struct{}

func (s *websocketStarter) Name() string { return TypeWebSocket }

func (s *websocketStarter) Start(_ context.Context, rt *runtime.AgentRuntime) (runtime.Client, error) {
	logger := rt.Logger()
	logger.Info("websocket client attached, agent reachable via gateway ws route")
	return &handle{name: TypeWebSocket, logger: logger}, nil
}
