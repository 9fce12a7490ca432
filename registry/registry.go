// Package registry holds the process-wide directory of running agent
// runtimes. The gateway routes inbound messages through it.
package registry

import (
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/personacore/personad/runtime"
)

// Registry maps agent identity to its runtime. It lives for the process
// lifetime and is passed by explicit handle; there is no unregister — the
// last registration for an identity wins.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]*runtime.AgentRuntime
	logger *zap.Logger
}

// New creates an empty registry.
func New(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		agents: make(map[string]*runtime.AgentRuntime),
		logger: logger.With(zap.String("component", "registry")),
	}
}

// Register inserts a runtime under its agent ID, replacing any previous
// entry for the same identity.
func (r *Registry) Register(rt *runtime.AgentRuntime) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.agents[rt.ID()]; exists {
		r.logger.Warn("replacing registered agent",
			zap.String("agent_id", rt.ID()),
			zap.String("agent", rt.Name()))
	}
	r.agents[rt.ID()] = rt

	r.logger.Info("agent registered",
		zap.String("agent_id", rt.ID()),
		zap.String("agent", rt.Name()))
}

// Get resolves an agent by ID, or by name (case-insensitive) when no ID
// matches. Clients address agents by name, the registry keys by ID.
func (r *Registry) Get(idOrName string) (*runtime.AgentRuntime, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if rt, ok := r.agents[idOrName]; ok {
		return rt, true
	}
	for _, rt := range r.agents {
		if strings.EqualFold(rt.Name(), idOrName) {
			return rt, true
		}
	}
	return nil, false
}

// Names returns the registered agent names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.agents))
	for _, rt := range r.agents {
		names = append(names, rt.Name())
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered agents.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}
