// Package orchestrator sequences agent startup: credential resolution,
// storage provisioning, runtime construction and initialization, client
// attachment, and registration — per character, with per-character failure
// isolation across a batch.
package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/personacore/personad/character"
	"github.com/personacore/personad/client"
	"github.com/personacore/personad/internal/cache"
	"github.com/personacore/personad/internal/metrics"
	"github.com/personacore/personad/registry"
	"github.com/personacore/personad/runtime"
	"github.com/personacore/personad/store"
)

// startState names the phase a character's startup is in, for error
// reporting and logs.
type startState string

const (
	stateResolvingCredential startState = "resolving credential"
	stateProvisioningStorage startState = "provisioning storage"
	stateBuildingRuntime     startState = "building runtime"
	stateInitializingRuntime startState = "initializing runtime"
	stateAttachingClients    startState = "attaching clients"
	stateRegistered          startState = "registered"
)

// Options configures the orchestrator.
type Options struct {
	// Store options shared by every character; each character still gets
	// its own provisioned Store.
	Store store.Options

	// Redis backs the per-agent caches when non-nil; otherwise caches live
	// in each agent's own store.
	Redis *cache.Redis

	// Secrets are the process-wide provider credentials.
	Secrets map[string]string

	// FailFast aborts the whole batch on the first character failure.
	// The default (false) isolates failures: siblings keep starting.
	FailFast bool

	// Metrics records startup outcomes when non-nil.
	Metrics *metrics.Collector
}

// Agent is one successfully started agent with its attached client handles.
type Agent struct {
	Runtime *runtime.AgentRuntime
	Clients []runtime.Client
}

// Orchestrator starts agents and registers them.
type Orchestrator struct {
	opts     Options
	registry *registry.Registry
	attacher *client.Attacher
	logger   *zap.Logger
}

// New creates an orchestrator that registers started agents with reg.
func New(opts Options, reg *registry.Registry, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		opts:     opts,
		registry: reg,
		attacher: client.NewAttacher(logger),
		logger:   logger.With(zap.String("component", "orchestrator")),
	}
}

// StartAgent runs one character through the full startup sequence. Any
// failure aborts this character only; the error names the state it died in.
func (o *Orchestrator) StartAgent(ctx context.Context, ch *character.Character) (*Agent, error) {
	logger := o.logger.With(zap.String("agent", ch.Name))

	state := stateResolvingCredential
	logger.Debug("startup state", zap.String("state", string(state)))
	token := character.TokenFor(ch.ModelProvider, ch, o.opts.Secrets)
	if token == "" {
		// Not an error: some providers need no credential.
		logger.Debug("no credential available for provider",
			zap.String("provider", ch.ModelProvider))
	}

	state = stateProvisioningStorage
	logger.Debug("startup state", zap.String("state", string(state)))
	st, err := store.NewProvisioner(o.opts.Store, logger).Provision()
	if err != nil {
		return nil, o.fail(ch, state, err)
	}
	if err := st.Init(ctx); err != nil {
		return nil, o.fail(ch, state, err)
	}

	state = stateBuildingRuntime
	logger.Debug("startup state", zap.String("state", string(state)))
	rt, err := runtime.New(runtime.Options{
		Character: ch,
		Store:     st,
		Cache:     store.CacheFor(ch.ID, o.opts.Redis, st),
		Token:     token,
		Logger:    logger,
	})
	if err != nil {
		st.Close()
		return nil, o.fail(ch, state, err)
	}

	state = stateInitializingRuntime
	logger.Debug("startup state", zap.String("state", string(state)))
	if err := rt.Initialize(ctx); err != nil {
		st.Close()
		return nil, o.fail(ch, state, err)
	}

	state = stateAttachingClients
	logger.Debug("startup state", zap.String("state", string(state)))
	handles := o.attacher.Attach(ctx, rt)

	state = stateRegistered
	o.registry.Register(rt)
	if o.opts.Metrics != nil {
		o.opts.Metrics.RecordAgentStart("ok")
	}
	logger.Info("agent started",
		zap.String("agent_id", ch.ID),
		zap.String("state", string(state)),
		zap.Int("clients", len(handles)))

	return &Agent{Runtime: rt, Clients: handles}, nil
}

// StartAll starts the characters strictly in order. With FailFast unset, a
// failing character is logged and skipped while its siblings still start;
// the joined error reports every failure. With FailFast set, the first
// failure aborts the rest of the batch.
func (o *Orchestrator) StartAll(ctx context.Context, chars []*character.Character) ([]*Agent, error) {
	var (
		started []*Agent
		errs    []error
	)

	for _, ch := range chars {
		agent, err := o.StartAgent(ctx, ch)
		if err != nil {
			errs = append(errs, err)
			if o.opts.FailFast {
				return started, errors.Join(errs...)
			}
			continue
		}
		started = append(started, agent)
	}

	o.logger.Info("agent batch complete",
		zap.Int("started", len(started)),
		zap.Int("failed", len(errs)))

	return started, errors.Join(errs...)
}

// fail logs and wraps a per-character startup error with its state.
func (o *Orchestrator) fail(ch *character.Character, state startState, err error) error {
	if o.opts.Metrics != nil {
		o.opts.Metrics.RecordAgentStart("error")
	}
	o.logger.Error("agent startup failed",
		zap.String("agent", ch.Name),
		zap.String("state", string(state)),
		zap.Error(err))
	return fmt.Errorf("start agent %s: %s: %w", ch.Name, state, err)
}
