package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/personacore/personad/character"
	"github.com/personacore/personad/internal/database"
	"github.com/personacore/personad/registry"
	"github.com/personacore/personad/store"
)

func testOptions(t *testing.T) Options {
	t.Helper()
	return Options{
		Store: store.Options{
			DataDir: t.TempDir(),
			Pool:    database.DefaultConfig(),
		},
		Secrets: map[string]string{"openai": "sk-test"},
	}
}

func namedCharacter(name string) *character.Character {
	ch := &character.Character{Name: name, ModelProvider: "openai"}
	ch.EnsureIdentity()
	return ch
}

// brokenCharacter fails runtime construction: the loader always derives an
// ID, so an empty one only occurs when startup is fed a malformed character.
func brokenCharacter(name string) *character.Character {
	return &character.Character{Name: name, ModelProvider: "openai"}
}

func TestStartAgent(t *testing.T) {
	reg := registry.New(zap.NewNop())
	o := New(testOptions(t), reg, zap.NewNop())

	ch := namedCharacter("Trinity")
	ch.Clients = []string{"direct"}

	agent, err := o.StartAgent(context.Background(), ch)
	require.NoError(t, err)

	assert.Equal(t, "sk-test", agent.Runtime.Token())
	assert.Len(t, agent.Clients, 1)

	got, ok := reg.Get(ch.ID)
	require.True(t, ok)
	assert.Same(t, agent.Runtime, got)

	// Addressable by name too, as the chat bridge does.
	got, ok = reg.Get("trinity")
	require.True(t, ok)
	assert.Same(t, agent.Runtime, got)
}

func TestStartAgent_NoCredentialIsNotAnError(t *testing.T) {
	opts := testOptions(t)
	opts.Secrets = nil
	reg := registry.New(zap.NewNop())
	o := New(opts, reg, zap.NewNop())

	agent, err := o.StartAgent(context.Background(), namedCharacter("Keyless"))
	require.NoError(t, err)
	assert.Empty(t, agent.Runtime.Token())
}

func TestStartAgent_FailureNamesState(t *testing.T) {
	reg := registry.New(zap.NewNop())
	o := New(testOptions(t), reg, zap.NewNop())

	_, err := o.StartAgent(context.Background(), brokenCharacter("Broken"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start agent Broken")
	assert.Contains(t, err.Error(), "building runtime")
	assert.Zero(t, reg.Count())
}

func TestStartAll_DistinctStoresPerCharacter(t *testing.T) {
	reg := registry.New(zap.NewNop())
	o := New(testOptions(t), reg, zap.NewNop())

	agents, err := o.StartAll(context.Background(), []*character.Character{
		namedCharacter("Alpha"),
		namedCharacter("Beta"),
	})
	require.NoError(t, err)
	require.Len(t, agents, 2)

	assert.NotSame(t, agents[0].Runtime.Store(), agents[1].Runtime.Store(),
		"characters sharing one backend must still own distinct stores")
}

func TestStartAll_SiblingIsolation(t *testing.T) {
	reg := registry.New(zap.NewNop())
	o := New(testOptions(t), reg, zap.NewNop())

	agents, err := o.StartAll(context.Background(), []*character.Character{
		namedCharacter("First"),
		brokenCharacter("Middle"),
		namedCharacter("Last"),
	})

	require.Error(t, err, "the batch error reports the failed character")
	require.Len(t, agents, 2, "siblings of a failed character still start")
	assert.Equal(t, "First", agents[0].Runtime.Name())
	assert.Equal(t, "Last", agents[1].Runtime.Name())

	assert.Equal(t, 2, reg.Count())
	_, ok := reg.Get("Middle")
	assert.False(t, ok)
}

func TestStartAll_FailFast(t *testing.T) {
	opts := testOptions(t)
	opts.FailFast = true
	reg := registry.New(zap.NewNop())
	o := New(opts, reg, zap.NewNop())

	agents, err := o.StartAll(context.Background(), []*character.Character{
		namedCharacter("First"),
		brokenCharacter("Middle"),
		namedCharacter("Last"),
	})

	require.Error(t, err)
	require.Len(t, agents, 1, "fail-fast stops the batch at the first failure")
	assert.Equal(t, "First", agents[0].Runtime.Name())
	assert.Equal(t, 1, reg.Count())
}

func TestStartAll_OrderPreserved(t *testing.T) {
	reg := registry.New(zap.NewNop())
	o := New(testOptions(t), reg, zap.NewNop())

	agents, err := o.StartAll(context.Background(), []*character.Character{
		namedCharacter("Gamma"),
		namedCharacter("Alpha"),
		namedCharacter("Beta"),
	})
	require.NoError(t, err)
	require.Len(t, agents, 3)

	assert.Equal(t, "Gamma", agents[0].Runtime.Name())
	assert.Equal(t, "Alpha", agents[1].Runtime.Name())
	assert.Equal(t, "Beta", agents[2].Runtime.Name())
}

func TestStartAll_Empty(t *testing.T) {
	reg := registry.New(zap.NewNop())
	o := New(testOptions(t), reg, zap.NewNop())

	agents, err := o.StartAll(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, agents)
}
