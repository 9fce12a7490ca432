package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/personacore/personad/internal/database"
)

func sqliteOptions(t *testing.T) Options {
	t.Helper()
	return Options{
		DataDir: t.TempDir(),
		Pool:    database.DefaultConfig(),
	}
}

func initializedStore(t *testing.T) *Store {
	t.Helper()
	st, err := NewProvisioner(sqliteOptions(t), zap.NewNop()).Provision()
	require.NoError(t, err)
	require.NoError(t, st.Init(context.Background()))
	t.Cleanup(func() { st.Close() })
	return st
}

func TestOptions_Backend(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want Backend
	}{
		{
			name: "no postgres url selects sqlite",
			opts: Options{DataDir: "data"},
			want: BackendSQLite,
		},
		{
			name: "postgres url selects postgres",
			opts: Options{PostgresURL: "postgres://localhost/p", DataDir: "data"},
			want: BackendPostgres,
		},
		{
			name: "postgres wins over sqlite override",
			opts: Options{
				PostgresURL: "postgres://localhost/p",
				SQLiteFile:  "/tmp/x.sqlite",
				DataDir:     "data",
			},
			want: BackendPostgres,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.opts.Backend())
		})
	}
}

func TestOptions_SQLitePath(t *testing.T) {
	opts := Options{DataDir: "data"}
	assert.Equal(t, filepath.Join("data", "db.sqlite"), opts.SQLitePath())

	opts.SQLiteFile = "/var/lib/personad/custom.sqlite"
	assert.Equal(t, "/var/lib/personad/custom.sqlite", opts.SQLitePath())
}

func TestProvision_CreatesDataDir(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "nested", "data")
	opts := Options{DataDir: dataDir, Pool: database.DefaultConfig()}

	_, err := NewProvisioner(opts, zap.NewNop()).Provision()
	require.NoError(t, err)

	info, err := os.Stat(dataDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	// Provisioning again is idempotent.
	_, err = NewProvisioner(opts, zap.NewNop()).Provision()
	require.NoError(t, err)
}

func TestProvision_DistinctStores(t *testing.T) {
	opts := sqliteOptions(t)
	p := NewProvisioner(opts, zap.NewNop())

	a, err := p.Provision()
	require.NoError(t, err)
	b, err := p.Provision()
	require.NoError(t, err)

	assert.NotSame(t, a, b, "each provision call must yield its own store")
}

func TestStore_UseBeforeInit(t *testing.T) {
	st, err := NewProvisioner(sqliteOptions(t), zap.NewNop()).Provision()
	require.NoError(t, err)

	_, err = st.RecentMemories(context.Background(), "agent", 10)
	assert.ErrorIs(t, err, ErrNotInitialized)

	err = st.CreateMemory(context.Background(), &Memory{AgentID: "agent"})
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestStore_InitAndMemories(t *testing.T) {
	st := initializedStore(t)
	ctx := context.Background()

	assert.Equal(t, BackendSQLite, st.Backend())

	require.NoError(t, st.CreateMemory(ctx, &Memory{
		AgentID:  "agent-1",
		UserID:   "user",
		UserName: "User",
		Role:     "user",
		Text:     "hello",
	}))
	require.NoError(t, st.CreateMemory(ctx, &Memory{
		AgentID: "agent-1",
		Role:    "agent",
		Text:    "hi there",
	}))
	require.NoError(t, st.CreateMemory(ctx, &Memory{
		AgentID: "agent-2",
		Role:    "user",
		Text:    "other agent",
	}))

	memories, err := st.RecentMemories(ctx, "agent-1", 10)
	require.NoError(t, err)
	require.Len(t, memories, 2)
	for _, m := range memories {
		assert.Equal(t, "agent-1", m.AgentID)
		assert.NotEmpty(t, m.ID)
	}
}

func TestStore_InitIdempotent(t *testing.T) {
	st := initializedStore(t)
	require.NoError(t, st.Init(context.Background()))
}
