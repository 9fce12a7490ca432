package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/personacore/personad/internal/database"
)

// Backend identifies the storage backend, resolved once at startup.
type Backend int

const (
	// BackendSQLite is the embedded file-backed store under the data dir.
	BackendSQLite Backend = iota
	// BackendPostgres is the networked relational store.
	BackendPostgres
)

func (b Backend) String() string {
	switch b {
	case BackendPostgres:
		return "postgres"
	case BackendSQLite:
		return "sqlite"
	default:
		return fmt.Sprintf("Backend(%d)", int(b))
	}
}

// Options configures storage provisioning.
type Options struct {
	// PostgresURL selects the networked backend when non-empty, regardless
	// of any sqlite overrides.
	PostgresURL string

	// SQLiteFile overrides the embedded store path (default <DataDir>/db.sqlite).
	SQLiteFile string

	// DataDir is created (including parents) if absent.
	DataDir string

	// Pool limits applied to the opened connection.
	Pool database.Config
}

// Backend resolves the backend decision from the options.
func (o Options) Backend() Backend {
	if o.PostgresURL != "" {
		return BackendPostgres
	}
	return BackendSQLite
}

// SQLitePath returns the effective embedded store file path.
func (o Options) SQLitePath() string {
	if o.SQLiteFile != "" {
		return o.SQLiteFile
	}
	return filepath.Join(o.DataDir, "db.sqlite")
}

// Provisioner builds Store values from a fixed set of options. Each call to
// Provision returns a distinct, uninitialized Store; two agents never share
// a Store even when their options resolve to the same file or connection.
type Provisioner struct {
	opts   Options
	logger *zap.Logger
}

// NewProvisioner creates a storage provisioner.
func NewProvisioner(opts Options, logger *zap.Logger) *Provisioner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provisioner{
		opts:   opts,
		logger: logger.With(zap.String("component", "storage")),
	}
}

// Provision decides the backend, prepares the data directory, and returns a
// Store builder. The caller must complete Store.Init before any use.
func (p *Provisioner) Provision() (*Store, error) {
	backend := p.opts.Backend()

	var dialector gorm.Dialector
	switch backend {
	case BackendPostgres:
		dialector = postgres.Open(p.opts.PostgresURL)
	case BackendSQLite:
		if err := os.MkdirAll(p.opts.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir %s: %w", p.opts.DataDir, err)
		}
		path := p.opts.SQLitePath()
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite dir %s: %w", dir, err)
			}
		}
		dialector = sqlite.Open(path)
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", backend)
	}

	p.logger.Debug("storage provisioned",
		zap.Stringer("backend", backend),
		zap.String("sqlite_path", p.opts.SQLitePath()))

	return &Store{
		backend:   backend,
		dialector: dialector,
		poolCfg:   p.opts.Pool,
		logger:    p.logger,
	}, nil
}
