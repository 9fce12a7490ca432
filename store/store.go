// Package store provisions per-agent persistence: a gorm-backed relational
// store (postgres or embedded sqlite) with a cache layered on top, each
// exclusively owned by one agent runtime.
package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/personacore/personad/internal/database"
)

// Store is one agent's persistence handle. It is created uninitialized by
// the Provisioner; Init must complete successfully before any other method
// is used.
type Store struct {
	backend   Backend
	dialector gorm.Dialector
	poolCfg   database.Config
	logger    *zap.Logger

	db   *gorm.DB
	pool *database.Pool
}

// ErrNotInitialized is returned when a Store is used before Init.
var ErrNotInitialized = fmt.Errorf("store not initialized")

// Init opens the connection, applies pool limits, verifies connectivity,
// and migrates the schema. Failure leaves the Store unusable.
func (s *Store) Init(ctx context.Context) error {
	if s.db != nil {
		return nil
	}

	db, err := gorm.Open(s.dialector, &gorm.Config{})
	if err != nil {
		return fmt.Errorf("open %s store: %w", s.backend, err)
	}

	pool, err := database.NewPool(db, s.poolCfg, s.logger)
	if err != nil {
		return fmt.Errorf("configure %s pool: %w", s.backend, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("ping %s store: %w", s.backend, err)
	}

	if err := db.WithContext(ctx).AutoMigrate(&Memory{}, &CacheEntry{}); err != nil {
		pool.Close()
		return fmt.Errorf("migrate %s store: %w", s.backend, err)
	}

	s.db = db
	s.pool = pool
	s.logger.Info("store initialized", zap.Stringer("backend", s.backend))
	return nil
}

// Backend reports which backend this store was provisioned with.
func (s *Store) Backend() Backend {
	return s.backend
}

// DB returns the underlying gorm handle.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Close releases the connection pool.
func (s *Store) Close() error {
	if s.pool == nil {
		return nil
	}
	return s.pool.Close()
}

// CreateMemory persists one conversation message.
func (s *Store) CreateMemory(ctx context.Context, m *Memory) error {
	if s.db == nil {
		return ErrNotInitialized
	}
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("create memory: %w", err)
	}
	return nil
}

// RecentMemories returns the newest messages for an agent, newest first.
func (s *Store) RecentMemories(ctx context.Context, agentID string, limit int) ([]Memory, error) {
	if s.db == nil {
		return nil, ErrNotInitialized
	}
	var out []Memory
	err := s.db.WithContext(ctx).
		Where("agent_id = ?", agentID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	return out, nil
}
