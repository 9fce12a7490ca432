package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/personacore/personad/internal/cache"
)

// Cache is the per-agent cache layered over a store. Keys are namespaced by
// the agent's ID, so entries for different agents never collide even when
// they share one underlying backend.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// ErrCacheMiss is re-exported so callers need not import internal/cache.
var ErrCacheMiss = cache.ErrCacheMiss

// CacheFor wraps an initialized store in a cache keyed by the agent's ID.
// When redis is available it backs the cache; otherwise entries live in the
// store's own cache table.
func CacheFor(agentID string, redis *cache.Redis, st *Store) Cache {
	if redis != nil {
		return &redisCache{agentID: agentID, backend: redis}
	}
	return &dbCache{agentID: agentID, store: st}
}

// redisCache namespaces keys into a shared redis backend.
type redisCache struct {
	agentID string
	backend *cache.Redis
}

func (c *redisCache) key(key string) string {
	return fmt.Sprintf("personad:%s:%s", c.agentID, key)
}

func (c *redisCache) Get(ctx context.Context, key string) (string, error) {
	return c.backend.Get(ctx, c.key(key))
}

func (c *redisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.backend.Set(ctx, c.key(key), value, ttl)
}

func (c *redisCache) Delete(ctx context.Context, key string) error {
	return c.backend.Delete(ctx, c.key(key))
}

// dbCache stores entries in the agent store's cache table.
type dbCache struct {
	agentID string
	store   *Store
}

func (c *dbCache) Get(ctx context.Context, key string) (string, error) {
	if c.store.db == nil {
		return "", ErrNotInitialized
	}

	var entry CacheEntry
	err := c.store.db.WithContext(ctx).
		Where("agent_id = ? AND key = ?", c.agentID, key).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrCacheMiss
	}
	if err != nil {
		return "", fmt.Errorf("cache get: %w", err)
	}

	if !entry.ExpiresAt.IsZero() && time.Now().After(entry.ExpiresAt) {
		// Expired entries are removed lazily on read.
		_ = c.Delete(ctx, key)
		return "", ErrCacheMiss
	}

	return entry.Value, nil
}

func (c *dbCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if c.store.db == nil {
		return ErrNotInitialized
	}

	entry := CacheEntry{
		AgentID: c.agentID,
		Key:     key,
		Value:   value,
	}
	if ttl > 0 {
		entry.ExpiresAt = time.Now().Add(ttl)
	}

	err := c.store.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "agent_id"}, {Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at", "updated_at"}),
		}).
		Create(&entry).Error
	if err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

func (c *dbCache) Delete(ctx context.Context, key string) error {
	if c.store.db == nil {
		return ErrNotInitialized
	}
	err := c.store.db.WithContext(ctx).
		Where("agent_id = ? AND key = ?", c.agentID, key).
		Delete(&CacheEntry{}).Error
	if err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}
