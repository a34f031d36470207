package repository

import (
	"context"
	"errors"
	"time"

	"TradeDash/internal/domain/models"
	"TradeDash/internal/domain/repository"
	pkgcache "TradeDash/pkg/cache"
)

// RedisMirror implements SnapshotMirror over the cache service. It is
// write-through only: the in-memory stores stay the source of truth
// for reads, the mirror exists to warm a restarted process.
type RedisMirror struct {
	cache pkgcache.Service
	ttl   time.Duration
}

// NewRedisMirror creates a snapshot mirror.
func NewRedisMirror(cache pkgcache.Service, ttl time.Duration) repository.SnapshotMirror {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisMirror{cache: cache, ttl: ttl}
}

func (m *RedisMirror) StoreRaw(ctx context.Context, key string, signals []models.RawSignal) error {
	return m.cache.Set(ctx, mirrorKey(models.FeedRaw, key), signals, m.ttl)
}

func (m *RedisMirror) StoreExecutions(ctx context.Context, key string, signals []models.ExecutionSignal) error {
	return m.cache.Set(ctx, mirrorKey(models.FeedExecutions, key), signals, m.ttl)
}

func (m *RedisMirror) LoadRaw(ctx context.Context, key string) ([]models.RawSignal, error) {
	var out []models.RawSignal
	err := m.cache.Get(ctx, mirrorKey(models.FeedRaw, key), &out)
	if errors.Is(err, pkgcache.ErrCacheMiss) {
		return nil, nil
	}
	return out, err
}

func (m *RedisMirror) LoadExecutions(ctx context.Context, key string) ([]models.ExecutionSignal, error) {
	var out []models.ExecutionSignal
	err := m.cache.Get(ctx, mirrorKey(models.FeedExecutions, key), &out)
	if errors.Is(err, pkgcache.ErrCacheMiss) {
		return nil, nil
	}
	return out, err
}

func mirrorKey(feed, key string) string {
	return pkgcache.GenerateKeyWithParams("snapshot", feed, key)
}
