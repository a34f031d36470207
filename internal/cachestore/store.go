package cachestore

import (
	"sync"
	"time"
)

// Entry holds the last-known-good result set for one key.
type Entry[T any] struct {
	Data      []T
	FetchedAt time.Time
	Key       string
}

// Config holds store configuration.
type Config struct {
	MaxKeys int // 0 means unbounded
}

// Option configures a Store.
type Option func(*Config)

// WithMaxKeys bounds the number of cached keys; the least recently
// read key is evicted when the bound is hit.
func WithMaxKeys(n int) Option {
	return func(c *Config) {
		c.MaxKeys = n
	}
}

// Store is a stale-while-revalidate snapshot store for one feed.
// Entries are only replaced when a fetch resolves; starting a fetch
// never clears data, so readers always see the previous result until
// the new one is committed.
type Store[T any] struct {
	mu      sync.RWMutex
	entries map[string]*Entry[T]
	access  map[string]time.Time
	maxKeys int
}

// New creates an empty store.
func New[T any](opts ...Option) *Store[T] {
	cfg := &Config{}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Store[T]{
		entries: make(map[string]*Entry[T]),
		access:  make(map[string]time.Time),
		maxKeys: cfg.MaxKeys,
	}
}

// Read returns the cached result set for key, or an empty slice if no
// fetch has resolved yet. Never returns nil.
func (s *Store[T]) Read(key string) []T {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return []T{}
	}
	s.access[key] = time.Now()
	return e.Data
}

// ReadEntry returns the full cache entry for key.
func (s *Store[T]) ReadEntry(key string) (Entry[T], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return Entry[T]{}, false
	}
	s.access[key] = time.Now()
	return *e, true
}

// Write replaces the stored result set and stamps FetchedAt. Called
// only after a fetch resolves, never when one starts.
func (s *Store[T]) Write(key string, data []T) {
	if data == nil {
		data = []T{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[key]; !ok && s.maxKeys > 0 && len(s.entries) >= s.maxKeys {
		s.evictLRU()
	}

	s.entries[key] = &Entry[T]{Data: data, FetchedAt: time.Now(), Key: key}
	s.access[key] = time.Now()
}

// Append adds records to an existing entry, skipping ids already
// present. A key with no entry is left untouched: live events enrich
// fetched snapshots, they do not create them.
func (s *Store[T]) Append(key string, recs []T, id func(T) string) int {
	if len(recs) == 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return 0
	}

	seen := make(map[string]struct{}, len(e.Data))
	for _, r := range e.Data {
		seen[id(r)] = struct{}{}
	}

	added := 0
	data := e.Data
	for _, r := range recs {
		if _, dup := seen[id(r)]; dup {
			continue
		}
		data = append(data, r)
		seen[id(r)] = struct{}{}
		added++
	}
	if added > 0 {
		s.entries[key] = &Entry[T]{Data: data, FetchedAt: e.FetchedAt, Key: key}
		s.access[key] = time.Now()
	}
	return added
}

// Keys returns all cached keys.
func (s *Store[T]) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	return keys
}

// Len returns the number of cached keys.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Store[T]) evictLRU() {
	var oldestKey string
	oldestTime := time.Now()

	for key, accessTime := range s.access {
		if accessTime.Before(oldestTime) {
			oldestTime = accessTime
			oldestKey = key
		}
	}

	if oldestKey != "" {
		delete(s.entries, oldestKey)
		delete(s.access, oldestKey)
	}
}
