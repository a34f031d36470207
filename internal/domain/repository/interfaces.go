package repository

import (
	"context"
	"time"

	"TradeDash/internal/domain/models"
)

// RawFeed is the source adapter for broker-side raw signals.
type RawFeed interface {
	Fetch(ctx context.Context, p models.FetchParams) ([]models.RawSignal, error)
}

// ExecutionFeed is the source adapter for downstream processed signals.
type ExecutionFeed interface {
	Fetch(ctx context.Context, p models.FetchParams) ([]models.ExecutionSignal, error)
}

// AccountFeed supplies the flat account-linkage list for a bot.
type AccountFeed interface {
	Fetch(ctx context.Context, botID string) ([]models.AccountLinkage, error)
}

// SignalArchive persists committed signal batches for the history view.
type SignalArchive interface {
	ArchiveRaw(ctx context.Context, key string, signals []models.RawSignal) error
	ArchiveExecutions(ctx context.Context, key string, signals []models.ExecutionSignal) error
	History(ctx context.Context, botID string, from, to time.Time, limit int) ([]models.RawSignal, error)
	Close() error
}

// SnapshotMirror persists the last committed cache snapshots so a
// restarted process can warm its in-memory store.
type SnapshotMirror interface {
	StoreRaw(ctx context.Context, key string, signals []models.RawSignal) error
	StoreExecutions(ctx context.Context, key string, signals []models.ExecutionSignal) error
	LoadRaw(ctx context.Context, key string) ([]models.RawSignal, error)
	LoadExecutions(ctx context.Context, key string) ([]models.ExecutionSignal, error)
}

// CommitEvent describes one feed's cache entry being replaced.
type CommitEvent struct {
	Feed      string    `json:"feed"`
	Key       string    `json:"key"`
	Count     int       `json:"count"`
	FetchedAt time.Time `json:"fetchedAt"`
}

// CommitNotifier pushes commit events to connected dashboard clients.
type CommitNotifier interface {
	NotifyCommit(ev CommitEvent)
}

// OwnerDirectory resolves owner display names for the owner dropdown.
type OwnerDirectory interface {
	DisplayName(userID string) (string, bool)
}

// Metrics records operational metrics for the aggregation core.
type Metrics interface {
	RecordRefresh(outcome string) // started, deduped, cooldown, timeout, settled
	RecordFetchError(feed string)
	RecordFetchLatency(feed string, seconds float64)
	RecordCacheSize(feed string, n int)
	RecordVisible(feed string, n int)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
