package logger

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Publisher ships aggregated log batches somewhere external, usually
// a Kafka topic.
type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

type CollectionConfig struct {
	TimeInterval   time.Duration // flush interval
	CountThreshold int           // max unique entries before an early flush
	Topic          string
	Publisher      Publisher
}

// AggregatedLogEntry is one deduplicated log line with its occurrence
// count over the collection window.
type AggregatedLogEntry struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// LogCollector dedupes error logs by content hash and flushes batches
// periodically. A feed that goes down logs the same error every
// refresh cycle; aggregation keeps the log topic readable.
type LogCollector struct {
	config *CollectionConfig
	logMap map[string]*AggregatedLogEntry
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewLogCollector(config *CollectionConfig) *LogCollector {
	ctx, cancel := context.WithCancel(context.Background())

	lc := &LogCollector{
		config: config,
		logMap: make(map[string]*AggregatedLogEntry),
		ctx:    ctx,
		cancel: cancel,
	}
	lc.wg.Add(1)
	go lc.periodicFlush()
	return lc
}

func (lc *LogCollector) AddLog(level, message string, fields map[string]interface{}, caller string) {
	now := time.Now()
	key := entryKey(level, message, fields, caller)

	lc.mu.Lock()
	defer lc.mu.Unlock()

	if entry, exists := lc.logMap[key]; exists {
		entry.Count++
		entry.LastSeen = now
	} else {
		lc.logMap[key] = &AggregatedLogEntry{
			Level:     level,
			Message:   message,
			Fields:    fields,
			Caller:    caller,
			Count:     1,
			FirstSeen: now,
			LastSeen:  now,
		}
	}

	if len(lc.logMap) >= lc.config.CountThreshold {
		lc.flushLocked()
	}
}

func entryKey(level, message string, fields map[string]interface{}, caller string) string {
	data := struct {
		Level   string                 `json:"level"`
		Message string                 `json:"message"`
		Fields  map[string]interface{} `json:"fields"`
		Caller  string                 `json:"caller"`
	}{level, message, fields, caller}

	raw, _ := json.Marshal(data)
	return fmt.Sprintf("%x", sha256.Sum256(raw))
}

func (lc *LogCollector) periodicFlush() {
	defer lc.wg.Done()

	ticker := time.NewTicker(lc.config.TimeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			lc.mu.Lock()
			lc.flushLocked()
			lc.mu.Unlock()
		case <-lc.ctx.Done():
			lc.mu.Lock()
			lc.flushLocked()
			lc.mu.Unlock()
			return
		}
	}
}

// flushLocked snapshots and resets the map, then publishes in the
// background so logging never blocks on the broker.
func (lc *LogCollector) flushLocked() {
	if len(lc.logMap) == 0 {
		return
	}

	logs := make([]AggregatedLogEntry, 0, len(lc.logMap))
	for _, entry := range lc.logMap {
		logs = append(logs, *entry)
	}
	lc.logMap = make(map[string]*AggregatedLogEntry)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := lc.config.Publisher.PublishMessage(ctx, lc.config.Topic, logs); err != nil {
			fmt.Printf("log collector publish failed: %v\n", err)
		}
	}()
}

func (lc *LogCollector) Close() {
	lc.cancel()
	lc.wg.Wait()
}
