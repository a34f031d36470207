package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"TradeDash/internal/domain/models"
	"TradeDash/internal/domain/repository"
)

// ClickHouseArchive implements SignalArchive over a signal_events table.
type ClickHouseArchive struct {
	db    *sql.DB
	table string
}

// NewClickHouseArchive creates the archive repository.
func NewClickHouseArchive(db *sql.DB, table string) repository.SignalArchive {
	return &ClickHouseArchive{db: db, table: table}
}

func (a *ClickHouseArchive) ArchiveRaw(ctx context.Context, key string, signals []models.RawSignal) error {
	if len(signals) == 0 {
		return nil
	}
	values := make([]string, 0, len(signals))
	args := make([]interface{}, 0, len(signals)*10)
	for _, s := range signals {
		if s.ID == "" {
			continue
		}
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			models.FeedRaw, key, s.BotID, s.ID, "",
			s.Timestamp, s.Instrument, string(s.Action), string(s.Status), s.OwnerUserID,
		)
	}
	return a.insert(ctx, values, args)
}

func (a *ClickHouseArchive) ArchiveExecutions(ctx context.Context, key string, signals []models.ExecutionSignal) error {
	if len(signals) == 0 {
		return nil
	}
	values := make([]string, 0, len(signals))
	args := make([]interface{}, 0, len(signals)*10)
	for _, e := range signals {
		if e.ID == "" {
			continue
		}
		// outcomes summarized into the status column for the history view
		status := e.Status
		if b, err := json.Marshal(e.Outcomes); err == nil && len(e.Outcomes) > 0 {
			status = fmt.Sprintf("%s %s", e.Status, b)
		}
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			models.FeedExecutions, key, e.BotID, e.ID, e.SignalID,
			e.Timestamp, e.Instrument, string(e.Action), status, e.OwnerUserID,
		)
	}
	return a.insert(ctx, values, args)
}

func (a *ClickHouseArchive) insert(ctx context.Context, values []string, args []interface{}) error {
	if len(values) == 0 {
		return nil
	}
	q := fmt.Sprintf(
		"INSERT INTO %s (feed, cache_key, bot_id, id, signal_id, ts, instrument, action, status, owner_user_id) VALUES %s",
		a.table, strings.Join(values, ","),
	)
	if _, err := a.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("archive insert: %w", err)
	}
	return nil
}

// History returns archived raw signals for a bot within a time range,
// newest first.
func (a *ClickHouseArchive) History(ctx context.Context, botID string, from, to time.Time, limit int) ([]models.RawSignal, error) {
	q := fmt.Sprintf(
		"SELECT id, bot_id, ts, instrument, action, status, owner_user_id FROM %s WHERE feed = ? AND bot_id = ? AND ts >= ? AND ts <= ? ORDER BY ts DESC LIMIT ?",
		a.table,
	)
	rows, err := a.db.QueryContext(ctx, q, models.FeedRaw, botID, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("history query: %w", err)
	}
	defer rows.Close()

	var out []models.RawSignal
	for rows.Next() {
		var s models.RawSignal
		var action, status string
		if err := rows.Scan(&s.ID, &s.BotID, &s.Timestamp, &s.Instrument, &action, &status, &s.OwnerUserID); err != nil {
			return nil, err
		}
		s.Action = models.SignalAction(action)
		s.Status = models.SignalStatus(status)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (a *ClickHouseArchive) Close() error {
	return nil // connection pool managed by pkg
}
