package usecase

import (
	"context"
	"encoding/json"
	"time"

	"TradeDash/internal/domain/models"
	domrepo "TradeDash/internal/domain/repository"
	mid "TradeDash/internal/middleware"
)

// KafkaSignalsHandler consumes live broker signal events and appends
// them to the cached raw feed through the ingest pipeline.
type KafkaSignalsHandler struct {
	topic   string
	pipe    *mid.IngestPipeline
	metrics domrepo.Metrics
}

func NewKafkaSignalsHandler(topic string, pipe *mid.IngestPipeline, metrics domrepo.Metrics) *KafkaSignalsHandler {
	return &KafkaSignalsHandler{topic: topic, pipe: pipe, metrics: metrics}
}

func (h *KafkaSignalsHandler) Topic() string { return h.topic }

// incoming message schema: {id, bot_id, owner_id, instrument, action, status, error, ts}
func (h *KafkaSignalsHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		ID         string `json:"id"`
		BotID      string `json:"bot_id"`
		OwnerID    string `json:"owner_id"`
		Instrument string `json:"instrument"`
		Action     string `json:"action"`
		Status     string `json:"status"`
		Error      string `json:"error"`
		TS         int64  `json:"ts"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if m.TS > 1e11 { // ms
		m.TS = m.TS / 1000
	}
	h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(time.Unix(m.TS, 0)).Seconds())

	return h.pipe.Process(ctx, &models.RawSignal{
		ID:           m.ID,
		BotID:        m.BotID,
		OwnerUserID:  m.OwnerID,
		Instrument:   m.Instrument,
		Action:       models.SignalAction(m.Action),
		Status:       models.SignalStatus(m.Status),
		ErrorMessage: m.Error,
		Timestamp:    time.Unix(m.TS, 0),
	})
}
