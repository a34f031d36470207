package repository

import (
	"context"
	"time"

	"TradeDash/internal/domain/repository"
	pkgkafka "TradeDash/pkg/kafka"
	xlogger "TradeDash/pkg/logger"
)

// KafkaCommitPublisher republishes commit events to a Kafka topic so
// other dashboard instances can invalidate their caches.
type KafkaCommitPublisher struct {
	producer *pkgkafka.Producer
	topic    string
	log      *xlogger.Logger
}

// NewKafkaCommitPublisher creates the commit-event publisher.
func NewKafkaCommitPublisher(producer *pkgkafka.Producer, topic string, log *xlogger.Logger) repository.CommitNotifier {
	if log == nil {
		log = xlogger.Nop()
	}
	return &KafkaCommitPublisher{producer: producer, topic: topic, log: log}
}

// NotifyCommit publishes the event keyed by cache key. Publishing runs
// off the commit path; failures are logged and dropped.
func (p *KafkaCommitPublisher) NotifyCommit(ev repository.CommitEvent) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.producer.Publish(ctx, p.topic, []byte(ev.Key), ev); err != nil {
			p.log.Warn("commit event publish failed",
				xlogger.String("topic", p.topic),
				xlogger.String("key", ev.Key),
				xlogger.Error(err))
		}
	}()
}

// Close releases the underlying producer.
func (p *KafkaCommitPublisher) Close() error {
	return p.producer.Close()
}
