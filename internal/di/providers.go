package di

import (
	"context"
	"fmt"
	"time"

	"TradeDash/internal/cachestore"
	"TradeDash/internal/coordinator"
	"TradeDash/internal/domain/models"
	"TradeDash/internal/domain/repository"
	"TradeDash/internal/handler/api"
	"TradeDash/internal/handler/ws"
	mid "TradeDash/internal/middleware"
	internalrepo "TradeDash/internal/repository"
	"TradeDash/internal/service/feed"
	"TradeDash/internal/usecase"
	pkgcache "TradeDash/pkg/cache"
	pkgch "TradeDash/pkg/clickhouse"
	"TradeDash/pkg/config"
	xhttp "TradeDash/pkg/http"
	pkgkafka "TradeDash/pkg/kafka"
	applogger "TradeDash/pkg/logger"
	"TradeDash/pkg/metrics"
	"TradeDash/pkg/server"

	segkafka "github.com/segmentio/kafka-go"
)

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideFeedClient creates the shared HTTP client for backend feeds.
func ProvideFeedClient(cfg *config.Config) *xhttp.Client {
	return xhttp.NewClient(xhttp.WithTimeout(cfg.Feeds.Timeout))
}

// ProvideRawFeed creates the raw-signal feed adapter.
func ProvideRawFeed(client *xhttp.Client, cfg *config.Config) repository.RawFeed {
	return feed.NewRawClient(client, cfg.Feeds.BaseURL, cfg.Feeds.RawPath)
}

// ProvideExecutionFeed creates the execution-signal feed adapter.
func ProvideExecutionFeed(client *xhttp.Client, cfg *config.Config) repository.ExecutionFeed {
	return feed.NewExecutionClient(client, cfg.Feeds.BaseURL, cfg.Feeds.ExecutionsPath)
}

// ProvideAccountFeed creates the account-linkage feed adapter.
func ProvideAccountFeed(client *xhttp.Client, cfg *config.Config) repository.AccountFeed {
	return feed.NewAccountClient(client, cfg.Feeds.BaseURL, cfg.Feeds.AccountsPath)
}

// ProvideCoordinator creates the fetch coordinator.
func ProvideCoordinator(cfg *config.Config, m repository.Metrics, log *applogger.Logger) *coordinator.Coordinator {
	return coordinator.New(
		coordinator.WithCooldown(cfg.Coordinator.Cooldown),
		coordinator.WithSafetyTimeout(cfg.Coordinator.SafetyTimeout),
		coordinator.WithMetrics(m),
		coordinator.WithLogger(log),
	)
}

// ProvideRawStore creates the raw-signal cache store.
func ProvideRawStore(cfg *config.Config) *cachestore.Store[models.RawSignal] {
	var opts []cachestore.Option
	if cfg.Cache.MaxKeys > 0 {
		opts = append(opts, cachestore.WithMaxKeys(cfg.Cache.MaxKeys))
	}
	return cachestore.New[models.RawSignal](opts...)
}

// ProvideExecutionStore creates the execution-signal cache store.
func ProvideExecutionStore(cfg *config.Config) *cachestore.Store[models.ExecutionSignal] {
	var opts []cachestore.Option
	if cfg.Cache.MaxKeys > 0 {
		opts = append(opts, cachestore.WithMaxKeys(cfg.Cache.MaxKeys))
	}
	return cachestore.New[models.ExecutionSignal](opts...)
}

// ProvideSignalView creates the signal view use case scoped to the
// configured bot.
func ProvideSignalView(
	coord *coordinator.Coordinator,
	raws *cachestore.Store[models.RawSignal],
	execs *cachestore.Store[models.ExecutionSignal],
	rawFeed repository.RawFeed,
	execFeed repository.ExecutionFeed,
	m repository.Metrics,
	log *applogger.Logger,
	cfg *config.Config,
) *usecase.SignalView {
	v := usecase.NewSignalView(coord, raws, execs, rawFeed, execFeed, m, log)
	v.SetScope(models.FetchParams{
		BotID:      cfg.Feeds.BotID,
		OwnerScope: cfg.Feeds.OwnerScope,
		AdminView:  cfg.Feeds.AdminView,
	})
	return v
}

// ProvideAccountView creates the account hierarchy use case.
func ProvideAccountView(accFeed repository.AccountFeed, log *applogger.Logger) *usecase.AccountView {
	return usecase.NewAccountView(accFeed, log)
}

// ProvideHub creates the websocket commit-notification hub.
func ProvideHub(log *applogger.Logger) *ws.Hub {
	return ws.NewHub(log)
}

// ProvideRedisCache creates the Redis client for snapshot mirroring.
// Returns nil when the mirror is disabled.
func ProvideRedisCache(cfg *config.Config) (*pkgcache.RedisCache, error) {
	if !cfg.Cache.Redis.Enabled {
		return nil, nil
	}
	r, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(cfg.Cache.Redis.Host),
		pkgcache.WithRedisPort(cfg.Cache.Redis.Port),
		pkgcache.WithRedisPassword(cfg.Cache.Redis.Password),
		pkgcache.WithRedisDB(cfg.Cache.Redis.DB),
		pkgcache.WithRedisPrefix(cfg.Cache.Redis.Prefix),
		pkgcache.WithRedisPool(10, 5, 30*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return r, nil
}

// ProvideMirror creates the snapshot mirror over Redis. Returns nil
// when Redis is disabled.
func ProvideMirror(r *pkgcache.RedisCache, cfg *config.Config) repository.SnapshotMirror {
	if r == nil {
		return nil
	}
	return internalrepo.NewRedisMirror(r, cfg.Cache.Redis.SnapshotTTL)
}

// ProvideClickHouseClient creates a ClickHouse client and ensures the
// archive schema exists. Returns nil when the archive is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	table := cfg.ClickHouse.Database + "." + cfg.ClickHouse.Table
	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS " + cfg.ClickHouse.Database,
		"CREATE TABLE IF NOT EXISTS " + table + ` (
			feed LowCardinality(String),
			cache_key String,
			bot_id String,
			id String,
			signal_id String,
			ts DateTime64(3),
			instrument LowCardinality(String),
			action LowCardinality(String),
			status String,
			owner_user_id String
		) ENGINE=MergeTree ORDER BY (bot_id, feed, ts)`,
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideArchive creates the signal history archive. Returns nil when
// ClickHouse is disabled.
func ProvideArchive(ch *pkgch.Client, cfg *config.Config) repository.SignalArchive {
	if ch == nil {
		return nil
	}
	return internalrepo.NewClickHouseArchive(ch.DB(), cfg.ClickHouse.Database+"."+cfg.ClickHouse.Table)
}

// ProvideIngestPipeline creates the live-ingest pipeline feeding the
// signal view.
func ProvideIngestPipeline(view *usecase.SignalView, m repository.Metrics, cfg *config.Config) *mid.IngestPipeline {
	var opts []mid.PipelineOption
	if cfg.Kafka.Ingest.MaxRPS > 0 {
		opts = append(opts, mid.WithMaxRPS(cfg.Kafka.Ingest.MaxRPS))
	}
	if cfg.Kafka.Ingest.BufferSize > 0 {
		opts = append(opts, mid.WithBufferSize(cfg.Kafka.Ingest.BufferSize))
	}
	return mid.NewIngestPipeline(view, m, opts...)
}

// ProvideConsumer creates the Kafka consumer for live signal events.
// Returns nil when Kafka is disabled.
func ProvideConsumer(cfg *config.Config, log *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	c, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerLogger(log),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerAutoOffsetReset(cfg.Kafka.Consumer.OffsetReset),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return c, nil
}

// ProvideCommitPublisher creates the Kafka commit-event publisher.
// Returns nil when Kafka is disabled or no commit topic is configured.
func ProvideCommitPublisher(cfg *config.Config, log *applogger.Logger) (repository.CommitNotifier, error) {
	if !cfg.Kafka.Enabled || cfg.Kafka.CommitTopic == "" {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Producer.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.Producer.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	// Ship aggregated error logs over the same producer.
	if cfg.Kafka.ErrorLogTopic != "" {
		log.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          cfg.Kafka.ErrorLogTopic,
			Publisher:      producerPublisher{producer},
		})
	}

	return internalrepo.NewKafkaCommitPublisher(producer, cfg.Kafka.CommitTopic, log), nil
}

// producerPublisher adapts the Kafka producer to the log collector's
// publisher interface.
type producerPublisher struct {
	p *pkgkafka.Producer
}

func (pp producerPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return pp.p.Publish(ctx, topic, nil, payload)
}

// ProvideSignalsHandler creates the Kafka message handler for the
// configured topic.
func ProvideSignalsHandler(cfg *config.Config, pipe *mid.IngestPipeline, m repository.Metrics) pkgkafka.MessageHandler {
	return usecase.NewKafkaSignalsHandler(cfg.Kafka.Topic, pipe, m)
}

// ProvideDashboardHandler creates the dashboard HTTP handler.
func ProvideDashboardHandler(
	log *applogger.Logger,
	signals *usecase.SignalView,
	accounts *usecase.AccountView,
	archive repository.SignalArchive,
	hub *ws.Hub,
) xhttp.Handler {
	return api.NewDashboardHandler(log, signals, accounts, archive, hub)
}

// ProvideApp creates the application server and attaches the optional
// integrations.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	signals *usecase.SignalView,
	accounts *usecase.AccountView,
	handler xhttp.Handler,
	hub *ws.Hub,
	mirror repository.SnapshotMirror,
	archive repository.SignalArchive,
	redis *pkgcache.RedisCache,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	pipe *mid.IngestPipeline,
	publisher repository.CommitNotifier,
) *server.App {
	signals.SetOwnerDirectory(accounts)
	signals.AddNotifier(hub)
	if publisher != nil {
		signals.AddNotifier(publisher)
	}
	if mirror != nil {
		signals.SetMirror(mirror)
	}
	if archive != nil {
		signals.SetArchive(archive)
	}

	app := server.New(cfg, log, signals, accounts, handler, hub)
	if redis != nil {
		app.SetRedis(redis)
	}
	if consumer != nil {
		consumer.WithConsumerHook(consumerLogHook(log))
		app.SetConsumer(consumer, kh, pipe)
	}
	return app
}

// consumerLogHook logs handler failures with the message trace id so
// dropped live updates can be tied back to the producer.
func consumerLogHook(log *applogger.Logger) pkgkafka.ConsumerHook {
	return pkgkafka.HookFuncs{
		Err: func(_ context.Context, topic string, km segkafka.Message, _ []byte, err error) {
			log.Warn("live ingest message failed",
				applogger.String("topic", topic),
				applogger.String("trace_id", pkgkafka.ExtractTraceID(km)),
				applogger.Int("partition", km.Partition),
				applogger.Error(err),
			)
		},
	}
}
