package kafka

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"runtime"
	"sync"
	"time"

	applogger "TradeDash/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// MessageHandler consumes raw payloads from one topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

// ConsumerOption configures Consumer.
type ConsumerOption func(*ConsumerConfig)

// ConsumerConfig holds consumer configuration.
type ConsumerConfig struct {
	Brokers         []string
	GroupID         string
	AutoOffsetReset string
	WorkerCount     int
	BufferSize      int
	RetryMax        int
	BackoffMin      time.Duration
	BackoffMax      time.Duration
	DLQTopic        string
	MinBytes        int
	MaxBytes        int
	Logger          *applogger.Logger
}

// WithConsumerBrokers sets Kafka brokers.
func WithConsumerBrokers(brokers []string) ConsumerOption {
	return func(c *ConsumerConfig) { c.Brokers = brokers }
}

// WithConsumerGroupID sets consumer group ID.
func WithConsumerGroupID(groupID string) ConsumerOption {
	return func(c *ConsumerConfig) { c.GroupID = groupID }
}

// WithConsumerAutoOffsetReset sets where a new group starts reading
// ("earliest" or "latest").
func WithConsumerAutoOffsetReset(policy string) ConsumerOption {
	return func(c *ConsumerConfig) { c.AutoOffsetReset = policy }
}

// WithConsumerWorkers sets number of worker goroutines.
func WithConsumerWorkers(count int) ConsumerOption {
	return func(c *ConsumerConfig) { c.WorkerCount = count }
}

// WithConsumerRetry configures retry attempts and backoff range.
func WithConsumerRetry(max int, backoffMin, backoffMax time.Duration) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.RetryMax = max
		c.BackoffMin = backoffMin
		c.BackoffMax = backoffMax
	}
}

// WithConsumerDLQ sets a Kafka topic name for DLQ.
func WithConsumerDLQ(topic string) ConsumerOption {
	return func(c *ConsumerConfig) { c.DLQTopic = topic }
}

// WithConsumerFetch sets fetch min/max bytes.
func WithConsumerFetch(minBytes, maxBytes int) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.MinBytes = minBytes
		c.MaxBytes = maxBytes
	}
}

// WithConsumerBufferSize sets the internal channel buffer size.
func WithConsumerBufferSize(n int) ConsumerOption {
	return func(c *ConsumerConfig) {
		if n > 0 {
			c.BufferSize = n
		}
	}
}

// WithConsumerLogger routes consumer logging through the structured
// logger.
func WithConsumerLogger(l *applogger.Logger) ConsumerOption {
	return func(c *ConsumerConfig) { c.Logger = l }
}

// Consumer reads registered topics through a worker pool. Handling is
// serialized per (topic, partition) so live signal updates for one bot
// apply in order.
type Consumer struct {
	cfg       *ConsumerConfig
	readers   map[string]*kafka.Reader
	handlers  map[string]MessageHandler
	stopChan  chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
	inbox     chan *inbound
	dlq       *kafka.Writer
	partLocks map[string]map[int]*sync.Mutex
	hook      ConsumerHook
	log       *applogger.Logger
}

type inbound struct {
	topic string
	data  []byte
	km    kafka.Message
}

// NewConsumer creates a new Kafka consumer.
func NewConsumer(opts ...ConsumerOption) (*Consumer, error) {
	cfg := &ConsumerConfig{
		GroupID:         "default",
		AutoOffsetReset: "latest",
		WorkerCount:     1,
		BufferSize:      10,
		RetryMax:        3,
		BackoffMin:      50 * time.Millisecond,
		BackoffMax:      2 * time.Second,
		MinBytes:        10e3,
		MaxBytes:        10e6,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}

	c := &Consumer{
		cfg:       cfg,
		readers:   make(map[string]*kafka.Reader),
		handlers:  make(map[string]MessageHandler),
		stopChan:  make(chan struct{}),
		inbox:     make(chan *inbound, cfg.BufferSize),
		partLocks: make(map[string]map[int]*sync.Mutex),
		hook:      NoopHook{},
		log:       cfg.Logger,
	}
	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{Addr: kafka.TCP(cfg.Brokers...), Balancer: &kafka.LeastBytes{}}
	}

	consumerMetricsOnce.Do(registerConsumerMetrics)
	return c, nil
}

// WithConsumerHook sets a hook implementation for lifecycle events.
func (c *Consumer) WithConsumerHook(h ConsumerHook) {
	if h != nil {
		c.hook = h
	}
}

// RegisterHandler registers a message handler for a specific topic.
// Must be called before Start.
func (c *Consumer) RegisterHandler(handler MessageHandler) {
	topic := handler.Topic()
	if _, ok := c.handlers[topic]; ok {
		c.logWarn("handler already registered", applogger.String("topic", topic))
		return
	}
	c.handlers[topic] = handler
}

// startOffset maps the offset-reset policy to a reader start offset.
// It only applies when the group has no committed offset yet; a live
// dashboard usually wants "latest" so it does not replay old ticks.
func (c *Consumer) startOffset() int64 {
	if c.cfg.AutoOffsetReset == "earliest" {
		return kafka.FirstOffset
	}
	return kafka.LastOffset
}

// Start spawns the worker pool and one reader goroutine per topic.
func (c *Consumer) Start() error {
	for topic, handler := range c.handlers {
		c.readers[topic] = kafka.NewReader(kafka.ReaderConfig{
			Brokers:     c.cfg.Brokers,
			Topic:       topic,
			GroupID:     c.cfg.GroupID,
			MinBytes:    c.cfg.MinBytes,
			MaxBytes:    c.cfg.MaxBytes,
			StartOffset: c.startOffset(),
		})
		c.logInfo("kafka consumer: registered topic", applogger.String("topic", handler.Topic()))
	}

	for i := 0; i < c.cfg.WorkerCount; i++ {
		c.wg.Add(1)
		go c.worker()
	}
	c.logInfo("kafka consumer: workers started", applogger.Int("workers", c.cfg.WorkerCount))

	for topic, reader := range c.readers {
		c.wg.Add(1)
		go c.readLoop(topic, reader)
	}

	c.logInfo("kafka consumer: started")
	return nil
}

// Stop shuts the consumer down, waiting for in-flight work up to the
// context deadline.
func (c *Consumer) Stop(ctx context.Context) error {
	var stopErr error
	c.stopOnce.Do(func() {
		c.logInfo("kafka consumer: stopping")
		close(c.stopChan)
		close(c.inbox)

		stopErr = c.waitForWg(ctx)

		for topic, reader := range c.readers {
			if err := reader.Close(); err != nil {
				c.logWarn("reader close error", applogger.String("topic", topic), applogger.Error(err))
			}
		}
		if c.dlq != nil {
			if err := c.dlq.Close(); err != nil {
				c.logWarn("dlq writer close error", applogger.Error(err))
			}
		}
		if stopErr == nil {
			c.logInfo("kafka consumer: stopped")
		}
	})
	return stopErr
}

func (c *Consumer) waitForWg(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return fmt.Errorf("timeout waiting for consumer to stop: %w", ctx.Err())
	case <-done:
		return nil
	}
}

// readLoop pulls messages off one reader and enqueues them for the
// worker pool.
func (c *Consumer) readLoop(topic string, reader *kafka.Reader) {
	defer c.wg.Done()

	for {
		select {
		case <-c.stopChan:
			return
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		km, err := reader.ReadMessage(ctx)
		cancel()
		if err != nil {
			if !errors.Is(err, context.DeadlineExceeded) {
				c.logWarn("read error", applogger.String("topic", topic), applogger.Error(err))
			}
			continue
		}
		if !c.enqueue(&inbound{topic: topic, data: km.Value, km: km}) {
			return
		}
	}
}

// enqueue hands a message to the worker pool, spinning with adaptive
// backpressure while the inbox is full. Returns false on shutdown.
func (c *Consumer) enqueue(in *inbound) bool {
	for {
		select {
		case c.inbox <- in:
			consumerMetrics.observeQueue(in.topic, len(c.inbox), cap(c.inbox))
			return true
		case <-c.stopChan:
			return false
		default:
			fullness := float64(len(c.inbox)) / float64(cap(c.inbox))
			consumerMetrics.observeFullness(in.topic, fullness)
			if fullness > 0.8 {
				time.Sleep(10 * time.Millisecond)
			} else {
				runtime.Gosched()
			}
		}
	}
}

func (c *Consumer) worker() {
	defer c.wg.Done()
	for in := range c.inbox {
		if handler, ok := c.handlers[in.topic]; ok {
			c.process(handler, in)
		}
	}
}

// process runs one message through the hook + handler retry loop under
// the partition lock, then commits the offset.
func (c *Consumer) process(handler MessageHandler, in *inbound) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			c.logWarn("handler panic",
				applogger.String("topic", handler.Topic()),
				applogger.String("panic", fmt.Sprintf("%v", r)))
		}
	}()

	pl := c.partitionLock(in.topic, in.km.Partition)
	pl.Lock()
	defer pl.Unlock()

	err := c.handleWithRetry(handler, in)
	if err != nil {
		c.hook.OnError(context.Background(), in.topic, in.km, in.data, err)
		c.logWarn("handler gave up",
			applogger.String("topic", handler.Topic()),
			applogger.Error(err))
		c.sendToDLQ(handler.Topic(), in.data)
	}

	// Commit on success, or after DLQ hand-off so a poison message
	// cannot wedge the partition.
	if err == nil || c.dlq != nil {
		if reader := c.readers[in.topic]; reader != nil {
			_ = c.commitWithRetry(reader, in.km, 3)
		}
	}
	consumerMetrics.observeHandle(in.topic, time.Since(start))
}

func (c *Consumer) handleWithRetry(handler MessageHandler, in *inbound) error {
	for attempt := 1; ; attempt++ {
		hctx, hmsg, hdata, err := c.hook.BeforeHandle(context.Background(), in.topic, in.km, in.data)
		if err != nil {
			return err
		}

		err = handler.Handle(hctx, hdata)
		c.hook.AfterHandle(hctx, in.topic, hmsg, hdata, err)
		if err == nil {
			return nil
		}
		if attempt > c.cfg.RetryMax {
			return err
		}

		c.hook.OnError(hctx, in.topic, hmsg, hdata, err)
		select {
		case <-time.After(backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, attempt)):
		case <-c.stopChan:
			return err
		}
	}
}

func (c *Consumer) sendToDLQ(sourceTopic string, data []byte) {
	if c.dlq == nil || c.cfg.DLQTopic == "" {
		return
	}
	err := c.dlq.WriteMessages(context.Background(), kafka.Message{
		Topic:   c.cfg.DLQTopic,
		Value:   data,
		Time:    time.Now(),
		Headers: []kafka.Header{{Key: "source_topic", Value: []byte(sourceTopic)}},
	})
	if err != nil {
		c.logWarn("dlq write error", applogger.String("topic", c.cfg.DLQTopic), applogger.Error(err))
	}
}

// commitWithRetry commits a single message offset with bounded retries.
func (c *Consumer) commitWithRetry(reader *kafka.Reader, km kafka.Message, max int) error {
	if max <= 0 {
		max = 1
	}
	var err error
	for attempt := 1; attempt <= max; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = reader.CommitMessages(ctx, km)
		cancel()
		if err == nil {
			return nil
		}
		time.Sleep(backoffWithJitter(50*time.Millisecond, 500*time.Millisecond, attempt))
	}
	c.logWarn("offset commit failed", applogger.Int("attempts", max), applogger.Error(err))
	return err
}

// partitionLock lazily creates the per-(topic, partition) mutex. Only
// reached from workers after Start, when the maps are no longer
// written concurrently by registration.
func (c *Consumer) partitionLock(topic string, partition int) *sync.Mutex {
	m, ok := c.partLocks[topic]
	if !ok {
		m = make(map[int]*sync.Mutex)
		c.partLocks[topic] = m
	}
	l, ok := m[partition]
	if !ok {
		l = &sync.Mutex{}
		m[partition] = l
	}
	return l
}

func backoffWithJitter(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	exp := min * time.Duration(1<<uint(attempt-1))
	if exp > max {
		exp = max
	}
	// up to 50% jitter shaved off
	jitter := time.Duration(rand.Int63n(int64(exp) / 2))
	return exp - jitter
}

func (c *Consumer) logInfo(msg string, fields ...applogger.Field) {
	if c.log != nil {
		c.log.Info(msg, fields...)
	}
}

func (c *Consumer) logWarn(msg string, fields ...applogger.Field) {
	if c.log != nil {
		c.log.Warn(msg, fields...)
	}
}

var (
	consumerMetricsOnce sync.Once
	consumerMetrics     ingestMetrics
)

type ingestMetrics struct {
	queueDepth    *prometheus.GaugeVec
	queueFullness *prometheus.GaugeVec
	handleLatency *prometheus.HistogramVec
}

func registerConsumerMetrics() {
	consumerMetrics.queueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{Name: "tradedash_kafka_consumer_queue_depth", Help: "Number of messages waiting in consumer queue"},
		[]string{"topic"},
	)
	consumerMetrics.queueFullness = promauto.NewGaugeVec(
		prometheus.GaugeOpts{Name: "tradedash_kafka_consumer_queue_fullness", Help: "Queue utilization ratio (len/cap)"},
		[]string{"topic"},
	)
	consumerMetrics.handleLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{Name: "tradedash_kafka_consumer_handle_seconds", Help: "Handling time per message"},
		[]string{"topic"},
	)
}

func (m *ingestMetrics) observeQueue(topic string, depth, capacity int) {
	if m.queueDepth == nil {
		return
	}
	m.queueDepth.WithLabelValues(topic).Set(float64(depth))
	m.queueFullness.WithLabelValues(topic).Set(float64(depth) / float64(capacity))
}

func (m *ingestMetrics) observeFullness(topic string, fullness float64) {
	if m.queueFullness == nil {
		return
	}
	m.queueFullness.WithLabelValues(topic).Set(fullness)
}

func (m *ingestMetrics) observeHandle(topic string, dur time.Duration) {
	if m.handleLatency == nil {
		return
	}
	m.handleLatency.WithLabelValues(topic).Observe(dur.Seconds())
}
