package coordinator

import (
	"context"
	"sync"
	"time"

	domrepo "TradeDash/internal/domain/repository"
	xlogger "TradeDash/pkg/logger"
)

// Task is one adapter's work within a refresh cycle. Run fetches and
// returns a commit closure; the coordinator decides when the commit
// is applied.
type Task struct {
	Feed string
	Run  func(ctx context.Context) (commit func(), err error)
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithCooldown sets the minimum gap between completed refreshes of the
// same key.
func WithCooldown(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.cooldown = d
		}
	}
}

// WithSafetyTimeout sets the hard cap on how long a refresh cycle may
// hold the loading state.
func WithSafetyTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.safetyTimeout = d
		}
	}
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(m domrepo.Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// WithLogger attaches a logger.
func WithLogger(l *xlogger.Logger) Option {
	return func(c *Coordinator) {
		c.log = l
	}
}

// Coordinator drives refresh cycles over one or more source adapters,
// guaranteeing at most one in-flight fetch per key and a cooldown
// between completed refreshes. Commits are held until every adapter
// has settled; if the safety timeout fires first, the loading state is
// released and late results commit feed-by-feed as they arrive.
type Coordinator struct {
	cooldown      time.Duration
	safetyTimeout time.Duration
	metrics       domrepo.Metrics
	log           *xlogger.Logger

	mu       sync.Mutex
	inflight map[string]time.Time
	lastDone map[string]time.Time
	loading  map[string]bool
	lastErrs map[string]map[string]string

	onLoading []func(key string, loading bool)
}

// New creates a Coordinator.
func New(opts ...Option) *Coordinator {
	c := &Coordinator{
		cooldown:      2500 * time.Millisecond,
		safetyTimeout: 8 * time.Second,
		inflight:      make(map[string]time.Time),
		lastDone:      make(map[string]time.Time),
		loading:       make(map[string]bool),
		lastErrs:      make(map[string]map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnLoadingChange registers a listener for loading start/stop signals.
// Listeners are not invoked for calls rejected by dedup or cooldown.
func (c *Coordinator) OnLoadingChange(fn func(key string, loading bool)) {
	c.mu.Lock()
	c.onLoading = append(c.onLoading, fn)
	c.mu.Unlock()
}

// IsLoading reports whether a refresh for key is holding the loading state.
func (c *Coordinator) IsLoading(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading[key]
}

// Errors returns the per-feed errors of the last settled refresh for
// key, or nil if it fully succeeded.
func (c *Coordinator) Errors(key string) map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()

	errs, ok := c.lastErrs[key]
	if !ok || len(errs) == 0 {
		return nil
	}
	out := make(map[string]string, len(errs))
	for k, v := range errs {
		out[k] = v
	}
	return out
}

// cycle tracks one refresh's staged commits. Once released (all tasks
// settled or safety timeout fired), late commits apply immediately.
type cycle struct {
	mu       sync.Mutex
	released bool
	pending  []func()
	errs     map[string]string
}

func (cy *cycle) settle(feed string, commit func(), err error) {
	cy.mu.Lock()
	defer cy.mu.Unlock()

	if err != nil {
		cy.errs[feed] = err.Error()
		return
	}
	if cy.released {
		commit()
		return
	}
	cy.pending = append(cy.pending, commit)
}

func (cy *cycle) release() map[string]string {
	cy.mu.Lock()
	defer cy.mu.Unlock()

	cy.released = true
	for _, fn := range cy.pending {
		fn()
	}
	cy.pending = nil

	errs := make(map[string]string, len(cy.errs))
	for k, v := range cy.errs {
		errs[k] = v
	}
	return errs
}

// Refresh starts a refresh cycle for key. It returns false without any
// adapter work if a cycle for key is in flight or the cooldown window
// has not elapsed; the rejected call is dropped, not queued. The cycle
// itself runs asynchronously; completion is observed through the cache
// store commits and the loading signal.
func (c *Coordinator) Refresh(ctx context.Context, key string, tasks []Task) bool {
	if len(tasks) == 0 {
		return false
	}

	now := time.Now()
	c.mu.Lock()
	if _, busy := c.inflight[key]; busy {
		c.mu.Unlock()
		c.recordRefresh("deduped")
		return false
	}
	if last, ok := c.lastDone[key]; ok && now.Sub(last) < c.cooldown {
		c.mu.Unlock()
		c.recordRefresh("cooldown")
		return false
	}
	c.inflight[key] = now
	c.loading[key] = true
	listeners := append([]func(string, bool){}, c.onLoading...)
	c.mu.Unlock()

	c.recordRefresh("started")
	for _, fn := range listeners {
		fn(key, true)
	}

	cy := &cycle{errs: make(map[string]string)}
	done := make(chan struct{})
	var wg sync.WaitGroup

	for _, t := range tasks {
		wg.Add(1)
		go func(t Task) {
			defer wg.Done()
			start := time.Now()
			commit, err := t.Run(ctx)
			if c.metrics != nil {
				c.metrics.RecordFetchLatency(t.Feed, time.Since(start).Seconds())
				if err != nil {
					c.metrics.RecordFetchError(t.Feed)
				}
			}
			if err != nil && c.log != nil {
				c.log.Warn("feed fetch failed",
					xlogger.String("feed", t.Feed),
					xlogger.String("key", key),
					xlogger.Error(err))
			}
			cy.settle(t.Feed, commit, err)
		}(t)
	}

	go func() {
		wg.Wait()
		close(done)
	}()

	go func() {
		timer := time.NewTimer(c.safetyTimeout)
		defer timer.Stop()

		select {
		case <-done:
			errs := cy.release()
			c.finish(key, errs, listeners)
			c.recordRefresh("settled")
		case <-timer.C:
			errs := cy.release()
			c.finish(key, errs, listeners)
			c.recordRefresh("timeout")
			if c.log != nil {
				c.log.Warn("refresh safety timeout fired", xlogger.String("key", key))
			}
			// Late errors from still-running adapters are still recorded
			// once everything settles; their commits apply on arrival.
			go func() {
				<-done
				c.storeErrors(key, cy.release())
			}()
		}
	}()

	return true
}

func (c *Coordinator) finish(key string, errs map[string]string, listeners []func(string, bool)) {
	c.mu.Lock()
	delete(c.inflight, key)
	c.loading[key] = false
	c.lastDone[key] = time.Now()
	c.lastErrs[key] = errs
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(key, false)
	}
}

func (c *Coordinator) storeErrors(key string, errs map[string]string) {
	if len(errs) == 0 {
		return
	}
	c.mu.Lock()
	c.lastErrs[key] = errs
	c.mu.Unlock()
}

func (c *Coordinator) recordRefresh(outcome string) {
	if c.metrics != nil {
		c.metrics.RecordRefresh(outcome)
	}
}
