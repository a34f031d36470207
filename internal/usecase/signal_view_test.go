package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"TradeDash/internal/cachestore"
	"TradeDash/internal/coordinator"
	"TradeDash/internal/domain/models"
	domrepo "TradeDash/internal/domain/repository"
)

type fakeRawFeed struct {
	recs  []models.RawSignal
	err   error
	calls int32
}

func (f *fakeRawFeed) Fetch(ctx context.Context, p models.FetchParams) ([]models.RawSignal, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.recs, f.err
}

type fakeExecFeed struct {
	recs  []models.ExecutionSignal
	err   error
	calls int32
}

func (f *fakeExecFeed) Fetch(ctx context.Context, p models.FetchParams) ([]models.ExecutionSignal, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.recs, f.err
}

func newTestView(raw *fakeRawFeed, exec *fakeExecFeed, copts ...coordinator.Option) *SignalView {
	opts := append([]coordinator.Option{
		coordinator.WithCooldown(time.Millisecond),
		coordinator.WithSafetyTimeout(2 * time.Second),
	}, copts...)
	v := NewSignalView(
		coordinator.New(opts...),
		cachestore.New[models.RawSignal](),
		cachestore.New[models.ExecutionSignal](),
		raw, exec, nil, nil,
	)
	v.SetScope(models.FetchParams{BotID: "bot-1", AdminView: true})
	return v
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting: %s", msg)
}

func TestRefreshPopulatesView(t *testing.T) {
	raw := &fakeRawFeed{recs: []models.RawSignal{
		{ID: "r1", BotID: "bot-1", Instrument: "EURUSD", Status: models.StatusSuccess, OwnerUserID: "u1", Timestamp: time.Now()},
	}}
	exec := &fakeExecFeed{recs: []models.ExecutionSignal{
		{ID: "e1", SignalID: "r1", BotID: "bot-1", Instrument: "EURUSD", Timestamp: time.Now(),
			Outcomes: []models.AccountOutcome{{OwnerUserID: "u2", AccountID: "a1", Success: true}}},
	}}
	v := newTestView(raw, exec)

	if !v.RequestRefresh(context.Background()) {
		t.Fatalf("expected refresh to start")
	}
	waitFor(t, func() bool { return !v.IsLoading() }, "refresh settled")

	view := v.VisibleSignals()
	if len(view.Raw) != 1 || len(view.Executions) != 1 {
		t.Fatalf("expected 1+1 visible, got %d raw %d execs", len(view.Raw), len(view.Executions))
	}
	if errs := v.FeedErrors(); errs != nil {
		t.Fatalf("expected no feed errors, got %v", errs)
	}
}

func TestRefreshWhileLoadingFetchesEachFeedOnce(t *testing.T) {
	raw := &fakeRawFeed{}
	exec := &fakeExecFeed{}
	v := newTestView(raw, exec, coordinator.WithCooldown(time.Minute))

	v.RequestRefresh(context.Background())
	v.RequestRefresh(context.Background()) // dropped: in flight or cooldown
	waitFor(t, func() bool { return !v.IsLoading() }, "refresh settled")

	if got := atomic.LoadInt32(&raw.calls); got != 1 {
		t.Fatalf("expected 1 raw fetch, got %d", got)
	}
	if got := atomic.LoadInt32(&exec.calls); got != 1 {
		t.Fatalf("expected 1 exec fetch, got %d", got)
	}
}

func TestFailedFeedKeepsPreviousSnapshot(t *testing.T) {
	raw := &fakeRawFeed{recs: []models.RawSignal{{ID: "r1", BotID: "bot-1", Timestamp: time.Now()}}}
	exec := &fakeExecFeed{}
	v := newTestView(raw, exec)

	v.RequestRefresh(context.Background())
	waitFor(t, func() bool { return !v.IsLoading() }, "first refresh")

	// next cycle: raw feed goes down
	raw.err = errors.New("raw feed down")
	time.Sleep(5 * time.Millisecond) // past the test cooldown
	v.RequestRefresh(context.Background())
	waitFor(t, func() bool { return !v.IsLoading() }, "second refresh")

	view := v.VisibleSignals()
	if len(view.Raw) != 1 || view.Raw[0].ID != "r1" {
		t.Fatalf("stale snapshot must survive a failed fetch, got %v", view.Raw)
	}
	errs := v.FeedErrors()
	if errs == nil || errs[models.FeedRaw] == "" {
		t.Fatalf("expected raw feed error recorded, got %v", errs)
	}
}

func TestAvailableOwnersUnionsBothFeeds(t *testing.T) {
	raw := &fakeRawFeed{recs: []models.RawSignal{
		{ID: "r1", BotID: "bot-1", OwnerUserID: "u1", Timestamp: time.Now()},
	}}
	exec := &fakeExecFeed{recs: []models.ExecutionSignal{
		{ID: "e1", BotID: "bot-1", OwnerUserID: "u2", Timestamp: time.Now(),
			Outcomes: []models.AccountOutcome{{OwnerUserID: "u3", AccountID: "a1", Success: true}}},
	}}
	v := newTestView(raw, exec)

	v.RequestRefresh(context.Background())
	waitFor(t, func() bool { return !v.IsLoading() }, "refresh settled")

	owners := v.AvailableOwners()
	ids := map[string]bool{}
	for _, o := range owners {
		ids[o.ID] = true
	}
	for _, want := range []string{"u1", "u2", "u3"} {
		if !ids[want] {
			t.Fatalf("expected owner %s in %v", want, owners)
		}
	}
}

func TestIngestLiveEnrichesCoveredScopes(t *testing.T) {
	raw := &fakeRawFeed{recs: []models.RawSignal{{ID: "r1", BotID: "bot-1", Timestamp: time.Now()}}}
	exec := &fakeExecFeed{}
	v := newTestView(raw, exec)

	v.RequestRefresh(context.Background())
	waitFor(t, func() bool { return !v.IsLoading() }, "refresh settled")

	added := v.IngestLive(models.RawSignal{ID: "live-1", BotID: "bot-1", OwnerUserID: "u9", Timestamp: time.Now()})
	if added != 1 {
		t.Fatalf("expected live signal appended once, got %d", added)
	}
	// duplicate id is dropped
	if again := v.IngestLive(models.RawSignal{ID: "live-1", BotID: "bot-1", Timestamp: time.Now()}); again != 0 {
		t.Fatalf("duplicate live signal must not append, got %d", again)
	}
	// other bots don't touch this scope
	if other := v.IngestLive(models.RawSignal{ID: "live-2", BotID: "bot-2", Timestamp: time.Now()}); other != 0 {
		t.Fatalf("live signal for another bot must not append, got %d", other)
	}

	view := v.VisibleSignals()
	if len(view.Raw) != 2 {
		t.Fatalf("expected 2 raw signals after ingest, got %d", len(view.Raw))
	}
}

type captureNotifier struct {
	mu     sync.Mutex
	events []domrepo.CommitEvent
}

func (c *captureNotifier) NotifyCommit(ev domrepo.CommitEvent) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
}

func (c *captureNotifier) byFeed(feed string) []domrepo.CommitEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []domrepo.CommitEvent
	for _, ev := range c.events {
		if ev.Feed == feed {
			out = append(out, ev)
		}
	}
	return out
}

func TestIngestLiveNotifiesTouchedKey(t *testing.T) {
	raw := &fakeRawFeed{recs: []models.RawSignal{{ID: "r1", BotID: "bot-1", Timestamp: time.Now()}}}
	exec := &fakeExecFeed{}
	v := newTestView(raw, exec)

	notif := &captureNotifier{}
	v.AddNotifier(notif)

	// The only cached entry lives under the admin scope "bot-1|". An
	// owner-tagged live signal still lands there, and the broadcast
	// must carry that key, not one rebuilt from the signal's owner.
	v.RequestRefresh(context.Background())
	waitFor(t, func() bool { return !v.IsLoading() }, "refresh settled")

	adminKey := models.FetchParams{BotID: "bot-1", AdminView: true}.Key()
	if added := v.IngestLive(models.RawSignal{ID: "live-1", BotID: "bot-1", OwnerUserID: "u9", Timestamp: time.Now()}); added != 1 {
		t.Fatalf("expected live signal appended once, got %d", added)
	}

	evs := notif.byFeed(models.FeedRaw)
	if len(evs) == 0 {
		t.Fatalf("expected a commit event for the live append")
	}
	last := evs[len(evs)-1]
	if last.Key != adminKey {
		t.Fatalf("commit event key = %q, want %q", last.Key, adminKey)
	}
	if last.Count != 1 {
		t.Fatalf("commit event count = %d, want 1", last.Count)
	}

	// A duplicate appends nothing and must stay silent.
	before := len(notif.byFeed(models.FeedRaw))
	v.IngestLive(models.RawSignal{ID: "live-1", BotID: "bot-1", Timestamp: time.Now()})
	if after := len(notif.byFeed(models.FeedRaw)); after != before {
		t.Fatalf("duplicate ingest emitted %d extra events", after-before)
	}
}

func TestFilterCriteriaScopesTheView(t *testing.T) {
	raw := &fakeRawFeed{recs: []models.RawSignal{
		{ID: "r1", BotID: "bot-1", Instrument: "EURUSD", Timestamp: time.Now()},
		{ID: "r2", BotID: "bot-1", Instrument: "GBPUSD", Timestamp: time.Now()},
	}}
	exec := &fakeExecFeed{}
	v := newTestView(raw, exec)

	v.RequestRefresh(context.Background())
	waitFor(t, func() bool { return !v.IsLoading() }, "refresh settled")

	v.SetFilterCriteria(models.FilterCriteria{SearchText: "gbp"})
	view := v.VisibleSignals()
	if len(view.Raw) != 1 || view.Raw[0].ID != "r2" {
		t.Fatalf("expected filtered view with r2, got %v", view.Raw)
	}

	// clearing the criteria restores the full snapshot
	v.SetFilterCriteria(models.FilterCriteria{})
	if got := len(v.VisibleSignals().Raw); got != 2 {
		t.Fatalf("expected full view after reset, got %d", got)
	}
}
