package coordinator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

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

func TestRefreshRunsTasksAndCommits(t *testing.T) {
	c := New(WithCooldown(time.Millisecond))
	var committed int32

	ok := c.Refresh(context.Background(), "k", []Task{{
		Feed: "raw",
		Run: func(ctx context.Context) (func(), error) {
			return func() { atomic.AddInt32(&committed, 1) }, nil
		},
	}})
	if !ok {
		t.Fatalf("expected refresh to start")
	}
	waitFor(t, func() bool { return atomic.LoadInt32(&committed) == 1 }, "commit applied")
	waitFor(t, func() bool { return !c.IsLoading("k") }, "loading released")
	if errs := c.Errors("k"); errs != nil {
		t.Fatalf("expected no errors, got %v", errs)
	}
}

func TestInFlightRefreshIsDropped(t *testing.T) {
	c := New()
	release := make(chan struct{})
	var runs int32

	task := Task{Feed: "raw", Run: func(ctx context.Context) (func(), error) {
		atomic.AddInt32(&runs, 1)
		<-release
		return func() {}, nil
	}}

	if !c.Refresh(context.Background(), "k", []Task{task}) {
		t.Fatalf("first refresh must start")
	}
	if c.Refresh(context.Background(), "k", []Task{task}) {
		t.Fatalf("second refresh must be dropped while in flight")
	}
	close(release)
	waitFor(t, func() bool { return !c.IsLoading("k") }, "loading released")
	if got := atomic.LoadInt32(&runs); got != 1 {
		t.Fatalf("expected exactly 1 task run, got %d", got)
	}
}

func TestCooldownRejectsUntilElapsed(t *testing.T) {
	c := New(WithCooldown(200 * time.Millisecond))
	task := Task{Feed: "raw", Run: func(ctx context.Context) (func(), error) {
		return func() {}, nil
	}}

	if !c.Refresh(context.Background(), "k", []Task{task}) {
		t.Fatalf("first refresh must start")
	}
	waitFor(t, func() bool { return !c.IsLoading("k") }, "first cycle settled")

	if c.Refresh(context.Background(), "k", []Task{task}) {
		t.Fatalf("refresh inside cooldown must be dropped")
	}

	time.Sleep(250 * time.Millisecond)
	if !c.Refresh(context.Background(), "k", []Task{task}) {
		t.Fatalf("refresh after cooldown must start")
	}
}

func TestIndependentKeysRefreshConcurrently(t *testing.T) {
	c := New()
	release := make(chan struct{})
	task := Task{Feed: "raw", Run: func(ctx context.Context) (func(), error) {
		<-release
		return func() {}, nil
	}}

	if !c.Refresh(context.Background(), "a", []Task{task}) {
		t.Fatalf("key a must start")
	}
	if !c.Refresh(context.Background(), "b", []Task{task}) {
		t.Fatalf("key b must start despite a in flight")
	}
	close(release)
	waitFor(t, func() bool { return !c.IsLoading("a") && !c.IsLoading("b") }, "both settled")
}

func TestPartialFailureCommitsSurvivorsAndRecordsErrors(t *testing.T) {
	c := New()
	var committed int32

	tasks := []Task{
		{Feed: "raw", Run: func(ctx context.Context) (func(), error) {
			return func() { atomic.AddInt32(&committed, 1) }, nil
		}},
		{Feed: "executions", Run: func(ctx context.Context) (func(), error) {
			return nil, errors.New("feed down")
		}},
	}

	c.Refresh(context.Background(), "k", tasks)
	waitFor(t, func() bool { return !c.IsLoading("k") }, "cycle settled")

	if atomic.LoadInt32(&committed) != 1 {
		t.Fatalf("successful feed must still commit")
	}
	errs := c.Errors("k")
	if errs == nil || errs["executions"] != "feed down" {
		t.Fatalf("expected executions error recorded, got %v", errs)
	}
	if _, ok := errs["raw"]; ok {
		t.Fatalf("raw feed did not fail, got %v", errs)
	}
}

func TestSafetyTimeoutReleasesLoadingAndAppliesLateCommit(t *testing.T) {
	c := New(WithSafetyTimeout(50 * time.Millisecond))
	slow := make(chan struct{})
	var committed int32

	c.Refresh(context.Background(), "k", []Task{{
		Feed: "raw",
		Run: func(ctx context.Context) (func(), error) {
			<-slow
			return func() { atomic.AddInt32(&committed, 1) }, nil
		},
	}})

	// timeout fires before the task settles
	waitFor(t, func() bool { return !c.IsLoading("k") }, "loading released by safety timeout")
	if atomic.LoadInt32(&committed) != 0 {
		t.Fatalf("commit must not apply before the task settles")
	}

	// the late result still lands, feed by feed
	close(slow)
	waitFor(t, func() bool { return atomic.LoadInt32(&committed) == 1 }, "late commit applied")
}

func TestLoadingListenerSeesStartAndStop(t *testing.T) {
	c := New()
	var mu sync.Mutex
	var events []bool

	c.OnLoadingChange(func(key string, loading bool) {
		mu.Lock()
		events = append(events, loading)
		mu.Unlock()
	})

	c.Refresh(context.Background(), "k", []Task{{
		Feed: "raw",
		Run: func(ctx context.Context) (func(), error) {
			return func() {}, nil
		},
	}})
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 2
	}, "two loading events")

	mu.Lock()
	defer mu.Unlock()
	if !events[0] || events[1] {
		t.Fatalf("expected [true false], got %v", events)
	}
}
