package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"TradeDash/internal/cachestore"
	"TradeDash/internal/coordinator"
	"TradeDash/internal/domain/models"
	domrepo "TradeDash/internal/domain/repository"
	"TradeDash/internal/pipeline"
	xlogger "TradeDash/pkg/logger"
)

// SignalView ties the fetch coordinator, cache stores and merge/filter
// pipeline together and exposes the dashboard-facing read model.
type SignalView struct {
	coord    *coordinator.Coordinator
	raws     *cachestore.Store[models.RawSignal]
	execs    *cachestore.Store[models.ExecutionSignal]
	rawFeed  domrepo.RawFeed
	execFeed domrepo.ExecutionFeed

	archive   domrepo.SignalArchive    // optional
	mirror    domrepo.SnapshotMirror   // optional
	notifiers []domrepo.CommitNotifier
	owners    domrepo.OwnerDirectory   // optional
	metrics   domrepo.Metrics
	log       *xlogger.Logger

	mu       sync.RWMutex
	scope    models.FetchParams
	criteria models.FilterCriteria
}

// NewSignalView creates the signal view use case.
func NewSignalView(
	coord *coordinator.Coordinator,
	raws *cachestore.Store[models.RawSignal],
	execs *cachestore.Store[models.ExecutionSignal],
	rawFeed domrepo.RawFeed,
	execFeed domrepo.ExecutionFeed,
	metrics domrepo.Metrics,
	log *xlogger.Logger,
) *SignalView {
	if log == nil {
		log = xlogger.Nop()
	}
	return &SignalView{
		coord:    coord,
		raws:     raws,
		execs:    execs,
		rawFeed:  rawFeed,
		execFeed: execFeed,
		metrics:  metrics,
		log:      log,
	}
}

// SetArchive attaches the history archive commit hook.
func (u *SignalView) SetArchive(a domrepo.SignalArchive) { u.archive = a }

// SetMirror attaches the snapshot mirror commit hook.
func (u *SignalView) SetMirror(m domrepo.SnapshotMirror) { u.mirror = m }

// AddNotifier attaches a live-update commit notifier. Notifiers run
// synchronously on the commit path and must not block.
func (u *SignalView) AddNotifier(n domrepo.CommitNotifier) {
	u.notifiers = append(u.notifiers, n)
}

// SetOwnerDirectory attaches the display-name resolver for owners.
func (u *SignalView) SetOwnerDirectory(d domrepo.OwnerDirectory) { u.owners = d }

// SetScope switches the current bot/owner scope. Cached entries for
// previous scopes stay in the stores.
func (u *SignalView) SetScope(p models.FetchParams) {
	u.mu.Lock()
	u.scope = p
	u.mu.Unlock()
}

// Scope returns the current fetch scope.
func (u *SignalView) Scope() models.FetchParams {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.scope
}

// SetFilterCriteria replaces the active criteria wholesale.
func (u *SignalView) SetFilterCriteria(c models.FilterCriteria) {
	u.mu.Lock()
	u.criteria = c
	u.mu.Unlock()
}

// FilterCriteria returns the last-applied criteria.
func (u *SignalView) FilterCriteria() models.FilterCriteria {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.criteria
}

// RequestRefresh asks the coordinator to refresh both feeds for the
// current scope. Fire-and-forget: returns false if the call was
// dropped by dedup or cooldown, true if a cycle started.
func (u *SignalView) RequestRefresh(ctx context.Context) bool {
	p := u.Scope()
	key := p.Key()

	tasks := []coordinator.Task{
		{
			Feed: models.FeedRaw,
			Run: func(ctx context.Context) (func(), error) {
				recs, err := u.rawFeed.Fetch(ctx, p)
				if err != nil {
					return nil, err
				}
				return func() { u.commitRaw(key, recs) }, nil
			},
		},
		{
			Feed: models.FeedExecutions,
			Run: func(ctx context.Context) (func(), error) {
				recs, err := u.execFeed.Fetch(ctx, p)
				if err != nil {
					return nil, err
				}
				return func() { u.commitExecutions(key, recs) }, nil
			},
		},
	}

	started := u.coord.Refresh(ctx, key, tasks)
	u.log.Debug("refresh requested",
		xlogger.String("key", key),
		xlogger.Bool("admin_view", p.AdminView),
		xlogger.Bool("started", started),
	)
	return started
}

// IsLoading reports the loading state for the current scope.
func (u *SignalView) IsLoading() bool {
	return u.coord.IsLoading(u.Scope().Key())
}

// FeedErrors returns the per-feed errors of the last refresh, nil when
// everything succeeded.
func (u *SignalView) FeedErrors() map[string]string {
	return u.coord.Errors(u.Scope().Key())
}

// VisibleSignals runs the merge/filter pipeline over the latest cached
// snapshots for the current scope.
func (u *SignalView) VisibleSignals() models.FilteredView {
	key := u.Scope().Key()
	view := pipeline.Apply(u.raws.Read(key), u.execs.Read(key), u.FilterCriteria())
	if u.metrics != nil {
		u.metrics.RecordVisible(models.FeedRaw, len(view.Raw))
		u.metrics.RecordVisible(models.FeedExecutions, len(view.Executions))
	}
	return view
}

// AvailableOwners derives the owner dropdown entries from the union of
// owner ids across both cached feeds plus the currently-scoped owner.
func (u *SignalView) AvailableOwners() []models.OwnerRef {
	p := u.Scope()
	key := p.Key()

	seen := make(map[string]struct{})
	add := func(id string) {
		if id != "" {
			seen[id] = struct{}{}
		}
	}

	for _, s := range u.raws.Read(key) {
		add(s.OwnerUserID)
	}
	for _, e := range u.execs.Read(key) {
		add(e.OwnerUserID)
		for _, o := range e.Outcomes {
			add(o.OwnerUserID)
		}
	}
	add(p.OwnerScope)

	refs := make([]models.OwnerRef, 0, len(seen))
	for id := range seen {
		name := id
		if u.owners != nil {
			if dn, ok := u.owners.DisplayName(id); ok {
				name = dn
			}
		}
		refs = append(refs, models.OwnerRef{ID: id, DisplayName: name})
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].DisplayName < refs[j].DisplayName })
	return refs
}

// IngestLive appends a live broker signal to every cached entry whose
// scope covers it. Entries are only enriched, never created; a scope
// that was never fetched has nothing to append to.
func (u *SignalView) IngestLive(sig models.RawSignal) int {
	added := 0
	now := time.Now()
	for _, key := range u.raws.Keys() {
		if !scopeCovers(key, sig.BotID, sig.OwnerUserID) {
			continue
		}
		n := u.raws.Append(key, []models.RawSignal{sig}, func(s models.RawSignal) string { return s.ID })
		if n == 0 {
			continue
		}
		added += n

		// Broadcast the key that actually changed so listeners
		// re-query the right entry.
		ev := domrepo.CommitEvent{
			Feed:      models.FeedRaw,
			Key:       key,
			Count:     n,
			FetchedAt: now,
		}
		for _, notif := range u.notifiers {
			notif.NotifyCommit(ev)
		}
	}
	return added
}

// Ingest implements the ingest pipeline's downstream contract.
func (u *SignalView) Ingest(_ context.Context, s *models.RawSignal) error {
	u.IngestLive(*s)
	return nil
}

// Close releases the attached history archive, if any.
func (u *SignalView) Close() error {
	if u.archive != nil {
		return u.archive.Close()
	}
	return nil
}

// WarmStart loads mirrored snapshots for the current scope so the
// dashboard has data before the first refresh completes.
func (u *SignalView) WarmStart(ctx context.Context) {
	if u.mirror == nil {
		return
	}
	key := u.Scope().Key()

	if raws, err := u.mirror.LoadRaw(ctx, key); err == nil && len(raws) > 0 {
		u.raws.Write(key, raws)
		u.log.Info("warmed raw snapshot", xlogger.String("key", key), xlogger.Int("count", len(raws)))
	}
	if execs, err := u.mirror.LoadExecutions(ctx, key); err == nil && len(execs) > 0 {
		u.execs.Write(key, execs)
		u.log.Info("warmed execution snapshot", xlogger.String("key", key), xlogger.Int("count", len(execs)))
	}
}

func (u *SignalView) commitRaw(key string, recs []models.RawSignal) {
	u.raws.Write(key, recs)
	if u.metrics != nil {
		u.metrics.RecordCacheSize(models.FeedRaw, u.raws.Len())
	}
	u.afterCommit(models.FeedRaw, key, len(recs), func(ctx context.Context) error {
		if u.mirror != nil {
			if err := u.mirror.StoreRaw(ctx, key, recs); err != nil {
				return err
			}
		}
		if u.archive != nil {
			return u.archive.ArchiveRaw(ctx, key, recs)
		}
		return nil
	})
}

func (u *SignalView) commitExecutions(key string, recs []models.ExecutionSignal) {
	u.execs.Write(key, recs)
	if u.metrics != nil {
		u.metrics.RecordCacheSize(models.FeedExecutions, u.execs.Len())
	}
	u.afterCommit(models.FeedExecutions, key, len(recs), func(ctx context.Context) error {
		if u.mirror != nil {
			if err := u.mirror.StoreExecutions(ctx, key, recs); err != nil {
				return err
			}
		}
		if u.archive != nil {
			return u.archive.ArchiveExecutions(ctx, key, recs)
		}
		return nil
	})
}

// afterCommit runs the mirror/archive side effects off the commit path
// and broadcasts the commit event.
func (u *SignalView) afterCommit(feed, key string, count int, persist func(context.Context) error) {
	ev := domrepo.CommitEvent{
		Feed:      feed,
		Key:       key,
		Count:     count,
		FetchedAt: time.Now(),
	}
	for _, n := range u.notifiers {
		n.NotifyCommit(ev)
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := persist(ctx); err != nil {
			u.log.Warn("commit side effect failed",
				xlogger.String("feed", feed),
				xlogger.String("key", key),
				xlogger.Error(err))
		}
	}()
}

// scopeCovers reports whether cache key (botID|owner) covers a signal
// from botID/owner. The admin scope (empty owner part) covers all.
func scopeCovers(key, botID, owner string) bool {
	want := models.FetchParams{BotID: botID, AdminView: true}.Key()
	if key == want {
		return true
	}
	return key == models.FetchParams{BotID: botID, OwnerScope: owner}.Key()
}
