// Package fleet composes C6 (registry) with the three worker kinds
// (C3/C4/C5) into the per-database control plane: launching a new
// database's ticker, letting the ticker launch maintenance/retry once
// it confirms pgq is usable, and tearing a database's workers down
// cleanly when reconciliation (C7) drops it.
package fleet

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/pgqd/pgqd/internal/database"
	"github.com/pgqd/pgqd/internal/maint"
	"github.com/pgqd/pgqd/internal/reactor"
	"github.com/pgqd/pgqd/internal/retry"
	"github.com/pgqd/pgqd/internal/stats"
	"github.com/pgqd/pgqd/internal/ticker"
)

// Config bundles the three workers' timing configuration.
type Config struct {
	Ticker ticker.Config
	Maint  maint.Config
	Retry  retry.Config
}

// Fleet owns the registry and the goroutines backing every managed
// database.
type Fleet struct {
	cfg      Config
	registry *database.Registry
	connStr  func(name string) string
	logger   *zap.Logger
	stats    *stats.Sink
	clock    *reactor.Clock

	mu       sync.Mutex
	dbCancel map[string]context.CancelFunc
}

// New builds a Fleet. connStr composes a per-database connect string
// from base_connstr (§6). clock is the process-wide cached clock
// (§4.1), handed to each ticker connection so its connection_lifetime
// recycle check (§4.3) reads a shared time snapshot; it may be nil.
func New(cfg Config, connStr func(string) string, logger *zap.Logger, sink *stats.Sink, clock *reactor.Clock) *Fleet {
	return &Fleet{
		cfg:      cfg,
		registry: database.NewRegistry(),
		connStr:  connStr,
		logger:   logger,
		stats:    sink,
		clock:    clock,
		dbCancel: make(map[string]context.CancelFunc),
	}
}

// Registry exposes the underlying registry, e.g. for introspection.
func (f *Fleet) Registry() *database.Registry { return f.registry }

// Reconcile implements the tag-then-sweep pass of §4.6/§4.7: launch
// (or confirm survival of) every name, then drop whatever is still
// tagged.
func (f *Fleet) Reconcile(ctx context.Context, names []string) {
	f.registry.TagAllDropped()
	for _, name := range names {
		f.launch(ctx, name)
	}
	for _, rec := range f.registry.SweepDropped() {
		f.stopAndFree(rec)
	}
	f.stats.SetDatabaseCount(f.registry.Len())
}

// launch implements launch_db(name): idempotent, only starts the
// ticker worker the first time a record is created.
func (f *Fleet) launch(ctx context.Context, name string) {
	rec, created := f.registry.Launch(name)
	if !created {
		return
	}

	dbCtx, cancel := context.WithCancel(ctx)
	f.mu.Lock()
	f.dbCancel[name] = cancel
	f.mu.Unlock()

	f.startTicker(dbCtx, rec)
}

func (f *Fleet) startTicker(ctx context.Context, rec *database.Record) {
	w := ticker.New(rec, f.cfg.Ticker, f.connStr, f.logger, f.stats, f.clock, f.onTickerReady(ctx))
	w.Launch()
	reactor.Supervise(f.logger, "ticker:"+rec.Name, func() { w.Run(ctx) })
}

// onTickerReady launches maintenance and retry exactly once, the
// first time the ticker confirms a usable pgq version (§4.3, §8
// version-gating law).
func (f *Fleet) onTickerReady(ctx context.Context) ticker.OnVersionOK {
	return func(rec *database.Record) {
		if rec.CMaint == nil {
			mw := maint.New(rec, f.cfg.Maint, f.logger, f.stats)
			mw.Launch(f.connStr(rec.Name))
			reactor.Supervise(f.logger, "maint:"+rec.Name, func() { mw.Run(ctx) })
		}
		if rec.CRetry == nil {
			rw := retry.New(rec, f.cfg.Retry, f.logger, f.stats)
			rw.Launch(f.connStr(rec.Name))
			reactor.Supervise(f.logger, "retry:"+rec.Name, func() { rw.Run(ctx) })
		}
	}
}

// stopAndFree cancels rec's worker goroutines and releases its
// connections and lists. rec must already be unlinked from the
// registry (SweepDropped does this during reconciliation).
func (f *Fleet) stopAndFree(rec *database.Record) {
	f.mu.Lock()
	cancel := f.dbCancel[rec.Name]
	delete(f.dbCancel, rec.Name)
	f.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	rec.Free()
}

// Shutdown stops every managed database's workers and drops it from
// the registry — used on process exit.
func (f *Fleet) Shutdown() {
	for _, rec := range f.registry.All() {
		f.stopAndFree(rec)
		f.registry.Drop(rec)
	}
}
