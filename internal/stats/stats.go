// Package stats implements C9: a periodic timer that logs {n_ticks,
// n_maint, n_retry} and zeroes them (§4.8). Sink is the single point
// every worker reports through; it forwards each increment to the
// cumulative Prometheus counters in internal/metrics and to its own
// window counters, which the Emitter snapshots and resets every
// stats_period.
package stats

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/pgqd/pgqd/internal/metrics"
)

// counters are the windowed, reset-on-read values the log line
// reports — distinct from metrics.Registry's cumulative Prometheus
// series, which must never be reset (a Prometheus counter reset
// reads as a process restart to scrapers).
type counters struct {
	nTicks atomic.Int64
	nMaint atomic.Int64
	nRetry atomic.Int64
}

func (c *counters) snapshotAndReset() (ticks, maint, retry int64) {
	return c.nTicks.Swap(0), c.nMaint.Swap(0), c.nRetry.Swap(0)
}

// Sink is the metrics/stats facade every worker reports through.
type Sink struct {
	metrics  *metrics.Registry
	counters counters
}

// NewSink wraps a metrics.Registry with windowed stats counters.
func NewSink(m *metrics.Registry) *Sink {
	return &Sink{metrics: m}
}

// IncTicks records one successful pgq.ticker() invocation for db.
func (s *Sink) IncTicks(db string) {
	s.metrics.IncTicks(db)
	s.counters.nTicks.Add(1)
}

// IncMaint records one completed maintenance cycle for db.
func (s *Sink) IncMaint(db string) {
	s.metrics.IncMaint(db)
	s.counters.nMaint.Add(1)
}

// AddRetry adds n retried events for db; n<=0 is a no-op (the retry
// worker must not add on a zero result, §4.5).
func (s *Sink) AddRetry(db string, n int64) {
	if n <= 0 {
		return
	}
	s.metrics.AddRetry(db, n)
	s.counters.nRetry.Add(n)
}

// SetHasPgq records db's current pgq-extension gating state.
func (s *Sink) SetHasPgq(db string, has bool) {
	s.metrics.SetHasPgq(db, has)
}

// SetDatabaseCount records the registry size.
func (s *Sink) SetDatabaseCount(n int) {
	s.metrics.SetDatabaseCount(n)
}

// Emitter drives the stats_period timer.
type Emitter struct {
	sink   *Sink
	logger *zap.Logger
	period time.Duration
}

// NewEmitter builds an Emitter reporting through sink every period.
func NewEmitter(sink *Sink, logger *zap.Logger, period time.Duration) *Emitter {
	return &Emitter{sink: sink, logger: logger, period: period}
}

// Run blocks, logging and resetting the window counters every period,
// until stop is closed.
func (e *Emitter) Run(stop <-chan struct{}) {
	t := time.NewTicker(e.period)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			ticks, maint, retry := e.sink.counters.snapshotAndReset()
			e.logger.Info("stats",
				zap.Int64("n_ticks", ticks),
				zap.Int64("n_maint", maint),
				zap.Int64("n_retry", retry))
		case <-stop:
			return
		}
	}
}
