// Package ticker implements C3: per database, verify the pgq
// extension is present with a supported version, then periodically
// invoke pgq.ticker() (§4.3).
package ticker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pgqd/pgqd/internal/database"
	"github.com/pgqd/pgqd/internal/pgq"
	"github.com/pgqd/pgqd/internal/pgqsock"
	"github.com/pgqd/pgqd/internal/pgqval"
	"github.com/pgqd/pgqd/internal/reactor"
	"github.com/pgqd/pgqd/internal/stats"
)

// Config holds the ticker's timing knobs (§3).
type Config struct {
	CheckPeriod        time.Duration
	TickerPeriod       time.Duration
	ConnectionLifetime time.Duration
}

// OnVersionOK is invoked exactly once per successful version check, so
// the owner can launch the maintenance and retry workers the first
// time this database is confirmed usable (§4.3: "if the maintenance/
// retry connections are not yet present, launch them").
type OnVersionOK func(rec *database.Record)

// Worker drives one database's ticker FSM.
type Worker struct {
	rec     *database.Record
	cfg     Config
	connStr func(name string) string
	logger  *zap.Logger
	stats   *stats.Sink
	clock   *reactor.Clock
	onReady OnVersionOK
}

// New builds a ticker Worker for rec. clock is the process-wide cached
// clock (§4.1); it may be nil, in which case the ticker connection
// falls back to time.Now() for its lifetime check.
func New(rec *database.Record, cfg Config, connStr func(string) string, logger *zap.Logger, sink *stats.Sink, clock *reactor.Clock, onReady OnVersionOK) *Worker {
	return &Worker{rec: rec, cfg: cfg, connStr: connStr, logger: logger, stats: sink, clock: clock, onReady: onReady}
}

// Launch implements launch_ticker(db): idempotent, never opens a
// second connection if one already exists (§8 ticker idempotence).
func (w *Worker) Launch() {
	if w.rec.CTicker != nil {
		return
	}
	sk := pgqsock.New(w.logger, w.rec.Name, w.connStr(w.rec.Name))
	sk.SetLifetime(w.cfg.ConnectionLifetime)
	sk.SetClock(w.clock)
	w.rec.CTicker = sk
	w.rec.TickerState = database.TickerClosed
	sk.Connect()
}

// Run consumes events from the ticker socket until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	sk := w.rec.CTicker
	for {
		select {
		case ev, ok := <-sk.Events():
			if !ok {
				return
			}
			w.handle(ev)
		case <-ctx.Done():
			sk.Free()
			return
		}
	}
}

func (w *Worker) handle(ev pgqsock.Event) {
	switch ev.Kind {
	case pgqsock.EventConnectOK:
		w.rec.CTicker.SendQuerySimple(pgq.ProbeNamespace)
		w.rec.TickerState = database.TickerCheckPgq

	case pgqsock.EventResultOK:
		if ev.Result.Status != pgqsock.StatusTuplesOK {
			w.closeBackoff(10 * time.Second)
			return
		}
		w.onResult(ev.Result)

	case pgqsock.EventTimeout:
		if !w.rec.CTicker.Valid() {
			w.rec.CTicker.Connect()
			return
		}
		if w.rec.CTicker.Expired() {
			w.logger.Info("ticker connection lifetime exceeded, recycling", zap.String("db", w.rec.Name))
			w.closeBackoff(0)
			return
		}
		w.rec.CTicker.SendQuerySimple(pgq.Tick)
		w.rec.TickerState = database.TickerRun

	default: // CONNECT_FAILED, RESULT_BAD
		w.closeBackoff(60 * time.Second)
	}
}

func (w *Worker) onResult(res *pgqsock.Result) {
	switch w.rec.TickerState {
	case database.TickerCheckPgq:
		if len(res.Rows) == 0 {
			w.rec.HasPgq = false
			w.stats.SetHasPgq(w.rec.Name, false)
			w.logger.Info("no pgq extension", zap.String("db", w.rec.Name))
			w.closeBackoff(w.cfg.CheckPeriod)
			return
		}
		w.rec.CTicker.SendQuerySimple(pgq.ProbeVersion)
		w.rec.TickerState = database.TickerCheckVersion

	case database.TickerCheckVersion:
		if !versionOK(res) {
			w.rec.HasPgq = false
			w.stats.SetHasPgq(w.rec.Name, false)
			w.logger.Info("bad pgq version, ignoring", zap.String("db", w.rec.Name))
			w.closeBackoff(w.cfg.CheckPeriod)
			return
		}
		w.rec.HasPgq = true
		w.stats.SetHasPgq(w.rec.Name, true)
		w.rec.CTicker.SendQuerySimple(pgq.Tick)
		w.rec.TickerState = database.TickerRun
		if w.onReady != nil {
			w.onReady(w.rec)
		}

	case database.TickerRun:
		if len(res.Rows) == 1 {
			w.stats.IncTicks(w.rec.Name)
		}
		w.rec.CTicker.Sleep(w.cfg.TickerPeriod)

	default:
		w.logger.Fatal("ticker: impossible state", zap.String("db", w.rec.Name), zap.Int("state", int(w.rec.TickerState)))
	}
}

func versionOK(res *pgqsock.Result) bool {
	if len(res.Rows) != 1 {
		return false
	}
	v, ok := pgqval.FirstString(res.Rows[0])
	if !ok || len(v) == 0 {
		return false
	}
	return v[0] >= pgq.MinMajorVersion
}

func (w *Worker) closeBackoff(d time.Duration) {
	w.rec.TickerState = database.TickerClosed
	w.rec.CTicker.Reconnect(d)
}
