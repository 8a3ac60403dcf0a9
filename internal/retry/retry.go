// Package retry implements C5: per database, periodically drain the
// deferred-event retry function (§4.5).
package retry

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pgqd/pgqd/internal/database"
	"github.com/pgqd/pgqd/internal/pgq"
	"github.com/pgqd/pgqd/internal/pgqsock"
	"github.com/pgqd/pgqd/internal/pgqval"
	"github.com/pgqd/pgqd/internal/stats"
)

// Config holds the retry worker's timing knob (§3).
type Config struct {
	RetryPeriod time.Duration
}

// Worker drives one database's retry FSM. Only two states exist:
// connected/running and sleeping, tracked implicitly by whether
// rec.CRetry.Valid() is true.
type Worker struct {
	rec    *database.Record
	cfg    Config
	logger *zap.Logger
	stats  *stats.Sink
}

// New builds a retry Worker for rec.
func New(rec *database.Record, cfg Config, logger *zap.Logger, sink *stats.Sink) *Worker {
	return &Worker{rec: rec, cfg: cfg, logger: logger, stats: sink}
}

// Launch creates the retry connection if absent and connects.
func (w *Worker) Launch(connStr string) {
	if w.rec.CRetry != nil {
		return
	}
	sk := pgqsock.New(w.logger, w.rec.Name, connStr)
	w.rec.CRetry = sk
	sk.Connect()
}

// Run consumes events from the retry socket until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	sk := w.rec.CRetry
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
		w.runRetry()

	case pgqsock.EventResultOK:
		if ev.Result.Status != pgqsock.StatusTuplesOK {
			w.close(20 * time.Second)
			return
		}
		if n, ok := pgqval.FirstInt64(ev.Result.Last()); ok && len(ev.Result.Rows) == 1 && n != 0 {
			w.stats.AddRetry(w.rec.Name, n)
			w.runRetry()
			return
		}
		w.close(w.cfg.RetryPeriod)

	case pgqsock.EventTimeout:
		if !w.rec.CRetry.Valid() {
			w.rec.CRetry.Connect()
			return
		}
		w.runRetry()

	default: // CONNECT_FAILED, RESULT_BAD
		w.rec.CRetry.Reconnect(30 * time.Second)
	}
}

func (w *Worker) runRetry() {
	w.rec.CRetry.SendQuerySimple(pgq.RetryEvents)
}

func (w *Worker) close(sleep time.Duration) {
	w.rec.CRetry.Reconnect(sleep)
}
