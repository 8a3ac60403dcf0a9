// Package discovery implements C7: either poll the server for the
// list of user databases, or reconcile against a configured static
// list (§4.6).
package discovery

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pgqd/pgqd/internal/pgq"
	"github.com/pgqd/pgqd/internal/pgqsock"
	"github.com/pgqd/pgqd/internal/pgqval"
)

// Config holds discovery's inputs (§3).
type Config struct {
	CheckPeriod     time.Duration
	InitialDatabase string
	// DatabaseList, when non-empty, disables auto-discovery: the given
	// names are reconciled once and Run returns immediately.
	DatabaseList []string
}

// Reconciler is invoked with the full target list of database names
// every time discovery has a fresh answer.
type Reconciler func(names []string)

// Discovery drives the template connection (or the static list) and
// calls Reconciler with the result.
type Discovery struct {
	cfg       Config
	connStr   func(name string) string
	logger    *zap.Logger
	reconcile Reconciler
}

// New builds a Discovery. connStr composes a connect string for a
// given database name (§6).
func New(cfg Config, connStr func(string) string, logger *zap.Logger, reconcile Reconciler) *Discovery {
	return &Discovery{cfg: cfg, connStr: connStr, logger: logger, reconcile: reconcile}
}

// Run reconciles once against the static list if configured, or opens
// a template connection and polls the server every CheckPeriod until
// ctx is cancelled.
func (d *Discovery) Run(ctx context.Context) {
	if len(d.cfg.DatabaseList) > 0 {
		d.reconcile(d.cfg.DatabaseList)
		return
	}

	initial := d.cfg.InitialDatabase
	if initial == "" {
		initial = "template1"
	}
	sock := pgqsock.New(d.logger, "discovery", d.connStr(initial))
	sock.Connect()

	for {
		select {
		case ev, ok := <-sock.Events():
			if !ok {
				return
			}
			d.handle(sock, ev)
		case <-ctx.Done():
			sock.Free()
			return
		}
	}
}

func (d *Discovery) handle(sock *pgqsock.Socket, ev pgqsock.Event) {
	switch ev.Kind {
	case pgqsock.EventConnectOK:
		sock.SendQuerySimple(pgq.DiscoverDatabases)

	case pgqsock.EventResultOK:
		if ev.Result.Status != pgqsock.StatusTuplesOK {
			sock.Reconnect(10 * time.Second)
			return
		}
		names, ok := parseNames(ev.Result.Rows)
		if !ok {
			d.logger.Error("discovery: failed to parse database list")
			sock.Reconnect(20 * time.Second)
			return
		}
		d.reconcile(names)
		sock.Reconnect(d.cfg.CheckPeriod)

	case pgqsock.EventTimeout:
		if !sock.Valid() {
			sock.Connect()
			return
		}
		sock.SendQuerySimple(pgq.DiscoverDatabases)

	default: // CONNECT_FAILED, RESULT_BAD
		sock.Reconnect(60 * time.Second)
	}
}

func parseNames(rows [][]any) ([]string, bool) {
	names := make([]string, 0, len(rows))
	for _, row := range rows {
		name, ok := pgqval.FirstString(row)
		if !ok {
			return nil, false
		}
		names = append(names, name)
	}
	return names, true
}
