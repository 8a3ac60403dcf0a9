// Package maint implements C4: per database, either drive the
// catalog-exposed pgq.maint_operations() list (new path) or the
// legacy rotate/vacuum cycle (§4.4).
package maint

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pgqd/pgqd/internal/database"
	"github.com/pgqd/pgqd/internal/pgq"
	"github.com/pgqd/pgqd/internal/pgqsock"
	"github.com/pgqd/pgqd/internal/pgqval"
	"github.com/pgqd/pgqd/internal/sqlquote"
	"github.com/pgqd/pgqd/internal/stats"
)

// Config holds the maintenance worker's timing knobs (§3).
type Config struct {
	MaintPeriod time.Duration
}

// statementNames are the magic func_names emitted as a bare SQL
// statement instead of a function call (§4.4, §9): extend by
// appending new names.
var statementNames = map[string]struct{}{
	"vacuum":         {},
	"vacuum analyze": {},
}

// Worker drives one database's maintenance FSM.
type Worker struct {
	rec    *database.Record
	cfg    Config
	logger *zap.Logger
	stats  *stats.Sink
}

// New builds a maintenance Worker for rec.
func New(rec *database.Record, cfg Config, logger *zap.Logger, sink *stats.Sink) *Worker {
	return &Worker{rec: rec, cfg: cfg, logger: logger, stats: sink}
}

// Launch creates the maintenance connection if absent and connects
// (§4.4 startup). A record whose connection already exists is left
// alone.
func (w *Worker) Launch(connStr string) {
	if w.rec.CMaint != nil {
		return
	}
	sk := pgqsock.New(w.logger, w.rec.Name, connStr)
	w.rec.CMaint = sk
	w.rec.MaintState = database.MaintClosed
	sk.Connect()
}

// Run consumes events from the maintenance socket until ctx is
// cancelled.
func (w *Worker) Run(ctx context.Context) {
	sk := w.rec.CMaint
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
		w.startCycle()

	case pgqsock.EventResultOK:
		if ev.Result.Status != pgqsock.StatusTuplesOK {
			w.close(20 * time.Second)
			return
		}
		w.onResult(ev.Result)

	case pgqsock.EventTimeout:
		if !w.rec.CMaint.Valid() {
			w.rec.CMaint.Connect()
			return
		}
		w.startCycle()

	default: // CONNECT_FAILED, RESULT_BAD
		w.rec.CMaint.Reconnect(60 * time.Second)
	}
}

// startCycle begins (or restarts) the maintenance cycle: LOAD_OPS if
// the operations API is already known to exist, else a fresh probe
// (TEST_VERSION), else the legacy path.
func (w *Worker) startCycle() {
	if w.rec.HasMaintOperations {
		w.loadOps()
		return
	}
	w.rec.CMaint.SendQuerySimple(pgq.ProbeMaintOperations)
	w.rec.MaintState = database.MaintTestVersion
}

func (w *Worker) loadOps() {
	w.rec.CMaint.SendQuerySimple(pgq.LoadMaintOperations)
	w.rec.MaintState = database.MaintLoadOps
}

func (w *Worker) loadQueues() {
	w.rec.ClearMaintItems()
	w.rec.CMaint.SendQuerySimple(pgq.LoadQueueList)
	w.rec.MaintState = database.MaintLoadQueues
}

func (w *Worker) onResult(res *pgqsock.Result) {
	switch w.rec.MaintState {
	case database.MaintTestVersion:
		if n, ok := pgqval.FirstInt64(firstRow(res)); ok && len(res.Rows) == 1 && n == 1 {
			w.rec.HasMaintOperations = true
			w.loadOps()
		} else {
			w.loadQueues()
		}

	case database.MaintLoadOps:
		ops, ok := parseOperations(res.Rows)
		if !ok {
			w.logger.Error("maint: failed to load operation list, dropping partial list", zap.String("db", w.rec.Name))
			w.rec.ClearMaintOps()
			w.close(20 * time.Second)
			return
		}
		w.rec.SetMaintOps(ops)
		w.runNextOp()

	case database.MaintOp:
		w.onOpResult(res)

	case database.MaintLoadQueues:
		w.loadItems(res, w.runRotate1)

	case database.MaintRot1:
		if w.rec.MaintItemsRemaining() {
			w.runRotate1()
		} else {
			w.runRotate2()
		}

	case database.MaintRot2:
		w.loadVacuumList()

	case database.MaintVacuumList:
		w.loadItems(res, w.runVacuum)

	case database.MaintDoVacuum:
		if w.rec.MaintItemsRemaining() {
			w.runVacuum()
		} else {
			w.doneCycle()
		}

	default:
		w.logger.Fatal("maint: impossible state", zap.String("db", w.rec.Name), zap.Int("state", int(w.rec.MaintState)))
	}
}

func (w *Worker) loadItems(res *pgqsock.Result, next func()) {
	items, ok := parseItemNames(res.Rows)
	if !ok {
		w.logger.Error("maint: failed to load item list, dropping partial list", zap.String("db", w.rec.Name))
		w.rec.ClearMaintItems()
		w.close(20 * time.Second)
		return
	}
	for _, item := range items {
		w.rec.PushMaintItem(item)
	}
	next()
}

func (w *Worker) onOpResult(res *pgqsock.Result) {
	cont := false
	if len(res.Rows) == 1 {
		if n, ok := pgqval.FirstInt64(res.Rows[0]); ok && n != 0 {
			cont = true
		}
	}
	if cont {
		op, ok := w.rec.PeekMaintOp()
		if ok {
			w.sendOp(op)
			return
		}
	}
	w.rec.AdvanceMaintOp()
	w.runNextOp()
}

func (w *Worker) runNextOp() {
	op, ok := w.rec.PeekMaintOp()
	if !ok {
		w.doneCycle()
		return
	}
	w.sendOp(op)
	w.rec.MaintState = database.MaintOp
}

func (w *Worker) sendOp(op database.Operation) {
	_, isStatement := statementNames[strings.ToLower(op.FuncName)]
	if isStatement {
		arg := ""
		if op.FuncArg != nil {
			arg = *op.FuncArg
		}
		ident, ok := sqlquote.FQIdent(arg)
		if !ok {
			w.skipOp("failed to quote statement argument")
			return
		}
		w.rec.CMaint.SendQuerySimple(op.FuncName + " " + ident)
		w.rec.MaintState = database.MaintOp
		return
	}

	ident, ok := sqlquote.FQIdent(op.FuncName)
	if !ok {
		w.skipOp("failed to quote function name")
		return
	}
	if op.FuncArg != nil {
		w.rec.CMaint.SendQueryParams("select "+ident+"($1)", *op.FuncArg)
	} else {
		w.rec.CMaint.SendQuerySimple("select " + ident + "()")
	}
	w.rec.MaintState = database.MaintOp
}

// skipOp advances past an operation that could not be quoted (§9: the
// caller must skip it rather than send a corrupt statement) and
// resumes with the next one.
func (w *Worker) skipOp(reason string) {
	w.logger.Error("maint: skipping operation", zap.String("db", w.rec.Name), zap.String("reason", reason))
	w.rec.AdvanceMaintOp()
	w.runNextOp()
}

func (w *Worker) runRotate1() {
	name, ok := w.rec.PopMaintItem()
	if !ok {
		w.runRotate2()
		return
	}
	w.rec.CMaint.SendQueryParams(pgq.RotateStep1, name)
	w.rec.MaintState = database.MaintRot1
}

func (w *Worker) runRotate2() {
	w.rec.CMaint.SendQuerySimple(pgq.RotateStep2)
	w.rec.MaintState = database.MaintRot2
}

func (w *Worker) loadVacuumList() {
	w.rec.ClearMaintItems()
	w.rec.CMaint.SendQuerySimple(pgq.LoadVacuumList)
	w.rec.MaintState = database.MaintVacuumList
}

func (w *Worker) runVacuum() {
	name, ok := w.rec.PopMaintItem()
	if !ok {
		w.doneCycle()
		return
	}
	ident, qok := sqlquote.FQIdent(name)
	if !qok {
		w.logger.Error("maint: skipping vacuum target, failed to quote", zap.String("db", w.rec.Name), zap.String("table", name))
		w.runVacuum()
		return
	}
	w.rec.CMaint.SendQuerySimple("vacuum " + ident)
	w.rec.MaintState = database.MaintDoVacuum
}

func (w *Worker) doneCycle() {
	w.stats.IncMaint(w.rec.Name)
	w.close(w.cfg.MaintPeriod)
}

// close implements close_maint(sleep) (§4.4).
func (w *Worker) close(sleep time.Duration) {
	w.rec.MaintState = database.MaintClosed
	w.rec.CMaint.Reconnect(sleep)
}

func firstRow(res *pgqsock.Result) []any {
	if res == nil || len(res.Rows) == 0 {
		return nil
	}
	return res.Rows[0]
}

func parseOperations(rows [][]any) ([]database.Operation, bool) {
	ops := make([]database.Operation, 0, len(rows))
	for _, row := range rows {
		if len(row) < 2 {
			return nil, false
		}
		name, ok := pgqval.AsString(row[0])
		if !ok {
			return nil, false
		}
		var arg *string
		if s, ok := pgqval.AsString(row[1]); ok {
			arg = &s
		}
		ops = append(ops, database.Operation{FuncName: name, FuncArg: arg})
	}
	return ops, true
}

func parseItemNames(rows [][]any) ([]string, bool) {
	items := make([]string, 0, len(rows))
	for _, row := range rows {
		name, ok := pgqval.FirstString(row)
		if !ok {
			return nil, false
		}
		items = append(items, name)
	}
	return items, true
}
