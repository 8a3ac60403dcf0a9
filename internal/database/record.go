// Package database implements PgDatabase (Record) and the registry of
// live database records (§3, §4.6). Each Record is mutated only from
// the goroutines of the three FSMs it owns (ticker, maint, retry) and
// from the discovery/reconciliation goroutine during Launch/Drop, so
// the plain fields below need no locking beyond what Registry itself
// provides for map access.
package database

import (
	"github.com/pgqd/pgqd/internal/pgqsock"
)

// TickerState is the ticker worker's state (C3, §4.3).
type TickerState int

const (
	TickerClosed TickerState = iota
	TickerCheckPgq
	TickerCheckVersion
	TickerRun
)

// MaintState is the maintenance worker's state (C4, §4.4).
type MaintState int

const (
	MaintClosed MaintState = iota
	MaintTestVersion
	MaintLoadOps
	MaintOp
	MaintLoadQueues
	MaintRot1
	MaintRot2
	MaintVacuumList
	MaintDoVacuum
)

// Operation is a (func_name, func_arg?) pair from pgq.maint_operations().
type Operation struct {
	FuncName string
	FuncArg  *string
}

// Record is one managed database (PgDatabase, §3).
type Record struct {
	Name string

	CTicker *pgqsock.Socket
	CMaint  *pgqsock.Socket
	CRetry  *pgqsock.Socket

	HasPgq             bool
	HasMaintOperations bool

	TickerState TickerState
	MaintState  MaintState

	// Dropped tags this record for removal during the next sweep; set
	// by TagAllDropped, cleared by Launch for survivors.
	Dropped bool

	maintItems []string
	maintOps   []Operation
}

// NewRecord allocates an empty record; it opens no connections.
func NewRecord(name string) *Record {
	return &Record{Name: name}
}

// PushMaintItem appends to the pending maintenance item FIFO.
func (r *Record) PushMaintItem(name string) {
	r.maintItems = append(r.maintItems, name)
}

// PopMaintItem removes and returns the head item, if any.
func (r *Record) PopMaintItem() (string, bool) {
	if len(r.maintItems) == 0 {
		return "", false
	}
	item := r.maintItems[0]
	r.maintItems = r.maintItems[1:]
	return item, true
}

// ClearMaintItems frees the pending item list — used before each item
// list is loaded and on the "allocation failure" error path of §7 item 3.
func (r *Record) ClearMaintItems() {
	r.maintItems = nil
}

// MaintItemsRemaining reports whether the item FIFO is non-empty.
func (r *Record) MaintItemsRemaining() bool {
	return len(r.maintItems) > 0
}

// SetMaintOps replaces the pending operations FIFO.
func (r *Record) SetMaintOps(ops []Operation) {
	r.maintOps = ops
}

// PeekMaintOp returns the head operation without removing it — the
// maintenance continuation law (§8) needs to re-send the same
// operation without advancing the list.
func (r *Record) PeekMaintOp() (Operation, bool) {
	if len(r.maintOps) == 0 {
		return Operation{}, false
	}
	return r.maintOps[0], true
}

// AdvanceMaintOp removes the head operation.
func (r *Record) AdvanceMaintOp() {
	if len(r.maintOps) > 0 {
		r.maintOps = r.maintOps[1:]
	}
}

// ClearMaintOps frees the pending operations list.
func (r *Record) ClearMaintOps() {
	r.maintOps = nil
}

// Free releases all three connections and pending lists. Safe to call
// on a record whose connections were never opened.
func (r *Record) Free() {
	r.CTicker.Free()
	r.CMaint.Free()
	r.CRetry.Free()
	r.ClearMaintItems()
	r.ClearMaintOps()
}
