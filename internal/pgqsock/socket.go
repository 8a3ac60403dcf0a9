// Package pgqsock implements PgSocket: one logical, asynchronous
// database connection. Each worker (ticker, maintenance, retry) owns
// exactly one Socket and drives it through Connect / SendQuery* /
// Sleep / Disconnect / Reconnect, consuming the Events() channel in a
// single goroutine — the same single-consumer discipline the C
// predecessor's single-threaded event loop gave for free.
//
// A wait (connect, query, or sleep) runs its blocking pgx call on a
// dedicated goroutine; the transition methods below always cancel the
// previous wait's context before starting a new one, so at most one
// wait is ever in flight per Socket, matching the invariant in §4.2.
package pgqsock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/pgqd/pgqd/internal/reactor"
)

// EventKind is one of the four event kinds a Socket reports to its
// owner, plus TIMEOUT from Sleep.
type EventKind int

const (
	EventConnectOK EventKind = iota
	EventConnectFailed
	EventResultOK
	EventResultBad
	EventTimeout
)

func (k EventKind) String() string {
	switch k {
	case EventConnectOK:
		return "connect_ok"
	case EventConnectFailed:
		return "connect_failed"
	case EventResultOK:
		return "result_ok"
	case EventResultBad:
		return "result_bad"
	case EventTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Result is the outcome of a query: the full set of rows and a status
// that mirrors libpq's "tuples OK" classification. Every Result this
// package delivers has Status == StatusTuplesOK; a malformed or
// driver-level failure is reported as EventResultBad with no Result.
// Callers that need "at most one row" etc. check Rows directly.
type Result struct {
	Status string
	Rows   [][]any
}

const StatusTuplesOK = "tuples_ok"

// Last returns the final row of the result, or nil if there were none
// — this is the "last non-null result object" RESULT_OK carries per
// §4.2.
func (r *Result) Last() []any {
	if r == nil || len(r.Rows) == 0 {
		return nil
	}
	return r.Rows[len(r.Rows)-1]
}

// Event is delivered on Socket.Events().
type Event struct {
	Kind   EventKind
	Result *Result
	Err    error
}

type waitKind int

const (
	waitNone waitKind = iota
	waitSocket
	waitTimer
)

// Socket is one PgSocket.
type Socket struct {
	mu          sync.Mutex
	name        string
	connStr     string
	conn        *pgx.Conn
	wait        waitKind
	cancel      context.CancelFunc
	lifetime    time.Duration
	connectedAt time.Time
	clock       *reactor.Clock

	events chan Event
	done   chan struct{}
	closed sync.Once

	logger *zap.Logger
}

// New allocates a Socket. It does not open anything (§4.2 create()).
func New(logger *zap.Logger, name, connStr string) *Socket {
	return &Socket{
		name:    name,
		connStr: connStr,
		events:  make(chan Event, 1),
		done:    make(chan struct{}),
		logger:  logger,
	}
}

// Events returns the channel the owner must read events from. The
// owner is expected to be the only reader.
func (s *Socket) Events() <-chan Event {
	return s.events
}

// SetClock makes the socket stamp connectedAt and evaluate Expired
// against the given process-wide cached clock instead of time.Now()
// directly — the §4.1 "process-wide cached current time" snapshot
// every wait would otherwise re-derive independently. A nil clock (the
// default) falls back to time.Now().
func (s *Socket) SetClock(c *reactor.Clock) {
	s.mu.Lock()
	s.clock = c
	s.mu.Unlock()
}

// now returns the current time from the shared clock if one is set.
// Callers must not hold s.mu when calling this.
func (s *Socket) now() time.Time {
	s.mu.Lock()
	c := s.clock
	s.mu.Unlock()
	if c != nil {
		return c.Now()
	}
	return time.Now()
}

// ConnString returns the connect string the socket was created with.
func (s *Socket) ConnString() string {
	return s.connStr
}

func (s *Socket) cancelWait() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.wait = waitNone
	s.mu.Unlock()
}

func (s *Socket) armWait(kind waitKind) context.Context {
	s.cancelWait()
	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.wait = kind
	s.cancel = cancel
	s.mu.Unlock()
	return ctx
}

func (s *Socket) emit(ctx context.Context, ev Event) {
	select {
	case s.events <- ev:
	case <-ctx.Done():
	case <-s.done:
	}
}

// Connect begins a nonblocking-equivalent connect: the dial runs on
// its own goroutine and reports CONNECT_OK or CONNECT_FAILED.
func (s *Socket) Connect() {
	ctx := s.armWait(waitSocket)
	go func() {
		conn, err := pgx.Connect(ctx, s.connStr)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.emit(ctx, Event{Kind: EventConnectFailed, Err: err})
			return
		}
		connectedAt := s.now()
		s.mu.Lock()
		s.conn = conn
		s.connectedAt = connectedAt
		s.mu.Unlock()
		s.emit(ctx, Event{Kind: EventConnectOK})
	}()
}

// SendQuerySimple dispatches sql with no parameters.
func (s *Socket) SendQuerySimple(sql string) {
	s.sendQuery(sql, nil)
}

// SendQueryParams dispatches sql with positional parameters.
func (s *Socket) SendQueryParams(sql string, args ...any) {
	s.sendQuery(sql, args)
}

func (s *Socket) sendQuery(sql string, args []any) {
	ctx := s.armWait(waitSocket)

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		s.emit(ctx, Event{Kind: EventResultBad, Err: errors.New("pgqsock: send on disconnected socket")})
		return
	}

	go func() {
		rows, err := conn.Query(ctx, sql, args...)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.emit(ctx, Event{Kind: EventResultBad, Err: err})
			return
		}
		defer rows.Close()

		var collected [][]any
		for rows.Next() {
			vals, verr := rows.Values()
			if verr != nil {
				s.emit(ctx, Event{Kind: EventResultBad, Err: verr})
				return
			}
			collected = append(collected, vals)
		}
		if err := rows.Err(); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.emit(ctx, Event{Kind: EventResultBad, Err: err})
			return
		}
		s.emit(ctx, Event{Kind: EventResultOK, Result: &Result{Status: StatusTuplesOK, Rows: collected}})
	}()
}

// Sleep arms a one-shot timer; on expiry it emits TIMEOUT.
func (s *Socket) Sleep(d time.Duration) {
	ctx := s.armWait(waitTimer)
	go func() {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
			s.emit(ctx, Event{Kind: EventTimeout})
		case <-ctx.Done():
		}
	}()
}

// Disconnect closes the underlying connection and cancels any wait.
func (s *Socket) Disconnect() {
	s.cancelWait()
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn != nil {
		_ = conn.Close(context.Background())
	}
}

// Reconnect disconnects then sleeps; the resulting TIMEOUT is the
// owner's cue to Connect again.
func (s *Socket) Reconnect(sleep time.Duration) {
	s.Disconnect()
	s.Sleep(sleep)
}

// Free disconnects and releases the socket. Safe to call more than
// once and safe on a nil Socket.
func (s *Socket) Free() {
	if s == nil {
		return
	}
	s.Disconnect()
	s.closed.Do(func() { close(s.done) })
}

// Valid reports whether the underlying connection handle is live.
func (s *Socket) Valid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// SetLifetime sets the maximum connection age before Expired reports
// true. Zero disables the check.
func (s *Socket) SetLifetime(d time.Duration) {
	s.mu.Lock()
	s.lifetime = d
	s.mu.Unlock()
}

// Expired reports whether the connection has outlived its lifetime.
func (s *Socket) Expired() bool {
	s.mu.Lock()
	lifetime := s.lifetime
	connectedAt := s.connectedAt
	hasConn := s.conn != nil
	s.mu.Unlock()
	if lifetime <= 0 || !hasConn {
		return false
	}
	return s.now().Sub(connectedAt) > lifetime
}
