package pgqsock

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/pgqd/pgqd/internal/reactor"
)

func TestSocket_SleepEmitsTimeout(t *testing.T) {
	s := New(zaptest.NewLogger(t), "testdb", "")

	start := time.Now()
	s.Sleep(20 * time.Millisecond)

	select {
	case ev := <-s.Events():
		assert.Equal(t, EventTimeout, ev.Kind)
		assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for TIMEOUT event")
	}
}

func TestSocket_ReconnectCancelsPriorSleep(t *testing.T) {
	s := New(zaptest.NewLogger(t), "testdb", "")

	s.Sleep(5 * time.Second)
	s.Reconnect(15 * time.Millisecond)

	select {
	case ev := <-s.Events():
		assert.Equal(t, EventTimeout, ev.Kind)
	case <-time.After(time.Second):
		t.Fatal("expected the reconnect's own sleep to fire, not the cancelled one")
	}

	// only one event should ever arrive for the cancelled-then-rearmed wait
	select {
	case ev := <-s.Events():
		t.Fatalf("unexpected extra event: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSocket_ConnectFailureEmitsConnectFailed(t *testing.T) {
	s := New(zaptest.NewLogger(t), "testdb", "host=127.0.0.1 port=1 dbname=nope connect_timeout=1")
	s.Connect()

	select {
	case ev := <-s.Events():
		assert.Equal(t, EventConnectFailed, ev.Kind)
		require.Error(t, ev.Err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for CONNECT_FAILED")
	}
	assert.False(t, s.Valid())
}

func TestSocket_SendQueryWithoutConnectionIsResultBad(t *testing.T) {
	s := New(zaptest.NewLogger(t), "testdb", "")
	s.SendQuerySimple("select 1")

	select {
	case ev := <-s.Events():
		assert.Equal(t, EventResultBad, ev.Kind)
		require.Error(t, ev.Err)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for RESULT_BAD")
	}
}

func TestSocket_FreeToleratesNilAndDoubleCall(t *testing.T) {
	var nilSocket *Socket
	assert.NotPanics(t, func() { nilSocket.Free() })

	s := New(zaptest.NewLogger(t), "testdb", "")
	assert.NotPanics(t, func() {
		s.Free()
		s.Free()
	})
}

func TestSocket_ExpiredWithoutLifetimeIsFalse(t *testing.T) {
	s := New(zaptest.NewLogger(t), "testdb", "")
	assert.False(t, s.Expired())

	s.SetLifetime(time.Hour)
	assert.False(t, s.Expired(), "no live connection yet, so not expired")
}

func TestSocket_ExpiredReadsInjectedClockNotWallTime(t *testing.T) {
	s := New(zaptest.NewLogger(t), "testdb", "")
	clock := reactor.NewClock()
	s.SetClock(clock)

	s.mu.Lock()
	s.conn = &pgx.Conn{}
	s.connectedAt = clock.Now()
	s.mu.Unlock()
	s.SetLifetime(time.Minute)

	assert.False(t, s.Expired(), "just connected against the current clock snapshot")

	// Advancing wall time alone must not move Expired, since the socket
	// consults the injected clock rather than time.Now() directly.
	time.Sleep(10 * time.Millisecond)
	assert.False(t, s.Expired())

	clock.Refresh()
	s.mu.Lock()
	s.connectedAt = clock.Now().Add(-2 * time.Minute)
	s.mu.Unlock()
	assert.True(t, s.Expired(), "connectedAt predates the clock snapshot by more than the lifetime")
}

func TestResult_Last(t *testing.T) {
	var nilResult *Result
	assert.Nil(t, nilResult.Last())

	r := &Result{Rows: [][]any{{1}, {2}, {3}}}
	assert.Equal(t, []any{3}, r.Last())
}
