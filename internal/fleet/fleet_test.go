package fleet

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/pgqd/pgqd/internal/maint"
	"github.com/pgqd/pgqd/internal/metrics"
	"github.com/pgqd/pgqd/internal/retry"
	"github.com/pgqd/pgqd/internal/stats"
	"github.com/pgqd/pgqd/internal/ticker"
)

func newTestFleet(t *testing.T) *Fleet {
	t.Helper()
	sink := stats.NewSink(metrics.NewRegistry(prometheus.NewRegistry()))
	cfg := Config{
		Ticker: ticker.Config{CheckPeriod: time.Minute, TickerPeriod: time.Minute, ConnectionLifetime: time.Hour},
		Maint:  maint.Config{MaintPeriod: time.Minute},
		Retry:  retry.Config{RetryPeriod: time.Minute},
	}
	connStr := func(name string) string {
		return "host=127.0.0.1 port=1 dbname=" + name + " connect_timeout=1"
	}
	return New(cfg, connStr, zaptest.NewLogger(t), sink, nil)
}

func TestFleetReconcileLaunchesAndSweeps(t *testing.T) {
	f := newTestFleet(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.Reconcile(ctx, []string{"app1", "app2"})
	assert.Equal(t, 2, f.Registry().Len())
	assert.ElementsMatch(t, []string{"app1", "app2"}, f.Registry().Names())

	f.Reconcile(ctx, []string{"app1"})
	assert.Equal(t, 1, f.Registry().Len())
	_, ok := f.Registry().Get("app2")
	assert.False(t, ok)
}

func TestFleetReconcileIsIdempotentPerName(t *testing.T) {
	f := newTestFleet(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.Reconcile(ctx, []string{"app1"})
	rec1, ok := f.Registry().Get("app1")
	require.True(t, ok)

	f.Reconcile(ctx, []string{"app1"})
	rec2, ok := f.Registry().Get("app1")
	require.True(t, ok)
	assert.Same(t, rec1, rec2, "reconciling the same name twice must not recreate the record")
}

func TestFleetShutdownEmptiesRegistry(t *testing.T) {
	f := newTestFleet(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.Reconcile(ctx, []string{"app1", "app2"})
	f.Shutdown()
	assert.Equal(t, 0, f.Registry().Len())
}
