package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_LaunchIsIdempotent(t *testing.T) {
	reg := NewRegistry()

	rec1, created1 := reg.Launch("app1")
	require.True(t, created1)

	rec2, created2 := reg.Launch("app1")
	assert.False(t, created2)
	assert.Same(t, rec1, rec2, "launching twice must return the same record, not open a second one")
	assert.Equal(t, 1, reg.Len())
}

func TestRegistry_LaunchClearsDroppedTag(t *testing.T) {
	reg := NewRegistry()
	reg.Launch("app1")
	reg.TagAllDropped()

	reg.Launch("app1")
	dropped := reg.SweepDropped()

	assert.Empty(t, dropped, "surviving name must not be swept")
	assert.Equal(t, 1, reg.Len())
}

func TestRegistry_SweepDropsOnlyTagged(t *testing.T) {
	reg := NewRegistry()
	reg.Launch("app1")
	reg.Launch("app2")

	reg.TagAllDropped()
	reg.Launch("app1") // survives

	dropped := reg.SweepDropped()
	require.Len(t, dropped, 1)
	assert.Equal(t, "app2", dropped[0].Name)
	assert.Equal(t, 1, reg.Len())

	_, ok := reg.Get("app2")
	assert.False(t, ok)
}

func TestRegistry_ReconciliationIsIdempotent(t *testing.T) {
	reg := NewRegistry()
	reg.Launch("app1")
	reg.Launch("app2")

	reconcile := func(names []string) {
		reg.TagAllDropped()
		for _, n := range names {
			reg.Launch(n)
		}
		for _, rec := range reg.SweepDropped() {
			reg.Drop(rec)
		}
	}

	reconcile([]string{"app1", "app2"})
	reconcile([]string{"app1", "app2"})

	assert.Equal(t, 2, reg.Len())
}

func TestRegistry_DropFreesConnectionlessRecord(t *testing.T) {
	reg := NewRegistry()
	rec, _ := reg.Launch("app1")

	assert.NotPanics(t, func() { reg.Drop(rec) })
	assert.Equal(t, 0, reg.Len())
}

func TestRecord_MaintItemFIFO(t *testing.T) {
	rec := NewRecord("app1")
	rec.PushMaintItem("queue_a")
	rec.PushMaintItem("queue_b")

	item, ok := rec.PopMaintItem()
	require.True(t, ok)
	assert.Equal(t, "queue_a", item)
	assert.True(t, rec.MaintItemsRemaining())

	item, ok = rec.PopMaintItem()
	require.True(t, ok)
	assert.Equal(t, "queue_b", item)
	assert.False(t, rec.MaintItemsRemaining())

	_, ok = rec.PopMaintItem()
	assert.False(t, ok)
}

func TestRecord_MaintOpContinuationDoesNotAdvance(t *testing.T) {
	rec := NewRecord("app1")
	rec.SetMaintOps([]Operation{{FuncName: "pgq.maint_rotate_insert"}})

	op, ok := rec.PeekMaintOp()
	require.True(t, ok)
	assert.Equal(t, "pgq.maint_rotate_insert", op.FuncName)

	// simulate a nonzero continuation result: head is unchanged
	op2, ok := rec.PeekMaintOp()
	require.True(t, ok)
	assert.Equal(t, op, op2)

	rec.AdvanceMaintOp()
	_, ok = rec.PeekMaintOp()
	assert.False(t, ok)
}
