package maint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatementNamesTable(t *testing.T) {
	_, isStatement := statementNames["vacuum"]
	assert.True(t, isStatement)
	_, isStatement = statementNames["vacuum analyze"]
	assert.True(t, isStatement)
	_, isStatement = statementNames["pgq.maint_rotate_insert"]
	assert.False(t, isStatement)
}

func TestParseOperations(t *testing.T) {
	arg := "queue1"
	rows := [][]any{
		{"pgq.maint_rotate_insert", nil},
		{"pgq.maint_vacuum_queue", arg},
	}
	ops, ok := parseOperations(rows)
	require.True(t, ok)
	require.Len(t, ops, 2)
	assert.Equal(t, "pgq.maint_rotate_insert", ops[0].FuncName)
	assert.Nil(t, ops[0].FuncArg)
	require.NotNil(t, ops[1].FuncArg)
	assert.Equal(t, "queue1", *ops[1].FuncArg)
}

func TestParseOperationsRejectsShortRow(t *testing.T) {
	_, ok := parseOperations([][]any{{"only_one_column"}})
	assert.False(t, ok)
}

func TestParseItemNames(t *testing.T) {
	items, ok := parseItemNames([][]any{{"queue_a"}, {"queue_b"}})
	require.True(t, ok)
	assert.Equal(t, []string{"queue_a", "queue_b"}, items)
}

func TestParseItemNamesRejectsEmptyRow(t *testing.T) {
	_, ok := parseItemNames([][]any{{}})
	assert.False(t, ok)
}

func TestFirstRow(t *testing.T) {
	assert.Nil(t, firstRow(nil))
}
