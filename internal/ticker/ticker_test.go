package ticker

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pgqd/pgqd/internal/pgqsock"
)

func TestVersionOKAcceptsMajorThreeAndAbove(t *testing.T) {
	assert.True(t, versionOK(&pgqsock.Result{Rows: [][]any{{"3.0"}}}))
	assert.True(t, versionOK(&pgqsock.Result{Rows: [][]any{{"4.1.2"}}}))
}

func TestVersionOKRejectsOldOrMalformed(t *testing.T) {
	assert.False(t, versionOK(&pgqsock.Result{Rows: [][]any{{"2.1.5"}}}))
	assert.False(t, versionOK(&pgqsock.Result{Rows: nil}))
	assert.False(t, versionOK(&pgqsock.Result{Rows: [][]any{{"3.0"}, {"3.1"}}}))
	assert.False(t, versionOK(&pgqsock.Result{Rows: [][]any{{""}}}))
}
