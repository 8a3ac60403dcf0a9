package main

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerbosity(t *testing.T) {
	assert.Equal(t, -1, verbosity(0, true))
	assert.Equal(t, 0, verbosity(0, false))
	assert.Equal(t, 2, verbosity(2, false))
}

func TestCountFlagIncrementsPerOccurrence(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	n := countFlag(fs, "v", "verbose")
	require := assert.New(t)
	require.NoError(fs.Parse([]string{"-v", "-v", "-v"}))
	require.Equal(3, *n)
}
