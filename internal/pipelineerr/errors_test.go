package pipelineerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnnotateNilIsNil(t *testing.T) {
	assert.NoError(t, Annotate(nil, "whatever"))
}

func TestAnnotatePreservesIsCheck(t *testing.T) {
	err := Annotate(ErrStaleWrite, "committing evaluation")
	require.Error(t, err)
	assert.True(t, Is(err, ErrStaleWrite))
	assert.False(t, Is(err, ErrTombstoned))
}

func TestDeterministicWrapsSentinel(t *testing.T) {
	err := Deterministic("wrong answer on case1")
	assert.True(t, Is(err, ErrDeterministic))
	assert.False(t, IsInfra(err))
}

func TestInfraTagsArbitraryError(t *testing.T) {
	underlying := errors.New("sandbox exec failed")
	err := Infra(underlying, "running sandbox")
	assert.True(t, IsInfra(err))
	// Infra tags the original error rather than wrapping ErrInfra as a
	// cause, so a plain Is(err, ErrInfra) check is not how callers detect
	// infra faults: they use IsInfra.
	assert.False(t, Is(err, ErrInfra))
}

func TestIsInfraFalseForUntaggedError(t *testing.T) {
	assert.False(t, IsInfra(errors.New("some other failure")))
	assert.False(t, IsInfra(Deterministic("compile error")))
}
