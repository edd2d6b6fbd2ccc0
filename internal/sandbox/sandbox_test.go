package sandbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessRunnerCapturesStdout(t *testing.T) {
	ctx := context.Background()
	r := ProcessRunner{}
	res, err := r.Run(ctx, []string{"/bin/cat"}, []byte("hello\n"), Limits{})
	require.NoError(t, err)
	assert.Equal(t, ExitOK, res.Status)
	assert.Equal(t, "hello\n", string(res.Stdout))
}

func TestProcessRunnerNonZeroExit(t *testing.T) {
	ctx := context.Background()
	r := ProcessRunner{}
	res, err := r.Run(ctx, []string{"/bin/sh", "-c", "exit 3"}, nil, Limits{})
	require.NoError(t, err)
	assert.Equal(t, ExitNonZero, res.Status)
	assert.Equal(t, 3, res.ExitCode)
}

func TestProcessRunnerTimeLimitExceeded(t *testing.T) {
	ctx := context.Background()
	r := ProcessRunner{}
	res, err := r.Run(ctx, []string{"/bin/sleep", "2"}, nil, Limits{Wall: 50 * time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, ExitTimeLimitExceeded, res.Status)
}

func TestProcessRunnerMissingBinaryIsInfraFailure(t *testing.T) {
	ctx := context.Background()
	r := ProcessRunner{}
	_, err := r.Run(ctx, []string{"/no/such/binary"}, nil, Limits{})
	require.Error(t, err)
}

func TestProcessRunnerEmptyArgvErrors(t *testing.T) {
	ctx := context.Background()
	r := ProcessRunner{}
	_, err := r.Run(ctx, nil, nil, Limits{})
	require.Error(t, err)
}
