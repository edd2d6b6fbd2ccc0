package tasktype

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wil93/cms/internal/filecache"
	"github.com/wil93/cms/internal/gradejob"
)

func TestOutputOnlyCompileIsAlwaysSuccessfulNoOp(t *testing.T) {
	ctx := context.Background()
	cache := newTestCache(t)
	o := NewOutputOnly(WhitespaceComparator{})

	job := &gradejob.CompilationJob{}
	err := o.Compile(ctx, job, cache)
	require.NoError(t, err)
	assert.True(t, job.Success)
	assert.NotNil(t, job.Executables, "empty but non-nil Executables signals a successful no-op compile")
	assert.Empty(t, job.Executables)
}

func TestOutputOnlyEvaluateMissingSubmittedOutput(t *testing.T) {
	ctx := context.Background()
	cache := newTestCache(t)
	o := NewOutputOnly(WhitespaceComparator{})

	job := &gradejob.EvaluationJob{Codename: "case1", Executables: map[string]filecache.Digest{}}
	err := o.Evaluate(ctx, job, cache)
	require.NoError(t, err)
	assert.Equal(t, 0.0, job.Outcome)
	assert.True(t, job.Success)
}

func TestOutputOnlyEvaluateComparesSubmittedOutput(t *testing.T) {
	ctx := context.Background()
	cache := newTestCache(t)
	expected, err := cache.PutBytes(ctx, []byte("42\n"), "expected")
	require.NoError(t, err)
	submitted, err := cache.PutBytes(ctx, []byte("42"), "submitted")
	require.NoError(t, err)

	o := NewOutputOnly(WhitespaceComparator{})
	job := &gradejob.EvaluationJob{
		Codename:    "case1",
		Output:      expected,
		Executables: map[string]filecache.Digest{"output_case1": submitted},
	}
	err = o.Evaluate(ctx, job, cache)
	require.NoError(t, err)
	assert.Equal(t, 1.0, job.Outcome, "whitespace-normalized match")
}
