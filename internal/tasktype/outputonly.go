package tasktype

import (
	"context"

	"go.chromium.org/luci/common/errors"

	"github.com/wil93/cms/internal/filecache"
	"github.com/wil93/cms/internal/gradejob"
	"github.com/wil93/cms/internal/pipelineerr"
)

const outputOnlyFile = "output"

// OutputOnly has no compilation stage: the submission *is* the set of
// outputs. Evaluate just compares the contestant-provided output file
// against the expected one.
type OutputOnly struct {
	comparator Comparator
}

func init() {
	Register("OutputOnly", func(params map[string]interface{}) (TaskType, error) {
		return NewOutputOnly(comparatorFromParams(params)), nil
	})
}

// NewOutputOnly constructs an OutputOnly task type.
func NewOutputOnly(comparator Comparator) *OutputOnly {
	return &OutputOnly{comparator: comparator}
}

func (o *OutputOnly) Name() string { return "OutputOnly" }

// Compile is a no-op that always reports success: there is no source to
// build.
func (o *OutputOnly) Compile(ctx context.Context, job *gradejob.CompilationJob, cache *filecache.Cacher) error {
	job.Success = true
	job.Executables = map[string]filecache.Digest{}
	return nil
}

func (o *OutputOnly) Evaluate(ctx context.Context, job *gradejob.EvaluationJob, cache *filecache.Cacher) error {
	digest, ok := job.Executables[outputOnlyFile+"_"+job.Codename]
	if !ok {
		// The contestant never submitted an output for this testcase.
		job.Outcome = 0
		job.EvaluationText = "Output not provided"
		job.Success = true
		return nil
	}
	actual, err := cache.GetBytes(ctx, digest)
	if errors.Is(err, filecache.ErrTombstoned) {
		return pipelineerr.Annotate(pipelineerr.ErrTombstoned, "fetching submitted output")
	}
	if err != nil {
		return pipelineerr.Infra(err, "fetching submitted output")
	}

	outcome, text, err := o.comparator.Compare(ctx, cache, nil, job.Output, actual, job.Managers)
	if err != nil {
		return pipelineerr.Infra(err, "comparing output")
	}
	job.Outcome = outcome
	job.EvaluationText = text
	job.Success = true
	return nil
}
