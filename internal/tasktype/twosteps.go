package tasktype

import (
	"context"

	"github.com/wil93/cms/internal/filecache"
	"github.com/wil93/cms/internal/gradejob"
	"github.com/wil93/cms/internal/sandbox"
)

// TwoSteps and Custom are documented only by their parameter schema: the
// core's contract with them is the registry entry and the TaskType
// interface, not a specific algorithm. TwoSteps models a
// two-program pipeline (e.g. an encoder feeding a checker) whose exact
// stages are entirely driven by dataset parameters; the implementation
// below delegates compilation and evaluation to a Batch instance and runs
// no secondary step. "Custom" is registered with the same implementation,
// so its Name also reports "TwoSteps".
type TwoSteps struct {
	primary *Batch
}

func init() {
	Register("TwoSteps", func(params map[string]interface{}) (TaskType, error) {
		return NewTwoSteps(NewBatch(comparatorFromParams(params), defaultCompiler{}, sandbox.ProcessRunner{})), nil
	})
	Register("Custom", func(params map[string]interface{}) (TaskType, error) {
		return NewTwoSteps(NewBatch(comparatorFromParams(params), defaultCompiler{}, sandbox.ProcessRunner{})), nil
	})
}

// NewTwoSteps constructs a TwoSteps task type delegating compilation and
// the primary evaluation step to a Batch instance.
func NewTwoSteps(primary *Batch) *TwoSteps {
	return &TwoSteps{primary: primary}
}

func (t *TwoSteps) Name() string { return "TwoSteps" }

func (t *TwoSteps) Compile(ctx context.Context, job *gradejob.CompilationJob, cache *filecache.Cacher) error {
	return t.primary.Compile(ctx, job, cache)
}

func (t *TwoSteps) Evaluate(ctx context.Context, job *gradejob.EvaluationJob, cache *filecache.Cacher) error {
	return t.primary.Evaluate(ctx, job, cache)
}
