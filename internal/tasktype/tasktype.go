// Package tasktype implements the task-type executors: a closed set of
// strategies polymorphic over {prepare, execute, collect}, dispatched
// through a registration table keyed by the dataset's task-type
// identifier, mirroring the original
// cms/grading/tasktypes/get_task_type dispatch.
package tasktype

import (
	"context"
	"fmt"

	"go.chromium.org/luci/common/errors"

	"github.com/wil93/cms/internal/filecache"
	"github.com/wil93/cms/internal/gradejob"
)

// Comparator decides whether a contestant's output matches the expected
// output for one testcase. Batch tasks select one at construction time.
// input and managers are only consulted by comparators that invoke a
// second process (CheckerComparator); Exact and Whitespace ignore them.
type Comparator interface {
	// Compare returns an outcome in [0, 1] and a human-readable text.
	Compare(ctx context.Context, cache *filecache.Cacher, input []byte, expected filecache.Digest, actual []byte, managers map[string]filecache.Digest) (outcome float64, text string, err error)
}

// TaskType is the interface every task-type variant implements.
type TaskType interface {
	// Name is the registered identifier (dataset.TaskType).
	Name() string
	// Compile runs the compilation stage. OutputOnly's implementation is a
	// no-op that always reports success, since there is no source to build.
	Compile(ctx context.Context, job *gradejob.CompilationJob, cache *filecache.Cacher) error
	// Evaluate runs one testcase.
	Evaluate(ctx context.Context, job *gradejob.EvaluationJob, cache *filecache.Cacher) error
}

// Constructor builds a TaskType from the dataset's opaque parameters.
type Constructor func(params map[string]interface{}) (TaskType, error)

var registry = map[string]Constructor{}

// Register adds name to the registry. Called from each variant's init, so
// the registry is fully populated by the time Get is first called for a
// well-known name (Batch, Communication, OutputOnly, TwoSteps).
func Register(name string, ctor Constructor) {
	registry[name] = ctor
}

// Get constructs the TaskType named by name, applying params. Returns an
// error for any name outside the closed registry: external plugins are a
// future extension the core doesn't support.
func Get(name string, params map[string]interface{}) (TaskType, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, errors.Reason("tasktype: unknown task type %q", name).Err()
	}
	tt, err := ctor(params)
	if err != nil {
		return nil, errors.Annotate(err, "constructing task type %q", name).Err()
	}
	return tt, nil
}

// paramString reads a string parameter with a default, tolerating the
// opaque, admin-supplied parameter maps task types are configured with.
func paramString(params map[string]interface{}, key, def string) string {
	if v, ok := params[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprintf("%v", v)
	}
	return def
}
