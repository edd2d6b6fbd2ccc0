// Package gradejob implements the Job model: the strictly self-contained
// payload shipped to a worker. A Job never carries live database
// references; everything an executor needs beyond blob fetches by digest
// travels inside the Job itself.
package gradejob

import (
	"encoding/json"

	"go.chromium.org/luci/common/errors"

	"github.com/wil93/cms/internal/filecache"
	"github.com/wil93/cms/internal/operation"
)

// Job is the common interface of CompilationJob and EvaluationJob. Variants
// are a closed set: new job shapes require a coordinated change here, in
// the task-type executors, and in the orchestrator.
type Job interface {
	// Op returns the Operation this Job executes.
	Op() operation.Operation
	// Base returns the fields shared by every Job variant.
	Base() *Common
}

// Common holds the fields every Job variant carries: operation, task-type
// id and parameters, language, success flag, failure text, and a metadata
// map for everything else.
type Common struct {
	Operation        operation.Operation
	TaskType         string
	TaskTypeParams   map[string]interface{}
	Language         string
	Success          bool
	FailureText      string
	Plus             map[string]interface{} // execution time/memory, exit status, sandbox diagnostics
}

// SetPlus records a key in the Plus metadata map, creating the map if
// needed.
func (c *Common) SetPlus(key string, value interface{}) {
	if c.Plus == nil {
		c.Plus = make(map[string]interface{})
	}
	c.Plus[key] = value
}

// CompilationJob adds the fields needed to compile a submission or user
// test: its source digests, and the executables map it produces.
type CompilationJob struct {
	Common

	Files       map[string]filecache.Digest // filename -> digest
	Executables map[string]filecache.Digest // produced on success
	CompilationText string

	// ExpectedTries is the compilation try counter the orchestrator observed
	// when building this Job, echoed back to the persistence bridge's
	// optimistic-concurrency guard on commit.
	ExpectedTries int
}

func (j *CompilationJob) Op() operation.Operation { return j.Operation }
func (j *CompilationJob) Base() *Common           { return &j.Common }

// EvaluationJob adds the fields needed to run one testcase: the compiled
// executables (injected by the orchestrator from the matching
// CompilationJob, or re-fetched from storage), the testcase's
// input/expected-output digests, limits, and the produced outcome.
type EvaluationJob struct {
	Common

	Executables   map[string]filecache.Digest
	Input         filecache.Digest
	Output        filecache.Digest
	Managers      map[string]filecache.Digest
	TimeLimit     float64 // seconds
	MemoryLimit   int64   // bytes
	Codename      string

	Outcome         float64 // in [0, 1]
	EvaluationText  string
	ExecutionTime   float64
	Memory          int64

	// OutputDigest is set by OutputOnly/Communication-style executors that
	// produce a file worth keeping (e.g. for a later re-check); Batch
	// leaves it empty.
	OutputDigest filecache.Digest

	// ExpectedTries is the evaluation try counter for this Codename the
	// orchestrator observed when building this Job.
	ExpectedTries int
}

func (j *EvaluationJob) Op() operation.Operation { return j.Operation }
func (j *EvaluationJob) Base() *Common           { return &j.Common }

// envelope is the on-wire shape used to round-trip a Job through JSON
// without losing its concrete type: a plain discriminator field rather
// than a protobuf oneof, since no wire schema for this payload exists and
// a Job never crosses a service boundary that would need one.
type envelope struct {
	Variant string          `json:"variant"`
	Payload json.RawMessage `json:"payload"`
}

const (
	variantCompilation = "compilation"
	variantEvaluation  = "evaluation"
)

// Encode serializes j for transport through the Queue Set.
func Encode(j Job) ([]byte, error) {
	var variant string
	switch j.(type) {
	case *CompilationJob:
		variant = variantCompilation
	case *EvaluationJob:
		variant = variantEvaluation
	default:
		return nil, errors.Reason("gradejob: unknown job type %T", j).Err()
	}

	payload, err := json.Marshal(j)
	if err != nil {
		return nil, errors.Annotate(err, "marshaling job payload").Err()
	}
	return json.Marshal(envelope{Variant: variant, Payload: payload})
}

// Decode is the inverse of Encode. It must round-trip exactly: for every
// Job j, Decode(Encode(j)) reconstructs an equal value.
func Decode(data []byte) (Job, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errors.Annotate(err, "unmarshaling job envelope").Err()
	}

	switch env.Variant {
	case variantCompilation:
		var j CompilationJob
		if err := json.Unmarshal(env.Payload, &j); err != nil {
			return nil, errors.Annotate(err, "unmarshaling compilation job").Err()
		}
		return &j, nil
	case variantEvaluation:
		var j EvaluationJob
		if err := json.Unmarshal(env.Payload, &j); err != nil {
			return nil, errors.Annotate(err, "unmarshaling evaluation job").Err()
		}
		return &j, nil
	default:
		return nil, errors.Reason("gradejob: unknown variant %q", env.Variant).Err()
	}
}

// FromOperation builds the zero-value Job shape appropriate for op; callers
// (the orchestrator) fill in the dataset-derived fields (task type,
// digests, limits) before enqueuing. Submission and user-test operations
// share the same two Job shapes.
func FromOperation(op operation.Operation) (Job, error) {
	switch op.Kind {
	case operation.Compilation, operation.UserTestCompilation:
		return &CompilationJob{Common: Common{Operation: op}}, nil
	case operation.Evaluation, operation.UserTestEvaluation:
		return &EvaluationJob{Common: Common{Operation: op}}, nil
	default:
		return nil, errors.Reason("gradejob: unknown operation kind %v", op.Kind).Err()
	}
}
