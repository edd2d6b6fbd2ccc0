package tasktype

import (
	"context"
	"time"

	"go.chromium.org/luci/common/errors"

	"github.com/wil93/cms/internal/filecache"
	"github.com/wil93/cms/internal/gradejob"
	"github.com/wil93/cms/internal/pipelineerr"
	"github.com/wil93/cms/internal/sandbox"
)

const batchExecutableName = "main"

// batchCheckerManagerKey is the key a dataset's custom checker binary is
// stored under in job.Managers, mirroring communicationManagerKey.
const batchCheckerManagerKey = "checker"

// Batch compiles a single source file to one executable, then evaluates by
// running that executable on each testcase's input and comparing stdout to
// the expected output via a configured Comparator. This is CMS's
// default, most common task type.
type Batch struct {
	comparator Comparator
	compiler   Compiler
	runner     sandbox.Runner
}

// Compiler builds one or more source files into an executable. Kept as an
// injectable seam (rather than a hard-coded toolchain invocation list) so
// tests can supply a fake and a real deployment can wire per-language
// toolchains without touching Batch itself.
type Compiler interface {
	Compile(ctx context.Context, files map[string][]byte, language string) (executable []byte, stderr string, ok bool, err error)
}

func init() {
	Register("Batch", func(params map[string]interface{}) (TaskType, error) {
		comparator := comparatorFromParams(params)
		return NewBatch(comparator, defaultCompiler{}, sandbox.ProcessRunner{}), nil
	})
}

// NewBatch constructs a Batch task type with explicit collaborators.
func NewBatch(comparator Comparator, compiler Compiler, runner sandbox.Runner) *Batch {
	return &Batch{comparator: comparator, compiler: compiler, runner: runner}
}

func (b *Batch) Name() string { return "Batch" }

func (b *Batch) Compile(ctx context.Context, job *gradejob.CompilationJob, cache *filecache.Cacher) error {
	files := make(map[string][]byte, len(job.Files))
	for name, digest := range job.Files {
		content, err := cache.GetBytes(ctx, digest)
		if errors.Is(err, filecache.ErrTombstoned) {
			return pipelineerr.Annotate(pipelineerr.ErrTombstoned, "fetching source "+name)
		}
		if err != nil {
			return pipelineerr.Infra(err, "fetching source "+name)
		}
		files[name] = content
	}

	exe, stderr, ok, err := b.compiler.Compile(ctx, files, job.Language)
	if err != nil {
		return pipelineerr.Infra(err, "invoking compiler")
	}

	job.CompilationText = stderr
	if !ok {
		job.Success = true // deterministic outcome: compile error is contestant-visible, not a job failure
		job.Executables = nil
		return nil
	}

	digest, err := cache.PutBytes(ctx, exe, "compiled executable")
	if err != nil {
		return pipelineerr.Infra(err, "storing compiled executable")
	}
	job.Executables = map[string]filecache.Digest{batchExecutableName: digest}
	job.Success = true
	return nil
}

func (b *Batch) Evaluate(ctx context.Context, job *gradejob.EvaluationJob, cache *filecache.Cacher) error {
	exeDigest, ok := job.Executables[batchExecutableName]
	if !ok {
		return errors.Reason("batch: no executable %q in job", batchExecutableName).Err()
	}
	input, err := cache.GetBytes(ctx, job.Input)
	if errors.Is(err, filecache.ErrTombstoned) {
		return pipelineerr.Annotate(pipelineerr.ErrTombstoned, "fetching testcase input")
	}
	if err != nil {
		return pipelineerr.Infra(err, "fetching testcase input")
	}

	exePath, err := materializeExecutable(ctx, cache, exeDigest)
	if err != nil {
		return pipelineerr.Infra(err, "materializing executable")
	}

	limits := sandbox.Limits{
		Wall:   time.Duration(job.TimeLimit * float64(time.Second)),
		Memory: job.MemoryLimit,
	}
	result, err := b.runner.Run(ctx, []string{exePath}, input, limits)
	if err != nil {
		return pipelineerr.Infra(err, "running sandboxed executable")
	}

	job.ExecutionTime = result.ExecutionTime.Seconds()
	job.Memory = result.Memory
	job.SetPlus("exit_status", result.Status)

	switch result.Status {
	case sandbox.ExitTimeLimitExceeded:
		job.Outcome = 0
		job.EvaluationText = "Time limit exceeded"
	case sandbox.ExitMemoryLimitExceeded:
		job.Outcome = 0
		job.EvaluationText = "Memory limit exceeded"
	case sandbox.ExitNonZero, sandbox.ExitSignalled:
		job.Outcome = 0
		job.EvaluationText = "Runtime error"
	case sandbox.ExitOK:
		outcome, text, err := b.comparator.Compare(ctx, cache, input, job.Output, result.Stdout, job.Managers)
		if err != nil {
			return pipelineerr.Infra(err, "comparing output")
		}
		job.Outcome = outcome
		job.EvaluationText = text
	default:
		return pipelineerr.Annotate(pipelineerr.ErrInfra, "unexpected sandbox exit status")
	}

	job.Success = true
	return nil
}

func comparatorFromParams(params map[string]interface{}) Comparator {
	switch paramString(params, "comparator", "whitespace") {
	case "exact":
		return ExactComparator{}
	case "whitespace":
		return WhitespaceComparator{}
	case "checker":
		return CheckerComparator{runner: sandbox.ProcessRunner{}}
	default:
		return WhitespaceComparator{}
	}
}

// defaultCompiler is a placeholder Compiler that always fails compilation;
// real deployments supply a language-aware Compiler through NewBatch. It
// exists so the "Batch" registry entry is usable out of the box in tests
// that only exercise Evaluate against a pre-supplied executable.
type defaultCompiler struct{}

func (defaultCompiler) Compile(ctx context.Context, files map[string][]byte, language string) ([]byte, string, bool, error) {
	return nil, "no compiler configured for language " + language, false, nil
}
