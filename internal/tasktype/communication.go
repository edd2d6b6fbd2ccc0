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

const (
	communicationContestantExe = "contestant"
	communicationManagerKey    = "manager"
)

// Communication evaluates by running the contestant's compiled executable
// alongside a task-provided manager process; the two talk over pipes, and
// the manager's exit code and stdout drive the outcome. Compilation
// is single-source, same as Batch.
type Communication struct {
	compiler Compiler
	runner   sandbox.PairRunner
}

func init() {
	Register("Communication", func(params map[string]interface{}) (TaskType, error) {
		return NewCommunication(defaultCompiler{}, sandbox.ProcessPairRunner{}), nil
	})
}

// NewCommunication constructs a Communication task type with explicit
// collaborators.
func NewCommunication(compiler Compiler, runner sandbox.PairRunner) *Communication {
	return &Communication{compiler: compiler, runner: runner}
}

func (c *Communication) Name() string { return "Communication" }

func (c *Communication) Compile(ctx context.Context, job *gradejob.CompilationJob, cache *filecache.Cacher) error {
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

	exe, stderr, ok, err := c.compiler.Compile(ctx, files, job.Language)
	if err != nil {
		return pipelineerr.Infra(err, "invoking compiler")
	}
	job.CompilationText = stderr
	if !ok {
		job.Success = true
		job.Executables = nil
		return nil
	}
	digest, err := cache.PutBytes(ctx, exe, "compiled contestant executable")
	if err != nil {
		return pipelineerr.Infra(err, "storing compiled executable")
	}
	job.Executables = map[string]filecache.Digest{communicationContestantExe: digest}
	job.Success = true
	return nil
}

func (c *Communication) Evaluate(ctx context.Context, job *gradejob.EvaluationJob, cache *filecache.Cacher) error {
	contestantDigest, ok := job.Executables[communicationContestantExe]
	if !ok {
		return errors.Reason("communication: no contestant executable in job").Err()
	}
	managerDigest, ok := job.Managers[communicationManagerKey]
	if !ok {
		return errors.Reason("communication: dataset has no manager").Err()
	}

	contestantPath, err := materializeExecutable(ctx, cache, contestantDigest)
	if err != nil {
		return pipelineerr.Infra(err, "materializing contestant executable")
	}
	managerPath, err := materializeExecutable(ctx, cache, managerDigest)
	if err != nil {
		return pipelineerr.Infra(err, "materializing manager")
	}
	input, err := cache.GetBytes(ctx, job.Input)
	if errors.Is(err, filecache.ErrTombstoned) {
		return pipelineerr.Annotate(pipelineerr.ErrTombstoned, "fetching testcase input")
	}
	if err != nil {
		return pipelineerr.Infra(err, "fetching testcase input")
	}

	limits := sandbox.Limits{
		Wall:   time.Duration(job.TimeLimit * float64(time.Second)),
		Memory: job.MemoryLimit,
	}
	result, err := c.runner.RunPair(ctx, managerPath, contestantPath, input, limits)
	if err != nil {
		return pipelineerr.Infra(err, "running manager/contestant pair")
	}

	job.ExecutionTime = result.ContestantTime.Seconds()
	job.Memory = result.ContestantMemory
	job.SetPlus("manager_exit_code", result.ManagerExitCode)

	if result.ContestantStatus == sandbox.ExitTimeLimitExceeded {
		job.Outcome = 0
		job.EvaluationText = "Time limit exceeded"
	} else if result.ManagerExitCode != 0 {
		job.Outcome = 0
		job.EvaluationText = "Manager rejected the communication: " + result.ManagerMessage
	} else {
		job.Outcome = result.ManagerOutcome
		job.EvaluationText = result.ManagerMessage
	}
	job.Success = true
	return nil
}
