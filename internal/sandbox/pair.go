package sandbox

import (
	"context"
	"time"
)

// PairResult is the outcome of a two-process Communication-style run: the
// contestant's resource usage plus the manager's verdict.
type PairResult struct {
	ContestantStatus ExitStatus
	ContestantTime   time.Duration
	ContestantMemory int64
	ManagerExitCode  int
	ManagerOutcome   float64 // in [0, 1], parsed from the manager's first stdout line
	ManagerMessage   string  // the manager's remaining stdout, the evaluation text
}

// PairRunner runs a contestant executable communicating with a
// task-provided manager over pipes, as Communication tasks require.
type PairRunner interface {
	RunPair(ctx context.Context, managerPath, contestantPath string, input []byte, limits Limits) (PairResult, error)
}

// ProcessPairRunner is a stand-in PairRunner: it starts no processes and
// every RunPair call reports an infrastructure failure with a manager
// rejection (exit code 1).
type ProcessPairRunner struct{}

func (ProcessPairRunner) RunPair(ctx context.Context, managerPath, contestantPath string, input []byte, limits Limits) (PairResult, error) {
	// The real implementation wires two sandboxed processes via pipes and
	// parses the manager's first stdout line as "<outcome> <message>". This
	// stand-in, used where no real sandbox is configured, always reports a
	// manager rejection so callers never silently treat an unconfigured
	// pair runner as an accepted submission.
	return PairResult{
		ContestantStatus: ExitInfraFailure,
		ManagerExitCode:  1,
		ManagerMessage:   "no sandboxed pair runner configured",
	}, nil
}
