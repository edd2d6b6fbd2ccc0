// Package worker implements the worker main loop: reserve a Job from the
// Queue Set, execute it through the matching task-type executor, persist
// the outcome, and ack, requeue, or escalate depending on how the executor
// failed.
package worker

import (
	"context"
	"time"

	"go.chromium.org/luci/common/errors"

	"github.com/wil93/cms/internal/filecache"
	"github.com/wil93/cms/internal/gradejob"
	"github.com/wil93/cms/internal/gradelog"
	"github.com/wil93/cms/internal/model"
	"github.com/wil93/cms/internal/operation"
	"github.com/wil93/cms/internal/persistence"
	"github.com/wil93/cms/internal/pipelineerr"
	"github.com/wil93/cms/internal/queue"
	"github.com/wil93/cms/internal/tasktype"
)

// SandboxOverhead is added to a Job's time_limit to derive the context
// deadline a worker gives the sandboxed subprocess, so the sandbox's own
// bookkeeping (fork/exec, teardown) never races the wall-clock limit the
// contestant is actually judged against.
const SandboxOverhead = 2 * time.Second

// Scorer is the orchestrator hook the worker calls after committing a
// submission-kind compile or evaluate result, in case this commit was the
// one that made a SubmissionResult ready to score. Scoring never ran as a
// dispatched queue Job (SCORING was never added to operation.Kind's closed
// set), so this is how the worker/orchestrator boundary stays decoupled:
// the worker doesn't import the orchestrator package, only this interface.
type Scorer interface {
	MaybeScore(ctx context.Context, submissionID, datasetID int64) error
}

// Worker is one instance of a pool of workers with bounded concurrency; a
// process typically runs several Workers concurrently, each its own
// goroutine, sharing one Set and one Cacher.
type Worker struct {
	Shard      int
	Kinds      []operation.Kind
	MaxMemory  int64
	MaxRetries int

	Queue  *queue.Set
	Cache  *filecache.Cacher
	Store  persistence.Bridge
	Scorer Scorer // nil for user-test-only workers that never score
}

// Run registers the worker's capability and then reserves and executes jobs
// until ctx is cancelled. A Reserve timeout (no work within
// queue.DefaultPollTimeout) is not an error: the loop just polls again.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.Queue.RegisterWorker(ctx, w.Shard, w.Kinds, w.MaxMemory); err != nil {
		return errors.Annotate(err, "registering worker").Err()
	}
	gradelog.Infof(ctx, "worker shard=%d kinds=%v starting", w.Shard, w.Kinds)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		id, job, err := w.Queue.Reserve(ctx, w.Kinds)
		if err != nil {
			gradelog.Errorf(ctx, "reserve failed: %v", err)
			continue
		}
		if job == nil {
			continue // poll timeout, no eligible work
		}
		w.process(ctx, id, job)
	}
}

func (w *Worker) process(ctx context.Context, id string, job gradejob.Job) {
	op := job.Op()
	log := gradelog.Get(ctx).Fields("operation", op.Key(), "entry", id, "shard", w.Shard)
	log.Infof("job received")

	execErr := w.execute(ctx, job)
	if execErr == nil {
		if err := w.commit(ctx, job); err != nil {
			log.Errorf("commit failed after successful execution: %v", err)
			w.escalate(ctx, id, log)
			return
		}
		// A compile that deterministically failed still "executed" (no
		// infra error), but must ack as unsuccessful so the queue cancels
		// any evaluation already enqueued depending on it.
		ackSuccess := true
		if cj, ok := job.(*gradejob.CompilationJob); ok {
			ackSuccess = cj.Executables != nil
		}
		if err := w.Queue.Ack(ctx, id, ackSuccess); err != nil {
			log.Errorf("ack failed: %v", err)
		}
		log.Infof("job finished")
		if w.Scorer != nil && op.Kind.ForSubmission() {
			if err := w.Scorer.MaybeScore(ctx, op.ObjectID, op.DatasetID); err != nil {
				log.Errorf("scoring check failed: %v", err)
			}
		}
		return
	}

	if pipelineerr.Is(execErr, pipelineerr.ErrTombstoned) {
		log.Warningf("job abandoned: tombstoned input: %v", execErr)
		w.escalate(ctx, id, log)
		return
	}

	if !pipelineerr.IsInfra(execErr) {
		log.Errorf("job failed with non-infra, non-tombstoned error: %v", execErr)
		w.escalate(ctx, id, log)
		return
	}

	entry, ok := w.Queue.Entry(id)
	if ok && entry.Tries+1 >= w.MaxRetries {
		log.Warningf("job abandoned after %d tries: %v", entry.Tries+1, execErr)
		w.escalate(ctx, id, log)
		return
	}

	tries, err := w.Queue.Requeue(ctx, id)
	if err != nil {
		log.Errorf("requeue failed: %v", err)
		return
	}
	log.Warningf("job retried (try %d): %v", tries, execErr)
}

// escalate acks the entry as failed, cancelling its dependents: a
// compile that never succeeds takes its evaluate/score chain down with it.
// It records no STUCK state; the persisted result is left as it was.
func (w *Worker) escalate(ctx context.Context, id string, log gradelog.Logger) {
	if err := w.Queue.Ack(ctx, id, false); err != nil {
		log.Errorf("escalation ack failed: %v", err)
	}
}

func (w *Worker) execute(ctx context.Context, job gradejob.Job) error {
	base := job.Base()
	tt, err := tasktype.Get(base.TaskType, base.TaskTypeParams)
	if err != nil {
		return pipelineerr.Infra(err, "resolving task type")
	}

	switch j := job.(type) {
	case *gradejob.CompilationJob:
		return tt.Compile(ctx, j, w.Cache)
	case *gradejob.EvaluationJob:
		if j.Executables == nil && j.Operation.Kind == operation.Evaluation && w.Store != nil {
			// Submission evaluations are enqueued before their compile
			// commits, so the executables are read from the stored result.
			r, err := w.Store.GetResult(ctx, j.Operation.ObjectID, j.Operation.DatasetID)
			if err != nil {
				return pipelineerr.Infra(err, "loading compiled executables")
			}
			j.Executables = r.Executables
		}
		deadline := time.Duration(j.TimeLimit*float64(time.Second)) + SandboxOverhead
		evalCtx, cancel := context.WithTimeout(ctx, deadline)
		defer cancel()
		return tt.Evaluate(evalCtx, j, w.Cache)
	default:
		return errors.Reason("worker: unknown job type %T", job).Err()
	}
}

// commit persists the executor's output, routing to the Submission or
// UserTest variant of the Bridge by the operation's kind.
func (w *Worker) commit(ctx context.Context, job gradejob.Job) error {
	op := job.Op()
	switch j := job.(type) {
	case *gradejob.CompilationJob:
		// A nil Executables map is how every task type signals "compile
		// error"; an empty-but-non-nil map (OutputOnly's no-op
		// compile) still counts as OK.
		outcome := model.CompilationOK
		if j.Executables == nil {
			outcome = model.CompilationFailed
		}
		executables := make(map[string]string, len(j.Executables))
		for name, d := range j.Executables {
			executables[name] = d.String()
		}
		if op.Kind.ForSubmission() {
			return w.Store.CommitCompilation(ctx, op.ObjectID, op.DatasetID, outcome, j.CompilationText, executables, j.ExpectedTries)
		}
		return w.Store.CommitUserTestCompilation(ctx, op.ObjectID, op.DatasetID, outcome, j.CompilationText, executables, j.ExpectedTries)

	case *gradejob.EvaluationJob:
		if op.Kind.ForSubmission() {
			eval := model.Evaluation{
				Codename:      j.Codename,
				Outcome:       j.Outcome,
				Text:          j.EvaluationText,
				ExecutionTime: j.ExecutionTime,
				Memory:        j.Memory,
			}
			return w.Store.CommitEvaluation(ctx, op.ObjectID, op.DatasetID, eval, j.ExpectedTries)
		}
		return w.Store.CommitUserTestEvaluation(ctx, op.ObjectID, op.DatasetID, j.OutputDigest.String(), j.EvaluationText, j.ExecutionTime, j.Memory, j.ExpectedTries)

	default:
		return errors.Reason("worker: unknown job type %T", job).Err()
	}
}
