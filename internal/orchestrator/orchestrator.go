// Package orchestrator implements the pipeline orchestrator: the component
// that turns a submitted submission_id (or user_test_id) into a compile ->
// evaluate* -> score job graph, and that resolves admin controls
// (reevaluate, rescore, invalidate, cancel) against the same graph.
package orchestrator

import (
	"context"

	"go.chromium.org/luci/common/errors"

	"github.com/wil93/cms/internal/filecache"
	"github.com/wil93/cms/internal/gradejob"
	"github.com/wil93/cms/internal/gradelog"
	"github.com/wil93/cms/internal/model"
	"github.com/wil93/cms/internal/operation"
	"github.com/wil93/cms/internal/persistence"
	"github.com/wil93/cms/internal/queue"
	"github.com/wil93/cms/internal/scoremode"
	"github.com/wil93/cms/internal/scoretype"
)

// MaxQueueDepth bounds how deep any single (kind, priority) cell may grow
// before the backpressure policy engages: new user-test submissions
// are rejected while contest submissions keep queueing (demoted to LOW if
// needed), never rejected outright.
const MaxQueueDepth = 10000

// ScoreMode selects which of internal/scoremode's two functions collapses a
// contestant's many submissions into one task score.
type ScoreMode int

const (
	ScoreModeMax ScoreMode = iota
	ScoreModeMaxTokenedLast
)

// Orchestrator is the single entry point for submission ingress and the
// admin controls.
type Orchestrator struct {
	Store persistence.Bridge
	Queue *queue.Set
	Cache *filecache.Cacher
}

// Submit resolves submissionID's target datasets (active + shadows) and, for
// each, drives the (submission, dataset) pair from NEW toward SCORED by
// enqueueing whatever stages are still missing.
// Calling Submit twice for the same submission is safe: every stage it
// enqueues is deduplicated by the queue's Operation-keyed idempotency.
func (o *Orchestrator) Submit(ctx context.Context, submissionID int64) error {
	sub, err := o.Store.GetSubmission(ctx, submissionID)
	if err != nil {
		return errors.Annotate(err, "loading submission %d", submissionID).Err()
	}
	datasets, err := o.Store.GetDatasetsToJudge(ctx, sub.TaskID)
	if err != nil {
		return errors.Annotate(err, "loading datasets for task %d", sub.TaskID).Err()
	}
	for _, d := range datasets {
		if err := o.driveSubmission(ctx, sub, d); err != nil {
			return errors.Annotate(err, "driving submission %d against dataset %d", submissionID, d.ID).Err()
		}
	}
	return nil
}

// SubmitUserTest mirrors Submit but for the ad hoc UserTest flow, which only
// ever reaches EVALUATING -> terminal: user tests are never scored.
func (o *Orchestrator) SubmitUserTest(ctx context.Context, userTestID int64) error {
	ut, err := o.Store.GetUserTest(ctx, userTestID)
	if err != nil {
		return errors.Annotate(err, "loading user test %d", userTestID).Err()
	}
	datasets, err := o.Store.GetDatasetsToJudge(ctx, ut.TaskID)
	if err != nil {
		return errors.Annotate(err, "loading datasets for task %d", ut.TaskID).Err()
	}
	for _, d := range datasets {
		if !d.Active {
			continue // user tests only ever run against the active dataset
		}
		if err := o.driveUserTest(ctx, ut, d); err != nil {
			return errors.Annotate(err, "driving user test %d against dataset %d", userTestID, d.ID).Err()
		}
	}
	return nil
}

func (o *Orchestrator) driveSubmission(ctx context.Context, sub *model.Submission, d *model.Dataset) error {
	log := gradelog.Get(ctx).Fields("submission", sub.ID, "dataset", d.ID)

	result, err := o.Store.GetOrCreateResult(ctx, sub.ID, d.ID)
	if err != nil {
		return errors.Annotate(err, "creating submission result").Err()
	}

	if len(d.Testcases) == 0 {
		// Zero-testcase dataset: the reducer still runs, over an empty
		// outcome set, and the result is immediately scorable.
		return o.scoreDirectly(ctx, sub.ID, d, result)
	}

	var compileEntry string
	if result.NeedsCompilation() {
		compileEntry, err = o.enqueueCompilation(ctx, operation.Compilation, sub.ID, sub, d, result.CompilationTries)
		if err != nil {
			return err
		}
		log.Infof("enqueued compilation")
	} else if result.CompilationOutcome == model.CompilationFailed {
		// Already known to have failed: no evaluations to fan out, score
		// directly at zero.
		return o.scoreDirectly(ctx, sub.ID, d, result)
	}

	missing := result.MissingTestcases(d)
	if len(missing) == 0 && result.ReadyToScore(d) {
		return o.MaybeScore(ctx, sub.ID, d.ID)
	}

	var evalEntries []string
	for _, codename := range missing {
		tc := findTestcase(d, codename)
		tries := result.EvaluationTries[codename]
		id, err := o.enqueueEvaluation(ctx, operation.Evaluation, sub.ID, sub, d, tc, tries, compileEntry)
		if err != nil {
			return err
		}
		evalEntries = append(evalEntries, id)
	}
	if len(evalEntries) > 0 {
		log.Infof("fanned out %d evaluations", len(evalEntries))
	}
	return nil
}

func (o *Orchestrator) driveUserTest(ctx context.Context, ut *model.UserTest, d *model.Dataset) error {
	result, err := o.Store.GetOrCreateUserTestResult(ctx, ut.ID, d.ID)
	if err != nil {
		return errors.Annotate(err, "creating user test result").Err()
	}

	var compileEntry string
	if result.CompilationOutcome == model.CompilationNotDone && !result.Tombstoned {
		compileEntry, err = o.enqueueCompilation(ctx, operation.UserTestCompilation, ut.ID, userTestAsSubmission(ut), d, result.CompilationTries)
		if err != nil {
			return err
		}
		return nil
	}
	if result.CompilationOutcome != model.CompilationOK {
		return nil // compile failed or still pending: nothing to evaluate yet
	}
	if result.EvaluationTries > 0 && !result.OutputDigest.Empty() {
		return nil // already evaluated
	}

	job := &gradejob.EvaluationJob{
		Common: gradejob.Common{
			Operation:      operation.Operation{Kind: operation.UserTestEvaluation, ObjectID: ut.ID, DatasetID: d.ID},
			TaskType:       d.TaskType,
			TaskTypeParams: d.TaskTypeParams,
			Language:       ut.Language,
		},
		Executables:   executablesFromUserTestResult(result),
		Input:         ut.Input,
		Managers:      d.Managers,
		TimeLimit:     limitOrDefault(d.TimeLimit, 2.0),
		MemoryLimit:   limitOrDefaultInt(d.MemoryLimit, 256<<20),
		ExpectedTries: result.EvaluationTries,
	}
	priority := operation.PriorityFor(operation.UserTestEvaluation, result.EvaluationTries)
	deps := []string{}
	if compileEntry != "" {
		deps = append(deps, compileEntry)
	}
	_, err = o.Queue.Enqueue(ctx, job, priority, deps...)
	return err
}

func (o *Orchestrator) enqueueCompilation(ctx context.Context, kind operation.Kind, objectID int64, sub *model.Submission, d *model.Dataset, tries int) (string, error) {
	job := &gradejob.CompilationJob{
		Common: gradejob.Common{
			Operation:      operation.Operation{Kind: kind, ObjectID: objectID, DatasetID: d.ID},
			TaskType:       d.TaskType,
			TaskTypeParams: d.TaskTypeParams,
			Language:       sub.Language,
		},
		Files:         filesFromSubmission(sub),
		ExpectedTries: tries,
	}
	priority := operation.PriorityFor(kind, tries)
	isUserTest := kind == operation.UserTestCompilation
	if ok, err := o.admitsPriority(ctx, kind, priority, isUserTest); err != nil {
		return "", err
	} else if !ok {
		return "", errors.Reason("orchestrator: queue depth exceeded for user-test compilation, rejecting").Err()
	}
	if !isUserTest && priority < operation.Low {
		depth, err := o.Queue.Depth(ctx, kind, priority)
		if err != nil {
			return "", err
		}
		if depth >= MaxQueueDepth {
			priority = operation.Low
		}
	}
	return o.Queue.Enqueue(ctx, job, priority)
}

func (o *Orchestrator) enqueueEvaluation(ctx context.Context, kind operation.Kind, objectID int64, sub *model.Submission, d *model.Dataset, tc *model.Testcase, tries int, dependsOn string) (string, error) {
	job := &gradejob.EvaluationJob{
		Common: gradejob.Common{
			Operation:      operation.Operation{Kind: kind, ObjectID: objectID, DatasetID: d.ID, Codename: tc.Codename},
			TaskType:       d.TaskType,
			TaskTypeParams: d.TaskTypeParams,
			Language:       sub.Language,
		},
		Input:         tc.Input,
		Output:        tc.Output,
		Managers:      d.Managers,
		Codename:      tc.Codename,
		TimeLimit:     limitOrDefault(d.TimeLimit, 2.0),
		MemoryLimit:   limitOrDefaultInt(d.MemoryLimit, 256<<20),
		ExpectedTries: tries,
	}
	priority := operation.PriorityFor(kind, tries)
	var deps []string
	if dependsOn != "" {
		deps = append(deps, dependsOn)
	}
	return o.Queue.Enqueue(ctx, job, priority, deps...)
}

// admitsPriority applies the backpressure rule: once a (kind, priority)
// cell exceeds MaxQueueDepth, user-test submissions are rejected while
// contest submissions are always admitted (they queue at LOW if HIGH is
// saturated, never dropped).
func (o *Orchestrator) admitsPriority(ctx context.Context, kind operation.Kind, p operation.Priority, isUserTest bool) (bool, error) {
	if !isUserTest {
		return true, nil
	}
	depth, err := o.Queue.Depth(ctx, kind, p)
	if err != nil {
		return false, err
	}
	return depth < MaxQueueDepth, nil
}

// scoreDirectly handles the two boundary cases where scoring doesn't need to
// wait on any evaluation: a zero-testcase dataset, and a compile that
// already failed deterministically.
func (o *Orchestrator) scoreDirectly(ctx context.Context, submissionID int64, d *model.Dataset, result *model.SubmissionResult) error {
	return o.Score(ctx, submissionID, d.ID)
}

// MaybeScore is the scoring barrier, realized as a database-state
// check rather than a dispatched queue Job: SCORING was never added to
// operation.Kind's closed set because it never runs through a worker
// executor, so the barrier fires here, re-reading Evaluations from the
// store rather than trusting queue payloads ("evaluations may have expired
// in transit"), once the last dependency (compile or an evaluation) has
// been committed. Workers call this after every successful commit; it is a
// no-op unless the SubmissionResult just became ready to score.
func (o *Orchestrator) MaybeScore(ctx context.Context, submissionID, datasetID int64) error {
	d, err := o.Store.GetDataset(ctx, datasetID)
	if err != nil {
		return errors.Annotate(err, "loading dataset %d", datasetID).Err()
	}
	result, err := o.Store.GetResult(ctx, submissionID, datasetID)
	if err != nil {
		return errors.Annotate(err, "loading result").Err()
	}
	if result.Scored || !result.ReadyToScore(d) {
		return nil
	}
	return o.Score(ctx, submissionID, datasetID)
}

// Score runs the dataset's reducer over the persisted Evaluations for
// (submissionID, datasetID) and commits the result. It is the scoring
// barrier's execution body and also what Rescore invokes directly.
func (o *Orchestrator) Score(ctx context.Context, submissionID, datasetID int64) error {
	d, err := o.Store.GetDataset(ctx, datasetID)
	if err != nil {
		return errors.Annotate(err, "loading dataset %d", datasetID).Err()
	}
	result, err := o.Store.GetResult(ctx, submissionID, datasetID)
	if err != nil {
		return errors.Annotate(err, "loading result for scoring").Err()
	}

	reducer, err := scoretype.Get(d.ScoreType)
	if err != nil {
		return errors.Annotate(err, "resolving score type %q", d.ScoreType).Err()
	}

	var outcomes []scoretype.Outcome
	if result.CompilationOutcome != model.CompilationFailed {
		tcSet := d.TestcaseCodenames()
		for _, tc := range d.Testcases {
			if !tcSet[tc.Codename] {
				continue
			}
			eval, ok := result.Evaluations[tc.Codename]
			if !ok {
				continue
			}
			outcomes = append(outcomes, scoretype.Outcome{Codename: tc.Codename, Value: eval.Outcome, Public: tc.Public})
		}
	}

	reduced, err := reducer.Reduce(outcomes, d.ScoreTypeParams)
	if err != nil {
		return errors.Annotate(err, "reducing score").Err()
	}

	result.Score = reduced.Score
	result.ScoreDetails = reduced.ScoreDetails
	result.PublicScore = reduced.PublicScore
	result.PublicScoreDetails = reduced.PublicScoreDetails
	result.RankingScoreDetails = reduced.RankingScoreDetails
	result.Partial = len(outcomes) < len(d.Testcases) && result.CompilationOutcome != model.CompilationFailed

	return o.Store.CommitScore(ctx, submissionID, datasetID, *result)
}

// TaskScore applies the dataset's score mode over every scored submission a
// participation has made against taskID, via the configured score mode.
func (o *Orchestrator) TaskScore(ctx context.Context, participationID, taskID, datasetID int64, mode ScoreMode) (float64, error) {
	scored, err := o.Store.ListScoredSubmissions(ctx, participationID, taskID, datasetID)
	if err != nil {
		return 0, errors.Annotate(err, "listing scored submissions").Err()
	}
	entries := make([]scoremode.Scored, len(scored))
	for i, e := range scored {
		entries[i] = scoremode.Scored{SubmissionID: e.SubmissionID, Score: e.Score, Tokened: e.Tokened}
	}
	switch mode {
	case ScoreModeMaxTokenedLast:
		return scoremode.MaxTokenedLast(entries), nil
	default:
		return scoremode.Max(entries), nil
	}
}

// Reevaluate is the admin control of the same name. It re-invokes Submit:
// every enqueue it performs is idempotent, and GetOrCreateResult/
// NeedsCompilation/MissingTestcases compute the delta of work still
// outstanding, so only stages with no stored result are enqueued. It does
// not change any try counter and does not clear stored compilation,
// evaluation or score state.
func (o *Orchestrator) Reevaluate(ctx context.Context, submissionID int64) error {
	return o.Submit(ctx, submissionID)
}

// Rescore re-runs the reducer only, reusing stored Evaluations, without any
// worker traffic.
func (o *Orchestrator) Rescore(ctx context.Context, submissionID, datasetID int64) error {
	return o.Score(ctx, submissionID, datasetID)
}

// InvalidateLevel names the stage at and above which Invalidate drops
// results before re-enqueuing.
type InvalidateLevel int

const (
	InvalidateCompile InvalidateLevel = iota
	InvalidateEvaluate
	InvalidateScore
)

// Invalidate drops SubmissionResult state at and above level and re-enqueues
// from there. Dropping "at and above compile" means clearing
// everything; "at and above evaluate" keeps the compile outcome and clears
// evaluations/score; "at and above score" keeps compile and evaluations and
// only clears the score, equivalent to Rescore.
func (o *Orchestrator) Invalidate(ctx context.Context, submissionID, datasetID int64, level InvalidateLevel) error {
	switch level {
	case InvalidateScore:
		return o.Rescore(ctx, submissionID, datasetID)
	case InvalidateEvaluate:
		if err := o.Store.ClearResult(ctx, submissionID, datasetID, persistence.ClearEvaluate); err != nil {
			return errors.Annotate(err, "clearing evaluation state").Err()
		}
		return o.Submit(ctx, submissionID)
	case InvalidateCompile:
		if err := o.Store.ClearResult(ctx, submissionID, datasetID, persistence.ClearCompile); err != nil {
			return errors.Annotate(err, "clearing compilation state").Err()
		}
		return o.Submit(ctx, submissionID)
	default:
		return errors.Reason("orchestrator: unknown invalidate level %v", level).Err()
	}
}

// Cancel marks each given coordinator entry cancelled and propagates
// through the dependency graph transitively. The caller supplies the entry
// ids it still has on hand; Cancel does not look up a submission's pending
// entries from a submission id.
func (o *Orchestrator) Cancel(ctx context.Context, entryIDs ...string) error {
	for _, id := range entryIDs {
		if err := o.Queue.Cancel(ctx, id); err != nil {
			return errors.Annotate(err, "cancelling entry %s", id).Err()
		}
	}
	return nil
}

// Recover rebuilds in-flight state after a queue loss: for every
// non-terminal SubmissionResult, it re-invokes the same drive logic Submit
// uses, which is idempotent and enqueues exactly the stages still missing.
func (o *Orchestrator) Recover(ctx context.Context) error {
	results, err := o.Store.ListNonTerminal(ctx)
	if err != nil {
		return errors.Annotate(err, "listing non-terminal results").Err()
	}
	log := gradelog.Get(ctx)
	log.Infof("recovering %d non-terminal results", len(results))
	for _, r := range results {
		sub, err := o.Store.GetSubmission(ctx, r.SubmissionID)
		if err != nil {
			log.Errorf("recover: loading submission %d: %v", r.SubmissionID, err)
			continue
		}
		d, err := o.Store.GetDataset(ctx, r.DatasetID)
		if err != nil {
			log.Errorf("recover: loading dataset %d: %v", r.DatasetID, err)
			continue
		}
		if err := o.driveSubmission(ctx, sub, d); err != nil {
			log.Errorf("recover: re-driving (%d, %d): %v", r.SubmissionID, r.DatasetID, err)
		}
	}
	return nil
}

func findTestcase(d *model.Dataset, codename string) *model.Testcase {
	for i := range d.Testcases {
		if d.Testcases[i].Codename == codename {
			return &d.Testcases[i]
		}
	}
	return nil
}

func filesFromSubmission(sub *model.Submission) map[string]filecache.Digest {
	files := make(map[string]filecache.Digest, len(sub.Files))
	for _, f := range sub.Files {
		files[f.Filename] = f.Digest
	}
	return files
}

func userTestAsSubmission(ut *model.UserTest) *model.Submission {
	return &model.Submission{ID: ut.ID, TaskID: ut.TaskID, Files: ut.Files, Language: ut.Language}
}

func executablesFromUserTestResult(r *model.UserTestResult) map[string]filecache.Digest {
	return r.Executables
}

func limitOrDefault(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func limitOrDefaultInt(v *int64, def int64) int64 {
	if v == nil {
		return def
	}
	return *v
}
