// Package persistence implements the persistence bridge: a narrow
// interface over the relational store, so the orchestrator and workers
// never hold a live database/ORM handle directly.
package persistence

import (
	"context"

	"github.com/wil93/cms/internal/model"
)

// Bridge is the interface the orchestrator and workers depend on. All
// SubmissionResult writes occur in a transaction that also writes the try
// counter; implementations must make that atomic.
type Bridge interface {
	// GetSubmission eagerly fetches everything a Job needs to be built
	// without further queries: source digests, language, tokened
	// flag.
	GetSubmission(ctx context.Context, submissionID int64) (*model.Submission, error)
	// GetDatasetsToJudge returns the task's active dataset plus any
	// admin-marked shadow datasets.
	GetDatasetsToJudge(ctx context.Context, taskID int64) ([]*model.Dataset, error)
	GetDataset(ctx context.Context, datasetID int64) (*model.Dataset, error)

	GetUserTest(ctx context.Context, userTestID int64) (*model.UserTest, error)

	// GetOrCreateResult returns the (submission, dataset) SubmissionResult,
	// creating an empty one if none exists yet, and commits the creation.
	GetOrCreateResult(ctx context.Context, submissionID, datasetID int64) (*model.SubmissionResult, error)
	GetResult(ctx context.Context, submissionID, datasetID int64) (*model.SubmissionResult, error)

	GetOrCreateUserTestResult(ctx context.Context, userTestID, datasetID int64) (*model.UserTestResult, error)
	GetUserTestResult(ctx context.Context, userTestID, datasetID int64) (*model.UserTestResult, error)

	// CommitCompilation writes the compilation outcome/executables/try
	// counter for one SubmissionResult inside a single transaction. expectedTries
	// is the try counter the caller observed before starting the job; the
	// write is rejected (ErrStaleWrite) if the stored counter no longer
	// matches, guarding against a race between a late worker and a manual
	// retry.
	CommitCompilation(ctx context.Context, submissionID, datasetID int64, outcome model.CompilationOutcome, text string, executables map[string]string, expectedTries int) error

	// CommitEvaluation upserts one Evaluation row; unique on
	// (submission_result, codename) makes re-delivery a no-op.
	CommitEvaluation(ctx context.Context, submissionID, datasetID int64, eval model.Evaluation, expectedTries int) error

	// CommitScore atomically persists the reducer's output and marks
	// scored=true.
	CommitScore(ctx context.Context, submissionID, datasetID int64, result model.SubmissionResult) error

	// CommitUserTestCompilation is CommitCompilation's UserTest counterpart.
	CommitUserTestCompilation(ctx context.Context, userTestID, datasetID int64, outcome model.CompilationOutcome, text string, executables map[string]string, expectedTries int) error

	// CommitUserTestEvaluation is CommitEvaluation's UserTest counterpart;
	// a UserTest has at most one evaluation (the contestant-supplied input),
	// not one per dataset testcase.
	CommitUserTestEvaluation(ctx context.Context, userTestID, datasetID int64, outputDigest string, text string, executionTime float64, memory int64, expectedTries int) error

	// ListScoredSubmissions returns, oldest first, every scored submission
	// for the (participation, task, dataset) triple, with exactly the
	// fields scoremode needs (score, tokened flag) to collapse them into a
	// single task score.
	ListScoredSubmissions(ctx context.Context, participationID, taskID, datasetID int64) ([]ScoredEntry, error)

	// ListNonTerminal returns every SubmissionResult not yet in the SCORED
	// terminal state, used by orchestrator startup to rebuild in-flight
	// state after a queue loss.
	ListNonTerminal(ctx context.Context) ([]*model.SubmissionResult, error)

	// ClearResult resets a SubmissionResult's persisted state at and above
	// level, so a subsequent drive recomputes NeedsCompilation/
	// MissingTestcases as if those stages had never run. Try counters reset
	// to 0 along with the state they guard.
	ClearResult(ctx context.Context, submissionID, datasetID int64, level ClearLevel) error
}

// ClearLevel names the stage at and above which ClearResult drops
// persisted SubmissionResult state.
type ClearLevel int

const (
	// ClearCompile drops compilation outcome/executables, every
	// evaluation, and the score: everything.
	ClearCompile ClearLevel = iota
	// ClearEvaluate keeps the compilation outcome but drops every
	// evaluation and the score.
	ClearEvaluate
	// ClearScore keeps compilation and evaluations, dropping only the
	// score.
	ClearScore
)

// ScoredEntry is one row of ListScoredSubmissions' output: the minimal view
// of a scored submission that internal/scoremode's reducers need.
type ScoredEntry struct {
	SubmissionID int64
	Score        float64
	Tokened      bool
}
