package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wil93/cms/internal/model"
	"github.com/wil93/cms/internal/persistence"
)

// These tests target the scoring path (Score/MaybeScore/TaskScore/Rescore),
// which only ever touches Store, not Queue. Submit/driveSubmission/
// driveUserTest enqueue through *queue.Set, a concrete struct wired to a
// live Redis client with no fake-Redis library anywhere in the retrieval
// pack, so the fan-out path itself is exercised by internal/queue's
// coordinator tests instead.

type fakeStore struct {
	persistence.Bridge

	dataset *model.Dataset
	result  *model.SubmissionResult

	committed *model.SubmissionResult
	scored    []persistence.ScoredEntry
}

func (f *fakeStore) GetDataset(ctx context.Context, datasetID int64) (*model.Dataset, error) {
	return f.dataset, nil
}

func (f *fakeStore) GetResult(ctx context.Context, submissionID, datasetID int64) (*model.SubmissionResult, error) {
	r := *f.result
	return &r, nil
}

func (f *fakeStore) CommitScore(ctx context.Context, submissionID, datasetID int64, result model.SubmissionResult) error {
	f.committed = &result
	f.result.Score = result.Score
	f.result.Scored = true
	f.result.Partial = result.Partial
	f.result.Evaluations = result.Evaluations
	return nil
}

func (f *fakeStore) ListScoredSubmissions(ctx context.Context, participationID, taskID, datasetID int64) ([]persistence.ScoredEntry, error) {
	return f.scored, nil
}

func sumDataset() *model.Dataset {
	return &model.Dataset{
		ID:        1,
		ScoreType: "Sum",
		Testcases: []model.Testcase{
			{Codename: "case1"},
			{Codename: "case2"},
		},
	}
}

func TestScoreSumsFullOutcomeSet(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{
		dataset: sumDataset(),
		result: &model.SubmissionResult{
			SubmissionID:       10,
			DatasetID:          1,
			CompilationOutcome: model.CompilationOK,
			Evaluations: map[string]model.Evaluation{
				"case1": {Codename: "case1", Outcome: 1.0},
				"case2": {Codename: "case2", Outcome: 0.5},
			},
		},
	}
	o := &Orchestrator{Store: store}

	require.NoError(t, o.Score(ctx, 10, 1))
	require.NotNil(t, store.committed)
	assert.False(t, store.committed.Partial)
	assert.Greater(t, store.committed.Score, 0.0)
}

func TestScoreMarksPartialWhenEvaluationsMissing(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{
		dataset: sumDataset(),
		result: &model.SubmissionResult{
			SubmissionID:       10,
			DatasetID:          1,
			CompilationOutcome: model.CompilationOK,
			Evaluations: map[string]model.Evaluation{
				"case1": {Codename: "case1", Outcome: 1.0},
			},
		},
	}
	o := &Orchestrator{Store: store}

	require.NoError(t, o.Score(ctx, 10, 1))
	assert.True(t, store.committed.Partial)
}

func TestScoreCompileFailedScoresZeroIgnoringEvaluations(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{
		dataset: sumDataset(),
		result: &model.SubmissionResult{
			SubmissionID:       10,
			DatasetID:          1,
			CompilationOutcome: model.CompilationFailed,
			Evaluations:        map[string]model.Evaluation{"case1": {Codename: "case1", Outcome: 1.0}},
		},
	}
	o := &Orchestrator{Store: store}

	require.NoError(t, o.Score(ctx, 10, 1))
	assert.Equal(t, 0.0, store.committed.Score)
	assert.False(t, store.committed.Partial, "a failed compile is never reported partial")
}

func TestMaybeScoreIsNoOpWhenNotReady(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{
		dataset: sumDataset(),
		result: &model.SubmissionResult{
			SubmissionID:       10,
			DatasetID:          1,
			CompilationOutcome: model.CompilationOK,
			Evaluations:        map[string]model.Evaluation{"case1": {Codename: "case1", Outcome: 1.0}},
		},
	}
	o := &Orchestrator{Store: store}

	require.NoError(t, o.MaybeScore(ctx, 10, 1))
	assert.Nil(t, store.committed, "case2 still missing: scoring must not fire yet")
}

func TestMaybeScoreIsNoOpWhenAlreadyScored(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{
		dataset: sumDataset(),
		result: &model.SubmissionResult{
			SubmissionID:       10,
			DatasetID:          1,
			CompilationOutcome: model.CompilationOK,
			Scored:             true,
			Evaluations: map[string]model.Evaluation{
				"case1": {Codename: "case1", Outcome: 1.0},
				"case2": {Codename: "case2", Outcome: 1.0},
			},
		},
	}
	o := &Orchestrator{Store: store}

	require.NoError(t, o.MaybeScore(ctx, 10, 1))
	assert.Nil(t, store.committed)
}

func TestMaybeScoreFiresWhenLastEvaluationArrives(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{
		dataset: sumDataset(),
		result: &model.SubmissionResult{
			SubmissionID:       10,
			DatasetID:          1,
			CompilationOutcome: model.CompilationOK,
			Evaluations: map[string]model.Evaluation{
				"case1": {Codename: "case1", Outcome: 1.0},
				"case2": {Codename: "case2", Outcome: 1.0},
			},
		},
	}
	o := &Orchestrator{Store: store}

	require.NoError(t, o.MaybeScore(ctx, 10, 1))
	require.NotNil(t, store.committed)
}

func TestRescoreReusesStoredEvaluationsOnly(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{
		dataset: sumDataset(),
		result: &model.SubmissionResult{
			SubmissionID:       10,
			DatasetID:          1,
			CompilationOutcome: model.CompilationOK,
			Scored:             true,
			Evaluations: map[string]model.Evaluation{
				"case1": {Codename: "case1", Outcome: 1.0},
				"case2": {Codename: "case2", Outcome: 0.0},
			},
		},
	}
	o := &Orchestrator{Store: store}

	require.NoError(t, o.Rescore(ctx, 10, 1))
	require.NotNil(t, store.committed)
}

func TestInvalidateScoreLevelDelegatesToRescore(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{
		dataset: sumDataset(),
		result: &model.SubmissionResult{
			SubmissionID:       10,
			DatasetID:          1,
			CompilationOutcome: model.CompilationOK,
			Evaluations: map[string]model.Evaluation{
				"case1": {Codename: "case1", Outcome: 1.0},
				"case2": {Codename: "case2", Outcome: 1.0},
			},
		},
	}
	o := &Orchestrator{Store: store}

	require.NoError(t, o.Invalidate(ctx, 10, 1, InvalidateScore))
	require.NotNil(t, store.committed)
}

func TestTaskScoreMax(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{
		scored: []persistence.ScoredEntry{
			{SubmissionID: 1, Score: 30},
			{SubmissionID: 2, Score: 80},
		},
	}
	o := &Orchestrator{Store: store}

	got, err := o.TaskScore(ctx, 1, 1, 1, ScoreModeMax)
	require.NoError(t, err)
	assert.Equal(t, 80.0, got)
}

func TestTaskScoreMaxTokenedLastPrefersTokenedOverHigherUntokened(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{
		scored: []persistence.ScoredEntry{
			{SubmissionID: 1, Score: 80, Tokened: false},
			{SubmissionID: 2, Score: 30, Tokened: true},
		},
	}
	o := &Orchestrator{Store: store}

	got, err := o.TaskScore(ctx, 1, 1, 1, ScoreModeMaxTokenedLast)
	require.NoError(t, err)
	assert.Equal(t, 30.0, got, "tokened submission 2 is also the last one, and the untokened 80 never participates")
}
