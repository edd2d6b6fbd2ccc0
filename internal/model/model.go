// Package model holds the plain-struct relational data model: Submission,
// Dataset, Testcase, SubmissionResult, Evaluation, and their UserTest
// counterparts. These types are owned by the persistence layer
// (internal/persistence); the pipeline only reads Submission/Dataset and
// co-owns SubmissionResult/Evaluation through the transactional idioms of
// internal/persistence.
//
// Parent/child relations (Submission->Evaluation, Dataset->Testcase) are
// expressed one-directional, child holding the parent's id rather than a
// back pointer, to keep the types acyclic and easy to marshal.
package model

import (
	"time"

	"github.com/wil93/cms/internal/filecache"
)

// CompilationOutcome is the tri-state result of a compilation stage.
type CompilationOutcome int

const (
	CompilationNotDone CompilationOutcome = iota
	CompilationOK
	CompilationFailed
)

// SourceFile is one named source file of a Submission, stored by digest.
type SourceFile struct {
	Filename string
	Digest   filecache.Digest
}

// Submission is an immutable record of one contestant attempt.
type Submission struct {
	ID            int64
	ParticipationID int64
	TaskID        int64
	Timestamp     time.Time
	Files         []SourceFile
	Language      string // optional; empty if the task has no languages
	Tokened       bool
}

// Testcase is a single (input, expected output) pair within a Dataset.
type Testcase struct {
	Codename  string
	Input     filecache.Digest
	Output    filecache.Digest
	Public    bool
}

// Dataset is a scoring configuration for a task.
type Dataset struct {
	ID             int64
	TaskID         int64
	Description    string
	TaskType       string
	TaskTypeParams map[string]interface{}
	ScoreType      string
	ScoreTypeParams map[string]interface{}
	Testcases      []Testcase
	TimeLimit      *float64 // seconds; nil means task-type default
	MemoryLimit    *int64   // bytes; nil means task-type default
	Managers       map[string]filecache.Digest
	Active         bool // the task's single active dataset
}

// TestcaseCodenames returns the set of codenames in the dataset, useful for
// validating that Evaluations don't name an unknown testcase.
func (d *Dataset) TestcaseCodenames() map[string]bool {
	set := make(map[string]bool, len(d.Testcases))
	for _, tc := range d.Testcases {
		set[tc.Codename] = true
	}
	return set
}

// Evaluation is one testcase's outcome for a SubmissionResult.
type Evaluation struct {
	Codename      string
	Outcome       float64 // in [0, 1]
	Text          string
	ExecutionTime float64 // seconds
	Memory        int64   // bytes
}

// SubmissionResult is the (submission, dataset) pair's derived state.
type SubmissionResult struct {
	SubmissionID int64
	DatasetID    int64

	CompilationOutcome CompilationOutcome
	CompilationText    string
	Executables        map[string]filecache.Digest
	Evaluations        map[string]Evaluation // keyed by codename

	CompilationTries int
	EvaluationTries  map[string]int // keyed by codename

	Score               float64
	ScoreDetails        string
	PublicScore         float64
	PublicScoreDetails  string
	RankingScoreDetails string
	Scored              bool

	Tombstoned bool
	Partial    bool // true if scored with fewer evaluations than testcases
}

// NeedsCompilation reports whether the result still requires a compile
// stage: no compilation outcome recorded yet and not already tombstoned.
func (r *SubmissionResult) NeedsCompilation() bool {
	return r.CompilationOutcome == CompilationNotDone && !r.Tombstoned
}

// MissingTestcases returns the codenames of dataset testcases that don't yet
// have a recorded Evaluation.
func (r *SubmissionResult) MissingTestcases(d *Dataset) []string {
	var missing []string
	for _, tc := range d.Testcases {
		if _, ok := r.Evaluations[tc.Codename]; !ok {
			missing = append(missing, tc.Codename)
		}
	}
	return missing
}

// ReadyToScore reports whether every dataset testcase has a recorded
// Evaluation and compilation has settled (ok or failed).
func (r *SubmissionResult) ReadyToScore(d *Dataset) bool {
	if r.CompilationOutcome == CompilationNotDone {
		return false
	}
	if r.CompilationOutcome == CompilationFailed {
		return true
	}
	return len(r.MissingTestcases(d)) == 0
}

// UserTest mirrors Submission for ad hoc contestant runs: not scored, not
// part of the leaderboard, but sharing the same Operation/Job machinery,
// per original_source/cms/service2/tasks.py's parallel treatment of
// submissions and user tests.
type UserTest struct {
	ID              int64
	ParticipationID int64
	TaskID          int64
	Timestamp       time.Time
	Files           []SourceFile
	Input           filecache.Digest // contestant-provided input, if the task allows it
	Language        string
}

// UserTestResult is the derived state of a (user test, dataset) pair.
type UserTestResult struct {
	UserTestID int64
	DatasetID  int64

	CompilationOutcome CompilationOutcome
	CompilationText    string
	Executables        map[string]filecache.Digest

	OutputDigest  filecache.Digest
	EvaluationText string
	ExecutionTime float64
	Memory        int64

	CompilationTries int
	EvaluationTries  int

	Tombstoned bool
}
