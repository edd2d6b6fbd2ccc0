// Package operation defines the Operation and Priority types: pure values
// naming *what* must happen, used as the deduplication key for the Queue
// Set (internal/queue).
package operation

import "fmt"

// Kind is the closed space of operation kinds. New kinds require a
// coordinated change to dispatch (internal/queue) and to the Job model
// (internal/gradejob).
type Kind int

const (
	Compilation Kind = iota
	Evaluation
	UserTestCompilation
	UserTestEvaluation
)

func (k Kind) String() string {
	switch k {
	case Compilation:
		return "COMPILATION"
	case Evaluation:
		return "EVALUATION"
	case UserTestCompilation:
		return "USER_TEST_COMPILATION"
	case UserTestEvaluation:
		return "USER_TEST_EVALUATION"
	default:
		return "UNKNOWN"
	}
}

// ForSubmission reports whether ObjectID refers to a Submission (as opposed
// to a UserTest).
func (k Kind) ForSubmission() bool {
	return k == Compilation || k == Evaluation
}

// Operation names a unit of work. Equality by all fields defines the
// deduplication key: enqueuing the same Operation twice while it is
// already pending should coalesce.
type Operation struct {
	Kind      Kind
	ObjectID  int64 // submission id or user-test id, per Kind.ForSubmission
	DatasetID int64
	Codename  string // only meaningful for Evaluation/UserTestEvaluation
}

// Key returns a value suitable as a map key or queue-cell dedup key.
func (o Operation) Key() string {
	return fmt.Sprintf("%s:%d:%d:%s", o.Kind, o.ObjectID, o.DatasetID, o.Codename)
}

func (o Operation) String() string { return o.Key() }

// Priority is an ordered band; lower numeric value means sooner dispatch.
type Priority int

const (
	ExtraHigh Priority = iota
	High
	Medium
	Low
)

func (p Priority) String() string {
	switch p {
	case ExtraHigh:
		return "EXTRA_HIGH"
	case High:
		return "HIGH"
	case Medium:
		return "MEDIUM"
	case Low:
		return "LOW"
	default:
		return "UNKNOWN"
	}
}

// All lists every priority band, ordered from soonest to latest dispatch;
// the Queue Set iterates this order when looking for eligible work.
var All = []Priority{ExtraHigh, High, Medium, Low}

// Demote returns the next, lower-priority band, clamped at Low. Retries
// demote one band on each retry.
func (p Priority) Demote() Priority {
	if p >= Low {
		return Low
	}
	return p + 1
}

// PriorityFor determines the dispatch priority for a fresh (try count 0)
// operation of the given kind: fresh compile HIGH, fresh evaluate MEDIUM,
// user-test HIGH; retries demote one band from there.
func PriorityFor(kind Kind, tries int) Priority {
	var base Priority
	switch kind {
	case Compilation:
		base = High
	case Evaluation:
		base = Medium
	case UserTestCompilation, UserTestEvaluation:
		base = High
	default:
		base = Low
	}
	for i := 0; i < tries; i++ {
		base = base.Demote()
	}
	return base
}

// AllKinds lists every operation kind a worker may declare capability for.
var AllKinds = []Kind{Compilation, Evaluation, UserTestCompilation, UserTestEvaluation}
