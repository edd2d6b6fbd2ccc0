// Package pipelineerr defines the error taxonomy: sentinels the
// orchestrator and worker use to decide whether to retry,
// cancel dependents, or escalate to an operator-visible state. Wrapping
// follows the go.chromium.org/luci/common/errors idiom used throughout the
// retrieval pack (errors.Annotate(err, "...").Err()), which keeps a cause
// chain suitable for errors.Is/errors.As while preserving a human-readable
// annotation trail for logs.
package pipelineerr

import (
	"go.chromium.org/luci/common/errors"
)

// Sentinel causes, one per row of the error taxonomy table.
var (
	// ErrDeterministic marks a contestant-visible outcome (compile error,
	// wrong answer, time/memory limit, runtime error). Never retried.
	ErrDeterministic = errors.New("deterministic grading outcome")

	// ErrInfra marks a sandbox or infrastructure fault. Retried up to the
	// configured limit, then escalated to STUCK.
	ErrInfra = errors.New("infrastructure fault")

	// ErrTombstoned marks an input digest the file cache has recorded as
	// known-lost. The owning SubmissionResult is marked tombstoned and no
	// further retries are attempted for that stage.
	ErrTombstoned = errors.New("input digest tombstoned")

	// ErrStaleWrite marks a persistence write rejected by the try-counter
	// optimistic-concurrency guard: the work was already redone by a
	// concurrent retry or admin action, so the write is dropped, not
	// retried.
	ErrStaleWrite = errors.New("stale write rejected by try-counter guard")

	// ErrReducerFailed marks a score-type reducer that raised instead of
	// returning a score. SCORING is marked failed; no partial score is
	// recorded.
	ErrReducerFailed = errors.New("score-type reducer failed")

	// ErrUpstreamFailed marks a dependent job cancelled because its
	// prerequisite failed or was cancelled.
	ErrUpstreamFailed = errors.New("upstream operation failed")
)

// Annotate wraps err with a human-readable annotation while preserving its
// cause for errors.Is checks against the sentinels above, following the
// Annotate(err, "...").Err() idiom.
func Annotate(err error, reason string) error {
	if err == nil {
		return nil
	}
	return errors.Annotate(err, reason).Err()
}

// Is reports whether err (or any error it wraps) is the given sentinel.
func Is(err, sentinel error) bool {
	return errors.Is(err, sentinel)
}

// Deterministic returns an ErrDeterministic-caused failure annotated with
// reason.
func Deterministic(reason string) error {
	return errors.Annotate(ErrDeterministic, reason).Err()
}

// Infra annotates err with reason and tags it as an infrastructure fault.
// The result does not wrap ErrInfra; IsInfra is how callers detect it.
func Infra(err error, reason string) error {
	return errors.Annotate(err, reason).Tag(infraTag).Err()
}

var infraTag = errors.BoolTag{Key: errors.NewTagKey("infra-fault")}

// IsInfra reports whether err was tagged by Infra.
func IsInfra(err error) bool {
	return infraTag.In(err)
}
