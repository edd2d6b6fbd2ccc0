// Package queue implements the queue set: a priority x kind multiqueue,
// deduplicated by Operation, with a dependency/fan-in primitive for the
// compile -> evaluate -> score chain.
//
// The physical queue naming scheme ({kind}_{priority}, one Redis list per
// cell) is grounded directly on original_source/cms/service2/queues.py,
// which builds the identical matrix on top of rq/Redis
// (Queue(f"{operation}_{priority}")). The dependency/fan-in primitive,
// absent from rq's direct API there, is layered here as an explicit
// coordinator table instead.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.chromium.org/luci/common/errors"

	"github.com/wil93/cms/internal/gradejob"
	"github.com/wil93/cms/internal/operation"
)

// DefaultPollTimeout bounds how long Reserve blocks waiting for work,
// mirroring the BLPOP-with-timeout idiom go-redis exposes for long-poll
// dequeue.
const DefaultPollTimeout = 30 * time.Second

// JobState is the lifecycle state of an enqueued job, used by the
// dependency coordinator to decide eligibility and by admin introspection.
type JobState int

const (
	StatePending JobState = iota
	StateEligible
	StateReserved
	StateDone
	StateCancelled
)

// Entry is one enqueued unit of work: an Operation, its serialized Job, and
// coordinator bookkeeping.
type Entry struct {
	ID        string // coordinator id, distinct from the Operation's dedup key
	Operation operation.Operation
	Priority  operation.Priority
	JobBytes  []byte
	State     JobState
	DependsOn []string // coordinator ids of prerequisites
	Tries     int
}

// Set is the priority x kind multiqueue plus dependency coordinator.
type Set struct {
	rdb *redis.Client

	// coordinator tracks dependency edges and per-operation dedup. It is
	// kept in process memory alongside the Redis cell queues, not inside
	// Redis or the relational store, so its state does not survive a
	// restart.
	coord *coordinator
}

// New returns a Set backed by the given Redis client.
func New(rdb *redis.Client) *Set {
	return &Set{rdb: rdb, coord: newCoordinator()}
}

func cellKey(kind operation.Kind, p operation.Priority) string {
	return kind.String() + "_" + p.String()
}

// Enqueue adds job to the queue at the given priority, honoring the
// idempotency and dependency contract:
//   - if op is already present as a non-terminal entry, Enqueue is a no-op
//     and returns the existing entry's id.
//   - if dependsOn is non-empty, the job becomes eligible only once every
//     dependency entry reaches StateDone successfully; on any dependency's
//     failure the new entry is cancelled instead of becoming eligible.
func (s *Set) Enqueue(ctx context.Context, job gradejob.Job, priority operation.Priority, dependsOn ...string) (string, error) {
	op := job.Op()

	if id, ok := s.coord.findNonTerminal(op); ok {
		return id, nil
	}

	encoded, err := gradejob.Encode(job)
	if err != nil {
		return "", errors.Annotate(err, "encoding job for enqueue").Err()
	}

	entry := &Entry{
		Operation: op,
		Priority:  priority,
		JobBytes:  encoded,
		DependsOn: dependsOn,
	}
	id := s.coord.add(entry)

	if len(dependsOn) == 0 {
		if err := s.makeEligible(ctx, id); err != nil {
			return "", err
		}
	}
	return id, nil
}

// EnqueueBarrier registers a fan-in job (scoring) that depends on every id
// in dependsOn. If tolerant is true, the barrier fires once every
// dependency has settled (succeeded, failed, or was cancelled) rather than
// requiring all to succeed: a barrier Job may depend on a set of
// prerequisites, and becomes eligible after all succeed, or after all
// settle when the fan-in is tolerant.
func (s *Set) EnqueueBarrier(ctx context.Context, job gradejob.Job, priority operation.Priority, tolerant bool, dependsOn ...string) (string, error) {
	encoded, err := gradejob.Encode(job)
	if err != nil {
		return "", errors.Annotate(err, "encoding barrier job").Err()
	}
	entry := &Entry{
		Operation: job.Op(),
		Priority:  priority,
		JobBytes:  encoded,
		DependsOn: dependsOn,
	}
	id := s.coord.add(entry)
	s.coord.setTolerant(id, tolerant)
	if len(dependsOn) == 0 {
		if err := s.makeEligible(ctx, id); err != nil {
			return "", err
		}
	}
	return id, nil
}

func (s *Set) makeEligible(ctx context.Context, id string) error {
	entry := s.coord.get(id)
	if entry == nil {
		return errors.Reason("queue: unknown entry %s", id).Err()
	}
	entry.State = StateEligible
	key := cellKey(entry.Operation.Kind, entry.Priority)
	payload, err := json.Marshal(entryRef{ID: id})
	if err != nil {
		return errors.Annotate(err, "marshaling entry reference").Err()
	}
	if err := s.rdb.RPush(ctx, key, payload).Err(); err != nil {
		return errors.Annotate(err, "pushing to cell %s", key).Err()
	}
	return nil
}

type entryRef struct {
	ID string `json:"id"`
}

// Reserve pulls one eligible Job from the highest-priority non-empty cell
// among the worker's supported kinds, blocking up to DefaultPollTimeout.
// Ties within a band resolve FIFO because each cell is a Redis list popped
// from the head.
func (s *Set) Reserve(ctx context.Context, kinds []operation.Kind) (string, gradejob.Job, error) {
	var keys []string
	for _, p := range operation.All {
		for _, k := range kinds {
			keys = append(keys, cellKey(k, p))
		}
	}

	res, err := s.rdb.BLPop(ctx, DefaultPollTimeout, keys...).Result()
	if err == redis.Nil {
		return "", nil, nil // no work within the poll window
	}
	if err != nil {
		return "", nil, errors.Annotate(err, "reserving from queue").Err()
	}

	var ref entryRef
	if err := json.Unmarshal([]byte(res[1]), &ref); err != nil {
		return "", nil, errors.Annotate(err, "unmarshaling entry reference").Err()
	}

	entry := s.coord.get(ref.ID)
	if entry == nil {
		return "", nil, errors.Reason("queue: reserved unknown entry %s", ref.ID).Err()
	}
	entry.State = StateReserved

	job, err := gradejob.Decode(entry.JobBytes)
	if err != nil {
		return "", nil, errors.Annotate(err, "decoding reserved job").Err()
	}
	return ref.ID, job, nil
}

// Requeue puts id back into its cell at a demoted priority, incrementing
// its try counter. Returns the new try count.
func (s *Set) Requeue(ctx context.Context, id string) (int, error) {
	entry := s.coord.get(id)
	if entry == nil {
		return 0, errors.Reason("queue: unknown entry %s", id).Err()
	}
	entry.Tries++
	entry.Priority = entry.Priority.Demote()
	entry.State = StateEligible
	if err := s.makeEligible(ctx, id); err != nil {
		return 0, err
	}
	return entry.Tries, nil
}

// Ack marks id done (success=true means the dependent chain may proceed;
// success=false triggers cancellation of dependents).
func (s *Set) Ack(ctx context.Context, id string, success bool) error {
	entry := s.coord.get(id)
	if entry == nil {
		return errors.Reason("queue: unknown entry %s", id).Err()
	}
	entry.State = StateDone
	s.coord.settle(id, success)

	// Dependents may now be eligible (or, on failure, must be cancelled).
	for _, dep := range s.coord.dependents(id) {
		ready, cancel := s.coord.evaluateReadiness(dep)
		if cancel {
			if err := s.cancelEntry(ctx, dep, "upstream failed"); err != nil {
				return err
			}
			continue
		}
		if ready {
			if err := s.makeEligible(ctx, dep); err != nil {
				return err
			}
		}
	}
	return nil
}

// Cancel marks id and every transitive dependent as cancelled with
// cause=upstream_cancelled: cancelling a prerequisite atomically marks
// all dependents cancelled.
func (s *Set) Cancel(ctx context.Context, id string) error {
	return s.cancelEntry(ctx, id, "upstream_cancelled")
}

func (s *Set) cancelEntry(ctx context.Context, id, cause string) error {
	entry := s.coord.get(id)
	if entry == nil {
		return nil
	}
	if entry.State == StateDone || entry.State == StateCancelled {
		return nil
	}
	entry.State = StateCancelled
	s.coord.recordCancelCause(id, cause)
	for _, dep := range s.coord.dependents(id) {
		if err := s.cancelEntry(ctx, dep, "upstream_cancelled"); err != nil {
			return err
		}
	}
	return nil
}

// Entry returns a copy of the coordinator's view of id, for admin/test
// introspection.
func (s *Set) Entry(id string) (Entry, bool) {
	e := s.coord.get(id)
	if e == nil {
		return Entry{}, false
	}
	return *e, true
}

// RegisterWorker records a worker's (shard, kinds, max_memory) capability
// declaration. No dynamic renegotiation: a worker whose capability set
// changes must re-register after a restart.
func (s *Set) RegisterWorker(ctx context.Context, shard int, kinds []operation.Kind, maxMemory int64) error {
	key := "worker_heartbeat"
	payload, err := json.Marshal(workerRegistration{Shard: shard, Kinds: kinds, MaxMemory: maxMemory, At: time.Now().UTC()})
	if err != nil {
		return errors.Annotate(err, "marshaling worker registration").Err()
	}
	return s.rdb.HSet(ctx, key, shardField(shard), payload).Err()
}

func shardField(shard int) string {
	return fmt.Sprintf("shard_%d", shard)
}

type workerRegistration struct {
	Shard     int              `json:"shard"`
	Kinds     []operation.Kind `json:"kinds"`
	MaxMemory int64            `json:"max_memory"`
	At        time.Time        `json:"at"`
}

// Depth reports the number of eligible entries waiting in the given
// (kind, priority) cell's Redis list, used by the orchestrator's
// backpressure check. Entries still waiting on a dependency are not in the
// list and are not counted.
func (s *Set) Depth(ctx context.Context, kind operation.Kind, p operation.Priority) (int64, error) {
	n, err := s.rdb.LLen(ctx, cellKey(kind, p)).Result()
	if err != nil {
		return 0, errors.Annotate(err, "measuring depth of cell %s", cellKey(kind, p)).Err()
	}
	return n, nil
}
