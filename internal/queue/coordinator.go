package queue

import (
	"sync"

	"github.com/google/uuid"

	"github.com/wil93/cms/internal/operation"
)

// coordinator tracks dependency edges, dedup, and settlement state for
// entries in a Set. It is the only coordinator implementation: its state
// lives in process memory and is not persisted.
type coordinator struct {
	mu        sync.Mutex
	entries   map[string]*Entry
	byOp      map[operation.Operation]string // op -> id, only for non-terminal entries
	dependentsOf map[string][]string         // id -> ids that depend on it
	tolerant  map[string]bool
	results   map[string]bool // id -> success, once settled
	cancelCause map[string]string
}

func newCoordinator() *coordinator {
	return &coordinator{
		entries:      make(map[string]*Entry),
		byOp:         make(map[operation.Operation]string),
		dependentsOf: make(map[string][]string),
		tolerant:     make(map[string]bool),
		results:      make(map[string]bool),
		cancelCause:  make(map[string]string),
	}
}

func (c *coordinator) findNonTerminal(op operation.Operation) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.byOp[op]
	if !ok {
		return "", false
	}
	e := c.entries[id]
	if e.State == StateDone || e.State == StateCancelled {
		return "", false
	}
	return id, true
}

func (c *coordinator) add(entry *Entry) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry.ID = uuid.NewString()
	entry.State = StatePending
	c.entries[entry.ID] = entry
	c.byOp[entry.Operation] = entry.ID
	for _, dep := range entry.DependsOn {
		c.dependentsOf[dep] = append(c.dependentsOf[dep], entry.ID)
	}
	return entry.ID
}

func (c *coordinator) get(id string) *Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[id]
}

func (c *coordinator) setTolerant(id string, tolerant bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tolerant[id] = tolerant
}

func (c *coordinator) settle(id string, success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results[id] = success
}

func (c *coordinator) recordCancelCause(id, cause string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelCause[id] = cause
}

// CancelCause returns the recorded cancellation cause for id, if any.
func (c *coordinator) CancelCause(id string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cause, ok := c.cancelCause[id]
	return cause, ok
}

func (c *coordinator) dependents(id string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.dependentsOf[id]...)
}

// evaluateReadiness reports whether id's dependencies are all satisfied
// (ready=true) or whether id should instead be cancelled because a
// non-tolerant dependency failed.
func (c *coordinator) evaluateReadiness(id string) (ready bool, cancel bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := c.entries[id]
	if entry == nil {
		return false, false
	}
	tolerant := c.tolerant[id]

	allSettled := true
	anyFailed := false
	for _, dep := range entry.DependsOn {
		success, settled := c.results[dep]
		if !settled {
			allSettled = false
			continue
		}
		if !success {
			anyFailed = true
		}
	}

	if !allSettled {
		return false, false
	}
	if anyFailed && !tolerant {
		return false, true
	}
	return true, false
}
