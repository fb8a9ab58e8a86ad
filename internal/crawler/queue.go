package crawler

import (
	"slices"
	"sync"

	"github.com/alvmarrod/trust-weaver/internal/storage"
)

// Worklist is a thread-safe LIFO of pending work units. It tracks units that
// have been popped but not yet marked Done, so workers can tell an empty list
// from a finished traversal.
type Worklist struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   []storage.WorkUnit
	pending int
	stopped bool
}

// NewWorklist creates an empty worklist
func NewWorklist() *Worklist {
	q := &Worklist{
		items: make([]storage.WorkUnit, 0),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push adds units so that units[0] is popped first, keeping the depth-first
// order of a recursive walk. Returns false if the worklist is stopped.
func (q *Worklist) Push(units ...storage.WorkUnit) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped {
		return false
	}
	if len(units) == 0 {
		return true
	}

	for _, u := range slices.Backward(units) {
		q.items = append(q.items, u)
	}

	q.cond.Broadcast()
	return true
}

// Pop removes and returns the most recently pushed unit.
// Blocks while the list is empty but other units are still being processed.
// Returns (unit, true) on success, (empty, false) once stopped or drained.
// Every successful Pop must be followed by Done.
func (q *Worklist) Pop() (storage.WorkUnit, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		if q.stopped {
			return storage.WorkUnit{}, false
		}

		if n := len(q.items); n > 0 {
			unit := q.items[n-1]
			q.items = q.items[:n-1]
			q.pending++
			return unit, true
		}

		// Nothing queued and nothing in flight: the traversal is finished
		if q.pending == 0 {
			q.cond.Broadcast()
			return storage.WorkUnit{}, false
		}

		q.cond.Wait()
	}
}

// Done marks a popped unit as fully processed. Children must be pushed first.
func (q *Worklist) Done() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.pending--
	if q.pending == 0 && len(q.items) == 0 {
		q.cond.Broadcast()
	}
}

// Size returns the number of queued units
func (q *Worklist) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Stop wakes all waiting workers and makes further Pops fail.
// Queued units are abandoned.
func (q *Worklist) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.stopped = true
	q.cond.Broadcast()
}
