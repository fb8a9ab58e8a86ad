package crawler

import (
	"sync"

	"github.com/alvmarrod/trust-weaver/internal/domain"
)

// VisitedSet holds the base domains whose disclosure file has been attempted
// in this run, along with the hosts under each base that asked for it.
type VisitedSet struct {
	mu sync.Mutex
	// Map: base domain -> set of hosts seen for it
	hosts map[string]map[string]bool
}

// NewVisitedSet creates an empty visited set
func NewVisitedSet() *VisitedSet {
	return &VisitedSet{
		hosts: make(map[string]map[string]bool),
	}
}

// TryMark atomically tests and marks name's base domain.
// Returns true if the caller now owns the fetch, false if it was already visited.
func (v *VisitedSet) TryMark(name domain.Name) bool {
	key := name.Key()

	v.mu.Lock()
	defer v.mu.Unlock()

	hostSet, exists := v.hosts[key]
	if exists {
		hostSet[name.Host()] = true
		return false
	}

	v.hosts[key] = map[string]bool{name.Host(): true}
	return true
}

// Release forgets name. Only used when a fetch was cancelled before it completed.
func (v *VisitedSet) Release(name domain.Name) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.hosts, name.Key())
}

// Contains reports whether name's base domain has been visited
func (v *VisitedSet) Contains(name domain.Name) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, ok := v.hosts[name.Key()]
	return ok
}

// Len returns the number of visited base domains
func (v *VisitedSet) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.hosts)
}

// HostCount returns how many distinct hosts under base were referenced
func (v *VisitedSet) HostCount(base string) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.hosts[base])
}
