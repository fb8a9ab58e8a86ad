package output

import (
	"fmt"
	"os"
	"sync"
)

// WhoisList collects hosts whose fetch failed at the transport level, one per
// line, so they can be checked for lapsed registrations.
type WhoisList struct {
	mu   sync.Mutex
	f    *os.File
	seen map[string]bool
}

// OpenWhoisList creates the list file at path.
func OpenWhoisList(path string) (*WhoisList, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open whois list: %w", err)
	}
	return &WhoisList{f: f, seen: make(map[string]bool)}, nil
}

// Add appends host once.
func (w *WhoisList) Add(host string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.seen[host] {
		return nil
	}
	w.seen[host] = true

	_, err := fmt.Fprintln(w.f, host)
	return err
}

func (w *WhoisList) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.f.Close()
}
