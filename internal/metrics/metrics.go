package metrics

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/alvmarrod/trust-weaver/internal/storage"
)

// Termination reasons written to the metrics file
const (
	ReasonQueueEmpty   = "queue_empty"
	ReasonSignal       = "signal"
	ReasonForcedExit   = "forced_exit"
	ReasonOutputFailed = "output_failed"
)

// Tracker holds and manages crawl metrics
type Tracker struct {
	mu               sync.Mutex
	data             storage.Metrics
	totalFetchTimeMs int64
	fetchCount       int
}

// NewTracker creates a new metrics tracker
func NewTracker() *Tracker {
	return &Tracker{
		data: storage.Metrics{
			StartTime:       time.Now(),
			AttributeCounts: make(map[string]int),
		},
	}
}

// IncrementDomainsDiscovered counts a domain seen for the first time as a target
func (t *Tracker) IncrementDomainsDiscovered() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.DomainsDiscovered++
}

// IncrementDomainsFetched counts a disclosure file that was found
func (t *Tracker) IncrementDomainsFetched() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.DomainsFetched++
}

// IncrementDomainsFailed counts a domain whose fetch did not yield a file
func (t *Tracker) IncrementDomainsFailed() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.DomainsFailed++
}

// IncrementDomainsSkipped counts units dropped because the target was already visited
func (t *Tracker) IncrementDomainsSkipped() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.DomainsSkipped++
}

// IncrementEdgesRecorded increments the edges counter
func (t *Tracker) IncrementEdgesRecorded() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.EdgesRecorded++
}

// IncrementRedirectsRecorded increments the redirects counter
func (t *Tracker) IncrementRedirectsRecorded() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.RedirectsRecorded++
}

// IncrementErrorsRecorded increments the errors counter
func (t *Tracker) IncrementErrorsRecorded() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.ErrorsRecorded++
}

// RecordAttribute counts one edge of the given attribute
func (t *Tracker) RecordAttribute(attr string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.AttributeCounts[attr]++
}

// RecordFetchTime records a fetch duration
func (t *Tracker) RecordFetchTime(duration time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.totalFetchTimeMs += duration.Milliseconds()
	t.fetchCount++
}

// GetSnapshot returns a copy of current metrics
func (t *Tracker) GetSnapshot() storage.Metrics {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Tracker) snapshotLocked() storage.Metrics {
	snapshot := t.data
	snapshot.AttributeCounts = make(map[string]int, len(t.data.AttributeCounts))
	for k, v := range t.data.AttributeCounts {
		snapshot.AttributeCounts[k] = v
	}
	snapshot.TotalFetchTimeMs = t.totalFetchTimeMs

	if t.fetchCount > 0 {
		snapshot.AvgFetchTimeMs = t.totalFetchTimeMs / int64(t.fetchCount)
	}
	return snapshot
}

// WriteToFile exports metrics to a JSON file
func (t *Tracker) WriteToFile(path, reason string) error {
	t.mu.Lock()
	t.data.EndTime = time.Now()
	t.data.TerminationReason = reason
	snapshot := t.snapshotLocked()
	t.mu.Unlock()

	jsonData, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}

	return nil
}

// LogProgress formats current metrics for periodic progress lines
func (t *Tracker) LogProgress() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return fmt.Sprintf("Domains: %d discovered, %d fetched, %d failed, %d skipped | Edges: %d | Redirects: %d | Errors: %d",
		t.data.DomainsDiscovered,
		t.data.DomainsFetched,
		t.data.DomainsFailed,
		t.data.DomainsSkipped,
		t.data.EdgesRecorded,
		t.data.RedirectsRecorded,
		t.data.ErrorsRecorded,
	)
}

// AttributeSummary renders the per-attribute edge counts as "attr=n" pairs in name order
func (t *Tracker) AttributeSummary() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	names := make([]string, 0, len(t.data.AttributeCounts))
	for name := range t.data.AttributeCounts {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s=%d", name, t.data.AttributeCounts[name])
	}
	return strings.Join(parts, " ")
}
