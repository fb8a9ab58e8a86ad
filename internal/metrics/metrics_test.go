package metrics

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alvmarrod/trust-weaver/internal/storage"
)

func TestTrackerCounters(t *testing.T) {
	tr := NewTracker()

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.IncrementDomainsDiscovered()
			tr.IncrementDomainsFetched()
			tr.IncrementEdgesRecorded()
			tr.RecordAttribute("member")
		}()
	}
	wg.Wait()

	tr.IncrementDomainsFailed()
	tr.IncrementDomainsSkipped()
	tr.IncrementRedirectsRecorded()
	tr.IncrementErrorsRecorded()
	tr.RecordAttribute("contact")
	tr.RecordFetchTime(100 * time.Millisecond)
	tr.RecordFetchTime(300 * time.Millisecond)

	s := tr.GetSnapshot()
	if s.DomainsDiscovered != 10 || s.DomainsFetched != 10 || s.EdgesRecorded != 10 {
		t.Errorf("snapshot counters = %+v", s)
	}
	if s.DomainsFailed != 1 || s.DomainsSkipped != 1 || s.RedirectsRecorded != 1 || s.ErrorsRecorded != 1 {
		t.Errorf("snapshot counters = %+v", s)
	}
	if s.AttributeCounts["member"] != 10 || s.AttributeCounts["contact"] != 1 {
		t.Errorf("attribute counts = %v", s.AttributeCounts)
	}
	if s.TotalFetchTimeMs != 400 || s.AvgFetchTimeMs != 200 {
		t.Errorf("fetch time total=%d avg=%d", s.TotalFetchTimeMs, s.AvgFetchTimeMs)
	}

	// Snapshots must not alias the live map
	s.AttributeCounts["member"] = 0
	if tr.GetSnapshot().AttributeCounts["member"] != 10 {
		t.Error("snapshot shares attribute map with tracker")
	}
}

func TestWriteToFile(t *testing.T) {
	tr := NewTracker()
	tr.IncrementDomainsFetched()
	tr.RecordAttribute("vendor")

	path := filepath.Join(t.TempDir(), "metrics.json")
	if err := tr.WriteToFile(path, ReasonQueueEmpty); err != nil {
		t.Fatalf("WriteToFile: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	var got storage.Metrics
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("metrics file is not JSON: %v", err)
	}
	if got.TerminationReason != ReasonQueueEmpty {
		t.Errorf("termination reason = %q", got.TerminationReason)
	}
	if got.DomainsFetched != 1 || got.AttributeCounts["vendor"] != 1 {
		t.Errorf("metrics = %+v", got)
	}
	if got.EndTime.Before(got.StartTime) {
		t.Errorf("end %v before start %v", got.EndTime, got.StartTime)
	}
}

func TestSummaries(t *testing.T) {
	tr := NewTracker()
	tr.RecordAttribute("social")
	tr.RecordAttribute("member")
	tr.RecordAttribute("member")
	tr.IncrementEdgesRecorded()

	if got := tr.AttributeSummary(); got != "member=2 social=1" {
		t.Errorf("AttributeSummary = %q", got)
	}
	if got := tr.LogProgress(); !strings.Contains(got, "Edges: 1") {
		t.Errorf("LogProgress = %q", got)
	}
}
