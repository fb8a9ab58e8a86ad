package crawler

import (
	"sync"
	"testing"
	"time"

	"github.com/alvmarrod/trust-weaver/internal/domain"
	"github.com/alvmarrod/trust-weaver/internal/refdata"
	"github.com/alvmarrod/trust-weaver/internal/storage"
)

func queued(base string) storage.WorkUnit {
	return storage.WorkUnit{Target: domain.Name{Base: base}}
}

func TestWorklistDepthFirstOrder(t *testing.T) {
	q := NewWorklist()
	q.Push(queued("root"))

	var order []string
	for {
		u, ok := q.Pop()
		if !ok {
			break
		}
		order = append(order, u.Target.Base)

		switch u.Target.Base {
		case "root":
			q.Push(queued("a"), queued("b"))
		case "a":
			q.Push(queued("a1"), queued("a2"))
		}
		q.Done()
	}

	want := []string{"root", "a", "a1", "a2", "b"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestWorklistWaitsForPendingUnits(t *testing.T) {
	q := NewWorklist()
	q.Push(queued("root"))

	first, _ := q.Pop()

	// A second worker must block while root is still being processed
	got := make(chan string, 1)
	go func() {
		u, ok := q.Pop()
		if !ok {
			got <- ""
			return
		}
		got <- u.Target.Base
		q.Done()
	}()

	select {
	case <-got:
		t.Fatal("Pop returned while a unit was still pending")
	case <-time.After(50 * time.Millisecond):
	}

	q.Push(queued("child"))
	q.Done()
	if first.Target.Base != "root" {
		t.Errorf("first = %s", first.Target.Base)
	}

	select {
	case base := <-got:
		if base != "child" {
			t.Errorf("second worker got %q, want child", base)
		}
	case <-time.After(time.Second):
		t.Fatal("second worker never woke up")
	}

	if _, ok := q.Pop(); ok {
		t.Error("drained worklist should report false")
	}
}

func TestWorklistStop(t *testing.T) {
	q := NewWorklist()
	q.Push(queued("a"))
	q.Pop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, ok := q.Pop(); ok {
			t.Error("Pop after Stop should fail")
		}
	}()

	time.Sleep(20 * time.Millisecond)
	q.Stop()
	wg.Wait()

	if q.Push(queued("b")) {
		t.Error("Push after Stop should be rejected")
	}
}

func TestVisitedSetConcurrentMark(t *testing.T) {
	v := NewVisitedSet()
	name := domain.Name{Base: "a.example", Sub: "www"}

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if v.TryMark(name) {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if winners != 1 {
		t.Errorf("TryMark succeeded %d times, want 1", winners)
	}

	v.TryMark(domain.Name{Base: "a.example"})
	if v.HostCount("a.example") != 2 {
		t.Errorf("host count = %d, want 2", v.HostCount("a.example"))
	}

	v.Release(name)
	if v.Contains(name) || v.Len() != 0 {
		t.Error("Release should forget the base domain")
	}
}

func TestRegistrarMatcher(t *testing.T) {
	tables, err := refdata.Default()
	if err != nil {
		t.Fatal(err)
	}
	n := domain.NewNormalizer(domain.NewCountryRule(tables.CountrySet()))
	m := NewRegistrarMatcher(n, tables.Registrars)

	if m.Len() != len(tables.Registrars) {
		t.Errorf("Len = %d, want %d", m.Len(), len(tables.Registrars))
	}

	tests := []struct {
		url  string
		want bool
	}{
		{"https://www.hugedomains.com/domain_profile.cfm?d=x.com", true},
		{"https://hugedomains.com/", true},
		{"https://www.123-reg.co.uk/", true},
		{"https://www.example.com/", false},
		{"https://godaddy.example/", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			if got := m.Match(n.Normalize(tt.url)); got != tt.want {
				t.Errorf("Match(%s) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}

	var none *RegistrarMatcher
	if none.Match(n.Normalize("www.godaddy.com")) {
		t.Error("nil matcher must not match")
	}
}
