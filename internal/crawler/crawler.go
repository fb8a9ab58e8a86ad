// Package crawler walks the trust graph: it fetches each domain's disclosure
// file once, records what it declares and follows the symmetric links.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/alvmarrod/trust-weaver/internal/domain"
	"github.com/alvmarrod/trust-weaver/internal/emit"
	"github.com/alvmarrod/trust-weaver/internal/fetcher"
	"github.com/alvmarrod/trust-weaver/internal/memory"
	"github.com/alvmarrod/trust-weaver/internal/metrics"
	"github.com/alvmarrod/trust-weaver/internal/record"
	"github.com/alvmarrod/trust-weaver/internal/storage"
)

// ErrOutputFailed ends a crawl when a relation record could not be written.
var ErrOutputFailed = errors.New("relation output failed")

// Fetcher retrieves the disclosure file of one domain
type Fetcher interface {
	Fetch(ctx context.Context, target domain.Name) fetcher.Outcome
}

// DNSProber reports the DNS response code for a host
type DNSProber interface {
	Probe(ctx context.Context, host string) (string, error)
}

// WhoisRecorder collects hosts that could not be reached at all
type WhoisRecorder interface {
	Add(host string) error
}

// Options holds the crawler's optional collaborators
type Options struct {
	Workers    int
	Registrars []string
	Graph      *memory.Graph
	Metrics    *metrics.Tracker
	Whois      WhoisRecorder
	DNS        DNSProber
}

// Crawler orchestrates the traversal
type Crawler struct {
	fetcher    Fetcher
	normalizer *domain.Normalizer
	sink       emit.Sink
	workers    int
	registrars *RegistrarMatcher
	visited    *VisitedSet
	graph      *memory.Graph
	metrics    *metrics.Tracker
	whois      WhoisRecorder
	dns        DNSProber
	abort      context.CancelCauseFunc
	log        *logrus.Entry
}

// NewCrawler creates a crawler. Missing graph and metrics are created empty.
func NewCrawler(f Fetcher, n *domain.Normalizer, sink emit.Sink, opts Options, log *logrus.Entry) *Crawler {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Graph == nil {
		opts.Graph = memory.NewGraph(nil)
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewTracker()
	}

	return &Crawler{
		fetcher:    f,
		normalizer: n,
		sink:       sink,
		workers:    opts.Workers,
		registrars: NewRegistrarMatcher(n, opts.Registrars),
		visited:    NewVisitedSet(),
		graph:      opts.Graph,
		metrics:    opts.Metrics,
		whois:      opts.Whois,
		dns:        opts.DNS,
		abort:      func(error) {},
		log:        log,
	}
}

// Visited exposes the run's visited set
func (c *Crawler) Visited() *VisitedSet {
	return c.visited
}

// Graph returns the in-memory graph the crawler fills
func (c *Crawler) Graph() *memory.Graph {
	return c.graph
}

// Crawl traverses from each root in turn; the first root is the primary
// traversal and the rest are seeds. Domains visited by an earlier root are
// not fetched again. Returns ctx.Err() if the run was cancelled, or an error
// wrapping ErrOutputFailed if a record could not be written.
func (c *Crawler) Crawl(ctx context.Context, roots ...domain.Name) error {
	ctx, abort := context.WithCancelCause(ctx)
	defer abort(nil)
	c.abort = abort

	for i, root := range roots {
		if ctx.Err() != nil {
			return context.Cause(ctx)
		}
		if root.IsZero() || root.IsOpaque() {
			c.log.Warnf("Skipping unusable root %q", root.String())
			continue
		}

		c.log.Infof("Starting traversal %d/%d from %s with %d workers", i+1, len(roots), root.URL(), c.workers)
		c.run(ctx, root)
		c.log.Infof("Traversal from %s finished: %s", root.URL(), c.metrics.LogProgress())
	}
	return context.Cause(ctx)
}

// run drains one traversal with the worker pool
func (c *Crawler) run(ctx context.Context, root domain.Name) {
	q := NewWorklist()
	stop := context.AfterFunc(ctx, q.Stop)
	defer stop()

	c.graph.Upsert(root)
	q.Push(storage.WorkUnit{Source: root, Attribute: record.Self, Target: root})

	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			c.worker(ctx, id, q)
		}(i + 1)
	}
	wg.Wait()
}

// worker processes worklist units until the traversal is drained or stopped
func (c *Crawler) worker(ctx context.Context, id int, q *Worklist) {
	for {
		unit, ok := q.Pop()
		if !ok {
			c.log.Debugf("Worker %d: worklist drained or stopped, exiting", id)
			return
		}

		children := c.process(ctx, unit)
		q.Push(children...)
		q.Done()
	}
}

// shouldFollow reports whether a unit leads to a fetch. Asymmetric attributes
// and self-loops are recorded as edges only.
func shouldFollow(unit storage.WorkUnit) bool {
	if unit.Target.IsZero() || unit.Target.IsOpaque() {
		return false
	}
	if unit.Attribute == record.Self {
		return true
	}
	return unit.Attribute.Symmetric() && unit.Source.Key() != unit.Target.Key()
}

// process runs the per-unit state machine and returns the units to schedule next
func (c *Crawler) process(ctx context.Context, unit storage.WorkUnit) []storage.WorkUnit {
	if !shouldFollow(unit) {
		return nil
	}

	target := unit.Target
	if !c.visited.TryMark(target) {
		c.log.Infof("%s previously fetched", target.URL())
		c.metrics.IncrementDomainsSkipped()
		return nil
	}

	c.log.Infof("BEGIN: %s (from %s via %s, depth %d)", target.URL(), unit.Source.URL(), unit.Attribute, unit.Depth)

	start := time.Now()
	out := c.fetcher.Fetch(ctx, target)
	c.metrics.RecordFetchTime(time.Since(start))

	if ctx.Err() != nil {
		// Interrupted mid-fetch: leave the domain unvisited and emit nothing
		c.visited.Release(target)
		return nil
	}

	if !out.Found() {
		c.fetchFailed(ctx, unit, out)
		return nil
	}

	if c.redirected(unit, out) {
		return nil
	}

	return c.parse(unit, out.Body)
}

// fetchFailed records one error for a domain whose file could not be retrieved
func (c *Crawler) fetchFailed(ctx context.Context, unit storage.WorkUnit, out fetcher.Outcome) {
	kind, detail := out.Failure()

	if out.Exception() {
		host := unit.Target.Host()
		if c.whois != nil {
			if err := c.whois.Add(host); err != nil {
				c.log.Warnf("Failed to add %s to whois list: %v", host, err)
			}
		}
		if c.dns != nil {
			if rcode, err := c.dns.Probe(ctx, host); err != nil {
				c.log.Debugf("DNS probe for %s failed: %v", host, err)
			} else if rcode != "NOERROR" {
				detail += " (DNS " + rcode + ")"
			}
		}
	}

	c.metrics.IncrementDomainsFailed()
	c.graph.SetStatus(unit.Target, storage.StatusFailed, 0)
	c.emitError(storage.ErrorRecord{
		Source:    unit.Source.URL(),
		Attribute: string(unit.Attribute),
		Target:    unit.Target.URL(),
		Kind:      kind,
		Detail:    detail,
	})
	c.log.Infof("END: %s, %s", unit.Target.URL(), detail)
}

// redirected emits a redirect record when the served base domain differs from
// the requested one. Returns true if the branch ends at a registrar parking page.
func (c *Crawler) redirected(unit storage.WorkUnit, out fetcher.Outcome) bool {
	if out.FinalURL == "" || out.FinalURL == out.RequestedURL {
		return false
	}

	requested := c.normalizer.Normalize(out.RequestedURL)
	final := c.normalizer.Normalize(out.FinalURL)
	if requested.Key() == final.Key() {
		return false
	}

	c.log.Infof("Redirected: %s -> %s", out.RequestedURL, out.FinalURL)
	c.metrics.IncrementRedirectsRecorded()
	r := storage.Redirect{RequestedURL: out.RequestedURL, FinalURL: out.FinalURL}
	c.graph.AddRedirect(r)
	if err := c.sink.Redirect(r); err != nil {
		c.outputFailed("redirect", err)
	}

	if !c.registrars.Match(final) {
		return false
	}

	c.metrics.IncrementDomainsFailed()
	c.graph.SetStatus(unit.Target, storage.StatusExpired, 0)
	c.emitError(storage.ErrorRecord{
		Source:    unit.Source.URL(),
		Attribute: string(unit.Attribute),
		Target:    unit.Target.URL(),
		Kind:      storage.ErrRegistrarRedirect,
		Detail:    "registration expired",
	})
	c.log.Infof("END: %s, registration expired (parked at %s)", unit.Target.URL(), final.Base)
	return true
}

// parse records every entry of a found file and returns the symmetric children
func (c *Crawler) parse(unit storage.WorkUnit, body []byte) []storage.WorkUnit {
	source := unit.Target
	counts := make(map[record.Attribute]int)
	var children []storage.WorkUnit

	for entry := range record.Entries(body) {
		if !entry.Valid() {
			c.emitError(storage.ErrorRecord{
				Source:    source.URL(),
				Attribute: string(entry.Attribute),
				Target:    entry.Reference,
				Kind:      storage.ErrInvalidAttribute,
				Detail:    fmt.Sprintf("line %d", entry.Line),
			})
			continue
		}

		ref := c.normalizer.Normalize(entry.Reference)
		if ref.IsZero() {
			continue
		}
		counts[entry.Attribute]++

		e := storage.Edge{Source: source.URL(), Attribute: entry.Attribute, Target: ref.URL()}
		if c.graph.AddEdge(source, e, ref) {
			c.metrics.IncrementDomainsDiscovered()
		}
		c.metrics.IncrementEdgesRecorded()
		c.metrics.RecordAttribute(string(entry.Attribute))
		if err := c.sink.Edge(e); err != nil {
			c.outputFailed("edge", err)
		}

		if entry.Attribute.Symmetric() {
			children = append(children, storage.WorkUnit{
				Source:    source,
				Attribute: entry.Attribute,
				Target:    ref,
				Depth:     unit.Depth + 1,
			})
		}
	}

	total := 0
	for _, attr := range record.All() {
		if n := counts[attr]; n > 0 {
			total += n
			c.log.Debugf("%s: %s = %d", source.URL(), attr, n)
		}
	}

	if total == 0 {
		c.metrics.IncrementDomainsFailed()
		c.graph.SetStatus(source, storage.StatusFailed, 0)
		c.emitError(storage.ErrorRecord{
			Source:    unit.Source.URL(),
			Attribute: string(unit.Attribute),
			Target:    source.URL(),
			Kind:      storage.ErrNoAttributesFound,
		})
	} else {
		c.metrics.IncrementDomainsFetched()
		c.graph.SetStatus(source, storage.StatusFetched, total)
	}

	c.log.Infof("END: %s, number of attributes found = %d", source.URL(), total)
	return children
}

func (c *Crawler) emitError(e storage.ErrorRecord) {
	c.metrics.IncrementErrorsRecorded()
	c.graph.AddError(e)
	if err := c.sink.Error(e); err != nil {
		c.outputFailed("error record", err)
	}
}

// outputFailed logs err and cancels the crawl with ErrOutputFailed
func (c *Crawler) outputFailed(what string, err error) {
	c.log.Errorf("Failed to write %s, stopping crawl: %v", what, err)
	c.abort(fmt.Errorf("%w: %w", ErrOutputFailed, err))
}
