package emit

import (
	"encoding/csv"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	es8 "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esutil"
	"github.com/sirupsen/logrus"

	"github.com/alvmarrod/trust-weaver/internal/record"
	"github.com/alvmarrod/trust-weaver/internal/storage"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("%s is not valid CSV: %v", path, err)
	}
	return rows
}

func newTestCSVSink(t *testing.T) (*CSVSink, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := NewCSVSink(filepath.Join(dir, "edges.csv"), filepath.Join(dir, "redirects.csv"), filepath.Join(dir, "err.csv"))
	if err != nil {
		t.Fatalf("NewCSVSink() error: %v", err)
	}
	return s, dir
}

func TestCSVSinkWritesRows(t *testing.T) {
	s, dir := newTestCSVSink(t)

	edge := storage.Edge{Source: "https://a.example/", Attribute: record.Member, Target: "https://b.example/"}
	// The same edge twice is legitimate; sinks do not deduplicate
	if err := errors.Join(s.Edge(edge), s.Edge(edge)); err != nil {
		t.Fatal(err)
	}
	if err := s.Redirect(storage.Redirect{RequestedURL: "http://b.example/trust.txt", FinalURL: "https://c.example/trust.txt"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Error(storage.ErrorRecord{Source: "https://a.example/", Attribute: "member", Target: "https://b.example/", Kind: storage.ErrNotPlainText, Detail: "Content type: text/html; charset=UTF-8"}); err != nil {
		t.Fatal(err)
	}

	// Rows are flushed before Close
	edges := readCSV(t, filepath.Join(dir, "edges.csv"))
	if len(edges) != 3 || edges[0][0] != "srcurl" || edges[2][1] != "member" {
		t.Errorf("unexpected edge rows: %v", edges)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	redirects := readCSV(t, filepath.Join(dir, "redirects.csv"))
	if len(redirects) != 2 || redirects[1][1] != "https://c.example/trust.txt" {
		t.Errorf("unexpected redirect rows: %v", redirects)
	}

	errs := readCSV(t, filepath.Join(dir, "err.csv"))
	if len(errs) != 2 || errs[1][3] != "NotPlainText: Content type: text/html; charset=UTF-8" {
		t.Errorf("unexpected error rows: %v", errs)
	}
}

func TestCSVSinkQuotesCommas(t *testing.T) {
	s, dir := newTestCSVSink(t)

	rec := storage.ErrorRecord{Source: "https://a.example/", Attribute: "bogus", Target: "https://x.example/", Kind: storage.ErrInvalidAttribute, Detail: "bogus, at line 3"}
	if err := s.Error(rec); err != nil {
		t.Fatal(err)
	}
	s.Close()

	rows := readCSV(t, filepath.Join(dir, "err.csv"))
	if len(rows[1]) != 4 {
		t.Errorf("comma in reason must not add a column: %v", rows[1])
	}
}

func TestCSVSinkRefusesExistingFiles(t *testing.T) {
	dir := t.TempDir()
	edges := filepath.Join(dir, "edges.csv")
	if err := os.WriteFile(edges, []byte("old\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewCSVSink(edges, filepath.Join(dir, "r.csv"), filepath.Join(dir, "e.csv")); err == nil {
		t.Fatal("expected error for existing edge file")
	}

	data, _ := os.ReadFile(edges)
	if string(data) != "old\n" {
		t.Errorf("existing file modified: %q", data)
	}
}

type countingSink struct {
	edges, redirects, errors, closes int
	fail                            error
}

func (c *countingSink) Edge(storage.Edge) error         { c.edges++; return c.fail }
func (c *countingSink) Redirect(storage.Redirect) error { c.redirects++; return c.fail }
func (c *countingSink) Error(storage.ErrorRecord) error { c.errors++; return c.fail }
func (c *countingSink) Close() error                    { c.closes++; return nil }

func TestMultiFansOut(t *testing.T) {
	boom := errors.New("boom")
	a, b := &countingSink{}, &countingSink{fail: boom}
	m := Multi{a, b}

	if err := m.Edge(storage.Edge{}); !errors.Is(err, boom) {
		t.Errorf("expected boom from second sink, got %v", err)
	}
	m.Redirect(storage.Redirect{})
	m.Error(storage.ErrorRecord{})
	m.Close()

	for _, s := range []*countingSink{a, b} {
		if s.edges != 1 || s.redirects != 1 || s.errors != 1 || s.closes != 1 {
			t.Errorf("sink not reached for every record: %+v", s)
		}
	}
}

func TestNewElasticSinkRequiresURL(t *testing.T) {
	if _, err := NewElasticSink(ElasticConfig{}, nil); err == nil {
		t.Error("expected error without URL")
	}
}

func TestCSVSinkRejectsWritesAfterClose(t *testing.T) {
	s, dir := newTestCSVSink(t)
	if err := s.Edge(storage.Edge{Source: "https://a.example/", Attribute: record.Member, Target: "https://b.example/"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	if err := s.Edge(storage.Edge{Source: "https://late.example/"}); !errors.Is(err, ErrClosed) {
		t.Errorf("Edge after Close = %v, want ErrClosed", err)
	}
	if err := s.Redirect(storage.Redirect{}); !errors.Is(err, ErrClosed) {
		t.Errorf("Redirect after Close = %v, want ErrClosed", err)
	}
	if err := s.Error(storage.ErrorRecord{}); !errors.Is(err, ErrClosed) {
		t.Errorf("Error after Close = %v, want ErrClosed", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() error: %v", err)
	}

	if rows := readCSV(t, filepath.Join(dir, "edges.csv")); len(rows) != 2 {
		t.Errorf("edge rows = %v, want header + 1", rows)
	}
}

func TestElasticSinkDropsRecordsAfterClose(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"errors":false,"items":[]}`)
	}))
	defer srv.Close()

	client, err := es8.NewClient(es8.Config{Addresses: []string{srv.URL}})
	if err != nil {
		t.Fatal(err)
	}
	bi, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{Client: client, Index: "trust_weaver"})
	if err != nil {
		t.Fatal(err)
	}

	l := logrus.New()
	l.SetOutput(io.Discard)
	s := &ElasticSink{bi: bi, runName: "Webcrawl-test", log: logrus.NewEntry(l)}

	if err := s.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	// The indexer's queue is closed; a late record must be dropped, not sent
	if err := s.Edge(storage.Edge{Source: "https://late.example/"}); err != nil {
		t.Errorf("Edge after Close = %v, want nil", err)
	}
	if err := s.Error(storage.ErrorRecord{Source: "https://late.example/"}); err != nil {
		t.Errorf("Error after Close = %v, want nil", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() error: %v", err)
	}
}
