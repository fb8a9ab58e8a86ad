package emit

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/alvmarrod/trust-weaver/internal/storage"
)

var (
	edgeHeader     = []string{"srcurl", "attr", "refurl"}
	redirectHeader = []string{"requrl", "finalurl"}
	errorHeader    = []string{"srcurl", "attr", "refurl", "error"}
)

// csvFile is one relation file. Each row is flushed as soon as it is written
// so an interrupted run leaves a valid prefix.
type csvFile struct {
	f *os.File
	w *csv.Writer
}

func createCSV(path string, header []string) (*csvFile, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}

	c := &csvFile{f: f, w: csv.NewWriter(f)}
	if err := c.write(header); err != nil {
		f.Close()
		return nil, err
	}
	return c, nil
}

func (c *csvFile) write(row []string) error {
	if err := c.w.Write(row); err != nil {
		return err
	}
	c.w.Flush()
	return c.w.Error()
}

func (c *csvFile) close() error {
	c.w.Flush()
	return errors.Join(c.w.Error(), c.f.Close())
}

// CSVSink writes the three relations to their own files. Writes after Close
// fail with ErrClosed.
type CSVSink struct {
	mu        sync.Mutex
	closed    bool
	edges     *csvFile
	redirects *csvFile
	errors    *csvFile
}

// NewCSVSink creates the relation files with their header rows. The files
// must not exist yet.
func NewCSVSink(edgesPath, redirectsPath, errorsPath string) (*CSVSink, error) {
	edges, err := createCSV(edgesPath, edgeHeader)
	if err != nil {
		return nil, err
	}

	redirects, err := createCSV(redirectsPath, redirectHeader)
	if err != nil {
		edges.close()
		return nil, err
	}

	errs, err := createCSV(errorsPath, errorHeader)
	if err != nil {
		edges.close()
		redirects.close()
		return nil, err
	}

	return &CSVSink{edges: edges, redirects: redirects, errors: errs}, nil
}

func (s *CSVSink) Edge(e storage.Edge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return s.edges.write([]string{e.Source, string(e.Attribute), e.Target})
}

func (s *CSVSink) Redirect(r storage.Redirect) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return s.redirects.write([]string{r.RequestedURL, r.FinalURL})
}

func (s *CSVSink) Error(e storage.ErrorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return s.errors.write([]string{e.Source, e.Attribute, e.Target, e.Reason()})
}

func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return errors.Join(s.edges.close(), s.redirects.close(), s.errors.close())
}
