// Package emit writes the edge, redirect and error relations. Sinks are
// append-only and never deduplicate.
package emit

import (
	"errors"

	"github.com/alvmarrod/trust-weaver/internal/storage"
)

// ErrClosed is returned by writes that arrive after Close.
var ErrClosed = errors.New("sink closed")

// Sink receives every record produced by a crawl.
type Sink interface {
	Edge(e storage.Edge) error
	Redirect(r storage.Redirect) error
	Error(e storage.ErrorRecord) error
	Close() error
}

// Multi fans each record out to several sinks.
type Multi []Sink

func (m Multi) Edge(e storage.Edge) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Edge(e))
	}
	return errors.Join(errs...)
}

func (m Multi) Redirect(r storage.Redirect) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Redirect(r))
	}
	return errors.Join(errs...)
}

func (m Multi) Error(e storage.ErrorRecord) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Error(e))
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
