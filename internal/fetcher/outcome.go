package fetcher

import (
	"errors"
	"fmt"
	"net"

	"github.com/alvmarrod/trust-weaver/internal/storage"
)

// Status is the logical result of fetching a disclosure file
type Status int

const (
	// StatusFound means a 2xx text/plain response
	StatusFound Status = iota
	// StatusNotFound covers non-2xx responses and wrong content types
	StatusNotFound
	// StatusException means no HTTP response was obtained
	StatusException
)

func (s Status) String() string {
	switch s {
	case StatusFound:
		return "found"
	case StatusNotFound:
		return "not-found"
	case StatusException:
		return "exception"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Attempt records one URL variant that was tried
type Attempt struct {
	URL        string
	StatusCode int
	Err        error
}

// Outcome is the result of the last attempt made for a domain
type Outcome struct {
	Status       Status
	Body         []byte
	RequestedURL string
	FinalURL     string
	StatusCode   int
	ContentType  string
	Err          error
	Attempts     []Attempt
}

func (o Outcome) Found() bool     { return o.Status == StatusFound }
func (o Outcome) Exception() bool { return o.Status == StatusException }

// Failure maps a non-found outcome onto the error taxonomy
func (o Outcome) Failure() (storage.ErrorKind, string) {
	switch {
	case o.Status == StatusException:
		return storage.ErrTransportFailure, o.Detail()
	case o.StatusCode < 200 || o.StatusCode > 299:
		return storage.ErrHTTPError, o.Detail()
	default:
		return storage.ErrNotPlainText, o.Detail()
	}
}

// Detail is the human-readable reason written to the error relation and run log
func (o Outcome) Detail() string {
	switch {
	case o.Status == StatusException:
		return exceptionDetail(o.Err)
	case o.StatusCode < 200 || o.StatusCode > 299:
		return fmt.Sprintf("HTTP Status Code: %d", o.StatusCode)
	case o.Status == StatusNotFound:
		return "Content type: " + o.ContentType
	default:
		return ""
	}
}

func exceptionDetail(err error) string {
	if err == nil {
		return "HTTP GET exception occurred"
	}

	var netErr net.Error
	switch {
	case errors.Is(err, errTooManyRedirects):
		return "HTTP GET too many redirects exception occurred: " + err.Error()
	case errors.As(err, &netErr) && netErr.Timeout():
		return "HTTP GET time out exception occurred: " + err.Error()
	default:
		return "HTTP GET connection error exception occurred: " + err.Error()
	}
}
