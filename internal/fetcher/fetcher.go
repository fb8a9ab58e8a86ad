// Package fetcher retrieves a domain's disclosure file, walking an ordered list
// of URL variants until one answers.
package fetcher

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/alvmarrod/trust-weaver/internal/domain"
)

// Config controls how disclosure files are requested
type Config struct {
	// Variants are URL templates tried in order. Placeholders: {host}, {apex},
	// {path} and {resource}.
	Variants  []string
	Resource  string
	Timeout   time.Duration
	UserAgent string

	// InsecureSkipVerify disables certificate validation. Many publisher sites
	// serve broken chains; this is a deliberate security exception.
	InsecureSkipVerify bool

	MaxRedirects      int
	RequestsPerSecond float64
}

// ArtifactStore persists the raw body fetched for a domain
type ArtifactStore interface {
	Save(name domain.Name, body []byte) error
}

// Fetcher performs the network retrieval of disclosure files
type Fetcher struct {
	cfg       Config
	transport *http.Transport
	limiter   *rate.Limiter
	artifacts ArtifactStore
	log       *logrus.Entry
}

// New creates a fetcher. artifacts may be nil.
func New(cfg Config, artifacts ArtifactStore, log *logrus.Entry) *Fetcher {
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = 10
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 61 * time.Second
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig:       &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify}, //nolint:gosec // see Config.InsecureSkipVerify
		TLSHandshakeTimeout:   cfg.Timeout,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   2,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: time.Second,
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Fetcher{
		cfg:       cfg,
		transport: transport,
		limiter:   limiter,
		artifacts: artifacts,
		log:       log,
	}
}

// URLs expands the configured variants for target, dropping duplicates
func (f *Fetcher) URLs(target domain.Name) []string {
	path := target.Path
	if path != "" && !strings.HasSuffix(path, "/") {
		path += "/"
	}

	r := strings.NewReplacer(
		"{host}", target.Host(),
		"{apex}", target.Apex(),
		"{path}", path,
		"{resource}", f.cfg.Resource,
	)

	seen := make(map[string]bool, len(f.cfg.Variants))
	urls := make([]string, 0, len(f.cfg.Variants))
	for _, v := range f.cfg.Variants {
		u := r.Replace(v)
		if !seen[u] {
			seen[u] = true
			urls = append(urls, u)
		}
	}
	return urls
}

// Fetch tries each URL variant in order and classifies the result. It falls
// through to the next variant only on a transport exception or a 404. The body
// (or a blank placeholder) is saved as the domain's artifact unless ctx was
// cancelled.
func (f *Fetcher) Fetch(ctx context.Context, target domain.Name) Outcome {
	var out Outcome
	var attempts []Attempt

	for _, u := range f.URLs(target) {
		if f.limiter != nil {
			if err := f.limiter.Wait(ctx); err != nil {
				out = Outcome{Status: StatusException, RequestedURL: u, FinalURL: u, Err: err}
				attempts = append(attempts, Attempt{URL: u, Err: err})
				break
			}
		}

		f.log.Infof("Trying: %s", u)
		out = f.get(ctx, u)
		attempts = append(attempts, Attempt{URL: u, StatusCode: out.StatusCode, Err: out.Err})

		if out.Status == StatusException {
			f.log.Infof("HTTP GET error: %s", out.Detail())
		} else {
			f.log.Infof("HTTP Status Code: %d", out.StatusCode)
		}

		if ctx.Err() != nil {
			out.Attempts = attempts
			return out
		}
		if out.Status != StatusException && out.StatusCode != http.StatusNotFound {
			break
		}
	}

	out.Attempts = attempts

	if f.artifacts != nil && ctx.Err() == nil {
		body := out.Body
		if out.Status != StatusFound {
			body = nil
		}
		if err := f.artifacts.Save(target, body); err != nil {
			f.log.Warnf("Failed to save artifact: %v", err)
		}
	}

	return out
}

// get performs a single request with a fresh collector sharing the transport
func (f *Fetcher) get(ctx context.Context, rawURL string) Outcome {
	out := Outcome{RequestedURL: rawURL, FinalURL: rawURL}

	c := colly.NewCollector(
		colly.UserAgent(f.cfg.UserAgent),
		colly.ParseHTTPErrorResponse(),
		colly.AllowURLRevisit(),
		colly.StdlibContext(ctx),
	)
	c.WithTransport(f.transport)
	c.SetRequestTimeout(f.cfg.Timeout)
	c.SetRedirectHandler(func(req *http.Request, via []*http.Request) error {
		if len(via) >= f.cfg.MaxRedirects {
			return fmt.Errorf("%w after %d redirects", errTooManyRedirects, len(via))
		}
		out.FinalURL = req.URL.String()
		return nil
	})

	c.OnResponse(func(r *colly.Response) {
		out.StatusCode = r.StatusCode
		out.ContentType = r.Headers.Get("Content-Type")
		out.Body = r.Body
	})

	if err := c.Visit(rawURL); err != nil {
		out.Status = StatusException
		out.Err = err
		return out
	}

	out.Status = classify(out.StatusCode, out.ContentType)
	return out
}

var errTooManyRedirects = errors.New("stopped")

func classify(statusCode int, contentType string) Status {
	if statusCode < 200 || statusCode > 299 {
		return StatusNotFound
	}
	if !strings.Contains(strings.ToLower(contentType), "text/plain") {
		return StatusNotFound
	}
	return StatusFound
}
