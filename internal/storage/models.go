package storage

import (
	"time"

	"github.com/alvmarrod/trust-weaver/internal/domain"
	"github.com/alvmarrod/trust-weaver/internal/record"
)

// NodeKind classifies a graph node using the reference vendor/chain tables
type NodeKind string

const (
	KindPublisher NodeKind = "publisher"
	KindVendor    NodeKind = "vendor"
	KindChain     NodeKind = "chain"
)

// NodeStatus records what happened when the node's disclosure file was fetched
type NodeStatus string

const (
	StatusDiscovered NodeStatus = "discovered"
	StatusFetched    NodeStatus = "fetched"
	StatusFailed     NodeStatus = "failed"
	StatusExpired    NodeStatus = "expired"
)

// Node represents a base domain in the trust graph
type Node struct {
	NodeID     int
	DomainName string
	URL        string
	Kind       NodeKind
	Status     NodeStatus
	AttrCount  int
	CreatedAt  time.Time
}

// Edge is one attribute line attributed to its source domain
type Edge struct {
	Source    string
	Attribute record.Attribute
	Target    string
}

// Redirect is emitted when the served base domain differs from the requested one
type Redirect struct {
	RequestedURL string
	FinalURL     string
}

// ErrorKind is the per-domain failure taxonomy
type ErrorKind string

const (
	ErrTransportFailure  ErrorKind = "TransportFailure"
	ErrNotPlainText      ErrorKind = "NotPlainText"
	ErrHTTPError         ErrorKind = "HTTPError"
	ErrInvalidAttribute  ErrorKind = "InvalidAttribute"
	ErrNoAttributesFound ErrorKind = "NoAttributesFound"
	ErrRegistrarRedirect ErrorKind = "RegistrarRedirect"
)

// ErrorRecord is one row of the error relation
type ErrorRecord struct {
	Source    string
	Attribute string
	Target    string
	Kind      ErrorKind
	Detail    string
}

// Reason renders the reason column written to the error relation
func (e ErrorRecord) Reason() string {
	if e.Detail == "" {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Detail
}

// WorkUnit is a pending (source, attribute, target) traversal step
type WorkUnit struct {
	Source    domain.Name
	Attribute record.Attribute
	Target    domain.Name
	Depth     int
}

// Metrics tracks crawl statistics for export on exit
type Metrics struct {
	StartTime         time.Time      `json:"start_time"`
	EndTime           time.Time      `json:"end_time"`
	DomainsDiscovered int            `json:"domains_discovered"`
	DomainsFetched    int            `json:"domains_fetched"`
	DomainsFailed     int            `json:"domains_failed"`
	DomainsSkipped    int            `json:"domains_skipped"`
	EdgesRecorded     int            `json:"edges_recorded"`
	RedirectsRecorded int            `json:"redirects_recorded"`
	ErrorsRecorded    int            `json:"errors_recorded"`
	AttributeCounts   map[string]int `json:"attribute_counts"`
	TotalFetchTimeMs  int64          `json:"total_fetch_time_ms"`
	AvgFetchTimeMs    int64          `json:"avg_fetch_time_ms"`
	TerminationReason string         `json:"termination_reason"`
}
