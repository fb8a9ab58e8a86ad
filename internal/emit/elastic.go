package emit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	es8 "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esutil"
	"github.com/sirupsen/logrus"

	"github.com/alvmarrod/trust-weaver/internal/storage"
)

// ElasticConfig selects the cluster and index that receive crawl records
type ElasticConfig struct {
	URL      string
	Username string
	Password string
	Index    string
	RunName  string
}

// ElasticSink bulk-indexes every record as a document tagged with its relation.
// Indexing is best-effort: failures are logged and never returned, and records
// arriving after Close are dropped.
type ElasticSink struct {
	mu      sync.RWMutex
	closed  bool
	bi      esutil.BulkIndexer
	runName string
	log     *logrus.Entry
}

type document struct {
	Run       string `json:"run"`
	Relation  string `json:"relation"`
	Source    string `json:"source,omitempty"`
	Attribute string `json:"attribute,omitempty"`
	Target    string `json:"target,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Detail    string `json:"detail,omitempty"`
	Timestamp string `json:"@timestamp"`
}

// NewElasticSink connects to the cluster and starts a bulk indexer
func NewElasticSink(cfg ElasticConfig, log *logrus.Entry) (*ElasticSink, error) {
	if cfg.URL == "" {
		return nil, errors.New("elasticsearch URL is required")
	}
	index := cfg.Index
	if strings.TrimSpace(index) == "" {
		index = "trust_weaver"
	}

	es, err := es8.NewClient(es8.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	// Lightweight ping
	res, err := es.Info()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to elasticsearch: %w", err)
	}
	res.Body.Close()

	bi, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Client:        es,
		Index:         index,
		FlushInterval: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bulk indexer: %w", err)
	}

	return &ElasticSink{bi: bi, runName: cfg.RunName, log: log}, nil
}

func (s *ElasticSink) add(doc document) error {
	doc.Run = s.runName
	doc.Timestamp = time.Now().UTC().Format(time.RFC3339)

	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.log.Debugf("Elasticsearch sink closed, dropping %s record", doc.Relation)
		return nil
	}

	err = s.bi.Add(context.Background(), esutil.BulkIndexerItem{
		Action: "index",
		Body:   bytes.NewReader(body),
		OnFailure: func(_ context.Context, _ esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
			if err != nil {
				s.log.Warnf("Elasticsearch index failed: %v", err)
				return
			}
			s.log.Warnf("Elasticsearch index failed: %s: %s", res.Error.Type, res.Error.Reason)
		},
	})
	if err != nil {
		s.log.Warnf("Elasticsearch enqueue failed: %v", err)
	}
	return nil
}

func (s *ElasticSink) Edge(e storage.Edge) error {
	return s.add(document{Relation: "edge", Source: e.Source, Attribute: string(e.Attribute), Target: e.Target})
}

func (s *ElasticSink) Redirect(r storage.Redirect) error {
	return s.add(document{Relation: "redirect", Source: r.RequestedURL, Target: r.FinalURL})
}

func (s *ElasticSink) Error(e storage.ErrorRecord) error {
	return s.add(document{Relation: "error", Source: e.Source, Attribute: e.Attribute, Target: e.Target, Kind: string(e.Kind), Detail: e.Detail})
}

// Close flushes pending documents. Only the first call does any work.
func (s *ElasticSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.bi.Close(ctx); err != nil {
		return fmt.Errorf("failed to flush elasticsearch bulk indexer: %w", err)
	}

	stats := s.bi.Stats()
	s.log.Infof("Elasticsearch: %d documents indexed, %d failed", stats.NumFlushed, stats.NumFailed)
	return nil
}
