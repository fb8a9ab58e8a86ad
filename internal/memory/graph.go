package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alvmarrod/trust-weaver/internal/domain"
	"github.com/alvmarrod/trust-weaver/internal/storage"
	"github.com/sirupsen/logrus"
)

// edgeRef points into the node arena; to is -1 for opaque targets
type edgeRef struct {
	from int
	to   int
	edge storage.Edge
}

// Graph holds every discovered Domain in an arena indexed by canonical key,
// along with the relations recorded against them during the run
type Graph struct {
	mu         sync.RWMutex
	nodes      []storage.Node // arena; NodeID == index+1
	index      map[string]int // canonical key -> arena index
	edges      []edgeRef
	redirects  []storage.Redirect
	errors     []storage.ErrorRecord
	classifier *Classifier
}

// NewGraph creates a new in-memory graph. classifier may be nil.
func NewGraph(classifier *Classifier) *Graph {
	return &Graph{
		index:      make(map[string]int),
		classifier: classifier,
	}
}

// Upsert returns the arena id of name, creating the node on first sight
func (g *Graph) Upsert(name domain.Name) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.upsertLocked(name)
}

func (g *Graph) upsertLocked(name domain.Name) int {
	key := name.Key()
	if idx, ok := g.index[key]; ok {
		return idx + 1
	}

	node := storage.Node{
		NodeID:     len(g.nodes) + 1,
		DomainName: key,
		URL:        name.URL(),
		Kind:       g.classifier.Kind(key),
		Status:     storage.StatusDiscovered,
		CreatedAt:  time.Now(),
	}
	g.nodes = append(g.nodes, node)
	g.index[key] = len(g.nodes) - 1

	return node.NodeID
}

// Get returns a copy of the node for name
func (g *Graph) Get(name domain.Name) (storage.Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	idx, ok := g.index[name.Key()]
	if !ok {
		return storage.Node{}, false
	}
	return g.nodes[idx], true
}

// SetStatus records the fetch outcome of a node
func (g *Graph) SetStatus(name domain.Name, status storage.NodeStatus, attrCount int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := g.upsertLocked(name)
	g.nodes[id-1].Status = status
	g.nodes[id-1].AttrCount = attrCount
}

// AddEdge records source -attr-> target and reports whether target was new.
// Opaque targets get no node.
func (g *Graph) AddEdge(source domain.Name, e storage.Edge, target domain.Name) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	ref := edgeRef{from: g.upsertLocked(source) - 1, to: -1, edge: e}
	created := false
	if !target.IsOpaque() && !target.IsZero() {
		_, seen := g.index[target.Key()]
		created = !seen
		ref.to = g.upsertLocked(target) - 1
	}
	g.edges = append(g.edges, ref)
	return created
}

// AddRedirect records a redirect
func (g *Graph) AddRedirect(r storage.Redirect) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.redirects = append(g.redirects, r)
}

// AddError records an error
func (g *Graph) AddError(e storage.ErrorRecord) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.errors = append(g.errors, e)
}

// GetStats returns current graph statistics
func (g *Graph) GetStats() (nodeCount, edgeCount int) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return len(g.nodes), len(g.edges)
}

// Flush writes all in-memory data to the SQL store in one transaction
func (g *Graph) Flush(ctx context.Context, store *storage.Store, log *logrus.Entry) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	startTime := time.Now()
	log.Info("Starting flush to database...")

	err := store.InTx(ctx, func(tx *storage.Store) error {
		// Arena index -> DB id
		dbIDs := make([]int, len(g.nodes))
		for i, node := range g.nodes {
			id, err := tx.UpsertNode(ctx, node)
			if err != nil {
				return fmt.Errorf("flush node %s: %w", node.DomainName, err)
			}
			dbIDs[i] = id
		}

		for _, ref := range g.edges {
			to := 0
			if ref.to >= 0 {
				to = dbIDs[ref.to]
			}
			if err := tx.UpsertEdge(ctx, dbIDs[ref.from], to, ref.edge); err != nil {
				return fmt.Errorf("flush edge %s -> %s: %w", ref.edge.Source, ref.edge.Target, err)
			}
		}

		for _, r := range g.redirects {
			if err := tx.InsertRedirect(ctx, r); err != nil {
				return err
			}
		}

		for _, e := range g.errors {
			if err := tx.InsertError(ctx, e); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Infof("Flush complete: %d nodes, %d edges, %d redirects, %d errors written in %v",
		len(g.nodes), len(g.edges), len(g.redirects), len(g.errors), time.Since(startTime))

	return nil
}
