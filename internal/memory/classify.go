package memory

import (
	"github.com/alvmarrod/trust-weaver/internal/storage"
)

// Classifier tags base domains as vendors, media chains or plain publishers
type Classifier struct {
	vendors map[string]bool
	chains  map[string]bool
}

// NewClassifier builds a classifier from base-domain lists
func NewClassifier(vendors, chains []string) *Classifier {
	c := &Classifier{
		vendors: make(map[string]bool, len(vendors)),
		chains:  make(map[string]bool, len(chains)),
	}
	for _, v := range vendors {
		c.vendors[v] = true
	}
	for _, ch := range chains {
		c.chains[ch] = true
	}
	return c
}

// Kind returns the node kind for a base domain. A nil classifier says publisher.
func (c *Classifier) Kind(base string) storage.NodeKind {
	switch {
	case c == nil:
		return storage.KindPublisher
	case c.vendors[base]:
		return storage.KindVendor
	case c.chains[base]:
		return storage.KindChain
	default:
		return storage.KindPublisher
	}
}
