package crawler

import (
	"github.com/alvmarrod/trust-weaver/internal/domain"
)

// RegistrarMatcher recognizes the parking pages domain registrars serve once a
// registration has lapsed. Matching is by base domain so any host of the
// registrar counts.
type RegistrarMatcher struct {
	bases map[string]bool
}

// NewRegistrarMatcher normalizes each registrar host with n
func NewRegistrarMatcher(n *domain.Normalizer, registrars []string) *RegistrarMatcher {
	m := &RegistrarMatcher{bases: make(map[string]bool, len(registrars))}
	for _, r := range registrars {
		name := n.Normalize(r)
		if !name.IsZero() && !name.IsOpaque() {
			m.bases[name.Base] = true
		}
	}
	return m
}

// Match reports whether name belongs to a known registrar
func (m *RegistrarMatcher) Match(name domain.Name) bool {
	return m != nil && m.bases[name.Base]
}

// Len returns the number of registrar base domains
func (m *RegistrarMatcher) Len() int {
	if m == nil {
		return 0
	}
	return len(m.bases)
}
