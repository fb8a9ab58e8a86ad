// Package domain canonicalizes references found in disclosure files into graph
// node identities: a base (registrable) domain, the subdomain labels in front of
// it and an optional path.
package domain

import "strings"

// Name is the canonical identity of a referenced site.
type Name struct {
	Base string
	Sub  string
	Path string
	Port string

	// Opaque holds references with a non-web scheme (mailto:, tel:) verbatim.
	Opaque string
}

// Host returns the full host name (subdomain and base domain) including any port.
func (n Name) Host() string {
	host := n.Base
	if n.Sub != "" {
		host = n.Sub + "." + n.Base
	}
	if n.Port != "" {
		host += ":" + n.Port
	}
	return host
}

// Key is the graph-node key used by the visited set.
func (n Name) Key() string {
	if n.Opaque != "" {
		return n.Opaque
	}
	return n.Base
}

// URL renders the name back into the https form written to the relation files.
func (n Name) URL() string {
	if n.Opaque != "" {
		return n.Opaque
	}
	return "https://" + n.Host() + "/" + n.Path
}

// IsZero reports whether the name carries no host and no opaque reference.
func (n Name) IsZero() bool {
	return n.Base == "" && n.Opaque == ""
}

// IsOpaque reports whether the name is a non-web reference.
func (n Name) IsOpaque() bool {
	return n.Opaque != ""
}

// Apex returns the host with a leading "www." label removed.
func (n Name) Apex() string {
	return strings.TrimPrefix(n.Host(), "www.")
}

func (n Name) String() string {
	return n.URL()
}
