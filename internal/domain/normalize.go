package domain

import (
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

// Schemes whose references have no host component.
var opaqueSchemes = map[string]bool{
	"mailto": true,
	"tel":    true,
	"sms":    true,
	"fax":    true,
	"callto": true,
}

// Normalizer maps raw references to canonical Names.
type Normalizer struct {
	rule Rule
}

// NewNormalizer creates a normalizer using the given base-domain rule.
func NewNormalizer(rule Rule) *Normalizer {
	return &Normalizer{rule: rule}
}

// Normalize never fails: input that cannot be parsed as a URL is split by hand,
// and input with no recognizable host becomes the base domain as-is.
func (n *Normalizer) Normalize(raw string) Name {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Name{}
	}

	if scheme, rest, ok := strings.Cut(s, ":"); ok && opaqueSchemes[strings.ToLower(scheme)] {
		return Name{Opaque: strings.ToLower(scheme) + ":" + rest}
	}

	host, port, path := splitURL(s)
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if host == "" {
		return Name{Base: strings.ToLower(strings.Trim(stripScheme(s), "/"))}
	}

	if ascii, err := idna.ToASCII(host); err == nil {
		host = ascii
	}

	labels := strings.Split(host, ".")
	keep := n.rule.BaseLabels(labels)
	if keep < 1 || keep > len(labels) {
		keep = len(labels)
	}

	return Name{
		Base: strings.Join(labels[len(labels)-keep:], "."),
		Sub:  strings.Join(labels[:len(labels)-keep], "."),
		Path: path,
		Port: port,
	}
}

// splitURL returns host, port and path (without its leading slash). A string
// without a scheme is treated as host[/path].
func splitURL(s string) (host, port, path string) {
	candidate := s
	if !strings.Contains(s, "://") {
		candidate = "http://" + strings.TrimPrefix(s, "//")
	}

	u, err := url.Parse(candidate)
	if err != nil || u.Host == "" {
		rest := stripScheme(s)
		rest, _, _ = strings.Cut(rest, "?")
		rest, _, _ = strings.Cut(rest, "#")
		host, path, _ = strings.Cut(rest, "/")
		if h, p, ok := strings.Cut(host, ":"); ok {
			host, port = h, p
		}
		return host, port, path
	}

	return u.Hostname(), u.Port(), strings.TrimPrefix(u.Path, "/")
}

func stripScheme(s string) string {
	if _, rest, ok := strings.Cut(s, "://"); ok {
		return rest
	}
	return s
}
