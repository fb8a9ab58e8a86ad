package domain

import (
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Rule decides how many trailing labels of a host make up its base domain.
type Rule interface {
	BaseLabels(labels []string) int
}

// CountryRule keeps three labels when the host ends in a two-letter country code
// (example.co.uk), unless the label three from the end is "www" (www.bbc.uk).
type CountryRule struct {
	countries map[string]bool
}

// NewCountryRule builds the rule from a set of country codes.
func NewCountryRule(countries map[string]bool) *CountryRule {
	return &CountryRule{countries: countries}
}

func (r *CountryRule) BaseLabels(labels []string) int {
	n := len(labels)
	if n > 2 && r.countries[labels[n-1]] && labels[n-3] != "www" {
		return 3
	}
	if n > 1 {
		return 2
	}
	return n
}

// PublicSuffixRule uses the public suffix list compiled into x/net.
type PublicSuffixRule struct{}

func (PublicSuffixRule) BaseLabels(labels []string) int {
	if len(labels) < 2 {
		return len(labels)
	}

	etldPlusOne, err := publicsuffix.EffectiveTLDPlusOne(strings.Join(labels, "."))
	if err != nil {
		return 2
	}
	return strings.Count(etldPlusOne, ".") + 1
}
