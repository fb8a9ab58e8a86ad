// Package refdata holds the static lookup tables the crawler consults: country
// codes for base-domain extraction, registrar parking hosts, known vendors and
// media chains. Tables are loaded once at startup and never mutated.
package refdata

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// Tables is the decoded reference data file.
type Tables struct {
	CountryTLDs []string          `yaml:"country_tlds"`
	Registrars  []string          `yaml:"registrars"`
	Vendors     []string          `yaml:"vendors"`
	MediaChains map[string]string `yaml:"media_chains"`
}

// Default returns the tables embedded in the binary.
func Default() (*Tables, error) {
	return Parse(defaultYAML)
}

// Load reads tables from path, or returns the embedded defaults when path is empty.
func Load(path string) (*Tables, error) {
	if path == "" {
		return Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read reference data: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML reference data and lower-cases every entry.
func Parse(data []byte) (*Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse reference data YAML: %w", err)
	}

	if len(t.CountryTLDs) == 0 {
		return nil, fmt.Errorf("reference data has no country_tlds")
	}

	t.CountryTLDs = lowerAll(t.CountryTLDs)
	t.Registrars = lowerAll(t.Registrars)
	t.Vendors = lowerAll(t.Vendors)

	return &t, nil
}

// CountrySet returns the country codes as a lookup set.
func (t *Tables) CountrySet() map[string]bool {
	set := make(map[string]bool, len(t.CountryTLDs))
	for _, cc := range t.CountryTLDs {
		set[cc] = true
	}
	return set
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
