package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// Base-domain rules accepted by base_domain_rule
const (
	RuleCountryTLD   = "country-tld"
	RulePublicSuffix = "public-suffix"
)

// DefaultUserAgent is a desktop browser string; several publisher sites answer 403 to anything else
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:93.0) Gecko/20100101 Firefox/93.0"

// DefaultFetchVariants is the fallback order tried for each domain
var DefaultFetchVariants = []string{
	"http://{host}/{path}{resource}",
	"http://{host}/.well-known/{resource}",
}

// Config holds all runtime configuration parameters
type Config struct {
	RootURL            string   `json:"root_url"`
	OutputRoot         string   `json:"output_root"`
	RunNamePrefix      string   `json:"run_name_prefix"`
	RunNameLayout      string   `json:"run_name_layout"`
	ResourceName       string   `json:"resource_name"`
	FetchVariants      []string `json:"fetch_variants"`
	ConcurrentWorkers  int      `json:"concurrent_workers"`
	RequestTimeoutMs   int      `json:"request_timeout_ms"`
	RequestsPerSecond  float64  `json:"requests_per_second"`
	UserAgent          string   `json:"user_agent"`
	InsecureSkipVerify *bool    `json:"insecure_skip_verify"`
	MaxRedirects       int      `json:"max_redirects"`
	ReferenceDataPath  string   `json:"reference_data_path"`
	SeedsPath          string   `json:"seeds_path"`
	BaseDomainRule     string   `json:"base_domain_rule"`
	DBDriver           string   `json:"db_driver"`
	DBDSN              string   `json:"db_dsn"`
	DNSServer          string   `json:"dns_server"`
	DNSTimeoutMs       int      `json:"dns_timeout_ms"`
	ElasticURL         string   `json:"elastic_url"`
	ElasticIndex       string   `json:"elastic_index"`
	ElasticUsername    string   `json:"elastic_username"`
	ElasticPassword    string   `json:"elastic_password"`
	MetricsFile        string   `json:"metrics_file"`
}

// LoadConfig reads and validates configuration from a JSON file.
// A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	file, err := os.Open(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("failed to open config file: %w", err)
	default:
		defer file.Close()
		decoder := json.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}

	// Apply defaults for missing values
	ApplyDefaults(&cfg)

	// Validate configuration
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// ApplyDefaults sets default values for unspecified fields
func ApplyDefaults(cfg *Config) {
	if cfg.RootURL == "" {
		cfg.RootURL = "www.journallist.net"
	}
	if cfg.OutputRoot == "" {
		cfg.OutputRoot = "."
	}
	if cfg.RunNamePrefix == "" {
		cfg.RunNamePrefix = "Webcrawl-"
	}
	if cfg.RunNameLayout == "" {
		cfg.RunNameLayout = "2006-01-02"
	}
	if cfg.ResourceName == "" {
		cfg.ResourceName = "trust.txt"
	}
	if len(cfg.FetchVariants) == 0 {
		cfg.FetchVariants = append([]string(nil), DefaultFetchVariants...)
	}
	if cfg.ConcurrentWorkers == 0 {
		cfg.ConcurrentWorkers = 1
	}
	if cfg.RequestTimeoutMs == 0 {
		cfg.RequestTimeoutMs = 61000
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.InsecureSkipVerify == nil {
		skip := true
		cfg.InsecureSkipVerify = &skip
	}
	if cfg.MaxRedirects == 0 {
		cfg.MaxRedirects = 10
	}
	if cfg.BaseDomainRule == "" {
		cfg.BaseDomainRule = RuleCountryTLD
	}
	if cfg.DBDriver == "" {
		cfg.DBDriver = "sqlite3"
	}
	if cfg.DNSTimeoutMs == 0 {
		cfg.DNSTimeoutMs = 3000
	}
	if cfg.ElasticIndex == "" {
		cfg.ElasticIndex = "trust_weaver"
	}
	if cfg.MetricsFile == "" {
		cfg.MetricsFile = "metrics.json"
	}
}

// Validate checks that required fields are present and values are sensible
func Validate(cfg *Config) error {
	if strings.TrimSpace(cfg.RootURL) == "" {
		return fmt.Errorf("root_url is required")
	}
	if cfg.ConcurrentWorkers < 1 {
		return fmt.Errorf("concurrent_workers must be >= 1")
	}
	if cfg.RequestTimeoutMs < 1000 {
		return fmt.Errorf("request_timeout_ms must be >= 1000")
	}
	if cfg.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second must be >= 0")
	}
	if cfg.MaxRedirects < 1 {
		return fmt.Errorf("max_redirects must be >= 1")
	}
	if strings.ContainsAny(cfg.ResourceName, "/\\") {
		return fmt.Errorf("resource_name must be a bare file name")
	}
	for _, v := range cfg.FetchVariants {
		if !strings.Contains(v, "{host}") && !strings.Contains(v, "{apex}") {
			return fmt.Errorf("fetch variant %q has no {host} or {apex} placeholder", v)
		}
	}
	switch cfg.BaseDomainRule {
	case RuleCountryTLD, RulePublicSuffix:
	default:
		return fmt.Errorf("base_domain_rule must be %q or %q", RuleCountryTLD, RulePublicSuffix)
	}
	switch cfg.DBDriver {
	case "sqlite3", "postgres", "none":
	default:
		return fmt.Errorf("db_driver must be sqlite3, postgres or none")
	}
	if cfg.DBDriver == "postgres" && cfg.DBDSN == "" {
		return fmt.Errorf("db_dsn is required for postgres")
	}
	return nil
}

// RequestTimeout returns the per-request timeout
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMs) * time.Millisecond
}

// DNSTimeout returns the DNS probe timeout
func (c *Config) DNSTimeout() time.Duration {
	return time.Duration(c.DNSTimeoutMs) * time.Millisecond
}

// SkipTLSVerify reports whether certificate validation is relaxed
func (c *Config) SkipTLSVerify() bool {
	return c.InsecureSkipVerify != nil && *c.InsecureSkipVerify
}

// RunName returns the output directory name for a run started at t
func (c *Config) RunName(t time.Time) string {
	return c.RunNamePrefix + t.Format(c.RunNameLayout)
}
