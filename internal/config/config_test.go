package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}

	if cfg.RootURL != "www.journallist.net" {
		t.Errorf("RootURL = %q", cfg.RootURL)
	}
	if cfg.ConcurrentWorkers != 1 {
		t.Errorf("ConcurrentWorkers = %d, want sequential default", cfg.ConcurrentWorkers)
	}
	if cfg.RequestTimeout() != 61*time.Second {
		t.Errorf("RequestTimeout() = %v", cfg.RequestTimeout())
	}
	if !cfg.SkipTLSVerify() {
		t.Error("TLS verification should be relaxed by default")
	}
	if len(cfg.FetchVariants) != 2 || !strings.Contains(cfg.FetchVariants[1], ".well-known") {
		t.Errorf("unexpected default variants: %v", cfg.FetchVariants)
	}
	if cfg.BaseDomainRule != RuleCountryTLD {
		t.Errorf("BaseDomainRule = %q", cfg.BaseDomainRule)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `{
		"root_url": "example.com",
		"concurrent_workers": 4,
		"insecure_skip_verify": false,
		"fetch_variants": ["https://{apex}/{resource}"],
		"base_domain_rule": "public-suffix"
	}`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}

	if cfg.RootURL != "example.com" || cfg.ConcurrentWorkers != 4 {
		t.Errorf("values not loaded: %+v", cfg)
	}
	if cfg.SkipTLSVerify() {
		t.Error("explicit false must be kept")
	}
	if len(cfg.FetchVariants) != 1 {
		t.Errorf("FetchVariants = %v", cfg.FetchVariants)
	}
	if cfg.ResourceName != "trust.txt" {
		t.Errorf("ResourceName default not applied: %q", cfg.ResourceName)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad json", `{"root_url": `},
		{"unknown field", `{"seed_url": "x"}`},
		{"negative workers", `{"concurrent_workers": -1}`},
		{"short timeout", `{"request_timeout_ms": 10}`},
		{"variant without host", `{"fetch_variants": ["http://example.com/trust.txt"]}`},
		{"unknown rule", `{"base_domain_rule": "guess"}`},
		{"postgres without dsn", `{"db_driver": "postgres"}`},
		{"resource with slash", `{"resource_name": "a/trust.txt"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, tt.body)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestRunName(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	got := cfg.RunName(time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC))
	if got != "Webcrawl-2026-10-15" {
		t.Errorf("RunName() = %q", got)
	}
}
