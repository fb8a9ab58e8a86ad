// Package seeds reads auxiliary candidate-domain lists. Each crawl root that
// follows the primary one comes from a record in one of these files.
package seeds

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"
)

// Column or key names that hold the domain, in order of preference
var domainFields = []string{"domain", "website", "url", "srcurl"}

// Load reads the domains listed in path. The format follows the extension:
// .csv, .xlsx, .yaml/.yml/.json, or plain text with one domain per line.
// Blank and duplicate entries are dropped; order is preserved.
func Load(path string) ([]string, error) {
	var (
		domains []string
		err     error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		domains, err = loadCSV(path)
	case ".xlsx":
		domains, err = loadXLSX(path)
	case ".yaml", ".yml", ".json":
		domains, err = loadYAML(path)
	default:
		domains, err = loadText(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load seeds from %s: %w", path, err)
	}

	return dedupe(domains), nil
}

func loadCSV(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	return fromRows(rows), nil
}

func loadXLSX(path string) ([]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, err
	}
	return fromRows(rows), nil
}

// fromRows picks the domain column by header name, or the first column of
// every row when no header matches
func fromRows(rows [][]string) []string {
	if len(rows) == 0 {
		return nil
	}

	col, body := 0, rows
	if idx := headerIndex(rows[0]); idx >= 0 {
		col, body = idx, rows[1:]
	}

	domains := make([]string, 0, len(body))
	for _, row := range body {
		if col < len(row) {
			domains = append(domains, row[col])
		}
	}
	return domains
}

func headerIndex(header []string) int {
	for _, field := range domainFields {
		for i, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), field) {
				return i
			}
		}
	}
	return -1
}

// loadYAML accepts a list of strings or a list of records with a domain field.
// JSON files decode the same way.
func loadYAML(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var items []any
	if err := yaml.Unmarshal(data, &items); err != nil {
		return nil, err
	}

	domains := make([]string, 0, len(items))
	for i, item := range items {
		switch v := item.(type) {
		case string:
			domains = append(domains, v)
		case map[string]any:
			d, ok := recordDomain(v)
			if !ok {
				return nil, fmt.Errorf("record %d has no domain field", i+1)
			}
			domains = append(domains, d)
		default:
			return nil, fmt.Errorf("record %d: unsupported type %T", i+1, item)
		}
	}
	return domains, nil
}

func recordDomain(rec map[string]any) (string, bool) {
	for _, field := range domainFields {
		for k, v := range rec {
			if !strings.EqualFold(k, field) {
				continue
			}
			if s, ok := v.(string); ok {
				return s, true
			}
		}
	}
	return "", false
}

func loadText(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readLines(f)
}

func readLines(r io.Reader) ([]string, error) {
	var domains []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		domains = append(domains, line)
	}
	return domains, scanner.Err()
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, d := range in {
		d = strings.TrimSpace(d)
		key := strings.ToLower(d)
		if d == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, d)
	}
	return out
}
