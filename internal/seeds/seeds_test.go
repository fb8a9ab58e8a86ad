package seeds

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFormats(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		want    []string
	}{
		{
			name:    "csv with domain header",
			file:    "pubs.csv",
			content: "Name,Domain\nAlpha,alpha.example\nBeta,beta.example\nGamma,\n",
			want:    []string{"alpha.example", "beta.example"},
		},
		{
			name:    "csv with website header",
			file:    "pubs.csv",
			content: "website,city\nhttps://www.alpha.example/,Austin\n",
			want:    []string{"https://www.alpha.example/"},
		},
		{
			name:    "csv without header",
			file:    "pubs.csv",
			content: "alpha.example\nbeta.example\nalpha.example\n",
			want:    []string{"alpha.example", "beta.example"},
		},
		{
			name:    "yaml records",
			file:    "pubs.yaml",
			content: "- domain: alpha.example\n  name: Alpha\n- domain: beta.example\n",
			want:    []string{"alpha.example", "beta.example"},
		},
		{
			name:    "yaml strings",
			file:    "pubs.yml",
			content: "- alpha.example\n- beta.example\n",
			want:    []string{"alpha.example", "beta.example"},
		},
		{
			name:    "json records",
			file:    "pubs.json",
			content: `[{"Domain": "alpha.example"}, {"website": "beta.example"}]`,
			want:    []string{"alpha.example", "beta.example"},
		},
		{
			name:    "text lines",
			file:    "pubs.txt",
			content: "# candidates\nalpha.example\n\n  beta.example  \nALPHA.example\n",
			want:    []string{"alpha.example", "beta.example"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Load(writeFile(t, tt.file, tt.content))
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("Load = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoadXLSX(t *testing.T) {
	f := excelize.NewFile()
	rows := [][]any{
		{"Publisher", "Domain"},
		{"Alpha", "alpha.example"},
		{"Beta", "beta.example"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatal(err)
		}
	}

	path := filepath.Join(t.TempDir(), "pubs.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	f.Close()

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if strings.Join(got, ",") != "alpha.example,beta.example" {
		t.Errorf("Load = %v", got)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"record without domain", "pubs.yaml", "- name: Alpha\n"},
		{"not a list", "pubs.yaml", "domain: alpha.example\n"},
		{"nested list", "pubs.json", `[["alpha.example"]]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeFile(t, tt.file, tt.content)); err == nil {
				t.Error("expected error")
			}
		})
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Error("expected error for missing file")
	}
}
