package output

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/alvmarrod/trust-weaver/internal/domain"
)

func TestCreateRunDirRefusesExisting(t *testing.T) {
	root := t.TempDir()

	first, err := CreateRunDir(root, "Webcrawl-2026-10-15")
	if err != nil {
		t.Fatalf("first CreateRunDir() error: %v", err)
	}
	marker := first.EdgesPath()
	if err := os.WriteFile(marker, []byte("srcurl,attr,refurl\n"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err = CreateRunDir(root, "Webcrawl-2026-10-15")
	if !errors.Is(err, ErrRunExists) {
		t.Fatalf("expected ErrRunExists, got %v", err)
	}

	data, err := os.ReadFile(marker)
	if err != nil || string(data) != "srcurl,attr,refurl\n" {
		t.Errorf("first run output was disturbed: %q, %v", data, err)
	}
}

func TestRunDirPaths(t *testing.T) {
	d := &RunDir{Path: "/tmp/run", Name: "Webcrawl-x"}

	tests := map[string]string{
		d.EdgesPath():     "/tmp/run/Webcrawl-x.csv",
		d.ErrorsPath():    "/tmp/run/Webcrawl-x-err.csv",
		d.RedirectsPath(): "/tmp/run/Webcrawl-x-redirects.csv",
		d.LogPath():       "/tmp/run/Webcrawl-x-log.txt",
		d.WhoisPath():     "/tmp/run/Webcrawl-x-whois.txt",
	}
	for got, want := range tests {
		if filepath.ToSlash(got) != want {
			t.Errorf("got %q, want %q", got, want)
		}
	}
}

func TestArtifacts(t *testing.T) {
	a := NewArtifacts(t.TempDir(), "trust.txt")
	name := domain.Name{Base: "example.co.uk", Sub: "www", Path: "news"}

	if got := a.FileName(name); got != "example.co.uk-trust.txt" {
		t.Errorf("FileName() = %q", got)
	}
	if _, err := os.Stat(a.Path(name)); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("artifact should not exist yet: %v", err)
	}

	if err := a.Save(name, nil); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	data, _ := os.ReadFile(a.Path(name))
	if string(data) != "\n" {
		t.Errorf("blank placeholder expected, got %q", data)
	}
	if err := a.Save(name, []byte("member=https://a.example/\n")); err != nil {
		t.Fatal(err)
	}
	data, _ = os.ReadFile(a.Path(name))
	if string(data) != "member=https://a.example/\n" {
		t.Errorf("body not written: %q", data)
	}
}

func TestWhoisListDeduplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "whois.txt")
	w, err := OpenWhoisList(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, h := range []string{"gone.example", "gone.example", "other.example"} {
		if err := w.Add(h); err != nil {
			t.Fatal(err)
		}
	}
	w.Close()

	data, _ := os.ReadFile(path)
	if string(data) != "gone.example\nother.example\n" {
		t.Errorf("unexpected whois list: %q", data)
	}
}
