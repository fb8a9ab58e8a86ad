// Package output owns the on-disk layout of a run: one directory per run,
// never reused, holding the relation files, the run log and one artifact file
// per fetched domain.
package output

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrRunExists is returned when the run directory is already present.
var ErrRunExists = errors.New("run directory already exists")

// RunDir is the directory a single run writes into.
type RunDir struct {
	Path string
	Name string
}

// CreateRunDir creates root/name. It fails with ErrRunExists rather than touch
// an earlier snapshot.
func CreateRunDir(root, name string) (*RunDir, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output root: %w", err)
	}

	path := filepath.Join(root, name)
	if err := os.Mkdir(path, 0755); err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("%s: %w", path, ErrRunExists)
		}
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}

	return &RunDir{Path: path, Name: name}, nil
}

func (d *RunDir) file(suffix string) string {
	return filepath.Join(d.Path, d.Name+suffix)
}

func (d *RunDir) EdgesPath() string     { return d.file(".csv") }
func (d *RunDir) ErrorsPath() string    { return d.file("-err.csv") }
func (d *RunDir) RedirectsPath() string { return d.file("-redirects.csv") }
func (d *RunDir) LogPath() string       { return d.file("-log.txt") }
func (d *RunDir) WhoisPath() string     { return d.file("-whois.txt") }
func (d *RunDir) DBPath() string        { return d.file(".db") }

// Join returns a path inside the run directory.
func (d *RunDir) Join(name string) string {
	return filepath.Join(d.Path, name)
}

// OpenLog creates the human-readable run log.
func (d *RunDir) OpenLog() (*os.File, error) {
	f, err := os.OpenFile(d.LogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open run log: %w", err)
	}
	return f, nil
}
