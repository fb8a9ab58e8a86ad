package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/alvmarrod/trust-weaver/internal/domain"
)

var fileNameReplacer = strings.NewReplacer("/", "-", ":", "-", "\\", "-")

// Artifacts stores the raw body fetched for each domain. A file's presence
// means the domain has been attempted.
type Artifacts struct {
	dir      string
	resource string
}

// NewArtifacts stores files in dir, suffixed with the resource name.
func NewArtifacts(dir, resource string) *Artifacts {
	return &Artifacts{dir: dir, resource: resource}
}

// FileName is derived from the domain's canonical key only.
func (a *Artifacts) FileName(name domain.Name) string {
	return fileNameReplacer.Replace(name.Key()) + "-" + a.resource
}

// Path returns the full artifact path for name.
func (a *Artifacts) Path(name domain.Name) string {
	return filepath.Join(a.dir, a.FileName(name))
}

// Save writes body, or a single blank line when body is empty.
func (a *Artifacts) Save(name domain.Name, body []byte) error {
	if len(body) == 0 {
		body = []byte("\n")
	}
	if err := os.WriteFile(a.Path(name), body, 0644); err != nil {
		return fmt.Errorf("failed to write artifact for %s: %w", name.Key(), err)
	}
	return nil
}
