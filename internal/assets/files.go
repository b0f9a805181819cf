package assets

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/conneroisu/sitepipe/internal/fsglob"
)

// writeFile writes data to name, creating parent directories. A file that
// already holds exactly data is left untouched.
func writeFile(name string, data []byte) error {
	if existing, err := os.ReadFile(name); err == nil && bytes.Equal(existing, data) {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", name, err)
	}
	if err := os.WriteFile(name, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}

// relTo returns src relative to base, failing when src lies outside it.
func relTo(base, src string) (string, error) {
	rel := fsglob.Rel(base, src)
	if rel == "" {
		return "", fmt.Errorf("%s is not below %s", src, base)
	}
	return rel, nil
}

// groupOutput maps a source file of g onto its output path.
func (p Paths) groupOutput(g Group, src string) (string, error) {
	rel, err := relTo(p.SourcePath(g.Dir), src)
	if err != nil {
		return "", err
	}
	return p.OutputPath(g.Output, filepath.FromSlash(rel)), nil
}
