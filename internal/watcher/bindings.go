package watcher

import (
	"sort"

	"github.com/conneroisu/sitepipe/internal/fsglob"
)

// Binding maps a path glob onto the steps to rebuild when a matching file
// changes. Patterns are relative to the source root.
type Binding struct {
	Pattern string
	Steps   []string

	glob *fsglob.Pattern
}

// NewBinding compiles pattern.
func NewBinding(pattern string, steps ...string) (Binding, error) {
	g, err := fsglob.Compile(pattern)
	if err != nil {
		return Binding{}, err
	}
	return Binding{Pattern: pattern, Steps: steps, glob: g}, nil
}

// MustBinding is like NewBinding but panics on an invalid pattern.
func MustBinding(pattern string, steps ...string) Binding {
	b, err := NewBinding(pattern, steps...)
	if err != nil {
		panic(err)
	}
	return b
}

// Match reports whether the relative path is covered by the binding.
func (b Binding) Match(rel string) bool {
	if b.glob == nil {
		g, err := fsglob.Compile(b.Pattern)
		if err != nil {
			return false
		}
		return g.Match(rel)
	}
	return b.glob.Match(rel)
}

// Resolve returns the union of steps bound to every binding matching the
// slash-separated relative path, sorted.
func Resolve(rel string, bindings []Binding) []string {
	set := make(map[string]bool)
	for _, b := range bindings {
		if b.Match(rel) {
			for _, step := range b.Steps {
				set[step] = true
			}
		}
	}
	return sortedKeys(set)
}

// ResolveBatch resolves every event of a batch against root and returns the
// union of affected steps together with the matched relative paths.
func ResolveBatch(root string, batch []ChangeEvent, bindings []Binding) (steps []string, paths []string) {
	set := make(map[string]bool)
	for _, ev := range batch {
		rel := fsglob.Rel(root, ev.Path)
		if rel == "" {
			continue
		}
		matched := Resolve(rel, bindings)
		if len(matched) == 0 {
			continue
		}
		paths = append(paths, rel)
		for _, step := range matched {
			set[step] = true
		}
	}
	return sortedKeys(set), paths
}

func sortedKeys(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
