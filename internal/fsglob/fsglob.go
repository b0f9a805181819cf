// Package fsglob matches slash-separated paths against doublestar glob
// patterns and expands patterns against a directory tree.
//
// Supported syntax is that of github.com/gobwas/glob with '/' as separator:
// `*` stays within a path segment, `**` crosses segments, `{a,b}` selects
// alternatives. A `**/` segment may also match zero directories, so
// `assets/**/*.js` matches `assets/app.js`. Patterns prefixed with `!`
// exclude paths matched by the other patterns.
package fsglob

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

// Pattern is a single compiled glob.
type Pattern struct {
	source string
	globs  []glob.Glob
}

// Compile compiles one glob pattern.
func Compile(pattern string) (*Pattern, error) {
	pattern = ToSlash(pattern)
	if pattern == "" {
		return nil, fmt.Errorf("empty glob pattern")
	}

	variants := expandDoubleStar(pattern)
	globs := make([]glob.Glob, 0, len(variants))
	for _, v := range variants {
		g, err := glob.Compile(v, '/')
		if err != nil {
			return nil, fmt.Errorf("compiling glob %q: %w", pattern, err)
		}
		globs = append(globs, g)
	}

	return &Pattern{source: pattern, globs: globs}, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(pattern string) *Pattern {
	p, err := Compile(pattern)
	if err != nil {
		panic(err)
	}
	return p
}

// Match reports whether the slash-separated relative path matches.
func (p *Pattern) Match(rel string) bool {
	rel = ToSlash(rel)
	for _, g := range p.globs {
		if g.Match(rel) {
			return true
		}
	}
	return false
}

func (p *Pattern) String() string {
	return p.source
}

// expandDoubleStar returns the pattern plus every variant in which one or
// more `**/` segments are dropped, letting them match zero directories.
func expandDoubleStar(pattern string) []string {
	variants := []string{pattern}
	seen := map[string]bool{pattern: true}

	for i := 0; i < len(variants); i++ {
		v := variants[i]
		for idx := 0; idx < len(v); {
			j := strings.Index(v[idx:], "**/")
			if j < 0 {
				break
			}
			at := idx + j
			if at == 0 || v[at-1] == '/' {
				candidate := v[:at] + v[at+3:]
				if !seen[candidate] {
					seen[candidate] = true
					variants = append(variants, candidate)
				}
			}
			idx = at + 3
		}
	}

	return variants
}

// Set is an ordered list of include and exclude patterns.
type Set struct {
	include []*Pattern
	exclude []*Pattern
}

// CompileSet compiles patterns; entries beginning with `!` are exclusions.
func CompileSet(patterns []string) (*Set, error) {
	s := &Set{}
	for _, raw := range patterns {
		negate := strings.HasPrefix(raw, "!")
		p, err := Compile(strings.TrimPrefix(raw, "!"))
		if err != nil {
			return nil, err
		}
		if negate {
			s.exclude = append(s.exclude, p)
		} else {
			s.include = append(s.include, p)
		}
	}
	return s, nil
}

// Match reports whether rel is matched by an include and no exclude pattern.
func (s *Set) Match(rel string) bool {
	matched := false
	for _, p := range s.include {
		if p.Match(rel) {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}
	for _, p := range s.exclude {
		if p.Match(rel) {
			return false
		}
	}
	return true
}

// Expand walks root and returns the files matching patterns, as paths
// joined with root, sorted by their slash-separated relative path. A
// missing root yields no matches.
func Expand(root string, patterns []string) ([]string, error) {
	if len(patterns) == 0 {
		return nil, nil
	}

	set, err := CompileSet(patterns)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil, nil
	}

	var rels []string
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" && p != root {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		if set.Match(rel) {
			rels = append(rels, ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("expanding globs under %s: %w", root, err)
	}

	sort.Strings(rels)

	paths := make([]string, len(rels))
	for i, rel := range rels {
		paths[i] = filepath.Join(root, filepath.FromSlash(rel))
	}
	return paths, nil
}

// Rel returns target relative to root in slash form, or "" if target is
// outside root.
func Rel(root, target string) string {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return ""
	}
	absTarget, err := filepath.Abs(target)
	if err != nil {
		return ""
	}
	rel, err := filepath.Rel(absRoot, absTarget)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return ""
	}
	return ToSlash(rel)
}

// ToSlash normalizes a path to forward slashes without a leading "./".
func ToSlash(p string) string {
	p = path.Clean(filepath.ToSlash(p))
	if p == "." {
		return ""
	}
	return strings.TrimPrefix(p, "./")
}
