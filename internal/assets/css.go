package assets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/conneroisu/sitepipe/internal/taskgraph"
)

var importRule = regexp.MustCompile(`@import\s+(?:url\(\s*)?(["']?)([^"')\s;]+)(["']?)\s*\)?\s*([^;]*);`)

// Styles bundles every entry stylesheet with its imports, strips comments,
// minifies the result and writes it as <name>.min.css.
func Styles(p Paths) taskgraph.Transform {
	return taskgraph.TransformFunc(func(ctx context.Context, sources []string) ([]string, error) {
		outputs := make([]string, 0, len(sources))
		for _, entry := range sources {
			if err := ctx.Err(); err != nil {
				return outputs, err
			}

			r := &importResolver{include: p.StyleInclude, seen: make(map[string]bool)}
			css, err := r.bundle(entry, nil)
			if err != nil {
				return outputs, err
			}

			target, err := p.groupOutput(p.Styles, entry)
			if err != nil {
				return outputs, err
			}
			target = strings.TrimSuffix(target, filepath.Ext(target)) + ".min.css"

			min, err := MinifyCSS(css)
			if err != nil {
				return outputs, fmt.Errorf("minifying %s: %w", entry, err)
			}
			if err := writeFile(target, []byte(min)); err != nil {
				return outputs, err
			}
			outputs = append(outputs, target)
		}
		return outputs, nil
	})
}

type importResolver struct {
	include []string
	seen    map[string]bool
}

// bundle inlines the local imports of file. Each file is inlined once;
// remote imports and imports with media queries stay as they are.
func (r *importResolver) bundle(file string, stack []string) (string, error) {
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", err
	}
	for _, s := range stack {
		if s == abs {
			return "", fmt.Errorf("import cycle: %s", strings.Join(append(stack, abs), " -> "))
		}
	}
	if r.seen[abs] {
		return "", nil
	}
	r.seen[abs] = true

	data, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("reading stylesheet: %w", err)
	}
	css := StripCSSComments(string(data))

	var (
		out     strings.Builder
		last    int
		nextErr error
	)
	for _, m := range importRule.FindAllStringSubmatchIndex(css, -1) {
		target := css[m[4]:m[5]]
		media := strings.TrimSpace(css[m[8]:m[9]])
		if media != "" || isRemote(target) {
			continue
		}

		resolved, ok := r.resolve(filepath.Dir(file), target)
		if !ok {
			nextErr = fmt.Errorf("%s: cannot resolve @import %q", file, target)
			break
		}
		inlined, err := r.bundle(resolved, append(stack, abs))
		if err != nil {
			nextErr = err
			break
		}

		out.WriteString(css[last:m[0]])
		out.WriteString(inlined)
		last = m[1]
	}
	if nextErr != nil {
		return "", nextErr
	}
	out.WriteString(css[last:])
	return out.String(), nil
}

func isRemote(target string) bool {
	return strings.HasPrefix(target, "http://") ||
		strings.HasPrefix(target, "https://") ||
		strings.HasPrefix(target, "//")
}

// resolve looks for target next to the importing file and then in each
// include directory, trying the name as given, with a .css extension and as
// an underscore-prefixed partial.
func (r *importResolver) resolve(dir, target string) (string, bool) {
	target = filepath.FromSlash(target)
	base := filepath.Base(target)
	candidates := []string{target}
	if filepath.Ext(target) == "" {
		candidates = append(candidates,
			target+".css",
			filepath.Join(filepath.Dir(target), "_"+base+".css"))
	}

	for _, root := range append([]string{dir}, r.include...) {
		for _, c := range candidates {
			name := filepath.Join(root, c)
			if info, err := os.Stat(name); err == nil && !info.IsDir() {
				return name, true
			}
		}
	}
	return "", false
}

// StripCSSComments removes /* */ comments outside of strings.
func StripCSSComments(css string) string {
	var b strings.Builder
	b.Grow(len(css))

	for i := 0; i < len(css); i++ {
		c := css[i]
		switch {
		case c == '"' || c == '\'':
			end := stringEnd(css, i)
			b.WriteString(css[i:end])
			i = end - 1
		case c == '/' && i+1 < len(css) && css[i+1] == '*':
			end := strings.Index(css[i+2:], "*/")
			if end < 0 {
				return b.String()
			}
			i += end + 3
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// stringEnd returns the index just past the string literal starting at i.
func stringEnd(s string, i int) int {
	quote := s[i]
	for j := i + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case quote:
			return j + 1
		}
	}
	return len(s)
}
