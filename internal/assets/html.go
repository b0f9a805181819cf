package assets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/a-h/templ"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/sitepipe/internal/fsglob"
	"github.com/conneroisu/sitepipe/internal/taskgraph"
)

// DefaultLayout is used for pages that do not name a layout in their front
// matter, when it exists.
const DefaultLayout = "default"

// Page is a source page split into front matter and body.
type Page struct {
	Meta map[string]interface{}
	Body string
}

// ParsePage splits a leading YAML front matter block, delimited by "---"
// lines, from the page body.
func ParsePage(src []byte) (Page, error) {
	text := strings.ReplaceAll(string(src), "\r\n", "\n")
	page := Page{Meta: map[string]interface{}{}, Body: text}

	if !strings.HasPrefix(text, "---\n") {
		return page, nil
	}
	rest := text[len("---\n"):]
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return page, nil
	}

	if err := yaml.Unmarshal([]byte(rest[:end]), &page.Meta); err != nil {
		return Page{}, fmt.Errorf("parsing front matter: %w", err)
	}
	if page.Meta == nil {
		page.Meta = map[string]interface{}{}
	}

	body := rest[end+len("\n---"):]
	page.Body = strings.TrimPrefix(body, "\n")
	return page, nil
}

// Pages renders each page through its layout with the site's partials and
// data files, minifies the result and writes it below the output root.
//
// Templates use html/template syntax. A layout places the page with
// {{ template "body" . }}, and partials are available by file name without
// extension ({{ template "header" . }}). The template data holds every data
// file by name, the page's front matter keys and "page", the page name.
func Pages(p Paths) taskgraph.Transform {
	return taskgraph.TransformFunc(func(ctx context.Context, sources []string) ([]string, error) {
		if len(sources) == 0 {
			return nil, nil
		}

		site, err := loadSite(p)
		if err != nil {
			return nil, err
		}

		outputs := make([]string, 0, len(sources))
		for _, src := range sources {
			if err := ctx.Err(); err != nil {
				return outputs, err
			}

			target, err := p.groupOutput(p.Pages, src)
			if err != nil {
				return outputs, err
			}
			rendered, err := site.render(ctx, src)
			if err != nil {
				return outputs, fmt.Errorf("rendering %s: %w", src, err)
			}
			min, err := MinifyHTML(rendered)
			if err != nil {
				return outputs, fmt.Errorf("minifying %s: %w", src, err)
			}
			if err := writeFile(target, min); err != nil {
				return outputs, err
			}
			outputs = append(outputs, target)
		}
		return outputs, nil
	})
}

type site struct {
	layouts  map[string]string
	partials map[string]string
	data     map[string]interface{}
}

func loadSite(p Paths) (*site, error) {
	s := &site{data: map[string]interface{}{}}

	var err error
	if s.layouts, err = readNamed(p.SourcePath(p.Layouts), "**/*.html"); err != nil {
		return nil, err
	}
	if s.partials, err = readNamed(p.SourcePath(p.Partials), "**/*.html"); err != nil {
		return nil, err
	}

	files, err := fsglob.Expand(p.SourcePath(p.Data), []string{"**/*.{yml,yaml,json}"})
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		raw, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("reading data file: %w", err)
		}
		var v interface{}
		if filepath.Ext(f) == ".json" {
			err = json.Unmarshal(raw, &v)
		} else {
			err = yaml.Unmarshal(raw, &v)
		}
		if err != nil {
			return nil, fmt.Errorf("parsing data file %s: %w", f, err)
		}
		s.data[baseName(f)] = v
	}
	return s, nil
}

// readNamed reads the files below dir keyed by base name without extension.
func readNamed(dir, pattern string) (map[string]string, error) {
	files, err := fsglob.Expand(dir, []string{pattern})
	if err != nil {
		return nil, err
	}
	named := make(map[string]string, len(files))
	for _, f := range files {
		raw, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("reading template: %w", err)
		}
		named[baseName(f)] = string(raw)
	}
	return named, nil
}

func baseName(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (s *site) render(ctx context.Context, src string) ([]byte, error) {
	raw, err := os.ReadFile(src)
	if err != nil {
		return nil, err
	}
	page, err := ParsePage(raw)
	if err != nil {
		return nil, err
	}

	layoutName, explicit := page.Meta["layout"].(string)
	if !explicit {
		layoutName = DefaultLayout
	}
	layout, ok := s.layouts[layoutName]
	if !ok {
		if explicit && layoutName != "none" {
			return nil, fmt.Errorf("layout %q not found", layoutName)
		}
		layout = `{{ template "body" . }}`
	}

	tmpl := template.New("layout").Option("missingkey=zero")
	for _, name := range sortedNames(s.partials) {
		if _, err := tmpl.New(name).Parse(s.partials[name]); err != nil {
			return nil, fmt.Errorf("parsing partial %s: %w", name, err)
		}
	}
	if _, err := tmpl.New("body").Parse(page.Body); err != nil {
		return nil, fmt.Errorf("parsing page: %w", err)
	}
	if _, err := tmpl.Parse(layout); err != nil {
		return nil, fmt.Errorf("parsing layout %s: %w", layoutName, err)
	}

	data := make(map[string]interface{}, len(s.data)+len(page.Meta)+1)
	for k, v := range s.data {
		data[k] = v
	}
	for k, v := range page.Meta {
		data[k] = v
	}
	data["page"] = baseName(src)

	var buf bytes.Buffer
	if err := templ.FromGoHTML(tmpl, data).Render(ctx, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func sortedNames(m map[string]string) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
