// Package assets holds the transformations behind the site's build steps:
// cleaning the output, bundling vendor scripts, rendering pages, bundling
// styles and scripts, optimizing images and copying fonts and icons.
//
// Every transformation is built from an explicit Paths value and returned as
// a taskgraph.Transform. Outputs are deterministic: the same inputs always
// produce byte-identical files.
package assets

import (
	"path"
	"path/filepath"
)

// Group is a set of source files below Dir and the directory they are
// written to.
type Group struct {
	// Dir is relative to the source root.
	Dir string
	// Patterns are globs relative to Dir.
	Patterns []string
	// Output is relative to the output root.
	Output string
}

// Inputs returns the group's patterns relative to the source root, ready to
// be used as step inputs.
func (g Group) Inputs() []string {
	inputs := make([]string, 0, len(g.Patterns))
	for _, p := range g.Patterns {
		negate := len(p) > 0 && p[0] == '!'
		if negate {
			p = p[1:]
		}
		joined := p
		if g.Dir != "" && g.Dir != "." {
			joined = path.Join(filepath.ToSlash(g.Dir), p)
		}
		if negate {
			joined = "!" + joined
		}
		inputs = append(inputs, joined)
	}
	return inputs
}

// Paths describes where every asset kind is read from and written to.
type Paths struct {
	Source string
	Output string

	Pages    Group
	Layouts  string
	Partials string
	Data     string

	Styles Group
	// StyleInclude lists extra directories searched by @import.
	StyleInclude []string

	Scripts      Group
	ScriptBundle string

	// VendorLibs are concatenated into LibsFile, which lives in the source
	// tree so the scripts step bundles it first.
	VendorLibs []string
	LibsFile   string

	Images Group
	Fonts  Group
	Icons  Group
}

// DefaultPaths returns the conventional src/ → dist/ layout.
func DefaultPaths() Paths {
	return Paths{
		Source: "src",
		Output: "dist",

		Pages:    Group{Patterns: []string{"*.html"}},
		Layouts:  "layouts",
		Partials: "partials",
		Data:     "data",

		Styles: Group{
			Dir:      "assets/sass",
			Patterns: []string{"*.css", "!_*.css"},
			Output:   "assets/css",
		},
		StyleInclude: []string{"node_modules"},

		Scripts: Group{
			Dir:      "assets/js",
			Patterns: []string{"**/*.js"},
			Output:   "assets/js",
		},
		ScriptBundle: "app.js",

		LibsFile: "assets/js/libs.js",

		Images: Group{
			Dir:      "assets/images",
			Patterns: []string{"**/*.{jpg,jpeg,png,svg,gif,ico,webp,webmanifest,xml,json}"},
			Output:   "assets/images",
		},
		Fonts: Group{
			Dir:      "assets/fonts",
			Patterns: []string{"**/*.{eot,woff,woff2,ttf,svg}"},
			Output:   "assets/fonts",
		},
		Icons: Group{
			Dir:      "assets/icons",
			Patterns: []string{"**/*.{svg,png,ico}"},
			Output:   "assets/icons",
		},
	}
}

// SourcePath joins rel onto the source root.
func (p Paths) SourcePath(rel ...string) string {
	return filepath.Join(append([]string{p.Source}, rel...)...)
}

// OutputPath joins rel onto the output root.
func (p Paths) OutputPath(rel ...string) string {
	return filepath.Join(append([]string{p.Output}, rel...)...)
}
