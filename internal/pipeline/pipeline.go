// Package pipeline wires the asset transformations into a task graph and
// the watch bindings that keep it up to date.
//
// The graph is clean → libs → {html, css, js, images, fonts} with an extra
// icons leaf in the icons variant. Both variants come from the same wiring
// with different paths.
package pipeline

import (
	"fmt"
	"path"
	"path/filepath"

	"github.com/conneroisu/sitepipe/internal/assets"
	"github.com/conneroisu/sitepipe/internal/config"
	"github.com/conneroisu/sitepipe/internal/scheduler"
	"github.com/conneroisu/sitepipe/internal/taskgraph"
	"github.com/conneroisu/sitepipe/internal/watcher"
)

// Step identifiers.
const (
	StepClean  = "clean"
	StepLibs   = "libs"
	StepHTML   = "html"
	StepCSS    = "css"
	StepJS     = "js"
	StepImages = "images"
	StepFonts  = "fonts"
	StepIcons  = "icons"
)

// Pipeline is a registered task graph with its watch bindings.
type Pipeline struct {
	Variant  string
	Paths    assets.Paths
	Registry *taskgraph.Registry
	Bindings []watcher.Binding
}

// PathsFor maps the configuration onto asset paths for its variant.
func PathsFor(cfg *config.Config) assets.Paths {
	p := assets.DefaultPaths()
	p.Source = cfg.Paths.Source
	p.Output = cfg.Paths.Output
	p.Layouts = cfg.Paths.Layouts
	p.Partials = cfg.Paths.Partials
	p.Data = cfg.Paths.Data
	p.StyleInclude = append([]string(nil), cfg.Paths.StyleInclude...)
	p.VendorLibs = append([]string(nil), cfg.Paths.VendorLibs...)

	if cfg.Build.Variant == config.VariantIcons {
		p.Styles.Output = "css"
		p.Scripts.Output = "js"
		p.Images.Output = "img"
		p.Fonts.Output = "fonts"
		p.Icons.Output = "icons"
	}
	return p
}

// Build registers the steps for cfg and validates the graph.
func Build(cfg *config.Config) (*Pipeline, error) {
	p := PathsFor(cfg)
	reg := taskgraph.NewRegistry()

	steps := []taskgraph.Step{
		{
			ID:          StepClean,
			Description: "Remove the output directory",
			Transform:   assets.Clean(p),
		},
		{
			ID:          StepLibs,
			Description: "Concatenate vendor scripts into the libs file",
			DependsOn:   []string{StepClean},
			Transform:   assets.Libs(p),
		},
		{
			ID:          StepHTML,
			Description: "Render pages with layouts, partials and data",
			Inputs:      p.Pages.Inputs(),
			DependsOn:   []string{StepLibs},
			Transform:   assets.Pages(p),
		},
		{
			ID:          StepCSS,
			Description: "Bundle and minify stylesheets",
			Inputs:      p.Styles.Inputs(),
			DependsOn:   []string{StepLibs},
			Transform:   assets.Styles(p),
		},
		{
			ID:          StepJS,
			Description: "Bundle scripts",
			Inputs:      p.Scripts.Inputs(),
			DependsOn:   []string{StepLibs},
			Transform:   assets.Scripts(p),
		},
		{
			ID:          StepImages,
			Description: "Optimize images",
			Inputs:      p.Images.Inputs(),
			DependsOn:   []string{StepLibs},
			Transform:   assets.Images(p),
		},
		{
			ID:          StepFonts,
			Description: "Copy fonts",
			Inputs:      p.Fonts.Inputs(),
			DependsOn:   []string{StepLibs},
			Transform:   assets.Copy(p, p.Fonts),
		},
	}
	if cfg.Build.Variant == config.VariantIcons {
		steps = append(steps, taskgraph.Step{
			ID:          StepIcons,
			Description: "Copy icons",
			Inputs:      p.Icons.Inputs(),
			DependsOn:   []string{StepLibs},
			Transform:   assets.Copy(p, p.Icons),
		})
	}

	for _, step := range steps {
		if err := reg.Register(step); err != nil {
			return nil, err
		}
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}

	bindings, err := bindingsFor(p, cfg.Build.Variant)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		Variant:  cfg.Build.Variant,
		Paths:    p,
		Registry: reg,
		Bindings: bindings,
	}, nil
}

type bindingSpec struct {
	pattern string
	step    string
}

func bindingsFor(p assets.Paths, variant string) ([]watcher.Binding, error) {
	specs := []bindingSpec{
		{"**/*.html", StepHTML},
		{path.Join(filepath.ToSlash(p.Data), "**/*.{yml,yaml,json}"), StepHTML},
		{path.Join(filepath.ToSlash(p.Styles.Dir), "**/*.{css,scss,sass}"), StepCSS},
	}

	groups := map[string]assets.Group{
		StepJS:     p.Scripts,
		StepImages: p.Images,
		StepFonts:  p.Fonts,
	}
	order := []string{StepJS, StepImages, StepFonts}
	if variant == config.VariantIcons {
		groups[StepIcons] = p.Icons
		order = append(order, StepIcons)
	}
	for _, step := range order {
		for _, in := range groups[step].Inputs() {
			// Exclusions narrow a step's inputs, not what triggers it.
			if len(in) > 0 && in[0] == '!' {
				continue
			}
			specs = append(specs, bindingSpec{in, step})
		}
	}

	bindings := make([]watcher.Binding, 0, len(specs))
	for _, s := range specs {
		b, err := watcher.NewBinding(s.pattern, s.step)
		if err != nil {
			return nil, fmt.Errorf("binding %s: %w", s.step, err)
		}
		bindings = append(bindings, b)
	}
	return bindings, nil
}

// WatchIgnore returns the directories the watch engine must skip: the
// output directory and each ignored name below the source root.
func (pl *Pipeline) WatchIgnore(names []string) []string {
	dirs := []string{pl.Paths.Output}
	for _, name := range names {
		dirs = append(dirs, filepath.Join(pl.Paths.Source, name))
	}
	return dirs
}

// Scheduler returns a scheduler over the pipeline's registry that expands
// step inputs against the source root.
func (pl *Pipeline) Scheduler(opts ...scheduler.Option) *scheduler.Scheduler {
	opts = append([]scheduler.Option{scheduler.WithSourceRoot(pl.Paths.Source)}, opts...)
	return scheduler.New(pl.Registry, opts...)
}
