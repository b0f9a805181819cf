//go:build property

package watcher

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var samplePaths = []string{
	"index.html",
	"partials/a.html",
	"assets/js/app.js",
	"assets/sass/style.sass",
	"assets/images/logo.png",
	"notes.md",
}

// TestDebouncerProperties validates batching properties of the debouncer
func TestDebouncerProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(9876)
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	// Property: a burst within one window yields one sorted, deduplicated batch
	properties.Property("burst collapses into one batch", prop.ForAll(
		func(picks []int) bool {
			if len(picks) == 0 {
				return true
			}
			paths := make([]string, len(picks))
			for i, pick := range picks {
				paths[i] = samplePaths[pick]
			}

			events := make(chan ChangeEvent, len(paths))
			for _, p := range paths {
				events <- ChangeEvent{Type: EventTypeModified, Path: p}
			}
			close(events)

			d := NewDebouncer(time.Hour)
			go d.Run(context.Background(), events)

			var batches [][]ChangeEvent
			for batch := range d.Batches() {
				batches = append(batches, batch)
			}
			if len(batches) != 1 {
				return false
			}

			distinct := make(map[string]bool)
			for _, p := range paths {
				distinct[p] = true
			}
			if len(batches[0]) != len(distinct) {
				return false
			}
			return sort.SliceIsSorted(batches[0], func(i, j int) bool {
				return batches[0][i].Path < batches[0][j].Path
			})
		},
		gen.SliceOf(gen.IntRange(0, len(samplePaths)-1)),
	))

	// Property: resolved steps are the union over matching bindings
	properties.Property("resolve returns bound steps only", prop.ForAll(
		func(pick int) bool {
			rel := samplePaths[pick]
			steps := Resolve(rel, testBindings)
			for _, step := range steps {
				found := false
				for _, b := range testBindings {
					if b.Match(rel) {
						for _, s := range b.Steps {
							if s == step {
								found = true
							}
						}
					}
				}
				if !found {
					return false
				}
			}
			return sort.StringsAreSorted(steps)
		},
		gen.IntRange(0, len(samplePaths)-1),
	))

	properties.TestingRun(t)
}
