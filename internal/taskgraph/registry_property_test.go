//go:build property
// +build property

package taskgraph

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestRegistryProperties checks graph validation against randomly generated
// dependency tables.
func TestRegistryProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	// Property: edges that only point at earlier steps never form a cycle
	properties.Property("backward edges validate", prop.ForAll(
		func(picks []int) bool {
			r := buildRegistry(picks, func(i, pick int) int { return pick % (i + 1) })
			return r.Validate() == nil
		},
		gen.SliceOfN(12, gen.IntRange(0, 1000)),
	))

	// Property: closure is closed under dependencies
	properties.Property("closure contains all dependencies", prop.ForAll(
		func(picks []int, target int) bool {
			r := buildRegistry(picks, func(i, pick int) int { return pick % (i + 1) })
			ids := r.IDs()
			closure, err := r.Closure([]string{ids[target%len(ids)]})
			if err != nil {
				return false
			}
			in := make(map[string]bool, len(closure))
			for _, id := range closure {
				in[id] = true
			}
			for _, id := range closure {
				deps, _ := r.DependenciesOf(id)
				for _, dep := range deps {
					if !in[dep] {
						return false
					}
				}
			}
			return true
		},
		gen.SliceOfN(12, gen.IntRange(0, 1000)),
		gen.IntRange(0, 100),
	))

	// Property: a single forward edge on top of a chain always yields a cycle
	properties.Property("forward edge is reported", prop.ForAll(
		func(n int) bool {
			r := NewRegistry()
			for i := 0; i < n; i++ {
				var deps []string
				if i > 0 {
					deps = []string{fmt.Sprintf("s%d", i-1)}
				} else {
					deps = []string{fmt.Sprintf("s%d", n-1)}
				}
				_ = r.Register(Step{ID: fmt.Sprintf("s%d", i), DependsOn: deps, Transform: noop()})
			}
			return r.Validate() != nil
		},
		gen.IntRange(1, 20),
	))

	properties.TestingRun(t)
}

// buildRegistry registers step i with an edge to step edge(i, picks[i]) when
// that index is lower than i.
func buildRegistry(picks []int, edge func(i, pick int) int) *Registry {
	r := NewRegistry()
	for i, pick := range picks {
		var deps []string
		if j := edge(i, pick); j < i {
			deps = []string{fmt.Sprintf("s%d", j)}
		}
		_ = r.Register(Step{ID: fmt.Sprintf("s%d", i), DependsOn: deps, Transform: noop()})
	}
	return r
}
