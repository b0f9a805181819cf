package scheduler

import (
	"github.com/conneroisu/sitepipe/internal/errors"
	"github.com/conneroisu/sitepipe/internal/taskgraph"
)

// Levels partitions the steps required by targets into levels. A step's
// level is the length of the longest dependency path below it, so level 0
// holds steps without dependencies and every step sits strictly above all
// of its dependencies. Within a level, steps keep registration order.
//
// An empty target list selects every registered step. The registry is
// validated first; registry-time errors are returned unchanged.
func Levels(reg *taskgraph.Registry, targets []string) ([][]string, error) {
	if err := reg.Validate(); err != nil {
		return nil, err
	}

	closure, err := reg.Closure(targets)
	if err != nil {
		return nil, err
	}
	return partition(reg, closure), nil
}

// RebuildLevels partitions exactly the targets, without pulling in their
// dependencies, which are assumed to be up to date from an earlier run.
// Dependencies among the targets themselves are still ordered.
func RebuildLevels(reg *taskgraph.Registry, targets []string) ([][]string, error) {
	if len(targets) == 0 {
		return Levels(reg, nil)
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}

	selected := make(map[string]bool, len(targets))
	for _, id := range targets {
		if _, ok := reg.Get(id); !ok {
			return nil, &errors.UnknownStepError{StepID: id}
		}
		selected[id] = true
	}

	ids := make([]string, 0, len(selected))
	for _, id := range reg.IDs() {
		if selected[id] {
			ids = append(ids, id)
		}
	}
	return partition(reg, ids), nil
}

// partition assigns each of ids the length of its longest dependency path
// within ids.
func partition(reg *taskgraph.Registry, ids []string) [][]string {
	inSet := make(map[string]bool, len(ids))
	for _, id := range ids {
		inSet[id] = true
	}

	depth := make(map[string]int, len(ids))
	var visit func(id string) int
	visit = func(id string) int {
		if d, ok := depth[id]; ok {
			return d
		}
		deps, _ := reg.DependenciesOf(id)
		d := 0
		for _, dep := range deps {
			if !inSet[dep] {
				continue
			}
			if dd := visit(dep) + 1; dd > d {
				d = dd
			}
		}
		depth[id] = d
		return d
	}

	maxDepth := -1
	for _, id := range ids {
		if d := visit(id); d > maxDepth {
			maxDepth = d
		}
	}

	levels := make([][]string, maxDepth+1)
	for _, id := range ids {
		levels[depth[id]] = append(levels[depth[id]], id)
	}
	return levels
}

// flatten returns the steps of levels in execution order.
func flatten(levels [][]string) []string {
	var order []string
	for _, level := range levels {
		order = append(order, level...)
	}
	return order
}
