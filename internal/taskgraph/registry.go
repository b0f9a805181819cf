// Package taskgraph holds the declared build steps of a pipeline and the
// dependency relation between them.
//
// A Registry is populated once at startup and validated before any run. It
// is safe for concurrent readers; the scheduler and watch engine only read
// from it while builds are in progress.
package taskgraph

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/conneroisu/sitepipe/internal/errors"
)

// Transform is the opaque transformation a step performs. It receives the
// source files matched by the step's input patterns and returns the paths
// it wrote.
type Transform interface {
	Transform(ctx context.Context, sources []string) ([]string, error)
}

// TransformFunc adapts a function to the Transform interface.
type TransformFunc func(ctx context.Context, sources []string) ([]string, error)

// Transform calls f.
func (f TransformFunc) Transform(ctx context.Context, sources []string) ([]string, error) {
	return f(ctx, sources)
}

// Step is a named build action with declared dependencies.
type Step struct {
	ID          string
	Description string
	// Inputs are glob patterns relative to the source root.
	Inputs    []string
	DependsOn []string
	Transform Transform
}

// Registry stores steps in registration order.
type Registry struct {
	steps map[string]*Step
	order []string
	index map[string]int
	mutex sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		steps: make(map[string]*Step),
		order: make([]string, 0),
		index: make(map[string]int),
	}
}

// Register adds a step. It fails with DuplicateStepError when the identifier
// is already taken.
func (r *Registry) Register(step Step) error {
	id := strings.TrimSpace(step.ID)
	if id == "" {
		return errors.NewValidationError(errors.ErrCodeValidationFailed, "step identifier is required")
	}
	if step.Transform == nil {
		return errors.NewValidationError(errors.ErrCodeValidationFailed, "step has no transform").WithStep(id)
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.steps[id]; exists {
		return &errors.DuplicateStepError{StepID: id}
	}

	stored := step
	stored.ID = id
	stored.Inputs = append([]string(nil), step.Inputs...)
	stored.DependsOn = dedupe(step.DependsOn)

	r.steps[id] = &stored
	r.index[id] = len(r.order)
	r.order = append(r.order, id)

	return nil
}

// Get returns a copy of the step with the given identifier.
func (r *Registry) Get(id string) (Step, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	step, exists := r.steps[id]
	if !exists {
		return Step{}, false
	}
	return *step, true
}

// Steps returns all steps in registration order.
func (r *Registry) Steps() []Step {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	result := make([]Step, 0, len(r.order))
	for _, id := range r.order {
		result = append(result, *r.steps[id])
	}
	return result
}

// IDs returns all step identifiers in registration order.
func (r *Registry) IDs() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return append([]string(nil), r.order...)
}

// Count returns the number of registered steps.
func (r *Registry) Count() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return len(r.order)
}

// Index returns the registration position of a step, or -1.
func (r *Registry) Index(id string) int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if i, ok := r.index[id]; ok {
		return i
	}
	return -1
}

// DependenciesOf returns the declared dependencies of a step.
func (r *Registry) DependenciesOf(id string) ([]string, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	step, exists := r.steps[id]
	if !exists {
		return nil, &errors.UnknownStepError{StepID: id}
	}
	return append([]string(nil), step.DependsOn...), nil
}

// Dependents returns the steps that declare a direct dependency on id, in
// registration order.
func (r *Registry) Dependents(id string) []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var dependents []string
	for _, name := range r.order {
		for _, dep := range r.steps[name].DependsOn {
			if dep == id {
				dependents = append(dependents, name)
				break
			}
		}
	}
	return dependents
}

// Closure returns the targets together with every step they transitively
// depend on, in registration order. An empty target list selects all steps.
func (r *Registry) Closure(targets []string) ([]string, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if len(targets) == 0 {
		return append([]string(nil), r.order...), nil
	}

	included := make(map[string]bool, len(r.order))
	var visit func(id, requiredBy string) error
	visit = func(id, requiredBy string) error {
		if included[id] {
			return nil
		}
		step, exists := r.steps[id]
		if !exists {
			return &errors.UnknownStepError{StepID: id, RequiredBy: requiredBy}
		}
		included[id] = true
		for _, dep := range step.DependsOn {
			if err := visit(dep, id); err != nil {
				return err
			}
		}
		return nil
	}

	for _, target := range targets {
		if err := visit(target, ""); err != nil {
			return nil, err
		}
	}

	closure := make([]string, 0, len(included))
	for _, id := range r.order {
		if included[id] {
			closure = append(closure, id)
		}
	}
	return closure, nil
}

// Validate checks that every dependency is registered and that the
// dependency relation is acyclic.
func (r *Registry) Validate() error {
	graph := r.dependencyGraph()

	r.mutex.RLock()
	order := append([]string(nil), r.order...)
	r.mutex.RUnlock()

	for _, id := range order {
		for _, dep := range graph[id] {
			if _, exists := graph[dep]; !exists {
				return &errors.UnknownStepError{StepID: dep, RequiredBy: id}
			}
		}
	}

	if cycle := detectCycle(order, graph); cycle != nil {
		return &errors.CyclicDependencyError{Cycle: cycle}
	}

	return nil
}

func (r *Registry) dependencyGraph() map[string][]string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	graph := make(map[string][]string, len(r.steps))
	for id, step := range r.steps {
		graph[id] = append([]string(nil), step.DependsOn...)
	}
	return graph
}

// detectCycle runs a depth-first traversal with a recursion stack and
// returns the first cycle found, closed on its starting step.
func detectCycle(order []string, graph map[string][]string) []string {
	visited := make(map[string]bool, len(order))
	recStack := make(map[string]bool, len(order))

	for _, id := range order {
		if !visited[id] {
			if cycle := detectCycleDFS(id, graph, visited, recStack, nil); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

func detectCycleDFS(id string, graph map[string][]string, visited, recStack map[string]bool, path []string) []string {
	visited[id] = true
	recStack[id] = true
	path = append(path, id)

	for _, dep := range graph[id] {
		if !visited[dep] {
			if cycle := detectCycleDFS(dep, graph, visited, recStack, path); cycle != nil {
				return cycle
			}
		} else if recStack[dep] {
			for i, p := range path {
				if p == dep {
					cycle := make([]string, 0, len(path)-i+1)
					cycle = append(cycle, path[i:]...)
					return append(cycle, dep)
				}
			}
		}
	}

	recStack[id] = false
	return nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	result := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		result = append(result, id)
	}
	return result
}

// String renders the graph one step per line, for diagnostics.
func (r *Registry) String() string {
	var b strings.Builder
	for _, step := range r.Steps() {
		fmt.Fprintf(&b, "%s", step.ID)
		if len(step.DependsOn) > 0 {
			fmt.Fprintf(&b, " <- %s", strings.Join(step.DependsOn, ", "))
		}
		b.WriteByte('\n')
	}
	return b.String()
}
