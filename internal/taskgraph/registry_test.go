package taskgraph

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/sitepipe/internal/errors"
)

func noop() Transform {
	return TransformFunc(func(ctx context.Context, sources []string) ([]string, error) {
		return nil, nil
	})
}

func mustRegister(t *testing.T, r *Registry, id string, deps ...string) {
	t.Helper()
	require.NoError(t, r.Register(Step{ID: id, DependsOn: deps, Transform: noop()}))
}

func TestRegister(t *testing.T) {
	r := NewRegistry()
	mustRegister(t, r, "clean")
	mustRegister(t, r, "libs", "clean")

	assert.Equal(t, 2, r.Count())
	assert.Equal(t, []string{"clean", "libs"}, r.IDs())
	assert.Equal(t, 1, r.Index("libs"))
	assert.Equal(t, -1, r.Index("css"))

	step, ok := r.Get("libs")
	require.True(t, ok)
	assert.Equal(t, []string{"clean"}, step.DependsOn)

	_, ok = r.Get("css")
	assert.False(t, ok)
}

func TestRegisterDuplicate(t *testing.T) {
	r := NewRegistry()
	mustRegister(t, r, "css")

	err := r.Register(Step{ID: "css", Transform: noop()})
	var dup *errors.DuplicateStepError
	require.True(t, stderrors.As(err, &dup))
	assert.Equal(t, "css", dup.StepID)
	assert.Equal(t, 1, r.Count())
}

func TestRegisterInvalid(t *testing.T) {
	r := NewRegistry()

	err := r.Register(Step{ID: "  ", Transform: noop()})
	assert.Equal(t, errors.ErrorTypeValidation, errors.TypeOf(err))

	err = r.Register(Step{ID: "css"})
	assert.Equal(t, errors.ErrorTypeValidation, errors.TypeOf(err))
	assert.Equal(t, 0, r.Count())
}

func TestRegisterCopiesSlices(t *testing.T) {
	r := NewRegistry()
	deps := []string{"clean", "clean", " "}
	inputs := []string{"**/*.css"}
	require.NoError(t, r.Register(Step{ID: "css", Inputs: inputs, DependsOn: deps, Transform: noop()}))

	deps[0] = "mutated"
	inputs[0] = "mutated"

	step, _ := r.Get("css")
	assert.Equal(t, []string{"clean"}, step.DependsOn)
	assert.Equal(t, []string{"**/*.css"}, step.Inputs)
}

func TestDependenciesAndDependents(t *testing.T) {
	r := NewRegistry()
	mustRegister(t, r, "clean")
	mustRegister(t, r, "libs", "clean")
	mustRegister(t, r, "html", "libs")
	mustRegister(t, r, "js", "libs")

	deps, err := r.DependenciesOf("html")
	require.NoError(t, err)
	assert.Equal(t, []string{"libs"}, deps)

	_, err = r.DependenciesOf("nope")
	var unknown *errors.UnknownStepError
	assert.True(t, stderrors.As(err, &unknown))

	assert.Equal(t, []string{"html", "js"}, r.Dependents("libs"))
	assert.Empty(t, r.Dependents("js"))
}

func TestValidate(t *testing.T) {
	t.Run("acyclic graph", func(t *testing.T) {
		r := NewRegistry()
		mustRegister(t, r, "clean")
		mustRegister(t, r, "libs", "clean")
		mustRegister(t, r, "css", "libs")
		mustRegister(t, r, "js", "libs")
		assert.NoError(t, r.Validate())
	})

	t.Run("unknown dependency", func(t *testing.T) {
		r := NewRegistry()
		mustRegister(t, r, "a", "ghost")

		err := r.Validate()
		var unknown *errors.UnknownStepError
		require.True(t, stderrors.As(err, &unknown))
		assert.Equal(t, "ghost", unknown.StepID)
		assert.Equal(t, "a", unknown.RequiredBy)
		assert.True(t, errors.IsRegistryError(err))
	})

	t.Run("two step cycle", func(t *testing.T) {
		r := NewRegistry()
		mustRegister(t, r, "a", "b")
		mustRegister(t, r, "b", "a")

		err := r.Validate()
		var cyclic *errors.CyclicDependencyError
		require.True(t, stderrors.As(err, &cyclic))
		assert.Equal(t, []string{"a", "b", "a"}, cyclic.Cycle)
		assert.Contains(t, err.Error(), "a -> b -> a")
	})

	t.Run("self dependency", func(t *testing.T) {
		r := NewRegistry()
		mustRegister(t, r, "a", "a")

		var cyclic *errors.CyclicDependencyError
		require.True(t, stderrors.As(r.Validate(), &cyclic))
		assert.Equal(t, []string{"a", "a"}, cyclic.Cycle)
	})

	t.Run("cycle behind a prefix", func(t *testing.T) {
		r := NewRegistry()
		mustRegister(t, r, "root", "x")
		mustRegister(t, r, "x", "y")
		mustRegister(t, r, "y", "z")
		mustRegister(t, r, "z", "x")

		var cyclic *errors.CyclicDependencyError
		require.True(t, stderrors.As(r.Validate(), &cyclic))
		assert.Equal(t, []string{"x", "y", "z", "x"}, cyclic.Cycle)
	})
}

func TestClosure(t *testing.T) {
	r := NewRegistry()
	mustRegister(t, r, "clean")
	mustRegister(t, r, "libs", "clean")
	mustRegister(t, r, "html", "libs")
	mustRegister(t, r, "css", "libs")
	mustRegister(t, r, "fonts", "clean")

	got, err := r.Closure([]string{"css"})
	require.NoError(t, err)
	assert.Equal(t, []string{"clean", "libs", "css"}, got)

	got, err = r.Closure([]string{"fonts", "html"})
	require.NoError(t, err)
	assert.Equal(t, []string{"clean", "libs", "html", "fonts"}, got)

	got, err = r.Closure(nil)
	require.NoError(t, err)
	assert.Equal(t, r.IDs(), got)

	_, err = r.Closure([]string{"deploy"})
	var unknown *errors.UnknownStepError
	require.True(t, stderrors.As(err, &unknown))
	assert.Equal(t, "deploy", unknown.StepID)
}

func TestConcurrentReads(t *testing.T) {
	r := NewRegistry()
	mustRegister(t, r, "clean")
	mustRegister(t, r, "libs", "clean")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.Steps()
			_, _ = r.Closure([]string{"libs"})
			_ = r.Validate()
		}()
	}
	wg.Wait()
}

func TestString(t *testing.T) {
	r := NewRegistry()
	mustRegister(t, r, "clean")
	mustRegister(t, r, "libs", "clean")
	assert.Equal(t, "clean\nlibs <- clean\n", r.String())
}
