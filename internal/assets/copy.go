package assets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/conneroisu/sitepipe/internal/fsglob"
	"github.com/conneroisu/sitepipe/internal/taskgraph"
)

// Clean removes the output directory. It refuses to remove the working
// directory, the filesystem root or a directory containing the sources.
func Clean(p Paths) taskgraph.Transform {
	return taskgraph.TransformFunc(func(ctx context.Context, _ []string) ([]string, error) {
		out := filepath.Clean(p.Output)
		abs, err := filepath.Abs(out)
		if err != nil {
			return nil, fmt.Errorf("resolving output directory: %w", err)
		}
		wd, _ := os.Getwd()
		if p.Output == "" || filepath.Dir(abs) == abs || abs == wd {
			return nil, fmt.Errorf("refusing to clean output directory %q", p.Output)
		}
		if fsglob.Rel(out, p.Source) != "" || samePath(out, p.Source) {
			return nil, fmt.Errorf("refusing to clean %q: it contains the source directory %q", p.Output, p.Source)
		}

		if err := os.RemoveAll(out); err != nil {
			return nil, fmt.Errorf("removing %s: %w", out, err)
		}
		return nil, nil
	})
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}

// Libs concatenates the vendor scripts into the libs file inside the source
// tree. With no vendor scripts configured it does nothing.
func Libs(p Paths) taskgraph.Transform {
	return taskgraph.TransformFunc(func(ctx context.Context, _ []string) ([]string, error) {
		if len(p.VendorLibs) == 0 {
			return nil, nil
		}

		var bundle []byte
		for _, lib := range p.VendorLibs {
			data, err := os.ReadFile(lib)
			if err != nil {
				return nil, fmt.Errorf("reading vendor script: %w", err)
			}
			bundle = append(bundle, data...)
			if len(data) > 0 && data[len(data)-1] != '\n' {
				bundle = append(bundle, '\n')
			}
		}

		target := p.SourcePath(p.LibsFile)
		if err := writeFile(target, bundle); err != nil {
			return nil, err
		}
		return []string{target}, nil
	})
}

// Copy copies the files of g into its output directory, keeping their
// paths relative to g.Dir.
func Copy(p Paths, g Group) taskgraph.Transform {
	return taskgraph.TransformFunc(func(ctx context.Context, sources []string) ([]string, error) {
		outputs := make([]string, 0, len(sources))
		for _, src := range sources {
			if err := ctx.Err(); err != nil {
				return outputs, err
			}

			target, err := p.groupOutput(g, src)
			if err != nil {
				return outputs, err
			}
			data, err := os.ReadFile(src)
			if err != nil {
				return outputs, fmt.Errorf("reading %s: %w", src, err)
			}
			if err := writeFile(target, data); err != nil {
				return outputs, err
			}
			outputs = append(outputs, target)
		}
		return outputs, nil
	})
}
