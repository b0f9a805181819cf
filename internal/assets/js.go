package assets

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/conneroisu/sitepipe/internal/taskgraph"
)

// Scripts bundles the script sources into a single file. The libs file
// comes first, the rest follow in path order.
func Scripts(p Paths) taskgraph.Transform {
	return taskgraph.TransformFunc(func(ctx context.Context, sources []string) ([]string, error) {
		if len(sources) == 0 {
			return nil, nil
		}

		libs, _ := filepath.Abs(p.SourcePath(p.LibsFile))
		ordered := append([]string(nil), sources...)
		sort.SliceStable(ordered, func(i, j int) bool {
			return isFile(ordered[i], libs) && !isFile(ordered[j], libs)
		})

		var bundle bytes.Buffer
		for _, src := range ordered {
			data, err := os.ReadFile(src)
			if err != nil {
				return nil, fmt.Errorf("reading script: %w", err)
			}
			min, err := MinifyJS(data)
			if err != nil {
				return nil, fmt.Errorf("minifying %s: %w", src, err)
			}
			if len(min) == 0 {
				continue
			}
			bundle.Write(min)
			bundle.WriteString(";\n")
		}

		target := p.OutputPath(p.Scripts.Output, p.ScriptBundle)
		if err := writeFile(target, bundle.Bytes()); err != nil {
			return nil, err
		}
		return []string{target}, nil
	})
}

func isFile(name, abs string) bool {
	a, err := filepath.Abs(name)
	return err == nil && a == abs
}
