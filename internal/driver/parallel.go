package driver

import (
	"context"
	"io/fs"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

// SourceExt is the extension of textual Drift IR modules.
const SourceExt = ".dir"

// ListSourceFiles returns every *.dir file under dir, sorted for a
// deterministic compile order.
func ListSourceFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, SourceExt) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// CompileAll compiles the files in parallel, one session per file.
// Results keep the input order; the first failure cancels the group and
// is returned alongside whatever completed.
func CompileAll(ctx context.Context, files []string, opts Options) ([]*Result, error) {
	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	if len(files) == 0 {
		return nil, nil
	}

	// Indexes are unique per goroutine; no mutex needed.
	results := make([]*Result, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(files)))

	for i, path := range files {
		i, path := i, path
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			res, err := CompileFile(path, opts)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
