package driver

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounce collapses editor write bursts into one rebuild.
const watchDebounce = 150 * time.Millisecond

// Watch rebuilds changed IR files until ctx is cancelled. The callback
// receives each rebuild outcome; a failed rebuild does not stop the
// loop. Files sharing a directory share one watcher entry.
func Watch(ctx context.Context, files []string, opts Options, onResult func(*Result, error)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	watched := make(map[string]bool, len(files))
	dirs := make(map[string]bool)
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return err
		}
		watched[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := w.Add(dir); err != nil {
			return err
		}
	}

	// path → original (relative) spelling for rebuilds.
	spelling := make(map[string]string, len(files))
	for _, f := range files {
		abs, _ := filepath.Abs(f)
		spelling[abs] = f
	}

	pending := make(map[string]bool)
	var timer *time.Timer
	var fire <-chan time.Time

	rebuild := func() {
		for abs := range pending {
			delete(pending, abs)
			res, err := CompileFile(spelling[abs], opts)
			if onResult != nil {
				onResult(res, err)
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			abs, err := filepath.Abs(ev.Name)
			if err != nil || !watched[abs] || !strings.HasSuffix(abs, SourceExt) {
				continue
			}
			pending[abs] = true
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(watchDebounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			rebuild()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			if err != nil {
				return err
			}
		}
	}
}
