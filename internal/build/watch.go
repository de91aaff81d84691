package build

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period after the last file event before a
// rebuild starts.
const DefaultDebounce = 200 * time.Millisecond

// PublishCallback is called after a generation becomes current.
type PublishCallback func(*Generation)

// Watcher rebuilds the content tree whenever a file under root changes.
type Watcher struct {
	Root     string
	Builder  *Builder
	Store    *Store
	Logger   *slog.Logger
	Debounce time.Duration
	// Ignore lists directories (absolute) whose events never trigger a
	// rebuild, such as an output dir inside the content root.
	Ignore    []string
	OnPublish PublishCallback
}

type buildResult struct {
	gen *Generation
	err error
}

// Run performs an initial build, then watches Root until ctx is cancelled.
// A new change cancels the build in flight; only the newest completed
// generation is published.
func (w *Watcher) Run(ctx context.Context) error {
	debounce := w.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := w.addDirsRecursive(fw, w.Root); err != nil {
		return err
	}
	w.Logger.Info("watcher: started", slog.String("root", w.Root))

	results := make(chan buildResult, 1)
	var cancelBuild context.CancelFunc
	start := func() {
		if cancelBuild != nil {
			cancelBuild()
		}
		bctx, cancel := context.WithCancel(ctx)
		cancelBuild = cancel
		go func() {
			gen, err := w.Builder.Build(bctx)
			select {
			case results <- buildResult{gen: gen, err: err}:
			case <-ctx.Done():
			}
		}()
	}
	defer func() {
		if cancelBuild != nil {
			cancelBuild()
		}
	}()

	var timer *time.Timer
	var timerCh <-chan time.Time
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(debounce)
			timerCh = timer.C
		} else {
			timer.Reset(debounce)
		}
	}

	start()
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			w.Logger.Info("watcher: stopped")
			return nil

		case <-timerCh:
			start()

		case res := <-results:
			w.handleResult(res)

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if w.ignored(ev.Name) {
				continue
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := w.addDirsRecursive(fw, ev.Name); addErr != nil {
						w.Logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
				}
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.Logger.Debug("watcher: change", slog.String("path", ev.Name), slog.String("op", ev.Op.String()))
			schedule()

		case watchErr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.Logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func (w *Watcher) handleResult(res buildResult) {
	switch {
	case errors.Is(res.err, context.Canceled):
		w.Logger.Debug("watcher: build superseded")
	case res.err != nil:
		w.Logger.Error("watcher: build failed", slog.String("error", res.err.Error()))
	case !w.Store.Publish(res.gen):
		w.Logger.Debug("watcher: stale generation discarded", slog.Uint64("generation", res.gen.ID))
	default:
		if w.OnPublish != nil {
			w.OnPublish(res.gen)
		}
	}
}

func (w *Watcher) ignored(p string) bool {
	// Hidden entries include .git and the atomic-write temp files.
	if base := filepath.Base(p); strings.HasPrefix(base, ".") && base != "." {
		return true
	}
	for _, dir := range w.Ignore {
		if p == dir || strings.HasPrefix(p, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func (w *Watcher) addDirsRecursive(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && w.ignored(p) {
			return filepath.SkipDir
		}
		return fw.Add(p)
	})
}
