package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/chazu/implicad/pkg/logging"
	"github.com/fsnotify/fsnotify"
	trylock "github.com/subchen/go-trylock/v2"
)

// errEmptyScript marks a script caught between truncate and write.
var errEmptyScript = errors.New("script is empty")

// tryLocker is the part of the trylock API the watcher uses.
type tryLocker interface {
	TryLock(ctx context.Context) bool
	Unlock()
}

// Watcher reruns a script whenever it changes on disk. A change that
// arrives while a run is in progress is folded into one more run after it.
type Watcher struct {
	app    *App
	path   string
	onRun  func(EvalResult)
	settle time.Duration

	running tryLocker
	pending atomic.Bool
}

// NewWatcher watches the script at path; onRun receives every result.
func NewWatcher(app *App, path string, onRun func(EvalResult)) *Watcher {
	return &Watcher{
		app:     app,
		path:    path,
		onRun:   onRun,
		settle:  50 * time.Millisecond,
		running: trylock.New(),
	}
}

// Run evaluates the script once, then again after each change, until ctx
// is done.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer fw.Close()

	// Editors often replace the file instead of writing it, so watch the
	// directory and filter by name.
	abs, err := filepath.Abs(w.path)
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch: %w", err)
	}

	w.trigger(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				logging.Logger().Debug("watch: change", "file", ev.Name, "op", ev.Op.String())
				w.trigger(ctx)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logging.Logger().Warn("watch: watcher error", "err", err)
		}
	}
}

// trigger starts a run unless one is already going, in which case the
// running one repeats when it finishes.
func (w *Watcher) trigger(ctx context.Context) {
	w.pending.Store(true)
	lockCtx, cancel := context.WithTimeout(ctx, time.Millisecond)
	defer cancel()
	if !w.running.TryLock(lockCtx) {
		return
	}
	go func() {
		for w.pending.Swap(false) && ctx.Err() == nil {
			w.runOnce(ctx)
		}
		w.running.Unlock()
		// A trigger between the last Swap and Unlock found the lock held.
		if w.pending.Load() && ctx.Err() == nil {
			w.trigger(ctx)
		}
	}()
}

func (w *Watcher) runOnce(ctx context.Context) {
	// Let a burst of events from one save settle.
	select {
	case <-time.After(w.settle):
	case <-ctx.Done():
		return
	}
	if err := w.waitReadable(ctx); err != nil {
		w.onRun(EvalResult{Errors: []EvalErrorData{{Message: err.Error()}}})
		return
	}
	w.onRun(w.app.EvaluateFile(w.path))
}

// waitReadable retries until the script exists and is non-empty, which
// covers editors that truncate before writing.
func (w *Watcher) waitReadable(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxElapsedTime = 2 * time.Second
	return backoff.Retry(func() error {
		fi, err := os.Stat(w.path)
		if err != nil {
			return err
		}
		if fi.Size() == 0 {
			return errEmptyScript
		}
		return nil
	}, backoff.WithContext(b, ctx))
}
