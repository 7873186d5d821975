package watermark

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/MeKo-Tech/pixkit/internal/storage"
)

const defaultDebounce = 500 * time.Millisecond

// WatchEvent reports the outcome of one file handled by Watch.
type WatchEvent struct {
	Path   string
	Output string
	Err    error
}

// Watch watermarks files that are created or rewritten in the source
// directory until ctx is canceled. Events for the same file are coalesced
// over the configured debounce window. Outcomes are sent to events when it
// is non-nil; the caller must keep receiving until Watch returns.
func (p *Processor) Watch(ctx context.Context, events chan<- WatchEvent) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer func() { _ = w.Close() }()

	if err := w.Add(p.cfg.SourceDir); err != nil {
		return fmt.Errorf("failed to watch folder %s: %w", p.cfg.SourceDir, err)
	}
	p.logger.Info("Watching folder", "dir", p.cfg.SourceDir)

	debounce := defaultDebounce
	if p.cfg.WatchDebounceMS > 0 {
		debounce = time.Duration(p.cfg.WatchDebounceMS) * time.Millisecond
	}

	d := newDebouncer(debounce, func(path string) {
		out, err := p.ProcessFile(ctx, path)
		if err != nil {
			p.logger.Error("Failed to watermark file", "source", path, "error", err)
		}
		if events != nil {
			select {
			case events <- WatchEvent{Path: path, Output: out, Err: err}:
			case <-ctx.Done():
			}
		}
	})
	defer d.stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !p.watchable(event) {
				continue
			}

			d.trigger(event.Name)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			p.logger.Warn("Watcher error", "error", err)
		}
	}
}

// debouncer runs fn for a path once no new trigger for it arrived within
// delay.
type debouncer struct {
	delay time.Duration
	fn    func(path string)

	mu      sync.Mutex
	pending map[string]*debounceEntry
	wg      sync.WaitGroup
}

type debounceEntry struct {
	timer *time.Timer
}

func newDebouncer(delay time.Duration, fn func(path string)) *debouncer {
	return &debouncer{delay: delay, fn: fn, pending: make(map[string]*debounceEntry)}
}

func (d *debouncer) trigger(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if e, ok := d.pending[path]; ok && e.timer.Stop() {
		d.wg.Done()
	}
	e := &debounceEntry{}
	d.wg.Add(1)
	e.timer = time.AfterFunc(d.delay, func() { d.fire(path, e) })
	d.pending[path] = e
}

func (d *debouncer) fire(path string, e *debounceEntry) {
	defer d.wg.Done()

	d.mu.Lock()
	// A newer trigger may have replaced e after its timer fired.
	if d.pending[path] == e {
		delete(d.pending, path)
	}
	d.mu.Unlock()

	d.fn(path)
}

// stop cancels pending timers and waits for running callbacks.
func (d *debouncer) stop() {
	d.mu.Lock()
	for path, e := range d.pending {
		if e.timer.Stop() {
			d.wg.Done()
		}
		delete(d.pending, path)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (p *Processor) watchable(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return false
	}
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	if !p.Accepts(event.Name) {
		return false
	}
	// Outputs written back into the watched folder must not trigger again.
	if local, ok := p.store.(*storage.LocalStore); ok {
		return !sameDir(filepath.Dir(event.Name), local.Root())
	}
	return true
}

func sameDir(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}
