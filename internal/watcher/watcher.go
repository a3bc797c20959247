// Package watcher propagates external edits to file sources. It
// watches the directories holding registered files and publishes a
// content event when one changes on disk, so subscribed clients see
// edits made outside the hub.
package watcher

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/ctxhub-ai/ctxhub/internal/bridge"
	"github.com/ctxhub-ai/ctxhub/internal/event"
	"github.com/ctxhub-ai/ctxhub/internal/logging"
	"github.com/ctxhub-ai/ctxhub/internal/store"
	"github.com/ctxhub-ai/ctxhub/pkg/types"
)

// DefaultDebounce is how long a burst of writes to one file is allowed
// to settle before a single event goes out.
const DefaultDebounce = 250 * time.Millisecond

// defaultIgnore covers paths that churn constantly and never back a
// source worth announcing.
var defaultIgnore = []string{
	".git/**",
	"**/node_modules/**",
	".ctxhub/**",
}

// Options configures a Watcher.
type Options struct {
	// Debounce overrides DefaultDebounce when positive.
	Debounce time.Duration

	// Ignore is a set of doublestar globs, relative to the workspace,
	// that replaces the default ignore list when non-empty.
	Ignore []string
}

// Watcher publishes content events for external edits to file sources.
// It watches only the parent directories of registered files and keeps
// that set current by listening for source events on the bus.
type Watcher struct {
	workspace string
	store     *store.Store
	bridge    *bridge.Bridge
	bus       *event.Bus
	fsw       *fsnotify.Watcher
	debounce  time.Duration
	ignore    []string

	mu      sync.Mutex
	watched map[string]bool
	pending map[string]*time.Timer
	started bool
	unsubs  []func()

	stopCh chan struct{}
	doneCh chan struct{}

	log zerolog.Logger
}

// New creates a watcher rooted at the workspace. The bridge is
// consulted so the hub's own writes do not echo back as events.
func New(workspace string, st *store.Store, br *bridge.Bridge, bus *event.Bus, opts Options) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	if resolved, err := filepath.EvalSymlinks(workspace); err == nil {
		workspace = resolved
	}

	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	ignore := opts.Ignore
	if len(ignore) == 0 {
		ignore = defaultIgnore
	}

	return &Watcher{
		workspace: filepath.Clean(workspace),
		store:     st,
		bridge:    br,
		bus:       bus,
		fsw:       fsw,
		debounce:  debounce,
		ignore:    ignore,
		watched:   make(map[string]bool),
		pending:   make(map[string]*time.Timer),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
		log:       logging.Component("watcher"),
	}, nil
}

// Start begins watching. Calling Start twice is a no-op.
func (w *Watcher) Start() {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.mu.Unlock()

	w.resync()
	for _, t := range []types.EventType{types.SourceAdded, types.SourceUpdated, types.SourceDeleted} {
		w.unsubs = append(w.unsubs, w.bus.Subscribe(t, func(types.ContextEvent) {
			w.resync()
		}))
	}

	go w.run()
	w.log.Info().Str("workspace", w.workspace).Dur("debounce", w.debounce).Msg("workspace watcher started")
}

func (w *Watcher) run() {
	defer close(w.doneCh)

	for {
		select {
		case <-w.stopCh:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				w.handleChange(ev.Name)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Error().Err(err).Msg("watcher error")
		}
	}
}

// handleChange maps a filesystem path back to a file source and, if it
// finds one, arms the debounce timer for it.
func (w *Watcher) handleChange(path string) {
	rel, err := filepath.Rel(w.workspace, path)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)

	if w.ignored(rel) {
		return
	}
	if w.bridge != nil && w.bridge.RecentlyWritten(rel, w.debounce+time.Second) {
		w.log.Trace().Str("path", rel).Msg("skipping own write")
		return
	}

	src := w.findFileSource(rel)
	if src == nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.pending[src.ID]; ok {
		timer.Reset(w.debounce)
		return
	}
	id, relPath := src.ID, rel
	w.pending[id] = time.AfterFunc(w.debounce, func() {
		w.fire(id, relPath)
	})
}

// fire publishes one event for a settled burst of changes. A backing
// file that disappeared is announced as a source update, not a content
// change.
func (w *Watcher) fire(id, rel string) {
	w.mu.Lock()
	delete(w.pending, id)
	w.mu.Unlock()

	if _, err := w.store.Touch(id); err != nil {
		// Source vanished while the timer was pending.
		w.log.Debug().Str("sourceId", id).Err(err).Msg("skipping event for removed source")
		return
	}

	if w.bridge != nil && !w.bridge.Exists(rel) {
		w.log.Debug().Str("sourceId", id).Str("path", rel).Msg("backing file removed")
		w.bus.Publish(event.New(types.SourceUpdated, id, types.SourceTypeFile, map[string]any{
			"path":    rel,
			"missing": true,
		}))
		return
	}

	w.log.Debug().Str("sourceId", id).Str("path", rel).Msg("external change detected")
	w.bus.Publish(event.New(types.ContentUpdated, id, types.SourceTypeFile, map[string]any{
		"path": rel,
	}))
}

func (w *Watcher) ignored(rel string) bool {
	for _, pattern := range w.ignore {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}

func (w *Watcher) findFileSource(rel string) *types.Source {
	for _, src := range w.store.List() {
		if src.Type == types.SourceTypeFile && filepath.ToSlash(filepath.Clean(src.Path)) == rel {
			return &src
		}
	}
	return nil
}

// resync recomputes the watched directory set from the store's file
// sources, adding new parents and dropping stale ones.
func (w *Watcher) resync() {
	want := make(map[string]bool)
	for _, src := range w.store.List() {
		if src.Type != types.SourceTypeFile || src.Path == "" {
			continue
		}
		dir := filepath.Dir(filepath.Join(w.workspace, filepath.FromSlash(src.Path)))
		want[dir] = true
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	for dir := range want {
		if w.watched[dir] {
			continue
		}
		if err := w.fsw.Add(dir); err != nil {
			w.log.Debug().Str("dir", dir).Err(err).Msg("cannot watch directory")
			continue
		}
		w.watched[dir] = true
		w.log.Trace().Str("dir", dir).Msg("watching directory")
	}
	for dir := range w.watched {
		if want[dir] {
			continue
		}
		if err := w.fsw.Remove(dir); err == nil {
			delete(w.watched, dir)
		}
	}
}

// Stop halts the watcher and waits for its loop to exit.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	started := w.started
	w.mu.Unlock()

	select {
	case <-w.stopCh:
	default:
		close(w.stopCh)
	}

	if started {
		<-w.doneCh
	}

	for _, unsub := range w.unsubs {
		unsub()
	}
	w.unsubs = nil

	w.mu.Lock()
	for _, timer := range w.pending {
		timer.Stop()
	}
	w.pending = make(map[string]*time.Timer)
	w.mu.Unlock()

	return w.fsw.Close()
}
