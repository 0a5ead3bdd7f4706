package persona

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// settle is how long the file must stay quiet before it is read. Editors
// write in bursts.
const settle = 100 * time.Millisecond

// Watcher keeps a catalog loaded from a file and reloads it when the file
// changes. An invalid file is logged and the previous catalog is kept.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	onChange func(*Catalog)
	log      *log.Logger

	mu      sync.RWMutex
	current *Catalog
}

// Watch loads path and starts watching its directory. Editors often
// replace files instead of writing them, so the directory is watched and
// events are filtered by name. onChange may be nil.
func Watch(path string, onChange func(*Catalog)) (*Watcher, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("error creating fsnotify watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("error adding dir to fsnotify watcher: %w", err)
	}

	w := &Watcher{
		path:     path,
		watcher:  fw,
		onChange: onChange,
		log:      log.WithPrefix("persona"),
		current:  c,
	}
	w.log.Info("Watching persona catalog", "path", path, "personas", c.Len())
	return w, nil
}

// Current returns the most recently loaded valid catalog.
func (w *Watcher) Current() *Catalog {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Run handles file events until ctx is cancelled or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	timer := time.NewTimer(settle)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-timer.C:
			w.reload()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.log.Debug("fsnotify event", "file", event.Name, "event", event.Op)
			timer.Reset(settle)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Debug("fsnotify error", "path", w.path, "error", err)
		}
	}
}

func (w *Watcher) reload() {
	c, err := Load(w.path)
	if err != nil {
		w.log.Warn("Keeping previous persona catalog", "error", err)
		return
	}

	w.mu.Lock()
	w.current = c
	w.mu.Unlock()

	w.log.Info("Persona catalog reloaded", "personas", c.Len())
	if w.onChange != nil {
		w.onChange(c)
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
