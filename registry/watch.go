package registry

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reports changes to artifact files after they were loaded. The loaded
// Set is never touched; a changed artifact only takes effect after a restart.
type Watcher struct {
	fsw      *fsnotify.Watcher
	files    map[string]string
	logger   *zap.Logger
	onChange func(model, path string)
}

// NewWatcher watches the artifact directory of l.
func NewWatcher(l *Loader, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(l.Dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", l.Dir, err)
	}
	files := make(map[string]string, len(Entries))
	for _, e := range Entries {
		files[filepath.Clean(l.Path(e))] = e.Name
	}
	return &Watcher{fsw: fsw, files: files, logger: logger}, nil
}

// OnChange registers a callback invoked for every relevant event.
func (w *Watcher) OnChange(fn func(model, path string)) {
	w.onChange = fn
}

// Run blocks until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return w.fsw.Close()
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			model, tracked := w.files[filepath.Clean(ev.Name)]
			if !tracked || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) {
				continue
			}
			w.logger.Warn("model artifact changed on disk; restart to reload",
				zap.String("model", model),
				zap.String("path", ev.Name),
				zap.String("op", ev.Op.String()))
			if w.onChange != nil {
				w.onChange(model, ev.Name)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("artifact watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) Close() error {
	return w.fsw.Close()
}
