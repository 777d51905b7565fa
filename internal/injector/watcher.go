package injector

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watcher triggers re-injection when addon files change on disk without
// going through the lifecycle manager.
type Watcher struct {
	dirs    []string
	trigger func()
	log     *slog.Logger
}

func NewWatcher(dirs []string, trigger func(), log *slog.Logger) *Watcher {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Watcher{dirs: dirs, trigger: trigger, log: log}
}

// Run watches until ctx is cancelled. Addon subfolders are added as they
// appear.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	for _, dir := range w.dirs {
		if err := w.addTree(fw, dir); err != nil {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if isTempFile(ev.Name) || ev.Op == fsnotify.Chmod {
				continue
			}
			if ev.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					fw.Add(ev.Name)
				}
			}
			w.log.Debug("addon files changed", "path", ev.Name, "op", ev.Op.String())
			w.trigger()

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", "err", err)
		}
	}
}

func (w *Watcher) addTree(fw *fsnotify.Watcher, dir string) error {
	if err := fw.Add(dir); err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			if err := fw.Add(filepath.Join(dir, e.Name())); err != nil {
				w.log.Debug("cannot watch addon folder", "dir", e.Name(), "err", err)
			}
		}
	}
	return nil
}

func isTempFile(name string) bool {
	return strings.HasSuffix(name, ".tmp")
}
