package bundler

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const debounceWindow = 200 * time.Millisecond

var skipDirs = map[string]bool{
	"node_modules": true,
	"dist":         true,
	".git":         true,
}

// Watcher reports source changes below a set of directories. Bursts are
// debounced and delivered as one call with every changed path.
type Watcher struct {
	fsw      *fsnotify.Watcher
	debounce *Debouncer
	onChange func(paths []string)
	done     chan struct{}
}

func NewWatcher(dirs []string, onChange func(paths []string)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fsw:      fsw,
		debounce: NewDebouncer(debounceWindow),
		onChange: onChange,
		done:     make(chan struct{}),
	}
	for _, dir := range dirs {
		if err := w.addTree(dir); err != nil {
			slog.Debug("watch dir skipped", "dir", dir, "error", err)
		}
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && skipDirs[d.Name()] {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case e, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if e.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if e.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(e.Name); err == nil && info.IsDir() {
					_ = w.addTree(e.Name)
				}
			}
			w.debounce.Submit("src", e.Name, w.onChange)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("watch error", "error", err)
		}
	}
}

func (w *Watcher) Close() error {
	w.debounce.Stop()
	err := w.fsw.Close()
	<-w.done
	return err
}
