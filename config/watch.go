package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"hark/log"
)

// reloadSettle coalesces the event bursts editors produce when they
// write a file (truncate, write, chmod, rename into place).
const reloadSettle = 200 * time.Millisecond

// Watcher reloads the config when the file changes on disk and hands
// the result to a callback. A file that fails to parse is reported and
// otherwise ignored; the previous config stays in effect.
type Watcher struct {
	fw   *fsnotify.Watcher
	path string

	mu      sync.Mutex
	pending *time.Timer

	done chan struct{}
	once sync.Once
}

// Watch starts watching path's directory. Watching the directory
// instead of the file survives editors that replace the file.
func Watch(path string, onChange func(*Config)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{
		fw:   fw,
		path: path,
		done: make(chan struct{}),
	}
	go w.run(onChange)
	return w, nil
}

// Close stops the watcher. Safe to call twice.
func (w *Watcher) Close() {
	w.once.Do(func() {
		close(w.done)
		w.fw.Close()
	})
}

func (w *Watcher) run(onChange func(*Config)) {
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			w.scheduleReload(onChange)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			log.Warnf("config watcher: %v", err)
		}
	}
}

// scheduleReload resets the settle timer so only the last event of a
// burst triggers a reload.
func (w *Watcher) scheduleReload(onChange func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending != nil {
		w.pending.Stop()
	}
	w.pending = time.AfterFunc(reloadSettle, func() {
		select {
		case <-w.done:
			return
		default:
		}
		cfg, err := Load(w.path)
		if err != nil {
			log.Warnf("config reload failed, keeping previous: %v", err)
			return
		}
		log.Info("config reloaded")
		onChange(cfg)
	})
}
