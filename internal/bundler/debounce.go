package bundler

import (
	"sync"
	"time"
)

// Debouncer batches bursts of file changes per key. The callback runs once
// the key has been quiet for the window, with every path seen in the burst.
type Debouncer struct {
	mu      sync.Mutex
	window  time.Duration
	pending map[string]*debounceEntry
}

type debounceEntry struct {
	paths    []string
	timer    *time.Timer
	callback func([]string)
}

func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window:  window,
		pending: make(map[string]*debounceEntry),
	}
}

// Submit records path under key and (re)starts the key's quiet window.
func (d *Debouncer) Submit(key, path string, callback func(paths []string)) {
	d.mu.Lock()
	defer d.mu.Unlock()

	entry, exists := d.pending[key]
	if exists {
		entry.timer.Stop()
		entry.paths = appendUnique(entry.paths, path)
		entry.callback = callback
	} else {
		entry = &debounceEntry{
			paths:    []string{path},
			callback: callback,
		}
		d.pending[key] = entry
	}

	entry.timer = time.AfterFunc(d.window, func() {
		d.mu.Lock()
		e, ok := d.pending[key]
		if ok {
			delete(d.pending, key)
		}
		d.mu.Unlock()

		if ok && e.callback != nil {
			e.callback(e.paths)
		}
	})
}

// Stop drops every pending callback.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key, e := range d.pending {
		e.timer.Stop()
		delete(d.pending, key)
	}
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
