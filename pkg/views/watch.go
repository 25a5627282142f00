package views

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"tableflip.dev/jot/pkg/entry"
)

// Event reports that a saved view changed on disk.
type Event struct {
	Module entry.Module
	Name   string
}

// Watch streams change events for saved views until ctx is cancelled, so a
// view edited outside the process (or by another instance) reloads. Callers
// should drain the channel; bursts are coalesced and stragglers dropped.
func (v *Views) Watch(ctx context.Context) (<-chan Event, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("views: create watcher: %w", err)
	}

	var closeOnce sync.Once
	closeWatcher := func() {
		closeOnce.Do(func() {
			if err := watcher.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "views: watcher close: %v\n", err)
			}
		})
	}

	dirs := []string{v.basePath}
	entries, err := os.ReadDir(v.basePath)
	if err != nil {
		closeWatcher()
		return nil, fmt.Errorf("views: enumerate directories: %w", err)
	}
	for _, de := range entries {
		if de.IsDir() {
			dirs = append(dirs, filepath.Join(v.basePath, de.Name()))
		}
	}
	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			closeWatcher()
			return nil, fmt.Errorf("views: watch %s: %w", dir, err)
		}
	}

	events := make(chan Event, 16)

	go func() {
		defer close(events)
		defer closeWatcher()

		watched := make(map[string]struct{}, len(dirs))
		for _, dir := range dirs {
			watched[dir] = struct{}{}
		}

		send := func(ev Event) {
			select {
			case events <- ev:
			default:
				// Drop when the consumer lags; the next reload reads
				// current state anyway.
			}
		}

		pending := make(map[Event]struct{})
		var timer *time.Timer
		var mu sync.Mutex
		flush := func() {
			mu.Lock()
			batch := pending
			pending = make(map[Event]struct{})
			timer = nil
			mu.Unlock()
			for ev := range batch {
				send(ev)
			}
		}
		enqueue := func(ev Event) {
			mu.Lock()
			pending[ev] = struct{}{}
			if timer == nil {
				timer = time.AfterFunc(100*time.Millisecond, flush)
			}
			mu.Unlock()
		}

		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				fmt.Fprintf(os.Stderr, "views: watcher: %v\n", err)
			case evt, ok := <-watcher.Events:
				if !ok {
					return
				}
				if evt.Op&fsnotify.Create == fsnotify.Create {
					// A new module directory appears the first time a view
					// for that module is saved; start watching it.
					if info, err := os.Stat(evt.Name); err == nil && info.IsDir() {
						dir := filepath.Clean(evt.Name)
						if _, found := watched[dir]; !found {
							if err := watcher.Add(dir); err != nil {
								fmt.Fprintf(os.Stderr, "views: watch %s: %v\n", dir, err)
							} else {
								watched[dir] = struct{}{}
							}
						}
						continue
					}
				}
				if ev, ok := v.eventForPath(evt.Name); ok {
					enqueue(ev)
				}
			}
		}
	}()

	return events, nil
}

// eventForPath derives the module and view name from a changed file path.
func (v *Views) eventForPath(path string) (Event, bool) {
	rel, err := filepath.Rel(v.basePath, path)
	if err != nil || rel == "." {
		return Event{}, false
	}
	parts := strings.Split(rel, string(os.PathSeparator))
	if len(parts) != 2 {
		return Event{}, false
	}
	m, err := entry.ParseModule(parts[0])
	if err != nil {
		return Event{}, false
	}
	return Event{Module: m, Name: parts[1]}, true
}
