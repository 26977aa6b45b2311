package language

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Loader loads keyword profiles from YAML files and optionally hot-reloads
// them. Profiles from files are merged over the built-in defaults.
type Loader struct {
	dir string

	mu        sync.RWMutex
	heuristic *Heuristic
}

// NewLoader creates a loader for dir. An empty dir means built-in profiles only.
func NewLoader(dir string) *Loader {
	return &Loader{
		dir:       dir,
		heuristic: DefaultHeuristic(),
	}
}

// Heuristic returns the most recently loaded heuristic.
func (l *Loader) Heuristic() *Heuristic {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.heuristic
}

// Detect runs the current heuristic.
func (l *Loader) Detect(text string) (Language, bool) {
	return l.Heuristic().Detect(text)
}

// LoadAll reads every .yaml and .yml file in the configured directory.
// On error the previously loaded heuristic stays in place.
func (l *Loader) LoadAll() error {
	if l.dir == "" {
		return nil
	}
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return fmt.Errorf("read keyword dir %q: %w", l.dir, err)
	}

	profiles := DefaultProfiles()
	for _, entry := range entries {
		if entry.IsDir() || !isYAML(entry.Name()) {
			continue
		}
		path := filepath.Join(l.dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("load %q: %w", path, err)
		}
		extra, err := parseProfiles(data)
		if err != nil {
			return fmt.Errorf("load %q: %w", path, err)
		}
		profiles = append(profiles, extra...)
	}

	h, err := NewHeuristic(profiles)
	if err != nil {
		return err
	}

	l.mu.Lock()
	l.heuristic = h
	l.mu.Unlock()
	return nil
}

// WatchAndReload watches the keyword directory and reloads on writes and
// creates. It blocks until done is closed.
func (l *Loader) WatchAndReload(done <-chan struct{}) error {
	if l.dir == "" {
		<-done
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(l.dir); err != nil {
		return fmt.Errorf("watch dir %q: %w", l.dir, err)
	}

	for {
		select {
		case <-done:
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if (event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove)) && isYAML(event.Name) {
				if err := l.LoadAll(); err != nil {
					slog.Warn("keyword profile reload failed", slog.String("error", err.Error()))
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}

func isYAML(name string) bool {
	ext := filepath.Ext(name)
	return ext == ".yaml" || ext == ".yml"
}
