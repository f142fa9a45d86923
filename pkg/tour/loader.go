package tour

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Loader loads and optionally hot-reloads tour definitions from YAML files.
// It implements Source.
type Loader struct {
	dir string

	mu    sync.RWMutex
	tours map[string]*Definition
}

// NewLoader creates a new tour loader for the given directory.
func NewLoader(dir string) *Loader {
	return &Loader{
		dir:   dir,
		tours: make(map[string]*Definition),
	}
}

// LoadAll loads all .yaml and .yml files from the configured directory.
// A single malformed file fails the whole load and keeps the previous set.
func (l *Loader) LoadAll() (map[string]*Definition, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("read tour dir %q: %w", l.dir, err)
	}

	result := make(map[string]*Definition)
	for _, entry := range entries {
		if entry.IsDir() || !isYAML(entry.Name()) {
			continue
		}

		path := filepath.Join(l.dir, entry.Name())
		d, err := loadFile(path)
		if err != nil {
			return nil, fmt.Errorf("load %q: %w", path, err)
		}
		if _, dup := result[d.ID]; dup {
			return nil, fmt.Errorf("load %q: duplicate tour id %q", path, d.ID)
		}
		result[d.ID] = d
	}

	l.mu.Lock()
	l.tours = result
	l.mu.Unlock()

	return result, nil
}

// Get returns a loaded definition by id, published or not.
func (l *Loader) Get(id string) (*Definition, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	d, ok := l.tours[id]
	return d, ok
}

// GetPublishedTour implements Source. Drafts are reported as not found.
func (l *Loader) GetPublishedTour(_ context.Context, id string) (*Definition, error) {
	d, ok := l.Get(id)
	if !ok || !d.Published {
		return nil, ErrNotFound
	}
	return d, nil
}

// All returns every loaded definition.
func (l *Loader) All() map[string]*Definition {
	l.mu.RLock()
	defer l.mu.RUnlock()
	result := make(map[string]*Definition, len(l.tours))
	for k, v := range l.tours {
		result[k] = v
	}
	return result
}

func loadFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var d Definition
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	if d.ID == "" {
		base := filepath.Base(path)
		d.ID = base[:len(base)-len(filepath.Ext(base))]
	}

	if err := Validate(&d); err != nil {
		return nil, err
	}
	return &d, nil
}

func isYAML(name string) bool {
	ext := filepath.Ext(name)
	return ext == ".yaml" || ext == ".yml"
}

// WatchAndReload watches the tour directory and reloads on writes.
// It blocks until done is closed.
func (l *Loader) WatchAndReload(done <-chan struct{}) error {
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
			if !isYAML(event.Name) {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				if _, err := l.LoadAll(); err != nil {
					slog.Warn("tour reload failed, keeping previous definitions",
						slog.String("dir", l.dir), slog.String("error", err.Error()))
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
