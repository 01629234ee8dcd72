package level

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

//go:embed levels/*.yaml
var levelsFS embed.FS

// ErrLevelOutOfRange is returned for a level index the catalog does not have.
var ErrLevelOutOfRange = errors.New("level index out of range")

const reloadDebounce = 100 * time.Millisecond

// Catalog is the ordered set of playable levels. Built-in levels are embedded;
// files in an optional directory override them by file name or add new ones.
type Catalog struct {
	mu     sync.RWMutex
	dir    string
	levels []*LevelConfig
	logger *slog.Logger
}

// NewCatalog loads the embedded levels and, when dir is set, the levels on disk.
func NewCatalog(dir string, logger *slog.Logger) (*Catalog, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Catalog{dir: dir, logger: logger}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload re-reads every level. On error the previous set stays active.
func (c *Catalog) Reload() error {
	byName := make(map[string]*LevelConfig)

	err := fs.WalkDir(levelsFS, "levels", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !isLevelFile(path) {
			return err
		}
		data, err := levelsFS.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read embedded level %s: %w", path, err)
		}
		l, err := loadLevel(data, path)
		if err != nil {
			return err
		}
		byName[filepath.Base(path)] = l
		return nil
	})
	if err != nil {
		return err
	}

	if c.dir != "" {
		entries, err := os.ReadDir(c.dir)
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to read levels directory: %w", err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !isLevelFile(entry.Name()) {
				continue
			}
			path := filepath.Join(c.dir, entry.Name())
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read level %s: %w", path, err)
			}
			l, err := loadLevel(data, path)
			if err != nil {
				return err
			}
			byName[entry.Name()] = l
		}
	}

	levels := make([]*LevelConfig, 0, len(byName))
	seen := make(map[int]string, len(byName))
	for name, l := range byName {
		if other, ok := seen[l.ID]; ok {
			return fmt.Errorf("level id %d defined by both %s and %s", l.ID, other, name)
		}
		seen[l.ID] = name
		levels = append(levels, l)
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i].ID < levels[j].ID })

	c.mu.Lock()
	c.levels = levels
	c.mu.Unlock()

	c.logger.Debug("Levels loaded", "count", len(levels), "dir", c.dir)
	return nil
}

func loadLevel(data []byte, path string) (*LevelConfig, error) {
	l, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := l.Validate(); err != nil {
		return nil, fmt.Errorf("%s: invalid level: %w", path, err)
	}
	return l, nil
}

func isLevelFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.levels)
}

// Get returns a copy of the level at the zero-based index.
func (c *Catalog) Get(index int) (*LevelConfig, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if index < 0 || index >= len(c.levels) {
		return nil, fmt.Errorf("%w: %d (have %d)", ErrLevelOutOfRange, index, len(c.levels))
	}
	return c.levels[index].Clone(), nil
}

// IndexOf returns the index of the level with the given id.
func (c *Catalog) IndexOf(id int) (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i, l := range c.levels {
		if l.ID == id {
			return i, true
		}
	}
	return 0, false
}

// All returns copies of every level in order.
func (c *Catalog) All() []*LevelConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*LevelConfig, len(c.levels))
	for i, l := range c.levels {
		out[i] = l.Clone()
	}
	return out
}

// Watch reloads the catalog whenever a level file in the directory changes,
// until ctx is done. onReload, if set, is called after each successful reload.
func (c *Catalog) Watch(ctx context.Context, onReload func()) error {
	if c.dir == "" {
		return errors.New("catalog has no levels directory to watch")
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create level watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(c.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", c.dir, err)
	}

	last := make(map[string]time.Time)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if !isLevelFile(event.Name) {
				continue
			}
			now := time.Now()
			if t, ok := last[event.Name]; ok && now.Sub(t) < reloadDebounce {
				continue
			}

			// a half-written file fails here and is retried on its next event
			if err := c.Reload(); err != nil {
				c.logger.Warn("Level reload failed, keeping previous levels", "file", event.Name, "error", err)
				continue
			}
			last[event.Name] = now
			c.logger.Info("Levels reloaded", "file", event.Name)
			if onReload != nil {
				onReload()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			c.logger.Warn("Level watcher error", "error", err)
		}
	}
}
