package catalog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/faciam-dev/formportal/internal/metrics"
)

// Store serves the current catalog and reloads it when its file changes.
type Store struct {
	path   string
	cur    atomic.Pointer[Catalog]
	logger *slog.Logger
}

// NewStore returns a Store holding the default catalog until Load succeeds.
// A nil logger discards reload logs.
func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Store{path: path, logger: logger}
	s.cur.Store(Default())
	return s
}

// Load reads the catalog file. An empty path keeps the defaults.
func (s *Store) Load() error {
	if s.path == "" {
		return nil
	}
	b, err := os.ReadFile(s.path)
	if err != nil {
		metrics.CatalogReloads.WithLabelValues("error").Inc()
		return fmt.Errorf("read catalog: %w", err)
	}
	var c Catalog
	if err := yaml.Unmarshal(b, &c); err != nil {
		metrics.CatalogReloads.WithLabelValues("error").Inc()
		return fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.normalize(); err != nil {
		metrics.CatalogReloads.WithLabelValues("error").Inc()
		return fmt.Errorf("catalog: %w", err)
	}
	s.cur.Store(&c)
	metrics.CatalogReloads.WithLabelValues("ok").Inc()
	s.logger.Info("catalog loaded", "path", s.path, "types", len(c.Types))
	return nil
}

// Watch reloads the catalog on file changes until ctx is done. A failed
// reload keeps the previous catalog.
func (s *Store) Watch(ctx context.Context) {
	if s.path == "" {
		return
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		s.logger.Error("watcher", "err", err)
		return
	}
	defer w.Close()
	if err := w.Add(s.path); err != nil {
		s.logger.Error("watch catalog", "path", s.path, "err", err)
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				time.Sleep(200 * time.Millisecond)
				if err := s.Load(); err != nil {
					s.logger.Error("reload failed", "err", err)
				}
				if ev.Has(fsnotify.Rename) {
					_ = w.Add(s.path)
				}
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			s.logger.Error("watch error", "err", err)
		}
	}
}

// Get returns the current catalog.
func (s *Store) Get() *Catalog {
	return s.cur.Load()
}
