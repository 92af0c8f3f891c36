// Package registry tracks the rules workbooks in a workspace
// directory. Documents are discovered by scanning for .xlsx files and
// loaded lazily on first access; Reload rescans after filesystem
// changes.
package registry

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/neatkit/neat/pkg/rules"
	"github.com/neatkit/neat/pkg/rules/excel"
)

// Document is one rules workbook known to the registry.
type Document struct {
	// Name is the workbook filename without extension, unique within
	// the registry.
	Name string
	Path string

	mu       sync.Mutex
	model    *rules.Model
	snapshot *rules.Model
	loadErr  error
	loaded   bool
}

// Load reads the workbook on first call and caches the result.
func (d *Document) Load() (*rules.Model, *rules.Model, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.loaded {
		d.model, d.snapshot, d.loadErr = excel.Read(d.Path)
		d.loaded = true
	}
	return d.model, d.snapshot, d.loadErr
}

// Registry is a thread-safe index of the workspace's rules documents.
type Registry struct {
	dir    string
	logger *slog.Logger

	mu   sync.RWMutex
	docs map[string]*Document
}

// New creates a registry over the given rules directory. Call Reload
// to populate it.
func New(dir string, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		dir:    dir,
		logger: logger,
		docs:   make(map[string]*Document),
	}
}

// Dir returns the scanned directory.
func (r *Registry) Dir() string { return r.dir }

// Reload rescans the rules directory. Documents whose files are gone
// are dropped; unchanged paths keep their cached models.
func (r *Registry) Reload() error {
	found := make(map[string]*Document)

	err := filepath.WalkDir(r.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".xlsx") {
			return nil
		}
		// Spreadsheet applications leave ~$ lock files next to open
		// workbooks.
		if strings.HasPrefix(filepath.Base(path), "~$") {
			return nil
		}
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		if prev, dup := found[name]; dup {
			return fmt.Errorf("duplicate rules document name %q (%s and %s)", name, prev.Path, path)
		}
		found[name] = &Document{Name: name, Path: path}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to scan rules directory: %w", err)
	}

	r.mu.Lock()
	for name, doc := range found {
		if prev, ok := r.docs[name]; ok && prev.Path == doc.Path {
			found[name] = prev
		} else {
			r.logger.Debug("rules document discovered", slog.String("name", name), slog.String("path", doc.Path))
		}
	}
	r.docs = found
	r.mu.Unlock()
	return nil
}

// Get returns a document by name.
func (r *Registry) Get(name string) (*Document, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.docs[name]
	return doc, ok
}

// List returns all documents sorted by name.
func (r *Registry) List() []*Document {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Document, 0, len(r.docs))
	for _, doc := range r.docs {
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Count returns the number of known documents.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.docs)
}

// Invalidate drops the cached model for a document so the next Load
// rereads the file. Used when a watcher reports a change.
func (r *Registry) Invalidate(name string) {
	r.mu.RLock()
	doc, ok := r.docs[name]
	r.mu.RUnlock()
	if !ok {
		return
	}
	doc.mu.Lock()
	doc.loaded = false
	doc.model = nil
	doc.snapshot = nil
	doc.loadErr = nil
	doc.mu.Unlock()
}
