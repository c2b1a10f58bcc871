package normalisers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/scholar/internal/core/domain"
	"github.com/custodia-labs/scholar/internal/core/ports/driven"
	"github.com/custodia-labs/scholar/internal/normalisers/converted"
	"github.com/custodia-labs/scholar/internal/normalisers/html"
	"github.com/custodia-labs/scholar/internal/normalisers/markdown"
	"github.com/custodia-labs/scholar/internal/normalisers/plaintext"
)

// Ensure Registry implements the interface.
var _ driven.NormaliserRegistry = (*Registry)(nil)

// Registry selects a normaliser by file extension.
// When several normalisers claim an extension the highest priority wins.
type Registry struct {
	mu    sync.RWMutex
	byExt map[string][]driven.Normaliser
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byExt: make(map[string][]driven.Normaliser)}
}

// DefaultRegistry returns a registry with the built-in normalisers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(converted.New())
	r.Register(markdown.New())
	r.Register(html.New())
	r.Register(plaintext.New())
	return r
}

// Register adds a normaliser to the registry.
func (r *Registry) Register(n driven.Normaliser) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ext := range n.SupportedExtensions() {
		ext = strings.ToLower(ext)
		list := append(r.byExt[ext], n)
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].Priority() > list[j].Priority()
		})
		r.byExt[ext] = list
	}
}

// Supports reports whether path has a registered extension.
// Metadata side files are never loadable on their own.
func (r *Registry) Supports(path string) bool {
	if converted.IsSidecar(path) {
		return false
	}
	return r.lookup(path) != nil
}

// Extensions returns the registered extensions, sorted.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

func (r *Registry) lookup(path string) driven.Normaliser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.byExt[strings.ToLower(filepath.Ext(path))]
	if len(list) == 0 {
		return nil
	}
	return list[0]
}

// Load reads path and normalises it. The document's SourcePath is set and
// its paper id defaults to the file stem.
func (r *Registry) Load(ctx context.Context, path string) (*domain.Document, error) {
	if converted.IsSidecar(path) {
		return nil, fmt.Errorf("%w: %s is a metadata side file", domain.ErrUnsupportedType, path)
	}
	n := r.lookup(path)
	if n == nil {
		return nil, fmt.Errorf("%w: no loader for %q", domain.ErrUnsupportedType, filepath.Ext(path))
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, path)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	doc, err := n.Normalise(ctx, path, content)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	if doc.PaperID == "" {
		doc.PaperID = converted.Stem(path)
	}
	if abs, err := filepath.Abs(path); err == nil {
		doc.SourcePath = abs
	} else {
		doc.SourcePath = path
	}
	return doc, nil
}
