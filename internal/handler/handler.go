// Package handler implements the document handler registry (§4.10, §6):
// an extension-keyed, priority-ordered lookup of handlers that turn a
// file on disk into markdown for the rest of the pipeline.
package handler

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// DocumentContent is what a handler produces from a file.
type DocumentContent struct {
	Markdown    string
	Title       string
	ContentType string
	Metadata    map[string]string
	Assets      []string
}

// Options passes handler-specific knobs through Process; handlers that
// don't need any simply ignore it.
type Options struct {
	MaxSizeBytes int64
}

// Handler is implemented by anything that can turn a file into markdown.
// Higher Priority wins when more than one handler claims an extension.
type Handler interface {
	SupportedExtensions() []string
	Priority() int
	Name() string
	CanHandle(path string) bool
	Process(ctx context.Context, path string, opts Options) (DocumentContent, error)
}

// Registry is an extension-keyed, priority-ordered handler lookup.
// Concurrent registration and lookup are both safe.
type Registry struct {
	mu    sync.RWMutex
	byExt map[string][]Handler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byExt: make(map[string][]Handler)}
}

// Register adds h under every extension it declares, keeping each
// extension's handler list sorted by descending priority.
func (r *Registry) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range h.SupportedExtensions() {
		ext = strings.ToLower(ext)
		r.byExt[ext] = append(r.byExt[ext], h)
		sort.SliceStable(r.byExt[ext], func(i, j int) bool {
			return r.byExt[ext][i].Priority() > r.byExt[ext][j].Priority()
		})
	}
}

// Resolve returns the highest-priority handler willing to handle path, or
// nil if none is registered for its extension (or none claims it via
// CanHandle).
func (r *Registry) Resolve(path string) Handler {
	ext := strings.ToLower(filepath.Ext(path))
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, h := range r.byExt[ext] {
		if h.CanHandle(path) {
			return h
		}
	}
	return nil
}
