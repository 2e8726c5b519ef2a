package mlpx

import (
	"fmt"
	"sort"
	"sync"

	"mlpx/internal/model"
)

// Handle identifies a Document held by a Registry. Zero is never issued.
type Handle int

type registryEntry struct {
	mu  sync.Mutex
	doc *Document
}

// Registry maps integer handles to open documents for embedders that cannot
// hold Go pointers. Each entry carries its own mutex, so calls for one handle
// are serialized while different handles proceed independently.
type Registry struct {
	mu      sync.Mutex
	next    Handle
	entries map[Handle]*registryEntry
	opts    []Option
}

func NewRegistry(opts ...Option) *Registry {
	return &Registry{entries: make(map[Handle]*registryEntry), opts: opts}
}

// Add registers doc and returns its new handle.
func (r *Registry) Add(doc *Document) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	r.entries[r.next] = &registryEntry{doc: doc}
	return r.next
}

func (r *Registry) New() Handle {
	return r.Add(New(r.opts...))
}

func (r *Registry) Open(path string) (Handle, error) {
	doc, err := Open(path, r.opts...)
	if err != nil {
		return 0, err
	}
	return r.Add(doc), nil
}

func (r *Registry) entry(h Handle) (*registryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[h]
	if !ok {
		return nil, fmt.Errorf("%w: %d", model.ErrInvalidHandle, h)
	}
	return e, nil
}

// With runs fn while holding the handle's lock.
func (r *Registry) With(h Handle, fn func(*Document) error) error {
	e, err := r.entry(h)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.doc.closed {
		return fmt.Errorf("%w: %d", model.ErrInvalidHandle, h)
	}
	return fn(e.doc)
}

// Close closes the document and retires its handle.
func (r *Registry) Close(h Handle) error {
	e, err := r.entry(h)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.doc.Close(); err != nil {
		return fmt.Errorf("%w: %d", model.ErrInvalidHandle, h)
	}
	r.mu.Lock()
	delete(r.entries, h)
	r.mu.Unlock()
	return nil
}

func (r *Registry) Handles() []Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Handle, 0, len(r.entries))
	for h := range r.entries {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
