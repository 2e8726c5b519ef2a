package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"mlpx/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	entries     map[string]model.ArchiveEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.entries = make(map[string]model.ArchiveEntry)
	return nil
}

func (s *MemoryStore) SaveDocument(_ context.Context, entry model.ArchiveEntry) error {
	if err := validateEntry(entry); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return errors.New("store is not initialized")
	}

	entry.Payload = append([]byte(nil), entry.Payload...)
	entry.Size = len(entry.Payload)
	s.entries[entry.ID] = entry
	return nil
}

func (s *MemoryStore) GetDocument(_ context.Context, id string) (model.ArchiveEntry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[id]
	if !ok {
		return model.ArchiveEntry{}, false, nil
	}
	entry.Payload = append([]byte(nil), entry.Payload...)
	return entry, true, nil
}

func (s *MemoryStore) ListDocuments(_ context.Context) ([]model.ArchiveEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.ArchiveEntry, 0, len(s.entries))
	for _, entry := range s.entries {
		entry.Payload = nil
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) DeleteDocument(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.entries[id]
	delete(s.entries, id)
	return ok, nil
}
