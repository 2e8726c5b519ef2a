package storage

import (
	"testing"
	"time"

	"mlpx/internal/model"
	"mlpx/internal/snapshot"
)

func testManager(t *testing.T) *snapshot.Manager {
	t.Helper()
	m := snapshot.NewManager()
	_, s, err := m.NewSnapshot("0")
	if err != nil {
		t.Fatalf("new snapshot: %v", err)
	}
	if _, err := s.AddLayer("input", 2, nil, nil); err != nil {
		t.Fatalf("add input: %v", err)
	}
	pred := 0
	if _, err := s.AddLayer("output", 1, &pred, nil); err != nil {
		t.Fatalf("add output: %v", err)
	}
	if err := s.SetWeight(1, 0, 1, 0.75); err != nil {
		t.Fatalf("set weight: %v", err)
	}
	return m
}

func testEntry(t *testing.T, name string, at time.Time) model.ArchiveEntry {
	t.Helper()
	entry, err := NewEntry(name, testManager(t), at)
	if err != nil {
		t.Fatalf("new entry: %v", err)
	}
	return entry
}
