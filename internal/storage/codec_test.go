package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"mlpx/internal/model"
)

func TestNewEntryRoundTrip(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("x", 3600))
	entry := testEntry(t, "  run-1 ", at)

	if _, err := uuid.Parse(entry.ID); err != nil {
		t.Fatalf("entry id is not a uuid: %v", err)
	}
	if entry.Name != "run-1" {
		t.Fatalf("unexpected name %q", entry.Name)
	}
	if !entry.CreatedAt.Equal(at) || entry.CreatedAt.Location() != time.UTC {
		t.Fatalf("unexpected created at %v", entry.CreatedAt)
	}
	if entry.Snapshots != 1 || entry.Size != len(entry.Payload) || entry.SchemaVersion != model.CurrentSchemaVersion {
		t.Fatalf("unexpected entry metadata: %+v", entry)
	}

	m, err := DecodeEntry(entry)
	if err != nil {
		t.Fatalf("decode entry: %v", err)
	}
	s, _ := m.Get(0)
	if w, err := s.Weight(1, 0, 1); err != nil || w != 0.75 {
		t.Fatalf("weight = %v, %v", w, err)
	}
}

func TestDecodeEntryVersionMismatch(t *testing.T) {
	entry := testEntry(t, "run", time.Now())
	entry.SchemaVersion = 9
	if _, err := DecodeEntry(entry); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got %v", err)
	}
}

func TestDecodeEntryMalformedPayload(t *testing.T) {
	entry := testEntry(t, "run", time.Now())
	entry.Payload = []byte(`{"schema": ["mlpx", 1], "snapshots": [`)
	if _, err := DecodeEntry(entry); !errors.Is(err, model.ErrMalformedDocument) {
		t.Fatalf("expected ErrMalformedDocument, got %v", err)
	}
}
