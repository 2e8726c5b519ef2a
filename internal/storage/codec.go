package storage

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"mlpx/internal/codec"
	"mlpx/internal/model"
	"mlpx/internal/snapshot"
)

var ErrVersionMismatch = errors.New("archive entry version mismatch")

// NewEntry encodes m into a fresh entry with a random id.
func NewEntry(name string, m *snapshot.Manager, now time.Time) (model.ArchiveEntry, error) {
	payload, err := codec.Encode(m)
	if err != nil {
		return model.ArchiveEntry{}, err
	}
	return model.ArchiveEntry{
		ID:            uuid.NewString(),
		Name:          strings.TrimSpace(name),
		CreatedAt:     now.UTC(),
		SchemaVersion: model.CurrentSchemaVersion,
		Snapshots:     m.Count(),
		Size:          len(payload),
		Payload:       payload,
	}, nil
}

// DecodeEntry decodes the document held by entry.
func DecodeEntry(entry model.ArchiveEntry) (*snapshot.Manager, error) {
	if err := checkVersion(entry); err != nil {
		return nil, err
	}
	m, err := codec.Decode(entry.Payload)
	if err != nil {
		return nil, fmt.Errorf("decode entry %s: %w", entry.ID, err)
	}
	return m, nil
}

func checkVersion(entry model.ArchiveEntry) error {
	switch entry.SchemaVersion {
	case model.LegacySchemaVersion, model.DenseSchemaVersion, model.CurrentSchemaVersion:
	default:
		return fmt.Errorf("%w: entry %s has schema version %d", ErrVersionMismatch, entry.ID, entry.SchemaVersion)
	}
	return nil
}

func validateEntry(entry model.ArchiveEntry) error {
	if entry.ID == "" {
		return errors.New("entry id is required")
	}
	if len(entry.Payload) == 0 {
		return fmt.Errorf("entry %s has no payload", entry.ID)
	}
	return checkVersion(entry)
}
