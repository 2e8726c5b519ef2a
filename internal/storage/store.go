package storage

import (
	"context"

	"mlpx/internal/model"
)

// Store archives encoded documents. Get and Delete report whether the id
// existed instead of failing on a miss.
type Store interface {
	Init(ctx context.Context) error
	SaveDocument(ctx context.Context, entry model.ArchiveEntry) error
	GetDocument(ctx context.Context, id string) (model.ArchiveEntry, bool, error)
	// ListDocuments returns entries oldest first, without payloads.
	ListDocuments(ctx context.Context) ([]model.ArchiveEntry, error)
	DeleteDocument(ctx context.Context, id string) (bool, error)
}
