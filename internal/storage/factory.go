package storage

import (
	"fmt"
	"strings"
)

// NewStore opens the archive backend named by kind. An empty kind selects
// DefaultStoreKind. Only the sqlite backend reads dbPath.
func NewStore(kind, dbPath string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "":
		return NewStore(DefaultStoreKind(), dbPath)
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		if strings.TrimSpace(dbPath) == "" {
			return nil, fmt.Errorf("sqlite archive backend needs a database path")
		}
		return newSQLiteStore(dbPath)
	default:
		return nil, fmt.Errorf("unknown archive backend %q: want memory or sqlite", kind)
	}
}

// Persistent reports whether entries written to the backend outlive the
// process that wrote them.
func Persistent(kind string) bool {
	return strings.EqualFold(strings.TrimSpace(kind), "sqlite")
}

// CloseIfSupported releases backends that hold a resource, such as a
// database handle. Other backends are left alone.
func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}
