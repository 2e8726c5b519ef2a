//go:build !sqlite

package storage

import "fmt"

// DefaultStoreKind is the backend used when none is configured. Builds
// without the sqlite tag only carry the memory backend.
func DefaultStoreKind() string {
	return "memory"
}

func newSQLiteStore(_ string) (Store, error) {
	return nil, fmt.Errorf("sqlite archive backend unavailable in this build; rebuild with -tags sqlite or use --store memory")
}
