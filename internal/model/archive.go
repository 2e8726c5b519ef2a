package model

import "time"

// ArchiveEntry is one document stored in an archive. Payload holds the
// encoded document; listings leave it nil and report Size instead.
type ArchiveEntry struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	CreatedAt     time.Time `json:"created_at"`
	SchemaVersion int       `json:"schema_version"`
	Snapshots     int       `json:"snapshots"`
	Size          int       `json:"size"`
	Payload       []byte    `json:"-"`
}
