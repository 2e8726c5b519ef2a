package codec

import (
	"fmt"
	"strings"

	"mlpx/internal/model"
)

// DecodeError locates a structural problem inside a document. It always
// unwraps to model.ErrMalformedDocument.
type DecodeError struct {
	Snapshot string
	Layer    string
	Field    string
	Err      error
}

func (e *DecodeError) Error() string {
	var parts []string
	if e.Snapshot != "" {
		parts = append(parts, "snapshot "+e.Snapshot)
	}
	if e.Layer != "" {
		parts = append(parts, "layer "+e.Layer)
	}
	if e.Field != "" {
		parts = append(parts, "field "+e.Field)
	}
	if len(parts) == 0 {
		return e.Err.Error()
	}
	return strings.Join(parts, ", ") + ": " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// location accumulates context while the decoder descends.
type location struct {
	snapshot string
	layer    string
}

func (l location) inLayer(layer string) location {
	l.layer = layer
	return l
}

func (l location) fail(field, format string, args ...any) error {
	return &DecodeError{
		Snapshot: l.snapshot,
		Layer:    l.layer,
		Field:    field,
		Err:      fmt.Errorf("%w: "+format, append([]any{model.ErrMalformedDocument}, args...)...),
	}
}

// wrap turns an error from the in-memory model into a located decode error.
func (l location) wrap(field string, err error) error {
	return &DecodeError{
		Snapshot: l.snapshot,
		Layer:    l.layer,
		Field:    field,
		Err:      fmt.Errorf("%w: %w", model.ErrMalformedDocument, err),
	}
}

func snapshotLabel(index int, name string) string {
	if name != "" {
		return fmt.Sprintf("%d (%q)", index, name)
	}
	return fmt.Sprintf("%d", index)
}

func layerLabel(index int, id string) string {
	if id != "" {
		return fmt.Sprintf("%d (%q)", index, id)
	}
	return fmt.Sprintf("%d", index)
}
