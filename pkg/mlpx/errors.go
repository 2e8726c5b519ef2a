package mlpx

import (
	"mlpx/internal/codec"
	"mlpx/internal/model"
)

// Error kinds returned by Document operations. Match them with errors.Is.
var (
	ErrUnknownSnapshot    = model.ErrUnknownSnapshot
	ErrUnknownName        = model.ErrUnknownName
	ErrUnknownLayer       = model.ErrUnknownLayer
	ErrOutOfRange         = model.ErrOutOfRange
	ErrNotSet             = model.ErrNotSet
	ErrInvalidValue       = model.ErrInvalidValue
	ErrDuplicateID        = model.ErrDuplicateID
	ErrInvalidChain       = model.ErrInvalidChain
	ErrMalformedDocument  = model.ErrMalformedDocument
	ErrUnsupportedVersion = model.ErrUnsupportedVersion
	ErrIO                 = model.ErrIO
	ErrInvalidHandle      = model.ErrInvalidHandle
)

// DecodeError carries the snapshot, layer and field a malformed document
// failed at. Retrieve it with errors.As.
type DecodeError = codec.DecodeError
