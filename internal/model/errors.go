package model

import "errors"

// Error kinds shared by every layer of the module. Callers match them with
// errors.Is; producers wrap them with positional context.
var (
	ErrUnknownSnapshot    = errors.New("unknown snapshot")
	ErrUnknownName        = errors.New("unknown snapshot name")
	ErrUnknownLayer       = errors.New("unknown layer")
	ErrOutOfRange         = errors.New("index out of range")
	ErrNotSet             = errors.New("value not set")
	ErrInvalidValue       = errors.New("invalid value")
	ErrDuplicateID        = errors.New("duplicate id")
	ErrInvalidChain       = errors.New("invalid layer chain")
	ErrMalformedDocument  = errors.New("malformed document")
	ErrUnsupportedVersion = errors.New("unsupported document version")
	ErrIO                 = errors.New("i/o error")
	ErrInvalidHandle      = errors.New("invalid document handle")
)
