package record

import "golang.org/x/xerrors"

var (
	// ErrValidation is returned when a record cannot be built from its input.
	ErrValidation = xerrors.New("invalid record")
	// ErrInvalidRecordType is returned when a nil record is added to a batch.
	ErrInvalidRecordType = xerrors.New("invalid record type")
	// ErrKeyNotFound is returned when a merge references an absent sequence id.
	ErrKeyNotFound = xerrors.New("sequence id not found")
	// ErrSelfMerge is returned when a record is asked to absorb itself.
	ErrSelfMerge = xerrors.New("record cannot be merged into itself")
	// ErrMissingField is returned when a record lacks a field required for keying.
	ErrMissingField = xerrors.New("missing field")
)
