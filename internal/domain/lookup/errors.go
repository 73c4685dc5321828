package lookup

import "errors"

var (
	// ErrInvalidFormat means the scanned value can never be a medical record
	// number. No storage access happens for these inputs.
	ErrInvalidFormat = errors.New("invalid medical identifier format")

	// ErrNotFound means the identifier is well formed but no patient carries it.
	ErrNotFound = errors.New("patient not found")

	// ErrLookup means the store could not answer. Distinct from ErrNotFound so
	// callers can tell "definitely absent" from "could not check".
	ErrLookup = errors.New("identifier lookup failed")
)
