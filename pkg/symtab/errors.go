package symtab

import "errors"

// Sentinel errors returned when opening a symbol table.
//
// Callers should use [errors.Is] to check error types. Both wrap the
// offending path for diagnostics. There is no degraded open mode: either
// failure is fatal for that open attempt, and the writer releases every
// partially acquired resource before the error propagates, so retrying
// construction from scratch is safe.
var (
	// ErrMissing indicates the offset store file does not exist.
	//
	// Recovery: the table was never created; call [Create] first.
	ErrMissing = errors.New("symtab: symbol map does not exist")

	// ErrCorrupt indicates the offset store is too short to hold its
	// header.
	//
	// Recovery: delete the table files and recreate from source data.
	ErrCorrupt = errors.New("symtab: symbol map is corrupt")
)
