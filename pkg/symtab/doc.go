// Package symtab implements the writer side of a dictionary-encoded
// symbol table for columnar string storage.
//
// A symbol table maps each distinct string value of a column to a dense
// integer key, assigned in first-sight order. The column itself then
// stores fixed-width keys while each distinct string is stored once.
//
// The table is three persistent structures under one directory:
//
//	<name>.o  offset store: 64-byte header (capacity), then one 8-byte
//	          character-store offset per key, in key order
//	<name>.c  character store: length-prefixed symbol text, in key order
//	<name>.k / <name>.v  hash bucket index used for deduplication
//
// The table holds no authoritative symbol count of its own: the caller's
// transaction bookkeeping supplies it to OpenWriter and to Rollback.
//
// Writers are single-threaded: one Writer per column, owned by one
// writer goroutine, no internal locking.
package symtab
