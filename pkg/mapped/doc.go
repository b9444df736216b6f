// Package mapped provides a growable, memory-mapped, append-only buffer
// backed by a single file.
//
// A Buffer keeps the whole file mapped read-write and maintains an append
// cursor. Appends that outgrow the mapping extend the file (ftruncate) and
// remap it; the base address may change but logical byte offsets are
// stable, so offsets handed out before a growth remain valid.
//
// Buffers are single-writer. Read methods may be called at any offset that
// was previously written; they do not consult the append cursor.
package mapped
