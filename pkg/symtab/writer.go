package symtab

import (
	"fmt"
	"os"

	"github.com/calvinalkan/symtab/pkg/bitmapindex"
	"github.com/calvinalkan/symtab/pkg/mapped"
)

// Options configure opening a writer on an existing symbol table.
type Options struct {
	// Dir is the table directory, Name the column name. The table must
	// have been created with [Create].
	Dir  string
	Name string

	// SymbolCount is the number of keys already committed, recovered
	// from the caller's transaction metadata. The table itself holds no
	// authoritative count. Supplying a count that does not match the
	// persisted structures is a precondition violation; behavior of
	// subsequent puts is undefined.
	SymbolCount int64

	// NoCache disables the in-process symbol -> key lookup cache. The
	// cache is a pure accelerator sized to the persisted capacity.
	NoCache bool

	// GrowStep overrides the mapped-buffer growth quantum. Zero selects
	// the default.
	GrowStep int64
}

// Writer resolves symbol values to dictionary keys for one column,
// appending at most one entry across all three persistent structures per
// new distinct value. It is not safe for concurrent use.
type Writer struct {
	index     *bitmapindex.Writer
	charMem   *mapped.Buffer
	offsetMem *mapped.Buffer
	cache     resolver
	maxHash   uint32
	capacity  int32
}

// OpenWriter opens a writer bound to opts.SymbolCount committed keys.
//
// It fails with [ErrMissing] if the offset store does not exist and with
// [ErrCorrupt] if the offset store is shorter than its header; both wrap
// the offending path. On any failure everything already acquired is
// released before the error is returned.
func OpenWriter(opts Options) (*Writer, error) {
	path := offsetPath(opts.Dir, opts.Name)

	// The offset store is checked before anything is mapped: its absence
	// means the table was never created, and a sub-header length means
	// damage no open mode can work around.
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("offset store %s not found: %w", path, ErrMissing)
		}

		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	if info.Size() < HeaderSize {
		return nil, fmt.Errorf("offset store %s is too short [len=%d]: %w", path, info.Size(), ErrCorrupt)
	}

	w := &Writer{}

	ok := false
	defer func() {
		if !ok {
			_ = w.Close()
		}
	}()

	w.offsetMem, err = mapped.Open(path, opts.GrowStep)
	if err != nil {
		return nil, err
	}

	w.capacity = w.offsetMem.Int32At(0)
	if w.capacity < 1 {
		return nil, fmt.Errorf("offset store %s has invalid capacity %d: %w", path, w.capacity, ErrCorrupt)
	}

	// Resume appending where the committed count left off.
	err = w.offsetMem.JumpTo(keyToOffset(Key(opts.SymbolCount)))
	if err != nil {
		return nil, err
	}

	// The index is created by Create and never recreated here; its
	// entries identify attempts to store duplicate symbol values.
	w.index, err = bitmapindex.Open(opts.Dir, opts.Name, opts.GrowStep)
	if err != nil {
		return nil, err
	}

	w.charMem, err = mapped.Open(charPath(opts.Dir, opts.Name), opts.GrowStep)
	if err != nil {
		return nil, err
	}

	err = w.jumpCharMemToSymbolCount(opts.SymbolCount)
	if err != nil {
		return nil, err
	}

	// Hash space is half the capacity: a bucket should hold roughly two
	// entries, and the index block capacity compensates for unlucky
	// distributions.
	w.maxHash = uint32(nextPow2(w.capacity/2) - 1)

	if opts.NoCache {
		w.cache = nopResolver{}
	} else {
		w.cache = newMapResolver(w.capacity)
	}

	ok = true

	return w, nil
}

// Capacity returns the configured capacity persisted at table creation.
func (w *Writer) Capacity() int { return int(w.capacity) }

// Put resolves symbol to its dictionary key, minting a new key if the
// value was never seen. New keys are dense: the first distinct value
// gets 0, the next 1, and so on. The caller increments its own symbol
// count when the returned key equals it.
func (w *Writer) Put(symbol string) (Key, error) {
	if key, hit := w.cache.resolve(symbol); hit {
		return key, nil
	}

	key, err := w.lookupAndPut(symbol)
	if err != nil {
		return 0, err
	}

	w.cache.remember(symbol, key)

	return key, nil
}

// PutNullable is Put for nullable column values: a nil symbol returns
// [Null] without touching any structure.
func (w *Writer) PutNullable(symbol *string) (Key, error) {
	if symbol == nil {
		return Null, nil
	}

	return w.Put(*symbol)
}

// Rollback restores the table to the state it held after exactly
// symbolCount successful inserts, discarding every later key. It must
// complete before any subsequent Put on this writer.
func (w *Writer) Rollback(symbolCount int64) error {
	err := w.index.RollbackValues(keyToOffset(Key(symbolCount)))
	if err != nil {
		return err
	}

	err = w.offsetMem.JumpTo(keyToOffset(Key(symbolCount)))
	if err != nil {
		return err
	}

	err = w.jumpCharMemToSymbolCount(symbolCount)
	if err != nil {
		return err
	}

	// The cache cannot be truncated by key, so stale entries past the
	// rollback point are shed by clearing it whole.
	w.cache.invalidate()

	return nil
}

// Sync flushes all three persistent structures to disk.
func (w *Writer) Sync() error {
	err := w.index.Sync()
	if err != nil {
		return err
	}

	err = w.charMem.Sync()
	if err != nil {
		return err
	}

	return w.offsetMem.Sync()
}

// Close releases the index writer, the character store, and the offset
// store, in that order. It is idempotent and nil-safe per resource, so
// it doubles as the unwind path for a failed open.
func (w *Writer) Close() error {
	err := w.index.Close()

	closeErr := w.charMem.Close()
	if err == nil {
		err = closeErr
	}

	closeErr = w.offsetMem.Close()
	if err == nil {
		err = closeErr
	}

	return err
}

// jumpCharMemToSymbolCount positions the character store append cursor
// just past the last committed key's text by dereferencing that key's
// offset-store entry and decoding the entry's storage length.
func (w *Writer) jumpCharMemToSymbolCount(symbolCount int64) error {
	if symbolCount == 0 {
		return w.charMem.JumpTo(0)
	}

	lastSymbolOffset := w.offsetMem.Int64At(keyToOffset(Key(symbolCount - 1)))

	return w.charMem.JumpTo(lastSymbolOffset + w.charMem.StorageLengthAt(lastSymbolOffset))
}

// lookupAndPut scans the symbol's hash bucket for an exact text match
// and inserts the symbol if no entry matches.
func (w *Writer) lookupAndPut(symbol string) (Key, error) {
	hash := boundedHash(symbol, w.maxHash)

	cursor := w.index.Cursor(hash)
	for {
		offsetOffset, more := cursor.Next()
		if !more {
			break
		}

		if symbol == w.charMem.StrAt(w.offsetMem.Int64At(offsetOffset)) {
			return offsetToKey(offsetOffset), nil
		}
	}

	return w.insert(symbol, hash)
}

// insert mints the next key: the symbol text goes to the character
// store, its offset to the offset store, and the offset-store position
// (the offset-offset) to the bucket index. That position doubles as the
// new key.
func (w *Writer) insert(symbol string, hash uint32) (Key, error) {
	offsetOffset := w.offsetMem.AppendOffset()

	symbolOffset, err := w.charMem.PutStr(symbol)
	if err != nil {
		return 0, err
	}

	err = w.offsetMem.PutInt64(symbolOffset)
	if err != nil {
		return 0, err
	}

	err = w.index.Add(hash, offsetOffset)
	if err != nil {
		return 0, err
	}

	return offsetToKey(offsetOffset), nil
}
