package symtab

import (
	"fmt"
	"path/filepath"

	"github.com/calvinalkan/symtab/pkg/bitmapindex"
	"github.com/calvinalkan/symtab/pkg/mapped"
)

// indexBlockCapacity is the bucket index value-block size. The index
// hash space is half the symbol capacity, so a bucket theoretically
// holds two entries; four slots per block absorb uneven hash
// distribution without chaining on the common path.
const indexBlockCapacity = 4

// Create initializes an empty symbol table for a column: an offset store
// holding only its header, an empty character store, and an empty bucket
// index.
//
// capacity is the expected number of distinct symbol values; it sizes
// the index hash space and the optional writer cache, and is persisted
// in the offset store header. It does not bound how many symbols the
// table can hold.
//
// Create must be called exactly once before any writer opens the table.
// Calling it on an existing table without external cleanup is not
// supported.
func Create(dir, name string, capacity int) error {
	if capacity < 1 {
		return fmt.Errorf("symtab: capacity %d < 1", capacity)
	}

	if capacity > 1<<30 {
		return fmt.Errorf("symtab: capacity %d exceeds max %d", capacity, 1<<30)
	}

	offsetMem, err := mapped.Open(offsetPath(dir, name), 0)
	if err != nil {
		return err
	}

	putErr := offsetMem.PutInt32(int32(capacity))
	if putErr == nil {
		// Leave the append cursor just past the header; the rest of the
		// header stays zero (reserved).
		putErr = offsetMem.JumpTo(HeaderSize)
	}

	if putErr == nil {
		putErr = offsetMem.Sync()
	}

	closeErr := offsetMem.Close()
	if putErr != nil {
		return putErr
	}

	if closeErr != nil {
		return closeErr
	}

	charMem, err := mapped.Open(charPath(dir, name), 0)
	if err != nil {
		return err
	}

	closeErr = charMem.Close()
	if closeErr != nil {
		return closeErr
	}

	return bitmapindex.Create(dir, name, indexBlockCapacity)
}

func offsetPath(dir, name string) string { return filepath.Join(dir, name+".o") }
func charPath(dir, name string) string   { return filepath.Join(dir, name+".c") }
