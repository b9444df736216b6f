// Package bitmapindex provides a persistent multi-map from a bounded hash
// value to the append history of 64-bit values, used as the dedup index
// for dictionary-encoded string columns.
//
// The index is stored in two mapped files:
//
//	<name>.k  key file: 64-byte header, then one 24-byte entry per bucket
//	          (value count, first block offset, last block offset)
//	<name>.v  value file: 64-byte reserved header, then fixed-size blocks
//	          of blockCapacity values plus an 8-byte next-block link
//
// Values within a bucket are kept in append order. Blocks are never
// reclaimed: RollbackValues only shortens counts, and subsequent adds
// walk back over the already-linked blocks.
package bitmapindex

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/calvinalkan/symtab/pkg/mapped"
)

const (
	headerSize = 64
	keyEntry   = 24 // count(8) + first block(8) + last block(8)

	// Key file header field offsets.
	offBlockCapacity = 0  // int32
	offKeyCount      = 8  // int64
	offValueAppend   = 16 // int64
)

// Writer is the single-writer handle to a bucket index.
type Writer struct {
	keyMem   *mapped.Buffer
	valueMem *mapped.Buffer

	blockCapacity int64
	blockSize     int64 // blockCapacity*8 + link(8)
	keyCount      int64 // buckets touched so far
	valueAppend   int64 // next free block position in the value file
}

// Create initializes an empty index for the table name under dir. It
// must be called once, before any Writer opens the index.
func Create(dir, name string, blockCapacity int) error {
	if blockCapacity < 1 {
		return fmt.Errorf("bitmapindex: block capacity %d < 1", blockCapacity)
	}

	keyMem, err := mapped.Open(keyPath(dir, name), 0)
	if err != nil {
		return err
	}

	putErr := keyMem.PutInt32(int32(blockCapacity))
	if putErr == nil {
		putErr = keyMem.PutInt64At(offKeyCount, 0)
	}

	if putErr == nil {
		putErr = keyMem.PutInt64At(offValueAppend, headerSize)
	}

	closeErr := keyMem.Close()
	if putErr != nil {
		return putErr
	}

	if closeErr != nil {
		return closeErr
	}

	valueMem, err := mapped.Open(valuePath(dir, name), 0)
	if err != nil {
		return err
	}

	return valueMem.Close()
}

// Open opens an existing index created by Create.
//
// On any failure the partially acquired buffers are released before the
// error propagates.
func Open(dir, name string, growStep int64) (*Writer, error) {
	// The index is only ever established by Create; opening must not
	// conjure an empty one.
	_, err := os.Stat(keyPath(dir, name))
	if err != nil {
		return nil, fmt.Errorf("bitmapindex: stat %s: %w", keyPath(dir, name), err)
	}

	w := &Writer{}

	ok := false
	defer func() {
		if !ok {
			_ = w.Close()
		}
	}()

	w.keyMem, err = mapped.Open(keyPath(dir, name), growStep)
	if err != nil {
		return nil, err
	}

	w.blockCapacity = int64(w.keyMem.Int32At(offBlockCapacity))
	if w.blockCapacity < 1 {
		return nil, fmt.Errorf("bitmapindex: invalid block capacity %d in %s", w.blockCapacity, keyPath(dir, name))
	}

	w.blockSize = w.blockCapacity*8 + 8
	w.keyCount = w.keyMem.Int64At(offKeyCount)
	w.valueAppend = w.keyMem.Int64At(offValueAppend)

	jumpErr := w.keyMem.JumpTo(headerSize + w.keyCount*keyEntry)
	if jumpErr != nil {
		return nil, jumpErr
	}

	w.valueMem, err = mapped.Open(valuePath(dir, name), growStep)
	if err != nil {
		return nil, err
	}

	ok = true

	return w, nil
}

// Add appends value under bucket hash.
func (w *Writer) Add(hash uint32, value int64) error {
	entry := headerSize + int64(hash)*keyEntry

	if int64(hash) >= w.keyCount {
		// First touch of this bucket: extend the key file. The new entries
		// are zero-filled by ftruncate, which is exactly the empty state.
		w.keyCount = int64(hash) + 1

		err := w.keyMem.JumpTo(headerSize + w.keyCount*keyEntry)
		if err != nil {
			return err
		}

		err = w.keyMem.PutInt64At(offKeyCount, w.keyCount)
		if err != nil {
			return err
		}
	}

	count := w.keyMem.Int64At(entry)
	first := w.keyMem.Int64At(entry + 8)
	last := w.keyMem.Int64At(entry + 16)

	pos := int64(0)
	if count > 0 {
		pos = count % w.blockCapacity
	}

	switch {
	case count == 0 && first == 0:
		// Empty bucket, never allocated.
		blk, err := w.allocBlock()
		if err != nil {
			return err
		}

		first, last = blk, blk

	case count == 0:
		// Rolled back to empty: reuse the existing chain from its head.
		last = first

	case pos == 0:
		// Last block is full. Reuse the already-linked successor if the
		// bucket was rolled back, otherwise allocate and link a new block.
		next := w.valueMem.Int64At(last + w.blockCapacity*8)
		if next == 0 {
			blk, err := w.allocBlock()
			if err != nil {
				return err
			}

			err = w.valueMem.PutInt64At(last+w.blockCapacity*8, blk)
			if err != nil {
				return err
			}

			next = blk
		}

		last = next
	}

	err := w.valueMem.PutInt64At(last+pos*8, value)
	if err != nil {
		return err
	}

	err = w.keyMem.PutInt64At(entry, count+1)
	if err != nil {
		return err
	}

	err = w.keyMem.PutInt64At(entry+8, first)
	if err != nil {
		return err
	}

	return w.keyMem.PutInt64At(entry+16, last)
}

// Cursor returns a forward, single-pass iterator over the values added
// under bucket hash before the cursor was obtained, oldest first.
func (w *Writer) Cursor(hash uint32) *Cursor {
	if int64(hash) >= w.keyCount {
		return &Cursor{}
	}

	entry := headerSize + int64(hash)*keyEntry

	return &Cursor{
		w:         w,
		remaining: w.keyMem.Int64At(entry),
		block:     w.keyMem.Int64At(entry + 8),
	}
}

// RollbackValues removes, across all buckets, every value >= threshold.
//
// Values within a bucket ascend (they are append positions of the offset
// store), so each bucket is truncated at the first value that reaches
// the threshold.
func (w *Writer) RollbackValues(threshold int64) error {
	for k := int64(0); k < w.keyCount; k++ {
		entry := headerSize + k*keyEntry

		count := w.keyMem.Int64At(entry)
		if count == 0 {
			continue
		}

		first := w.keyMem.Int64At(entry + 8)

		kept := int64(0)
		block := first

		for kept < count {
			pos := kept % w.blockCapacity
			if pos == 0 && kept > 0 {
				block = w.valueMem.Int64At(block + w.blockCapacity*8)
			}

			if w.valueMem.Int64At(block+pos*8) >= threshold {
				break
			}

			kept++
		}

		if kept == count {
			continue
		}

		// Walk to the block holding the last retained value; an emptied
		// bucket keeps its chain head so a later add can reuse it.
		last := first
		for i := int64(0); i < (kept-1)/w.blockCapacity; i++ {
			last = w.valueMem.Int64At(last + w.blockCapacity*8)
		}

		err := w.keyMem.PutInt64At(entry, kept)
		if err != nil {
			return err
		}

		err = w.keyMem.PutInt64At(entry+16, last)
		if err != nil {
			return err
		}
	}

	return nil
}

// Sync flushes both underlying mappings.
func (w *Writer) Sync() error {
	err := w.valueMem.Sync()
	if err != nil {
		return err
	}

	return w.keyMem.Sync()
}

// Close releases both mapped buffers. Nil-safe and idempotent.
func (w *Writer) Close() error {
	if w == nil {
		return nil
	}

	err := w.valueMem.Close()

	keyErr := w.keyMem.Close()
	if err == nil {
		err = keyErr
	}

	return err
}

// allocBlock reserves a fresh zeroed block in the value file and returns
// its offset.
func (w *Writer) allocBlock() (int64, error) {
	blk := w.valueAppend
	w.valueAppend += w.blockSize

	// Zero the link slot explicitly: block space past the current file
	// size is zero-filled by growth, but a rolled-back-and-reused region
	// could carry a stale link.
	err := w.valueMem.PutInt64At(blk+w.blockCapacity*8, 0)
	if err != nil {
		return 0, err
	}

	err = w.keyMem.PutInt64At(offValueAppend, w.valueAppend)
	if err != nil {
		return 0, err
	}

	return blk, nil
}

// Cursor iterates one bucket's values in append order.
type Cursor struct {
	w         *Writer
	remaining int64
	block     int64
	pos       int64
}

// Next returns the next value, or ok=false when the bucket is exhausted.
func (c *Cursor) Next() (int64, bool) {
	if c.remaining == 0 {
		return 0, false
	}

	if c.pos == c.w.blockCapacity {
		c.block = c.w.valueMem.Int64At(c.block + c.w.blockCapacity*8)
		c.pos = 0
	}

	v := c.w.valueMem.Int64At(c.block + c.pos*8)
	c.pos++
	c.remaining--

	return v, true
}

func keyPath(dir, name string) string   { return filepath.Join(dir, name+".k") }
func valuePath(dir, name string) string { return filepath.Join(dir, name+".v") }
