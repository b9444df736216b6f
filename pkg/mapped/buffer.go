package mapped

import (
	"encoding/binary"
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

// DefaultGrowStep is the file growth quantum used when Open is given a
// grow step of zero. One growth step is the minimum file size, so keep it
// modest: symbol tables for low-cardinality columns stay small.
const DefaultGrowStep = 1 << 20 // 1 MiB

// strPrefixLen is the size of the length prefix written before string
// payload bytes. The prefix is a little-endian int32 byte count.
const strPrefixLen = 4

// pageSize is the system page size. Growth steps are rounded up to a
// multiple of it because mmap lengths and ftruncate sizes interact badly
// with sub-page quanta.
var pageSize = int64(unix.Getpagesize())

// Buffer is a file-backed, memory-mapped append buffer.
type Buffer struct {
	fd       int
	path     string
	data     []byte
	size     int64 // current file and mapping size
	appendAt int64
	growStep int64
	closed   bool
}

// Open opens (or creates) the file at path and maps it read-write.
//
// growStep controls how much the file is extended on each growth; it is
// rounded up to a page-size multiple. Zero selects DefaultGrowStep. The
// append cursor starts at 0; callers reposition it with JumpTo.
func Open(path string, growStep int64) (*Buffer, error) {
	if growStep <= 0 {
		growStep = DefaultGrowStep
	}

	growStep = roundUp(growStep, pageSize)

	fd, err := syscall.Open(path, syscall.O_RDWR|syscall.O_CREAT, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	var stat syscall.Stat_t

	statErr := syscall.Fstat(fd, &stat)
	if statErr != nil {
		_ = syscall.Close(fd)

		return nil, fmt.Errorf("stat %s: %w", path, statErr)
	}

	size := stat.Size
	if size < growStep {
		// Freshly created or undersized file: extend to one growth step so
		// the initial mapping is never empty. ftruncate zero-fills.
		truncErr := syscall.Ftruncate(fd, growStep)
		if truncErr != nil {
			_ = syscall.Close(fd)

			return nil, fmt.Errorf("ftruncate %s: %w", path, truncErr)
		}

		size = growStep
	} else {
		// Existing file: map whole pages covering it.
		size = roundUp(size, pageSize)

		truncErr := syscall.Ftruncate(fd, size)
		if truncErr != nil {
			_ = syscall.Close(fd)

			return nil, fmt.Errorf("ftruncate %s: %w", path, truncErr)
		}
	}

	data, err := syscall.Mmap(fd, 0, int(size), syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
	if err != nil {
		_ = syscall.Close(fd)

		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}

	return &Buffer{
		fd:       fd,
		path:     path,
		data:     data,
		size:     size,
		appendAt: 0,
		growStep: growStep,
	}, nil
}

// Path returns the file path the buffer is backed by.
func (b *Buffer) Path() string { return b.path }

// Size returns the current mapped size in bytes. This is the file size
// rounded up to growth steps, not the logical extent of written data.
func (b *Buffer) Size() int64 { return b.size }

// AppendOffset returns the current append cursor position.
func (b *Buffer) AppendOffset() int64 { return b.appendAt }

// JumpTo repositions the append cursor. Jumping past the mapped size
// grows the file first, so a subsequent append is always in-bounds.
func (b *Buffer) JumpTo(offset int64) error {
	if offset < 0 {
		return fmt.Errorf("jump to negative offset %d in %s", offset, b.path)
	}

	if offset > b.size {
		growErr := b.grow(offset)
		if growErr != nil {
			return growErr
		}
	}

	b.appendAt = offset

	return nil
}

// PutInt32 appends a little-endian int32 at the append cursor.
func (b *Buffer) PutInt32(v int32) error {
	err := b.ensure(4)
	if err != nil {
		return err
	}

	binary.LittleEndian.PutUint32(b.data[b.appendAt:], uint32(v))
	b.appendAt += 4

	return nil
}

// PutInt64 appends a little-endian int64 at the append cursor.
func (b *Buffer) PutInt64(v int64) error {
	err := b.ensure(8)
	if err != nil {
		return err
	}

	binary.LittleEndian.PutUint64(b.data[b.appendAt:], uint64(v))
	b.appendAt += 8

	return nil
}

// PutInt64At writes a little-endian int64 at an arbitrary offset without
// moving the append cursor. The offset region must already be mapped;
// offsets past the mapping grow the file first.
func (b *Buffer) PutInt64At(offset, v int64) error {
	if offset < 0 {
		return fmt.Errorf("write at negative offset %d in %s", offset, b.path)
	}

	if offset+8 > b.size {
		growErr := b.grow(offset + 8)
		if growErr != nil {
			return growErr
		}
	}

	binary.LittleEndian.PutUint64(b.data[offset:], uint64(v))

	return nil
}

// Int32At reads a little-endian int32 at offset.
func (b *Buffer) Int32At(offset int64) int32 {
	return int32(binary.LittleEndian.Uint32(b.data[offset:]))
}

// Int64At reads a little-endian int64 at offset.
func (b *Buffer) Int64At(offset int64) int64 {
	return int64(binary.LittleEndian.Uint64(b.data[offset:]))
}

// PutStr appends a length-prefixed string at the append cursor and
// returns the byte offset where the entry begins.
func (b *Buffer) PutStr(s string) (int64, error) {
	need := int64(strPrefixLen + len(s))

	err := b.ensure(need)
	if err != nil {
		return 0, err
	}

	start := b.appendAt
	binary.LittleEndian.PutUint32(b.data[start:], uint32(len(s)))
	copy(b.data[start+strPrefixLen:], s)
	b.appendAt += need

	return start, nil
}

// StrAt decodes the length-prefixed string entry that begins at offset.
func (b *Buffer) StrAt(offset int64) string {
	n := int64(int32(binary.LittleEndian.Uint32(b.data[offset:])))

	return string(b.data[offset+strPrefixLen : offset+strPrefixLen+n])
}

// StorageLengthAt returns the total byte span of the length-prefixed
// entry beginning at offset (prefix plus payload). It lets a caller
// position an append cursor just past an entry without decoding its text.
func (b *Buffer) StorageLengthAt(offset int64) int64 {
	return strPrefixLen + int64(int32(binary.LittleEndian.Uint32(b.data[offset:])))
}

// Sync flushes the mapping to disk with a synchronous msync.
func (b *Buffer) Sync() error {
	if b.closed {
		return nil
	}

	err := unix.Msync(b.data, unix.MS_SYNC)
	if err != nil {
		return fmt.Errorf("msync %s: %w", b.path, err)
	}

	return nil
}

// Close unmaps the buffer and closes the file descriptor. It is
// idempotent and never fails on a second call.
func (b *Buffer) Close() error {
	if b == nil || b.closed {
		return nil
	}

	b.closed = true

	var firstErr error

	if b.data != nil {
		unmapErr := syscall.Munmap(b.data)
		if unmapErr != nil {
			firstErr = fmt.Errorf("munmap %s: %w", b.path, unmapErr)
		}

		b.data = nil
	}

	closeErr := syscall.Close(b.fd)
	if closeErr != nil && firstErr == nil {
		firstErr = fmt.Errorf("close %s: %w", b.path, closeErr)
	}

	return firstErr
}

// ensure guarantees n bytes are mapped past the append cursor.
func (b *Buffer) ensure(n int64) error {
	if b.appendAt+n <= b.size {
		return nil
	}

	return b.grow(b.appendAt + n)
}

// grow extends the file to at least minSize (rounded up to growth steps)
// and remaps it. Previously written bytes are preserved; the mapping base
// address may change.
func (b *Buffer) grow(minSize int64) error {
	newSize := roundUp(minSize, b.growStep)

	truncErr := syscall.Ftruncate(b.fd, newSize)
	if truncErr != nil {
		return fmt.Errorf("ftruncate %s to %d: %w", b.path, newSize, truncErr)
	}

	unmapErr := syscall.Munmap(b.data)
	if unmapErr != nil {
		return fmt.Errorf("munmap %s: %w", b.path, unmapErr)
	}

	b.data = nil

	data, err := syscall.Mmap(b.fd, 0, int(newSize), syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("mmap %s after grow: %w", b.path, err)
	}

	b.data = data
	b.size = newSize

	return nil
}

// roundUp rounds v up to the next multiple of step.
func roundUp(v, step int64) int64 {
	return (v + step - 1) / step * step
}
