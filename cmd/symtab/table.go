package main

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/calvinalkan/symtab/pkg/symtab"
)

// Raw table readers. The tool decodes the on-disk layout itself instead
// of going through a writer: inspection must not need the committed
// symbol count, and must work on tables another process is writing.

// tableHeader is the decoded offset-store header plus file sizes.
type tableHeader struct {
	Capacity   int32
	OffsetSize int64
	CharSize   int64
}

func readTableHeader(dir, name string) (tableHeader, error) {
	offsetPath := filepath.Join(dir, name+".o")

	raw, err := os.ReadFile(offsetPath)
	if err != nil {
		return tableHeader{}, fmt.Errorf("read %s: %w", offsetPath, err)
	}

	if len(raw) < symtab.HeaderSize {
		return tableHeader{}, fmt.Errorf("%s is too short [len=%d]", offsetPath, len(raw))
	}

	hdr := tableHeader{
		Capacity:   int32(binary.LittleEndian.Uint32(raw)),
		OffsetSize: int64(len(raw)),
	}

	charInfo, statErr := os.Stat(filepath.Join(dir, name+".c"))
	if statErr == nil {
		hdr.CharSize = charInfo.Size()
	}

	return hdr, nil
}

// countEntries walks the offset store against the character store and
// returns how many leading entries form a consistent chain: entry k must
// point exactly past entry k-1's text, and every text span must fit the
// character store. Trailing zero entries (never-written slots) end the
// walk after key 0.
func countEntries(offsetRaw, charRaw []byte) (int64, error) {
	maxEntries := (int64(len(offsetRaw)) - symtab.HeaderSize) / 8

	var count, expect int64

	for k := int64(0); k < maxEntries; k++ {
		off := int64(binary.LittleEndian.Uint64(offsetRaw[symtab.HeaderSize+k*8:]))
		if off != expect {
			if off == 0 {
				break // never-written slot
			}

			return count, fmt.Errorf("key %d points at %d, expected %d", k, off, expect)
		}

		if off+4 > int64(len(charRaw)) {
			if k > 0 || len(charRaw) == 0 {
				break
			}

			return count, fmt.Errorf("key %d points past character store [off=%d]", k, off)
		}

		n := int64(int32(binary.LittleEndian.Uint32(charRaw[off:])))
		if n < 0 || off+4+n > int64(len(charRaw)) {
			return count, fmt.Errorf("key %d has invalid text length %d at offset %d", k, n, off)
		}

		expect = off + 4 + n
		count++
	}

	return count, nil
}
