package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

func cmdInfo(out, errOut io.Writer, args []string) int {
	if len(args) < 2 {
		fprintln(errOut, "error: info requires <dir> and <name>")

		return 1
	}

	dir := args[0]
	name := args[1]

	hdr, err := readTableHeader(dir, name)
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	maxHash := nextPow2(hdr.Capacity/2) - 1

	fprintln(out, "table:      ", filepath.Join(dir, name))
	fprintln(out, "capacity:   ", hdr.Capacity)
	fprintln(out, "hash space: ", fmt.Sprintf("[0, %d]", maxHash))
	fprintln(out, "offset file:", fmt.Sprintf("%d bytes", hdr.OffsetSize))
	fprintln(out, "char file:  ", fmt.Sprintf("%d bytes", hdr.CharSize))

	manifestRaw, readErr := os.ReadFile(filepath.Join(dir, name+".json"))
	if readErr == nil {
		var manifest Manifest
		if json.Unmarshal(manifestRaw, &manifest) == nil {
			fprintln(out, "created:    ", manifest.Created)
		}
	}

	return 0
}

// nextPow2 returns the smallest power of two >= v, minimum 1.
func nextPow2(v int32) int32 {
	if v <= 1 {
		return 1
	}

	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16

	return v + 1
}
