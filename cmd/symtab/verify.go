package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// verifyParallelism bounds how many tables are checked at once. Checks
// are read-heavy; a small multiple of typical disk queue depth is plenty.
const verifyParallelism = 8

func cmdVerify(out, errOut io.Writer, args []string) int {
	if len(args) < 1 {
		fprintln(errOut, "error: verify requires <dir>")

		return 1
	}

	dir := args[0]

	entries, err := os.ReadDir(dir)
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	var names []string

	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".o") {
			names = append(names, strings.TrimSuffix(entry.Name(), ".o"))
		}
	}

	if len(names) == 0 {
		fprintln(out, "no symbol tables in", dir)

		return 0
	}

	sort.Strings(names)

	var (
		mu      sync.Mutex
		results = make(map[string]error, len(names))
	)

	var group errgroup.Group
	group.SetLimit(verifyParallelism)

	for _, name := range names {
		group.Go(func() error {
			verifyErr := verifyTable(dir, name)

			mu.Lock()
			results[name] = verifyErr
			mu.Unlock()

			return nil
		})
	}

	_ = group.Wait() // verifyTable errors are collected, never returned

	failed := 0

	for _, name := range names {
		if verifyErr := results[name]; verifyErr != nil {
			failed++

			fprintln(out, fmt.Sprintf("FAIL %s: %v", name, verifyErr))
		} else {
			fprintln(out, "ok  ", name)
		}
	}

	if failed > 0 {
		fprintln(errOut, fmt.Sprintf("%d of %d tables failed verification", failed, len(names)))

		return 1
	}

	return 0
}

// verifyTable checks one table's structural invariants: the offset store
// header is present and sane, and the leading offset entries chain
// exactly through the character store.
func verifyTable(dir, name string) error {
	hdr, err := readTableHeader(dir, name)
	if err != nil {
		return err
	}

	if hdr.Capacity < 1 {
		return fmt.Errorf("invalid capacity %d", hdr.Capacity)
	}

	offsetRaw, err := os.ReadFile(filepath.Join(dir, name+".o"))
	if err != nil {
		return err
	}

	charRaw, err := os.ReadFile(filepath.Join(dir, name+".c"))
	if err != nil {
		return err
	}

	if _, statErr := os.Stat(filepath.Join(dir, name+".k")); statErr != nil {
		return fmt.Errorf("bucket index missing: %w", statErr)
	}

	_, err = countEntries(offsetRaw, charRaw)

	return err
}
