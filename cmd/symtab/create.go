package main

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/natefinch/atomic"
	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/symtab/pkg/symtab"
)

// Manifest is the informational sidecar written next to a new table.
type Manifest struct {
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
	Created  string `json:"created"`
}

func cmdCreate(out, errOut io.Writer, cfg Config, args []string) int {
	flagSet := flag.NewFlagSet("create", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard) // We handle errors ourselves

	capacity := flagSet.IntP("capacity", "c", cfg.DefaultCapacity, "Expected distinct-value count")

	parseErr := flagSet.Parse(args)
	if parseErr != nil {
		fprintln(errOut, "error:", parseErr)

		return 1
	}

	if flagSet.NArg() < 2 {
		fprintln(errOut, "error: create requires <dir> and <name>")

		return 1
	}

	dir := flagSet.Arg(0)
	name := flagSet.Arg(1)

	createErr := symtab.Create(dir, name, *capacity)
	if createErr != nil {
		fprintln(errOut, "error:", createErr)

		return 1
	}

	manifest := Manifest{
		Name:     name,
		Capacity: *capacity,
		Created:  time.Now().UTC().Format(time.RFC3339),
	}

	content, marshalErr := json.MarshalIndent(manifest, "", "  ")
	if marshalErr != nil {
		fprintln(errOut, "error:", marshalErr)

		return 1
	}

	manifestPath := filepath.Join(dir, name+".json")

	writeErr := atomic.WriteFile(manifestPath, strings.NewReader(string(content)+"\n"))
	if writeErr != nil {
		fprintln(errOut, "error: write manifest:", writeErr)

		return 1
	}

	fprintln(out, fmt.Sprintf("created %s (capacity=%d)", filepath.Join(dir, name), *capacity))

	return 0
}
