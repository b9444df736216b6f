// symtab is a CLI for creating and inspecting symbol table files.
//
// Usage:
//
//	symtab create [-c capacity] <dir> <name>   Create an empty symbol table
//	symtab info <dir> <name>                   Show header and file layout
//	symtab verify <dir>                        Check every table in a directory
//	symtab shell [opts] <dir> <name>           Interactive writer session
//
// Symbol tables are the dictionary-encoding side tables of string
// columns: <name>.o (key offsets), <name>.c (symbol text), <name>.k and
// <name>.v (dedup index). The tool also writes a <name>.json manifest at
// creation for human consumption; the manifest is informational only.
package main

import (
	"fmt"
	"io"
	"os"
)

const usage = `Usage: symtab <command> [arguments]

Commands:
  create <dir> <name>    Create an empty symbol table
    -c, --capacity       Expected distinct-value count [default: config]
  info <dir> <name>      Show header fields and file sizes
  verify <dir>           Verify every symbol table in a directory
  shell <dir> <name>     Interactive writer session
    -n, --count          Committed symbol count to resume from [default: 0]
    --no-cache           Disable the in-process lookup cache
  help                   Show this help
`

func main() {
	workDir, err := os.Getwd()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	os.Exit(run(os.Stdout, os.Stderr, workDir, os.Args[1:]))
}

func run(out, errOut io.Writer, workDir string, args []string) int {
	if len(args) == 0 {
		fprintln(errOut, usage)

		return 1
	}

	cfg, err := LoadConfig(workDir)
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	cmd := args[0]
	rest := args[1:]

	switch cmd {
	case "create":
		return cmdCreate(out, errOut, cfg, rest)
	case "info":
		return cmdInfo(out, errOut, rest)
	case "verify":
		return cmdVerify(out, errOut, rest)
	case "shell":
		return cmdShell(out, errOut, cfg, rest)
	case "help", "--help", "-h":
		fprintln(out, usage)

		return 0
	default:
		fprintln(errOut, "error: unknown command:", cmd)
		fprintln(errOut, usage)

		return 1
	}
}

// fprintln writes a line, ignoring write errors the way a CLI talking to
// stdout/stderr can afford to.
func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}
