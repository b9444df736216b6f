package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/symtab/pkg/symtab"
)

const shellHelp = `Commands:
  put <text>        Resolve text to its key (minting one if unseen)
  putnull           Put an absent value (returns the null sentinel)
  rollback <n>      Roll the table back to n committed symbols
  count             Show the session's symbol count
  capacity          Show the table's configured capacity
  bench <n>         Time n puts of random-ish symbols
  sync              Flush all structures to disk
  help              Show this help
  exit / quit / q   Exit`

func cmdShell(out, errOut io.Writer, cfg Config, args []string) int {
	flagSet := flag.NewFlagSet("shell", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard) // We handle errors ourselves

	count := flagSet.Int64P("count", "n", 0, "Committed symbol count to resume from")
	noCache := flagSet.Bool("no-cache", cfg.NoCache, "Disable the lookup cache")

	parseErr := flagSet.Parse(args)
	if parseErr != nil {
		fprintln(errOut, "error:", parseErr)

		return 1
	}

	if flagSet.NArg() < 2 {
		fprintln(errOut, "error: shell requires <dir> and <name>")

		return 1
	}

	writer, err := symtab.OpenWriter(symtab.Options{
		Dir:         flagSet.Arg(0),
		Name:        flagSet.Arg(1),
		SymbolCount: *count,
		NoCache:     *noCache,
		GrowStep:    cfg.GrowStep,
	})
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}
	defer writer.Close()

	session := &shellSession{
		out:    out,
		errOut: errOut,
		writer: writer,
		count:  *count,
	}

	runErr := session.run()
	if runErr != nil {
		fprintln(errOut, "error:", runErr)

		return 1
	}

	return 0
}

// shellSession is the interactive writer loop. The session owns the
// caller-side symbol count the same way an upstream table writer would.
type shellSession struct {
	out    io.Writer
	errOut io.Writer
	writer *symtab.Writer
	count  int64
	liner  *liner.State
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".symtab_history")
}

func (s *shellSession) run() error {
	s.liner = liner.NewLiner()
	defer s.liner.Close()

	s.liner.SetCtrlCAborts(true)

	if f, err := os.Open(historyFile()); err == nil {
		_, _ = s.liner.ReadHistory(f)
		_ = f.Close()
	}

	fprintln(s.out, fmt.Sprintf("symtab shell (capacity=%d, count=%d)", s.writer.Capacity(), s.count))
	fprintln(s.out, "Type 'help' for available commands.")

	for {
		line, err := s.liner.Prompt("symtab> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fprintln(s.out, "")

				s.saveHistory()

				return nil
			}

			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		s.liner.AppendHistory(line)

		cmd, rest, _ := strings.Cut(line, " ")
		rest = strings.TrimSpace(rest)

		switch strings.ToLower(cmd) {
		case "exit", "quit", "q":
			s.saveHistory()

			return nil

		case "help", "?":
			fprintln(s.out, shellHelp)

		case "put":
			s.cmdPut(rest)

		case "putnull":
			key, _ := s.writer.PutNullable(nil)
			fprintln(s.out, "key:", key)

		case "rollback":
			s.cmdRollback(rest)

		case "count":
			fprintln(s.out, s.count)

		case "capacity":
			fprintln(s.out, s.writer.Capacity())

		case "bench":
			s.cmdBench(rest)

		case "sync":
			if err := s.writer.Sync(); err != nil {
				fprintln(s.errOut, "error:", err)
			}

		default:
			fprintln(s.errOut, "unknown command:", cmd)
		}
	}
}

func (s *shellSession) cmdPut(text string) {
	if text == "" {
		fprintln(s.errOut, "usage: put <text>")

		return
	}

	key, err := s.writer.Put(text)
	if err != nil {
		fprintln(s.errOut, "error:", err)

		return
	}

	if int64(key) == s.count {
		s.count++

		fprintln(s.out, fmt.Sprintf("key: %d (new, count=%d)", key, s.count))

		return
	}

	fprintln(s.out, "key:", key)
}

func (s *shellSession) cmdRollback(arg string) {
	target, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || target < 0 || target > s.count {
		fprintln(s.errOut, "usage: rollback <n> with 0 <= n <= count")

		return
	}

	rollbackErr := s.writer.Rollback(target)
	if rollbackErr != nil {
		fprintln(s.errOut, "error:", rollbackErr)

		return
	}

	s.count = target

	fprintln(s.out, "count:", s.count)
}

func (s *shellSession) cmdBench(arg string) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 {
		fprintln(s.errOut, "usage: bench <n>")

		return
	}

	start := time.Now()

	for i := 0; i < n; i++ {
		key, putErr := s.writer.Put(fmt.Sprintf("bench-%d", i%1000))
		if putErr != nil {
			fprintln(s.errOut, "error:", putErr)

			return
		}

		if int64(key) == s.count {
			s.count++
		}
	}

	elapsed := time.Since(start)

	fprintln(s.out, fmt.Sprintf("%d puts in %v (%.0f/s)", n, elapsed, float64(n)/elapsed.Seconds()))
}

func (s *shellSession) saveHistory() {
	path := historyFile()
	if path == "" {
		return
	}

	f, err := os.Create(path)
	if err != nil {
		return
	}

	_, _ = s.liner.WriteHistory(f)
	_ = f.Close()
}
