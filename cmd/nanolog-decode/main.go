// Command nanolog-decode is the offline reader for .clog trace files: it
// parses a file written by the engine's wire.Writer and renders each
// entry as a line of text, one entry per line, in file order.
//
// Flag parsing follows the teacher's cmd/ublk-mem/main.go: plain stdlib
// flag, no subcommands, flags bound to local vars up front.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/nanolog/nanolog/internal/decode"
	"github.com/nanolog/nanolog/internal/textfmt"
)

func main() {
	var (
		formatPattern = flag.String("f", textfmt.DefaultPattern, "line format pattern (tokens: %t %T %r %l %f %L %m %%)")
		levelFilter   = flag.String("l", "", "comma-separated list of levels to include (default: all)")
	)
	flag.StringVar(formatPattern, "format", textfmt.DefaultPattern, "same as -f")
	flag.StringVar(levelFilter, "level", "", "same as -l")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [-f pattern] [-l level,level,...] <trace.clog>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}

	if err := run(flag.Arg(0), *formatPattern, *levelFilter); err != nil {
		fmt.Fprintln(os.Stderr, "nanolog-decode:", err)
		os.Exit(1)
	}
}

func run(path, pattern, levelFilter string) error {
	f, err := decode.Open(path)
	if err != nil {
		return err
	}

	var allow map[string]bool
	if levelFilter != "" {
		allow = make(map[string]bool)
		for _, name := range strings.Split(levelFilter, ",") {
			allow[strings.ToUpper(strings.TrimSpace(name))] = true
		}
	}

	startTicks, tickHz := firstTimestamp(f), f.Header.TicksPerSecond
	out := os.Stdout
	for _, e := range f.Entries {
		site, ok := f.SiteByID(e.SiteID)
		if !ok {
			fmt.Fprintf(os.Stderr, "nanolog-decode: skipping entry for unknown site %d\n", e.SiteID)
			continue
		}

		levelName := f.LevelName(site.Level)
		if allow != nil && !allow[strings.ToUpper(levelName)] {
			continue
		}

		vals, err := f.Values(e, site)
		if err != nil {
			return fmt.Errorf("site %d: %w", e.SiteID, err)
		}
		msg, err := textfmt.Substitute(site.Format, site.ArgTypes[:site.ArgCount], vals)
		if err != nil {
			return fmt.Errorf("site %d: %w", e.SiteID, err)
		}

		line := textfmt.Line{
			AbsoluteTime:  formatAbsoluteTime(f, e.Timestamp, tickHz),
			RawTicks:      e.Timestamp,
			RelativeTicks: e.Timestamp - startTicks,
			Level:         levelName,
			Filename:      site.Filename,
			LineNo:        site.Line,
			Message:       msg,
		}
		fmt.Fprintln(out, textfmt.FormatLine(pattern, line))
	}
	return nil
}

func firstTimestamp(f *decode.File) uint64 {
	if len(f.Entries) == 0 {
		return 0
	}
	return f.Entries[0].Timestamp
}

// formatAbsoluteTime converts a tick count to wall-clock time using the
// file header's epoch offset and tick frequency (spec.md §4.2: the header
// records both so an offline reader never has to guess the clock base).
func formatAbsoluteTime(f *decode.File, ticks uint64, tickHz uint64) string {
	if tickHz == 0 {
		return fmt.Sprintf("%d", ticks)
	}
	elapsedTicks := ticks - f.Header.StartTicks
	elapsedNanos := elapsedTicks * 1_000_000_000 / tickHz
	seconds := f.Header.StartTimeSec + elapsedNanos/1_000_000_000
	nanos := uint64(f.Header.StartTimeNsec) + elapsedNanos%1_000_000_000
	if nanos >= 1_000_000_000 {
		seconds++
		nanos -= 1_000_000_000
	}
	return fmt.Sprintf("%d.%09d", seconds, nanos)
}
