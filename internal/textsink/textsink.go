// Package textsink implements the consumer.Sink used when config.Config's
// Format is FormatText: every entry is rendered as one line of text via
// internal/textfmt instead of being appended to a binary .clog file,
// bypassing the per-entry compression codec entirely (spec.md §6: "TEXT
// format bypasses the compression codec and routes entries to a text
// formatter that substitutes values into the site's printf-style format
// string").
//
// Grounded on opencoff-go-logger's buffered-writer shape (other_examples):
// a single owned io.Writer wrapped in bufio.Writer, drained by whichever
// goroutine already owns it. Here that owner is the background consumer
// itself, which already serializes every call through its own batch/
// interval flush policy (spec.md §5: "Writer: owned exclusively by the
// consumer thread; no mutex"), so no separate flush goroutine or channel
// is needed the way the teacher's logger uses one.
package textsink

import (
	"bufio"
	"fmt"
	"os"

	"github.com/nanolog/nanolog/internal/codec"
	"github.com/nanolog/nanolog/internal/marshaltypes"
	"github.com/nanolog/nanolog/internal/registry"
	"github.com/nanolog/nanolog/internal/textfmt"
)

// Writer renders entries as text lines into a single append-only file.
type Writer struct {
	f       *os.File
	bw      *bufio.Writer
	pattern string
	sites   *registry.Registry

	startTicks     uint64
	entriesWritten uint32
}

// Create opens path for buffered text appends (truncating any existing
// file, matching wire.Create's semantics for the binary path).
func Create(path, pattern string, sites *registry.Registry, startTicks uint64) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("textsink: create %s: %w", path, err)
	}
	return &Writer{
		f:          f,
		bw:         bufio.NewWriterSize(f, 64*1024),
		pattern:    pattern,
		sites:      sites,
		startTicks: startTicks,
	}, nil
}

// WriteEntry looks up the entry's site, decodes its raw (never
// codec-compressed) payload, substitutes the values into the site's
// format string, and appends one rendered line.
func (w *Writer) WriteEntry(siteID uint32, timestamp uint64, payload []byte) error {
	site, ok := w.sites.Get(siteID)
	if !ok {
		return fmt.Errorf("textsink: unknown site %d", siteID)
	}
	argTypes := site.ArgTypes[:site.ArgCount]
	vals, err := codec.DecodeRawValues(payload, argTypes)
	if err != nil {
		return fmt.Errorf("textsink: decoding site %d payload: %w", siteID, err)
	}
	msg, err := textfmt.Substitute(site.Format, argTypes, vals)
	if err != nil {
		return fmt.Errorf("textsink: substituting site %d: %w", siteID, err)
	}

	line := textfmt.Line{
		AbsoluteTime:  fmt.Sprintf("%d", timestamp),
		RawTicks:      timestamp,
		RelativeTicks: timestamp - w.startTicks,
		Level:         marshaltypes.Level(site.Level).String(),
		Filename:      site.Filename,
		LineNo:        site.Line,
		Message:       msg,
	}
	if _, err := fmt.Fprintln(w.bw, textfmt.FormatLine(w.pattern, line)); err != nil {
		return err
	}
	w.entriesWritten++
	return nil
}

// Flush pushes buffered lines to the underlying file.
func (w *Writer) Flush() error {
	return w.bw.Flush()
}

// Close flushes, fsyncs, and closes the file.
func (w *Writer) Close() error {
	if err := w.bw.Flush(); err != nil {
		w.f.Close()
		return err
	}
	if err := w.f.Sync(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}

// EntriesWritten reports how many lines have been rendered so far.
func (w *Writer) EntriesWritten() uint32 { return w.entriesWritten }
