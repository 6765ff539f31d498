package nanolog

import (
	"fmt"
	"sync"
	"time"

	"github.com/nanolog/nanolog/config"
	"github.com/nanolog/nanolog/internal/registry"
	"github.com/nanolog/nanolog/internal/textsink"
	"github.com/nanolog/nanolog/internal/wire"
)

// rotatingSink is the consumer.Sink the facade constructs: either a
// binary wire.Writer or a textsink.Writer, optionally wrapped with
// spec.md §6's DAILY rotation check ("the consumer checks the date on
// each flush pass and triggers rotate on change"). Checking the date is
// cheap enough to do on every Flush call rather than threading a
// separate timer through internal/consumer.
type rotatingSink interface {
	WriteEntry(siteID uint32, timestamp uint64, payload []byte) error
	Flush() error
	Close() error
}

func datedPath(basePath, ext string, t time.Time) string {
	return fmt.Sprintf("%s-%s.%s", basePath, t.Format("2006-01-02"), ext)
}

func plainPath(basePath, ext string) string {
	return fmt.Sprintf("%s.%s", basePath, ext)
}

func toSiteDictEntries(sites []registry.Site) []wire.SiteDictEntry {
	out := make([]wire.SiteDictEntry, len(sites))
	for i, s := range sites {
		out[i] = wire.SiteDictEntry{
			SiteID:   s.ID,
			Level:    s.Level,
			ArgCount: s.ArgCount,
			Line:     s.Line,
			Filename: s.Filename,
			Format:   s.Format,
			ArgTypes: s.ArgTypes,
		}
	}
	return out
}

func newRotatingSink(e *engine) (rotatingSink, error) {
	switch e.cfg.Format {
	case config.FormatText:
		return newTextRotatingSink(e)
	default:
		return newBinaryRotatingSink(e)
	}
}

// binaryRotatingSink wraps internal/wire.Writer with date-based rotation
// and dictionary snapshotting at close/rotate time.
type binaryRotatingSink struct {
	mu      sync.Mutex
	e       *engine
	w       *wire.Writer
	curDate string // "" when RotationPolicy == NONE
}

func newBinaryRotatingSink(e *engine) (*binaryRotatingSink, error) {
	codec, err := blockCodecFor(e.cfg.BlockCompression)
	if err != nil {
		return nil, err
	}
	w, err := wire.Create(plainPathOrDated(e, time.Now()), e.cfg.WriterBufferSize, e.cfg.HasTimestamps, codec)
	if err != nil {
		return nil, err
	}
	startTicks := e.clock.NowNanos()
	now := time.Now()
	if err := w.WriteHeader(1_000_000_000, startTicks, uint64(now.Unix()), uint32(now.Nanosecond())); err != nil {
		w.Close(nil, nil)
		return nil, err
	}
	s := &binaryRotatingSink{e: e, w: w}
	if e.cfg.RotationPolicy == config.RotationDaily {
		s.curDate = now.Format("2006-01-02")
	}
	return s, nil
}

func plainPathOrDated(e *engine, t time.Time) string {
	if e.cfg.RotationPolicy == config.RotationDaily {
		return datedPath(e.cfg.BasePath, e.cfg.Extension(), t)
	}
	return plainPath(e.cfg.BasePath, e.cfg.Extension())
}

func (s *binaryRotatingSink) WriteEntry(siteID uint32, timestamp uint64, payload []byte) error {
	return s.w.WriteEntry(siteID, timestamp, payload)
}

func (s *binaryRotatingSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.e.cfg.RotationPolicy == config.RotationDaily {
		now := time.Now()
		today := now.Format("2006-01-02")
		if today != s.curDate {
			sites := toSiteDictEntries(s.e.sites.Snapshot())
			levels := s.e.snapshotLevels()
			startTicks := s.e.clock.NowNanos()
			if err := s.w.Rotate(datedPath(s.e.cfg.BasePath, s.e.cfg.Extension(), now), sites, levels,
				startTicks, uint64(now.Unix()), uint32(now.Nanosecond())); err != nil {
				return err
			}
			s.curDate = today
		}
	}
	return s.w.Flush()
}

func (s *binaryRotatingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sites := toSiteDictEntries(s.e.sites.Snapshot())
	levels := s.e.snapshotLevels()
	return s.w.Close(sites, levels)
}

// textRotatingSink wraps internal/textsink.Writer. TEXT traces carry no
// dictionary section, so rotation here is just close-current/open-next.
type textRotatingSink struct {
	mu      sync.Mutex
	e       *engine
	w       *textsink.Writer
	pattern string
	curDate string
}

func newTextRotatingSink(e *engine) (*textRotatingSink, error) {
	pattern := e.cfg.TextPattern
	if pattern == "" {
		pattern = defaultTextPattern
	}
	now := time.Now()
	w, err := textsink.Create(plainPathOrDated(e, now), pattern, e.sites, e.clock.NowNanos())
	if err != nil {
		return nil, err
	}
	s := &textRotatingSink{e: e, w: w, pattern: pattern}
	if e.cfg.RotationPolicy == config.RotationDaily {
		s.curDate = now.Format("2006-01-02")
	}
	return s, nil
}

// defaultTextPattern mirrors a site's own declared format with standard
// level/location context. It has the same value as the decoder CLI's line
// pattern default (internal/textfmt.DefaultPattern) but is declared here
// because TEXT mode writes directly from the consumer rather than through
// a later decode pass.
const defaultTextPattern = "[%t] [%l] [%f:%L] %m"

func (s *textRotatingSink) WriteEntry(siteID uint32, timestamp uint64, payload []byte) error {
	return s.w.WriteEntry(siteID, timestamp, payload)
}

func (s *textRotatingSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.e.cfg.RotationPolicy == config.RotationDaily {
		now := time.Now()
		today := now.Format("2006-01-02")
		if today != s.curDate {
			if err := s.w.Close(); err != nil {
				return err
			}
			w, err := textsink.Create(datedPath(s.e.cfg.BasePath, s.e.cfg.Extension(), now),
				s.pattern, s.e.sites, s.e.clock.NowNanos())
			if err != nil {
				return err
			}
			s.w = w
			s.curDate = today
		}
	}
	return s.w.Flush()
}

func (s *textRotatingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Close()
}

func (e *engine) snapshotLevels() []wire.LevelDictEntry {
	e.levelsMu.Lock()
	defer e.levelsMu.Unlock()
	out := make([]wire.LevelDictEntry, len(e.levels))
	copy(out, e.levels)
	return out
}
