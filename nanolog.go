// Package nanolog is the public facade: spec.md §6's `init / init_ex /
// shutdown / preallocate / log / set_writer_affinity / get_stats /
// reset_stats`, wired over internal/registry, internal/staging,
// internal/marshal, internal/consumer, internal/wire, internal/textsink,
// and internal/clock.
//
// engine's context.WithCancel/cancel bracketing of the consumer goroutine
// is grounded on the teacher's backend.go Device (CreateAndServe sets up
// ctx/cancel around its queue runners, StopAndDelete cancels and joins
// them). The teacher hands Device back to its caller rather than holding
// it in a package-level variable; spec.md §9's "global mutable state"
// requirement has no analogue there, so engine's atomic.Pointer[engine]
// singleton is this package's own addition, not a teacher pattern.
package nanolog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/nanolog/nanolog/config"
	"github.com/nanolog/nanolog/internal/clock"
	"github.com/nanolog/nanolog/internal/compress"
	"github.com/nanolog/nanolog/internal/consumer"
	"github.com/nanolog/nanolog/internal/logging"
	"github.com/nanolog/nanolog/internal/marshal"
	"github.com/nanolog/nanolog/internal/marshaltypes"
	"github.com/nanolog/nanolog/internal/registry"
	"github.com/nanolog/nanolog/internal/staging"
	"github.com/nanolog/nanolog/internal/textsink"
	"github.com/nanolog/nanolog/internal/wire"
)

// Level mirrors internal/marshaltypes.Level for callers that don't want
// to import an internal package just to name DEBUG/INFO/WARN/ERROR.
type Level = marshaltypes.Level

const (
	LevelDebug = marshaltypes.LevelDebug
	LevelInfo  = marshaltypes.LevelInfo
	LevelWarn  = marshaltypes.LevelWarn
	LevelError = marshaltypes.LevelError
)

// ArgType mirrors internal/marshaltypes.ArgType for site declarations.
type ArgType = marshaltypes.ArgType

const (
	ArgNone    = marshaltypes.ArgNone
	ArgInt32   = marshaltypes.ArgInt32
	ArgInt64   = marshaltypes.ArgInt64
	ArgUint32  = marshaltypes.ArgUint32
	ArgUint64  = marshaltypes.ArgUint64
	ArgDouble  = marshaltypes.ArgDouble
	ArgString  = marshaltypes.ArgString
	ArgPointer = marshaltypes.ArgPointer
)

// siteIDFailed is a sentinel registry id no successful registry.Register
// call ever returns (it hands out ids from a zero-based counter), used
// to mark a *Site whose one-time registration attempt failed so Log can
// refuse it instead of aliasing silently onto whatever site legitimately
// registered as id 0.
const siteIDFailed = ^uint32(0)

// Site is a call site's immutable metadata, captured once at the call
// site (spec.md §3) and lazily registered with the engine's registry on
// first use so that Init/InitEx need not run before package-level
// *Site variables are constructed.
type Site struct {
	level    uint8
	filename string
	line     uint32
	format   string
	argTypes []marshaltypes.ArgType

	once sync.Once
	id   uint32
}

// NewSite declares a call site. Typical use is a single package-level
// variable per log statement, constructed at init time:
//
//	var siteRequestStart = nanolog.NewSite(nanolog.LevelInfo, "server.go", 42,
//		"request started: method=%s path=%s", nanolog.ArgString, nanolog.ArgString)
func NewSite(level Level, filename string, line uint32, format string, argTypes ...ArgType) *Site {
	return &Site{level: uint8(level), filename: filename, line: line, format: format, argTypes: argTypes}
}

// register resolves s's registry id exactly once. On failure (only
// ErrTooManyArgs: more than registry.MaxArgs declared ArgTypes) it
// leaves s.id at siteIDFailed rather than the zero value, so the
// sync.Once that guards this call never has to retry and every
// subsequent Log against s can recognize the failure and drop instead
// of aliasing onto whatever site legitimately registered as id 0.
func (s *Site) register(e *engine) uint32 {
	s.once.Do(func() {
		id, err := e.sites.Register(s.level, s.filename, s.line, s.format, s.argTypes)
		if err != nil {
			logging.Error("nanolog: site registration failed", "filename", s.filename, "line", s.line, "err", err)
			s.id = siteIDFailed
			return
		}
		s.id = id
	})
	return s.id
}

// engine is the process-wide singleton state between Init/InitEx and
// Shutdown, held behind an atomic pointer so Log's hot path never takes
// a lock to find it (spec.md §9: "a single `*engine` struct behind an
// atomic.Pointer[engine]").
type engine struct {
	cfg   config.Config
	clock clock.Source

	sites   *registry.Registry
	buffers *staging.Registry

	sink      rotatingSink
	consumer  *consumer.Consumer
	consStats *consumer.Stats

	producers producerCounters

	levelsMu sync.Mutex
	levels   []wire.LevelDictEntry

	stagingBufferSize int

	ctx    context.Context
	cancel context.CancelFunc
}

var current atomic.Pointer[engine]

// Init starts the engine in single-file binary mode with timestamps
// enabled, per spec.md §6.
func Init(path string) error {
	return InitEx(config.Default(path))
}

// InitEx starts the engine with a full configuration. Double-init is a
// safe no-op: while an engine is running, InitEx returns nil and leaves
// that engine and its configuration in place. Init after Shutdown fully
// re-initialises state.
func InitEx(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return newError("InitEx", ErrCodeConfig, err)
	}
	if current.Load() != nil {
		return nil
	}

	if dir := filepath.Dir(cfg.BasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return newError("InitEx", ErrCodeConfig, err)
		}
	}

	e := &engine{
		cfg:               cfg,
		clock:             clock.System{},
		sites:             registry.New(),
		buffers:           staging.NewRegistry(),
		consStats:         &consumer.Stats{},
		stagingBufferSize: cfg.StagingBufferSize,
	}

	sink, err := newRotatingSink(e)
	if err != nil {
		return newError("InitEx", ErrCodeWriterIO, err)
	}
	e.sink = sink

	useCodec := cfg.Format == config.FormatBinary
	e.consumer = consumer.New(e.buffers, e.sites, sink, e.consStats, cfg.AffinityCore, cfg.HasTimestamps, useCodec)

	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.consumer.Start(e.ctx)

	current.Store(e)
	return nil
}

// Shutdown flushes every buffer, writes the dictionary, and closes the
// file (spec.md §5, §6). Double-shutdown is a safe no-op.
func Shutdown() error {
	e := current.Swap(nil)
	if e == nil {
		return nil
	}
	return shutdownEngine(e)
}

func shutdownEngine(e *engine) error {
	e.cancel()
	e.consumer.Stop()
	for _, buf := range e.buffers.All() {
		buf.Deactivate()
	}
	return e.sink.Close()
}

// Producer is the explicit per-goroutine handle spec.md's thread-local
// staging buffer is redesigned into (SPEC_FULL.md §5, REDESIGN FLAG):
// Go has no thread-local storage and goroutines migrate between OS
// threads, so the facade hands callers a concrete handle instead of
// recovering "the current thread's buffer" implicitly.
type Producer struct {
	e   *engine
	buf *staging.Buffer
}

// Preallocate force-creates a staging buffer for the caller and returns
// a handle to it, moving the one-time ~300ns allocation cost out of the
// first measured Log call (spec.md §5, §6).
func Preallocate() (*Producer, error) {
	e := current.Load()
	if e == nil {
		return nil, newError("Preallocate", ErrCodeNotInit, nil)
	}
	buf := staging.New(e.stagingBufferSize)
	if _, err := e.buffers.Register(buf); err != nil {
		return nil, newError("Preallocate", ErrCodeBufferFull, err)
	}
	return &Producer{e: e, buf: buf}, nil
}

// Log marshals args per site's declared ArgTypes and stages the entry,
// per spec.md §4.5/§4.6. It never blocks and never returns an error to
// the hot path: overflow, oversized entries, and type mismatches are
// silently counted (spec.md §7, "producer-side errors never propagate").
// Logging through a Producer whose engine has since been shut down, or
// logging before Init at all, is likewise a silent drop.
func (p *Producer) Log(level Level, site *Site, args ...any) {
	e := p.e
	if current.Load() != e {
		return
	}
	id := site.register(e)
	if id == siteIDFailed {
		e.producers.siteRegistrationDrops.Add(1)
		return
	}

	n, err := marshal.Size(site.argTypes, args)
	if err != nil {
		if errors.Is(err, marshal.ErrEntryTooLarge) {
			e.producers.entryTooLargeDrop.Add(1)
		} else {
			e.producers.typeMismatchDrops.Add(1)
		}
		return
	}

	headerSize := wire.EntryHeaderSizeNoTS
	if e.cfg.HasTimestamps {
		headerSize = wire.EntryHeaderSizeTS
	}

	ts := e.clock.NowNanos()
	eh := wire.EntryHeader{SiteID: id, Timestamp: ts, DataLength: uint16(n), HasTimestamp: e.cfg.HasTimestamps}

	entry := eh.Encode(make([]byte, 0, headerSize+n))
	entry = entry[:headerSize+n] // grow into the preallocated payload region
	if err := marshal.Marshal(entry[headerSize:], site.argTypes, args); err != nil {
		e.producers.typeMismatchDrops.Add(1)
		return
	}

	off, ok := p.buf.Reserve(len(entry))
	if !ok {
		e.producers.bufferFullDrops.Add(1)
		return
	}
	p.buf.WriteAt(off, entry)
	p.buf.Commit()
}

// SetWriterAffinity is a convenience no-op placeholder retained for API
// parity with spec.md §6 on a running engine: affinity can only be
// applied at Init/InitEx time in this implementation (the consumer
// goroutine pins itself once at startup — see internal/consumer.Start),
// so this reports ErrCodeNotInit when no engine is running and
// ErrCodeAffinity when asked to change a running engine's pinning,
// which would require restarting the consumer goroutine.
func SetWriterAffinity(core int) error {
	e := current.Load()
	if e == nil {
		return newError("SetWriterAffinity", ErrCodeNotInit, nil)
	}
	if core == e.cfg.AffinityCore {
		return nil
	}
	return newError("SetWriterAffinity", ErrCodeAffinity,
		fmt.Errorf("affinity can only be set via InitEx's Config.AffinityCore before Init"))
}

// RegisterLevel records a custom level name for the level dictionary
// (spec.md §3's "optional user-registered levels").
func RegisterLevel(level uint8, name string) error {
	e := current.Load()
	if e == nil {
		return newError("RegisterLevel", ErrCodeNotInit, nil)
	}
	e.levelsMu.Lock()
	defer e.levelsMu.Unlock()
	e.levels = append(e.levels, wire.LevelDictEntry{Level: level, Name: name})
	return nil
}

// GetStats returns a snapshot of the running engine's counters (spec.md
// §6). Called on a nil engine, it returns a zero Stats.
func GetStats() Stats {
	e := current.Load()
	if e == nil {
		return Stats{}
	}
	active := uint64(0)
	for _, b := range e.buffers.All() {
		if b.Active() {
			active++
		}
	}
	return snapshotStats(e.consStats, &e.producers, active)
}

// ResetStats zeroes every counter without affecting buffered-but-
// unconsumed entries.
func ResetStats() {
	e := current.Load()
	if e == nil {
		return
	}
	e.consStats.EntriesConsumed.Store(0)
	e.consStats.BytesConsumed.Store(0)
	e.consStats.CompressedEntries.Store(0)
	e.consStats.PassthroughEntries.Store(0)
	e.consStats.UnknownSiteDrops.Store(0)
	e.consStats.FlushCount.Store(0)
	e.consStats.WakeCount.Store(0)
	e.consStats.CompressedBytesTotal.Store(0)
	e.consStats.RawBytesTotal.Store(0)
	resetProducerCounters(&e.producers)
}

func blockCodecFor(bc config.BlockCompression) (compress.Codec, error) {
	switch bc {
	case config.BlockCompressionNone, "":
		return compress.NoOp{}, nil
	case config.BlockCompressionLZ4:
		return compress.New(compress.KindLZ4)
	case config.BlockCompressionZstd:
		return compress.New(compress.KindZstd)
	default:
		return nil, fmt.Errorf("nanolog: unknown block compression %q", bc)
	}
}
