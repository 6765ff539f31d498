// Package consumer implements the background consumer: the single
// goroutine that drains every producer's staging buffer in round-robin
// order, compresses each entry's payload, and hands it to the binary
// writer (spec.md §4.6).
//
// Grounded on the teacher's Runner/ioLoop in internal/queue/runner.go:
// the same LockOSThread+SchedSetaffinity pinning bracket, the same
// context.Context+cancel shutdown signal, and the same
// drain-to-completion-on-exit discipline the teacher applies when
// r.ctx.Done() fires mid-loop.
package consumer

import (
	"context"
	"encoding/binary"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nanolog/nanolog/internal/affinity"
	"github.com/nanolog/nanolog/internal/codec"
	"github.com/nanolog/nanolog/internal/logging"
	"github.com/nanolog/nanolog/internal/registry"
	"github.com/nanolog/nanolog/internal/staging"
	"github.com/nanolog/nanolog/internal/wire"
)

// FlushBatch is the number of consumed entries after which the writer is
// flushed even if FlushIntervalMs hasn't elapsed (spec.md §4.6).
const FlushBatch = 100

// FlushIntervalMs is the maximum time pending writes may sit unflushed.
const FlushIntervalMs = 100

// IdleSleep is how long the consumer sleeps after a pass finds no work
// across every registered buffer, to avoid spinning the pinned core.
const IdleSleep = 100 * time.Microsecond

// Stats holds the consumer's atomic counters, mirrored out to
// nanolog.Stats by the facade. Grounded on the teacher's Metrics struct
// in metrics.go (one atomic field per counter, Add/Load access).
type Stats struct {
	EntriesConsumed      atomic.Uint64
	BytesConsumed        atomic.Uint64
	CompressedEntries    atomic.Uint64
	PassthroughEntries   atomic.Uint64
	UnknownSiteDrops     atomic.Uint64
	FlushCount           atomic.Uint64
	WakeCount            atomic.Uint64
	CompressedBytesTotal atomic.Uint64
	RawBytesTotal        atomic.Uint64
}

// Sink is the consumer's write target: internal/wire.Writer for
// config.FormatBinary, internal/textsink.Writer for config.FormatText.
// Both already expose exactly this shape.
type Sink interface {
	WriteEntry(siteID uint32, timestamp uint64, payload []byte) error
	Flush() error
}

// Consumer owns the buffer registry, the site registry, and the sink,
// and runs the single background drain loop (spec.md §4.6).
type Consumer struct {
	buffers       *staging.Registry
	sites         *registry.Registry
	sink          Sink
	stats         *Stats
	affinity      int // -1 means unpinned
	hasTimestamps bool
	useCodec      bool

	lastChecked int

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New creates a consumer. affinityCore < 0 leaves the consumer goroutine
// unpinned (the portable default); a value >= 0 pins it the way
// SetWriterAffinity requests. hasTimestamps must match the value passed
// to the writer's WriteHeader, since entry headers carry no self-describing
// length tag for the optional timestamp field. useCodec selects whether
// consumeOneEntry runs payloads through internal/codec before handing them
// to sink (config.FormatBinary) or leaves them raw (config.FormatText,
// spec.md §6: "TEXT format bypasses the compression codec").
func New(buffers *staging.Registry, sites *registry.Registry, sink Sink, stats *Stats, affinityCore int, hasTimestamps, useCodec bool) *Consumer {
	return &Consumer{
		buffers:       buffers,
		sites:         sites,
		sink:          sink,
		stats:         stats,
		affinity:      affinityCore,
		hasTimestamps: hasTimestamps,
		useCodec:      useCodec,
		lastChecked:   -1,
	}
}

// Start launches the background goroutine under a context derived from
// ctx. Cancelling it (via Stop) triggers drain-to-completion: the loop keeps
// scanning until every buffer reports zero available bytes, then
// returns.
func (c *Consumer) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.wg.Add(1)
	go c.run(ctx)
}

// Stop signals the loop to drain and exit, and blocks until it has.
func (c *Consumer) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	logging.Flush()
}

func (c *Consumer) run(ctx context.Context) {
	defer c.wg.Done()

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if c.affinity >= 0 {
		if err := affinity.Pin(c.affinity); err != nil {
			logging.Warn("consumer: failed to set CPU affinity", "core", c.affinity, "err", err)
		} else {
			logging.Debug("consumer: pinned to CPU", "core", c.affinity)
		}
	}

	sinceFlush := 0
	lastFlush := time.Now()

	for {
		select {
		case <-ctx.Done():
			c.drainOnce() // final best-effort pass before the shutdown drain loop
			c.drainToCompletion()
			if err := c.sink.Flush(); err != nil {
				logging.Error("consumer: final flush failed", "err", err)
			}
			return
		default:
		}

		found := c.scanOnce(&sinceFlush)
		c.stats.WakeCount.Add(1)

		// A pass that found nothing this time but still has unflushed
		// entries from an earlier pass means the producer that wrote them
		// has gone idle; flush now instead of waiting out the rest of
		// FlushIntervalMs for entries nothing more is coming to join.
		if sinceFlush >= FlushBatch || time.Since(lastFlush) >= FlushIntervalMs*time.Millisecond || (!found && sinceFlush > 0) {
			if sinceFlush > 0 {
				if err := c.sink.Flush(); err != nil {
					logging.Error("consumer: periodic flush failed", "err", err)
				}
				c.stats.FlushCount.Add(1)
			}
			sinceFlush = 0
			lastFlush = time.Now()
		}

		if !found {
			time.Sleep(IdleSleep)
		}
	}
}

// drainToCompletion repeatedly scans every buffer until a full pass
// consumes nothing, guaranteeing every byte committed before shutdown
// reaches the writer (spec.md §4.6, §5 Shutdown semantics).
func (c *Consumer) drainToCompletion() {
	for {
		var sinceFlush int
		found := c.scanOnce(&sinceFlush)
		if sinceFlush > 0 {
			if err := c.sink.Flush(); err != nil {
				logging.Error("consumer: drain flush failed", "err", err)
			}
		}
		if !found {
			return
		}
	}
}

func (c *Consumer) drainOnce() {
	var sinceFlush int
	c.scanOnce(&sinceFlush)
}

// scanOnce performs one round-robin pass over every registered buffer,
// starting just after lastChecked, consuming at most one ready entry per
// buffer per pass (spec.md §4.6 steps 1-6). It reports whether any entry
// was consumed during the pass.
func (c *Consumer) scanOnce(sinceFlush *int) bool {
	n := c.buffers.Len()
	if n == 0 {
		return false
	}
	found := false
	for i := 0; i < n; i++ {
		idx := (c.lastChecked + 1 + i) % n
		buf := c.buffers.At(idx)
		if buf == nil {
			continue
		}
		if c.consumeOneEntry(buf) {
			found = true
			*sinceFlush++
		}
		c.lastChecked = idx
	}
	return found
}

// consumeOneEntry peeks one raw entry header off buf, verifies the full
// entry is available, compresses its payload, forwards it to the
// writer, and consumes it from the ring. Returns false if no complete
// entry is currently available.
func (c *Consumer) consumeOneEntry(buf *staging.Buffer) bool {
	headerSize := wire.EntryHeaderSizeNoTS
	if c.hasTimestamps {
		headerSize = wire.EntryHeaderSizeTS
	}
	headerPeek := buf.Peek(headerSize)
	if len(headerPeek) < headerSize {
		// Not enough bytes committed yet for even the header; try again
		// next pass once the producer commits more.
		return false
	}

	// Entries here were just staged by a producer in this same process,
	// never read back from a file, so there is no foreign-endian case to
	// detect — always decode in this host's own (little-endian) order.
	eh, hdrLen, err := wire.DecodeEntryHeader(headerPeek, c.hasTimestamps, binary.LittleEndian)
	if err != nil {
		return false
	}

	entrySize := hdrLen + int(eh.DataLength)
	if buf.Available() < entrySize {
		return false
	}

	full := buf.Peek(entrySize)
	payload := append([]byte(nil), full[hdrLen:entrySize]...)

	site, ok := c.sites.Get(eh.SiteID)
	if !ok {
		logging.Warn("consumer: dropping entry for unknown site", "site_id", eh.SiteID)
		c.stats.UnknownSiteDrops.Add(1)
		buf.Consume(entrySize)
		return true
	}

	out := payload
	if c.useCodec {
		if compressed, ok := codec.Compress(payload, site.ArgTypes[:site.ArgCount]); ok {
			out = compressed
			c.stats.CompressedEntries.Add(1)
		} else {
			c.stats.PassthroughEntries.Add(1)
		}
	}
	c.stats.CompressedBytesTotal.Add(uint64(len(out)))
	c.stats.RawBytesTotal.Add(uint64(len(payload)))

	if err := c.sink.WriteEntry(eh.SiteID, eh.Timestamp, out); err != nil {
		logging.Error("consumer: write entry failed", "site_id", eh.SiteID, "err", err)
	}

	buf.Consume(entrySize)
	c.stats.EntriesConsumed.Add(1)
	c.stats.BytesConsumed.Add(uint64(entrySize))
	return true
}
