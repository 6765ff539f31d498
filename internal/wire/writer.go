package wire

import (
	"fmt"
	"os"

	"github.com/cespare/xxhash/v2"

	"github.com/nanolog/nanolog/internal/asyncio"
	"github.com/nanolog/nanolog/internal/compress"
	"github.com/nanolog/nanolog/internal/logging"
)

// DefaultBufferSize is the default size of each of the writer's two
// fixed flush buffers (spec.md §4.7: configurable 4 MiB .. 64 MiB).
const DefaultBufferSize = 4 << 20

// MaxEntrySize mirrors internal/marshal.MaxEntrySize; duplicated here (a
// small untyped constant, not an import) to avoid a dependency from wire
// back onto marshal for a single number.
const MaxEntrySize = 65535

// Writer implements spec.md §4.7: double-buffered async appends, a
// file header it patches at close/rotate time, and dictionary emission.
// Owned exclusively by the background consumer goroutine; no internal
// locking (spec.md §5, "Writer: owned exclusively by the consumer
// thread; no mutex").
type Writer struct {
	path string
	f    *os.File // used for header/dictionary random-access writes
	aio  asyncio.Writer

	hasTimestamps bool
	blockCodec    compress.Codec

	bufs      [2][]byte
	activeIdx int

	offset      int64 // file offset where the next flush will land
	havePending bool

	entriesWritten uint32
	bytesWritten   uint64

	startTicks    uint64
	ticksPerSec   uint64
	startTimeSec  uint64
	startTimeNsec uint32
}

// Create opens path for writing (truncating any existing file),
// allocates the two flush buffers, and leaves the writer ready for
// WriteHeader. bufSize is clamped into spec.md's 4 MiB..64 MiB range.
func Create(path string, bufSize int, hasTimestamps bool, blockCodec compress.Codec) (*Writer, error) {
	if bufSize < (4 << 20) {
		bufSize = 4 << 20
	}
	if bufSize > (64 << 20) {
		bufSize = 64 << 20
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("wire: create %s: %w", path, err)
	}
	aio, err := asyncio.New(path, asyncio.BackendAuto)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("wire: open async writer for %s: %w", path, err)
	}
	if blockCodec == nil {
		blockCodec = compress.NoOp{}
	}
	w := &Writer{
		path:          path,
		f:             f,
		aio:           aio,
		hasTimestamps: hasTimestamps,
		blockCodec:    blockCodec,
	}
	w.bufs[0] = make([]byte, 0, bufSize)
	w.bufs[1] = make([]byte, 0, bufSize)
	return w, nil
}

func (w *Writer) active() []byte   { return w.bufs[w.activeIdx] }
func (w *Writer) setActive(b []byte) { w.bufs[w.activeIdx] = b }

// WriteHeader writes the fixed 64-byte file header with placeholder
// dictionary_offset and entry_count, per spec.md §4.7.
func (w *Writer) WriteHeader(ticksPerSec, startTicks, startSec uint64, startNsec uint32) error {
	w.ticksPerSec = ticksPerSec
	w.startTicks = startTicks
	w.startTimeSec = startSec
	w.startTimeNsec = startNsec

	flags := uint32(0)
	if w.hasTimestamps {
		flags |= FlagHasTimestamps
	}
	if w.blockCodec.Kind() != compress.KindNone {
		flags |= FlagBlockCompressed
	}
	h := Header{
		Magic:            MagicFile,
		VersionMajor:     VersionMajor,
		VersionMinor:     VersionMinor,
		TicksPerSecond:   ticksPerSec,
		StartTicks:       startTicks,
		StartTimeSec:     startSec,
		StartTimeNsec:    startNsec,
		Endianness:       Endianness,
		DictionaryOffset: 0,
		EntryCount:       0,
		Flags:            flags,
	}
	if _, err := w.f.WriteAt(h.Encode(), 0); err != nil {
		return fmt.Errorf("wire: write header: %w", err)
	}
	w.offset = HeaderSize
	w.bytesWritten = HeaderSize
	return nil
}

// WriteEntry appends one entry (header + already-codec'd payload) to the
// active flush buffer, flushing first if it doesn't fit, and writing
// synchronously if the entry alone exceeds the buffer size.
func (w *Writer) WriteEntry(siteID uint32, timestamp uint64, payload []byte) error {
	if len(payload) > MaxEntrySize {
		return fmt.Errorf("wire: payload %d exceeds MaxEntrySize", len(payload))
	}
	eh := EntryHeader{SiteID: siteID, Timestamp: timestamp, DataLength: uint16(len(payload)), HasTimestamp: w.hasTimestamps}
	entryLen := eh.Size() + len(payload)

	if entryLen > cap(w.bufs[w.activeIdx]) {
		// Oversized relative to the buffer: flush what's pending, then
		// write this entry synchronously.
		if err := w.Flush(); err != nil {
			return err
		}
		buf := make([]byte, 0, entryLen)
		buf = eh.Encode(buf)
		buf = append(buf, payload...)
		if err := w.writeBlockSync(buf, true); err != nil {
			return err
		}
		w.entriesWritten++
		return nil
	}

	if len(w.active())+entryLen > cap(w.active()) {
		if err := w.Flush(); err != nil {
			return err
		}
	}
	buf := w.active()
	buf = eh.Encode(buf)
	buf = append(buf, payload...)
	w.setActive(buf)
	w.entriesWritten++
	return nil
}

// writeBlockSync writes a block synchronously, waiting for completion
// before returning. When compressible is true and a block codec is
// configured, the block is compressed and framed with a 4-byte
// little-endian length prefix so the decoder can find block boundaries
// in a stream that mixes framed and unframed regions (dictionary writes
// pass compressible=false: the dictionary section must remain directly
// readable at dictionary_offset regardless of entry-stream framing).
func (w *Writer) writeBlockSync(block []byte, compressible bool) error {
	if err := w.waitPending(); err != nil {
		return err
	}
	out, _ := w.frameBlock(block, compressible)
	if err := w.aio.Submit(out, w.offset); err != nil {
		logging.Error("wire: synchronous block submit failed", "path", w.path, "err", err)
		return err
	}
	n, err := w.aio.Wait()
	if err != nil {
		logging.Error("wire: synchronous block write failed", "path", w.path, "err", err)
		return err
	}
	w.offset += int64(n)
	w.bytesWritten += uint64(n)
	return nil
}

// frameBlock applies block compression (if enabled and compressible) and
// returns the bytes to write, plus the codec kind actually used.
func (w *Writer) frameBlock(block []byte, compressible bool) ([]byte, compress.Kind) {
	if !compressible || w.blockCodec.Kind() == compress.KindNone {
		return block, compress.KindNone
	}
	compressed, err := w.blockCodec.Compress(block)
	if err != nil {
		logging.Error("wire: block compression failed, writing raw", "path", w.path, "err", err)
		return block, compress.KindNone
	}
	framed := make([]byte, 4, 4+len(compressed))
	putUint32LE(framed[0:4], uint32(len(compressed)))
	framed = append(framed, compressed...)
	return framed, w.blockCodec.Kind()
}

func (w *Writer) waitPending() error {
	if !w.havePending {
		return nil
	}
	n, err := w.aio.Wait()
	w.havePending = false
	if err != nil {
		logging.Error("wire: async write failed", "path", w.path, "err", err)
		return err
	}
	_ = n
	return nil
}

// Flush waits for any previously-issued async write, then submits the
// active buffer (if non-empty) and swaps to the other buffer, per
// spec.md §4.7.
func (w *Writer) Flush() error {
	if err := w.waitPending(); err != nil {
		// Best-effort per spec.md §7: the writer keeps accepting entries
		// even after a failed write.
	}

	buf := w.active()
	if len(buf) == 0 {
		return nil
	}

	checksum := xxhash.Sum64(buf)
	out, kind := w.frameBlock(buf, true)
	writeOffset := w.offset
	if err := w.aio.Submit(out, writeOffset); err != nil {
		logging.Error("wire: flush submit failed", "path", w.path, "bytes", len(out), "err", err)
		w.setActive(buf[:0])
		w.activeIdx = 1 - w.activeIdx
		return err
	}
	logging.Debug("wire: flush issued", "path", w.path, "bytes", len(out), "codec", kind.String(), "checksum", fmt.Sprintf("%x", checksum))

	w.havePending = true
	w.offset = writeOffset + int64(len(out))
	w.bytesWritten += uint64(len(out))

	w.setActive(buf[:0])
	w.activeIdx = 1 - w.activeIdx
	return nil
}

// Close flushes, drains in-flight I/O, appends the dictionary sections,
// back-patches the header, and fsyncs, per spec.md §4.7.
func (w *Writer) Close(sites []SiteDictEntry, levels []LevelDictEntry) error {
	if err := w.Flush(); err != nil {
		// continue into drain/dictionary regardless, per §7's best-effort posture
	}
	if err := w.waitPending(); err != nil {
		// same
	}

	dictOffset := w.offset

	var dictBlock []byte
	dictBlock = append(dictBlock, EncodeLevelDict(levels)...)
	dictBlock = append(dictBlock, EncodeSiteDict(sites)...)

	if err := w.writeBlockSync(dictBlock, false); err != nil {
		logging.Error("wire: dictionary write failed", "path", w.path, "err", err)
	}

	if err := w.patchHeader(dictOffset, w.entriesWritten); err != nil {
		logging.Error("wire: header patch failed", "path", w.path, "err", err)
		return err
	}

	if err := w.aio.Sync(); err != nil {
		logging.Error("wire: final sync failed", "path", w.path, "err", err)
	}
	if err := w.aio.Close(); err != nil {
		return err
	}
	return w.f.Close()
}

func (w *Writer) patchHeader(dictOffset int64, entryCount uint32) error {
	var buf [12]byte
	putUint64LE(buf[0:8], uint64(dictOffset))
	putUint32LE(buf[8:12], entryCount)
	if _, err := w.f.WriteAt(buf[0:8], 40); err != nil {
		return err
	}
	if _, err := w.f.WriteAt(buf[8:12], 48); err != nil {
		return err
	}
	return nil
}

func putUint64LE(dst []byte, v uint64) {
	for i := 0; i < 8; i++ {
		dst[i] = byte(v >> (8 * i))
	}
}

func putUint32LE(dst []byte, v uint32) {
	for i := 0; i < 4; i++ {
		dst[i] = byte(v >> (8 * i))
	}
}

// Rotate performs the close-time sequence on the writer's current file,
// then reopens it against newPath with a fresh header, resetting byte
// and entry counters (spec.md §4.7).
func (w *Writer) Rotate(newPath string, sites []SiteDictEntry, levels []LevelDictEntry, startTicks, startSec uint64, startNsec uint32) error {
	if err := w.Close(sites, levels); err != nil {
		return fmt.Errorf("wire: rotate close of %s: %w", w.path, err)
	}

	f, err := os.OpenFile(newPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("wire: rotate create %s: %w", newPath, err)
	}
	aio, err := asyncio.New(newPath, asyncio.BackendAuto)
	if err != nil {
		f.Close()
		return fmt.Errorf("wire: rotate open async writer for %s: %w", newPath, err)
	}

	w.path = newPath
	w.f = f
	w.aio = aio
	w.offset = 0
	w.bytesWritten = 0
	w.entriesWritten = 0
	w.havePending = false
	w.activeIdx = 0
	w.bufs[0] = w.bufs[0][:0]
	w.bufs[1] = w.bufs[1][:0]

	return w.WriteHeader(w.ticksPerSec, startTicks, startSec, startNsec)
}

// Stats returns the writer's accounting counters (spec.md §4.7).
func (w *Writer) Stats() (entriesWritten uint32, bytesWritten uint64) {
	return w.entriesWritten, w.bytesWritten
}

// Path returns the file path the writer currently targets.
func (w *Writer) Path() string { return w.path }
