// Package staging implements the per-producer single-producer/single-
// consumer staging buffer and the process-wide registry that lets the
// background consumer discover live buffers.
//
// Grounded on the teacher's mmap'd descriptor-ring handling in
// internal/queue/runner.go (atomic loads across a producer/consumer
// boundary, fixed-offset field layout) and on other_examples' lock-free
// queue notes on false-sharing, generalized from a fixed-depth SQE/CQE
// ring to a byte-oriented SPSC ring of variable-length raw log entries.
package staging

import (
	"sync/atomic"
)

const cacheLinePad = 64 - 8

// Buffer is a fixed-size byte ring owned by exactly one producer
// goroutine-handle and drained by exactly one consumer goroutine.
//
// writePos is written only by the producer. committed is written by the
// producer (with release semantics) and read by the consumer (with
// acquire semantics) — Go's atomic.Uint64 Store/Load pair provides
// exactly that ordering per the Go memory model. readPos is written only
// by the consumer but read by the producer to estimate free space, so it
// too is atomic despite having a single writer.
//
// The three hot fields are padded onto separate cache lines to prevent
// false sharing between the producer and consumer (spec.md §3, §4.3).
type Buffer struct {
	writePos uint64
	_        [cacheLinePad]byte

	committed atomic.Uint64
	_         [cacheLinePad]byte

	readPos atomic.Uint64
	_       [cacheLinePad]byte

	data []byte
	mask uint64
	size uint64

	scratch []byte // reusable copy-out buffer for wrapped peeks

	ThreadID uint64
	active   atomic.Bool
}

// nextPow2 rounds n up to the next power of two.
func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// New creates a staging buffer of at least size bytes (rounded up to a
// power of two), scratch sized for the largest possible entry.
func New(size int) *Buffer {
	size = nextPow2(size)
	b := &Buffer{
		data:    make([]byte, size),
		mask:    uint64(size - 1),
		size:    uint64(size),
		scratch: make([]byte, 1<<20), // grown on demand in peek if needed
	}
	b.active.Store(true)
	return b
}

// Reserve claims n bytes of the free region between write_pos and
// read_pos and returns the ring offset where they start (to be filled via
// WriteAt), or ok=false if they do not fit. No
// atomics are required on this path beyond the relaxed read of readPos:
// a stale (too-small) view only underestimates free space, it never
// overestimates it, so a torn read cannot cause an overrun.
func (b *Buffer) Reserve(n int) (off int, ok bool) {
	if uint64(n) > b.size {
		return 0, false
	}
	read := b.readPos.Load()
	free := b.size - (b.writePos - read)
	if uint64(n) > free {
		return 0, false
	}
	start := int(b.writePos & b.mask)
	b.writePos += uint64(n)
	return start, true
}

// WriteAt copies src into the reservation starting at ring offset off.
// Because the ring is not entry-aligned, a reservation may wrap; WriteAt
// splits the copy at the end of the backing array when it does.
func (b *Buffer) WriteAt(off int, src []byte) {
	n := len(src)
	end := off + n
	if end <= len(b.data) {
		copy(b.data[off:end], src)
		return
	}
	first := len(b.data) - off
	copy(b.data[off:], src[:first])
	copy(b.data[:end-len(b.data)], src[first:])
}

// Commit publishes every reservation made so far: it advances
// committed to write_pos, issuing the release that makes
// all prior WriteAt calls visible to the consumer's Load of committed.
func (b *Buffer) Commit() {
	b.committed.Store(b.writePos)
}

// Available returns how many committed-but-unconsumed bytes are
// waiting, using an acquire load of committed.
func (b *Buffer) Available() int {
	return int(b.committed.Load() - b.readPos.Load())
}

// Peek copies up to n logical bytes starting at the current read
// position into a reusable scratch buffer and returns it. The copy is
// unavoidable whenever the requested range wraps; in the common
// non-wrapping case it still copies (favoring a single simple code path
// over conditionally aliasing into the ring) but the copy is cheap
// relative to the consumer's compression work downstream.
func (b *Buffer) Peek(n int) []byte {
	avail := b.Available()
	if n > avail {
		n = avail
	}
	if n <= 0 {
		return nil
	}
	if cap(b.scratch) < n {
		b.scratch = make([]byte, n)
	}
	dst := b.scratch[:n]
	start := int(b.readPos.Load() & b.mask)
	end := start + n
	if end <= len(b.data) {
		copy(dst, b.data[start:end])
	} else {
		first := len(b.data) - start
		copy(dst[:first], b.data[start:])
		copy(dst[first:], b.data[:end-len(b.data)])
	}
	return dst
}

// Consume advances read_pos past n logically-consumed bytes. Must only
// be called by the consumer, after the bytes previously returned by
// Peek have been durably handed off.
func (b *Buffer) Consume(n int) {
	b.readPos.Add(uint64(n))
}

// Active reports whether this buffer's owning producer is still alive.
func (b *Buffer) Active() bool { return b.active.Load() }

// Deactivate marks the buffer inactive; called when the owning
// producer's handle is released so the consumer can reclaim the slot
// after draining it.
func (b *Buffer) Deactivate() { b.active.Store(false) }

// Size returns the buffer's capacity in bytes.
func (b *Buffer) Size() int { return int(b.size) }
