package staging

import "sync"

// MaxBuffers caps the number of live staging buffers the process will
// track (spec.md §4.4).
const MaxBuffers = 256

// Registry is a process-wide, append-only list of live staging buffers.
// Registration is mutex-protected, and so is the consumer's read path:
// Len and At each take the same mutex briefly, so reads are not
// lock-free.
type Registry struct {
	mu      sync.Mutex
	buffers []*Buffer
}

// NewRegistry creates an empty buffer registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// ErrFull is returned by Register once MaxBuffers live buffers are
// tracked.
type errFull struct{}

func (errFull) Error() string { return "staging: buffer registry is full" }

// ErrFull is the sentinel returned when the registry is at capacity.
var ErrFull error = errFull{}

// Register appends buf to the registry and returns its index, or
// ErrFull if MaxBuffers is already reached.
func (r *Registry) Register(buf *Buffer) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.buffers) >= MaxBuffers {
		return 0, ErrFull
	}
	idx := len(r.buffers)
	r.buffers = append(r.buffers, buf)
	return idx, nil
}

// Len returns the current number of registered buffers. It takes the
// mutex to read the length; a buffer registered right after the read is
// simply picked up on the consumer's next pass.
func (r *Registry) Len() int {
	r.mu.Lock()
	n := len(r.buffers)
	r.mu.Unlock()
	return n
}

// At returns the buffer at idx. Entries are never relocated once
// appended, so this is safe to call without holding the mutex across
// concurrent Register calls — but Go's race detector does not know
// slice-append never reallocs a previously-returned backing array
// index in place, so we still take the mutex briefly to read the
// pointer out of the (possibly reallocated) backing slice.
func (r *Registry) At(idx int) *Buffer {
	r.mu.Lock()
	defer r.mu.Unlock()
	if idx < 0 || idx >= len(r.buffers) {
		return nil
	}
	return r.buffers[idx]
}

// All returns a snapshot slice of every registered buffer pointer.
func (r *Registry) All() []*Buffer {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Buffer, len(r.buffers))
	copy(out, r.buffers)
	return out
}
