// Package registry implements the log-site registry: it deduplicates
// call-site metadata and assigns each distinct (filename, line, format)
// tuple a dense, stable identifier.
//
// Grounded on the teacher's mutex-guarded append-only state (the buffer
// pool in internal/queue/pool.go) generalized from a fixed set of
// size-bucketed pools to an open-ended append-only site table, and on
// mebo's internal/hash identity-hashing pattern for O(1) amortized
// dedup instead of a linear scan.
package registry

import (
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/nanolog/nanolog/internal/marshaltypes"
)

// MaxArgs is the maximum number of arguments a single site may declare.
const MaxArgs = 50

// Site is the immutable metadata tuple for one call site. Once
// registered, a site's fields never change.
type Site struct {
	ID        uint32
	Level     uint8
	Filename  string
	Line      uint32
	Format    string
	ArgCount  uint8
	ArgTypes  [MaxArgs]marshaltypes.ArgType
}

type identity struct {
	filename string
	line     uint32
	format   string
}

// Registry deduplicates call sites and hands out dense ids.
type Registry struct {
	mu      sync.Mutex
	sites   []Site
	byHash  map[uint64][]uint32 // hash -> candidate site indices (collision chain)
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		byHash: make(map[uint64][]uint32),
	}
}

func hashIdentity(filename string, line uint32, format string) uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(filename)
	_, _ = h.Write([]byte{byte(line), byte(line >> 8), byte(line >> 16), byte(line >> 24)})
	_, _ = h.WriteString(format)
	return h.Sum64()
}

// Register returns the stable site id for (filename, line, format),
// creating a new entry on first use. It is idempotent: repeated calls
// with the same identity return the same id. Thread-safe.
func (r *Registry) Register(level uint8, filename string, line uint32, format string, argTypes []marshaltypes.ArgType) (uint32, error) {
	h := hashIdentity(filename, line, format)

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, idx := range r.byHash[h] {
		s := &r.sites[idx]
		if s.Filename == filename && s.Line == line && s.Format == format {
			return s.ID, nil
		}
	}

	if len(argTypes) > MaxArgs {
		return 0, ErrTooManyArgs
	}

	id := uint32(len(r.sites))
	s := Site{
		ID:       id,
		Level:    level,
		Filename: filename,
		Line:     line,
		Format:   format,
		ArgCount: uint8(len(argTypes)),
	}
	copy(s.ArgTypes[:], argTypes)

	r.sites = append(r.sites, s)
	r.byHash[h] = append(r.byHash[h], id)

	return id, nil
}

// Get looks up a site by id. ok is false for an out-of-range id so
// callers can silently ignore entries referencing sites the current
// process never registered (e.g. stale ids from a reset process).
func (r *Registry) Get(id uint32) (Site, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if int(id) >= len(r.sites) {
		return Site{}, false
	}
	return r.sites[id], true
}

// Snapshot returns a copy of every registered site, for dictionary
// emission at writer close/rotate time.
func (r *Registry) Snapshot() []Site {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Site, len(r.sites))
	copy(out, r.sites)
	return out
}

// Len reports the number of registered sites.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sites)
}
