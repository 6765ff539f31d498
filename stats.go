package nanolog

import (
	"sync/atomic"

	"github.com/nanolog/nanolog/internal/consumer"
)

// Stats is the snapshot spec.md §6's `get_stats` returns: producer-side
// drop accounting plus the consumer/writer counters from
// internal/consumer.Stats.
//
// Grounded on the teacher's Metrics/MetricsSnapshot pair in metrics.go —
// same field-per-counter shape, computed ratios derived at snapshot
// time rather than maintained incrementally.
type Stats struct {
	TotalLogsWritten     uint64
	DroppedLogs          uint64
	TotalBytesWritten    uint64
	CompressionRatioX100 uint64
	StagingBuffersActive uint64
	BackgroundWakeups    uint64

	// TypeMismatchDrops is an explicit extension of spec.md's drop
	// taxonomy (SPEC_FULL.md §9): a Log call whose argument types don't
	// match the site's declared ArgTypes is counted separately from a
	// plain overflow drop, though it also contributes to DroppedLogs.
	TypeMismatchDrops uint64

	// SiteRegistrationDrops counts Log calls against a *Site whose
	// one-time registry.Register attempt failed (ErrTooManyArgs: more
	// than registry.MaxArgs declared ArgTypes). Counted separately from
	// the other drop reasons since it's detected at registration time,
	// once per site, rather than per call.
	SiteRegistrationDrops uint64
}

// producerCounters holds the atomic counters only the facade's Log path
// touches, mirrored into Stats by snapshot. Kept separate from
// consumer.Stats because they're incremented on the producer's hot
// path, never inside the consumer goroutine.
type producerCounters struct {
	bufferFullDrops       atomic.Uint64
	entryTooLargeDrop     atomic.Uint64
	typeMismatchDrops     atomic.Uint64
	siteRegistrationDrops atomic.Uint64
}

func snapshotStats(cs *consumer.Stats, pc *producerCounters, buffersActive uint64) Stats {
	raw := cs.RawBytesTotal.Load()
	compressed := cs.CompressedBytesTotal.Load()
	var ratio uint64
	if compressed > 0 {
		ratio = raw * 100 / compressed
	}

	bufferDrops := pc.bufferFullDrops.Load()
	sizeDrops := pc.entryTooLargeDrop.Load()
	typeDrops := pc.typeMismatchDrops.Load()
	regDrops := pc.siteRegistrationDrops.Load()

	return Stats{
		TotalLogsWritten:      cs.EntriesConsumed.Load(),
		DroppedLogs:           bufferDrops + sizeDrops + typeDrops + regDrops,
		TotalBytesWritten:     compressed,
		CompressionRatioX100:  ratio,
		StagingBuffersActive:  buffersActive,
		BackgroundWakeups:     cs.WakeCount.Load(),
		TypeMismatchDrops:     typeDrops,
		SiteRegistrationDrops: regDrops,
	}
}

func resetProducerCounters(pc *producerCounters) {
	pc.bufferFullDrops.Store(0)
	pc.entryTooLargeDrop.Store(0)
	pc.typeMismatchDrops.Store(0)
	pc.siteRegistrationDrops.Store(0)
}
