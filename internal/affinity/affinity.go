// Package affinity pins the calling goroutine's OS thread to a specific
// CPU core, used by the background consumer (SPEC_FULL.md §4.6) to keep
// its cache-hot staging-buffer scan from migrating across cores.
//
// Grounded directly on the teacher's internal/queue/runner.go ioLoop,
// which LockOSThreads before calling unix.SchedSetaffinity for the same
// reason (its per-queue kernel thread-affinity requirement); the
// error-is-non-fatal posture is kept since losing affinity never makes
// the consumer's correctness properties (spec.md §8) false, only its
// cache locality worse.
package affinity

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// Pin calls runtime.LockOSThread and then attempts to restrict the
// current OS thread to core. The caller must already be running on the
// goroutine it wants pinned, and must never call runtime.UnlockOSThread
// while relying on the affinity (consumer's loop runs for the engine's
// lifetime, so it never unlocks).
//
// core < 0 skips affinity entirely but still locks the OS thread, since
// SPEC_FULL.md §5 requires the consumer goroutine to own a fixed OS
// thread regardless of whether a specific core was requested.
func Pin(core int) error {
	runtime.LockOSThread()
	if core < 0 {
		return nil
	}
	if core >= unix.CPU_SETSIZE {
		return fmt.Errorf("affinity: core %d exceeds CPU_SETSIZE %d", core, unix.CPU_SETSIZE)
	}
	var mask unix.CPUSet
	mask.Set(core)
	if err := unix.SchedSetaffinity(0, &mask); err != nil {
		return fmt.Errorf("affinity: set CPU %d: %w", core, err)
	}
	return nil
}
