//go:build linux

package asyncio

import "os"

func newForBackend(f *os.File, backend Backend) (Writer, error) {
	switch backend {
	case BackendGoroutine:
		return newGoAsync(f), nil
	case BackendIOUring, BackendAuto:
		w, err := newIOUring(f)
		if err != nil {
			// io_uring unavailable (old kernel, seccomp filter, etc.);
			// fall back to the portable backend rather than failing
			// engine startup outright.
			return newGoAsync(f), nil
		}
		return w, nil
	default:
		return newGoAsync(f), nil
	}
}
