//go:build !linux

package asyncio

import "os"

func newForBackend(f *os.File, backend Backend) (Writer, error) {
	return newGoAsync(f), nil
}
