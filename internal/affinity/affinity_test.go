package affinity

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestPinRejectsOutOfRangeCore(t *testing.T) {
	err := Pin(unix.CPU_SETSIZE + 1)
	require.Error(t, err)
}

func TestPinNegativeCoreSkipsAffinity(t *testing.T) {
	// core < 0 must not attempt SchedSetaffinity and must not error.
	require.NoError(t, Pin(-1))
}
