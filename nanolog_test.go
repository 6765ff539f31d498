package nanolog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nanolog/nanolog/config"
	"github.com/nanolog/nanolog/internal/decode"
	"github.com/nanolog/nanolog/internal/textfmt"
)

func waitForStats(t *testing.T, want uint64, get func() uint64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if get() >= want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	require.GreaterOrEqual(t, get(), want)
}

// TestRoundTripFourEntries exercises scenario (a): four entries logged
// through one site decode back, in order, to the expected messages.
func TestRoundTripFourEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace")
	require.NoError(t, Init(path))
	defer Shutdown()

	p, err := Preallocate()
	require.NoError(t, err)

	site := NewSite(LevelInfo, "app.c", 10, "request %d from %s", ArgInt32, ArgString)
	p.Log(LevelInfo, site, int32(1), "alice")
	p.Log(LevelInfo, site, int32(2), "bob")
	p.Log(LevelInfo, site, int32(3), "carol")
	p.Log(LevelInfo, site, int32(4), "dave")

	waitForStats(t, 4, func() uint64 { return GetStats().TotalLogsWritten })
	require.NoError(t, Shutdown())

	f, err := decode.Open(path + ".clog")
	require.NoError(t, err)
	require.Len(t, f.Entries, 4)

	wantMsgs := []string{
		"request 1 from alice",
		"request 2 from bob",
		"request 3 from carol",
		"request 4 from dave",
	}
	for i, e := range f.Entries {
		s, ok := f.SiteByID(e.SiteID)
		require.True(t, ok)
		values, err := f.Values(e, s)
		require.NoError(t, err)
		msg, err := textfmt.Substitute(s.Format, s.ArgTypes[:s.ArgCount], values)
		require.NoError(t, err)
		require.Equal(t, wantMsgs[i], msg)
	}
}

// TestIntraThreadOrderPreserved exercises spec.md §8 property #2: one
// producer's entries appear in program order in the output file.
func TestIntraThreadOrderPreserved(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace")
	require.NoError(t, Init(path))
	defer Shutdown()

	p, err := Preallocate()
	require.NoError(t, err)
	site := NewSite(LevelDebug, "order.c", 1, "seq %d", ArgInt32)

	const n = 500
	for i := 0; i < n; i++ {
		p.Log(LevelDebug, site, int32(i))
	}

	waitForStats(t, n, func() uint64 { return GetStats().TotalLogsWritten })
	require.NoError(t, Shutdown())

	f, err := decode.Open(path + ".clog")
	require.NoError(t, err)
	require.Len(t, f.Entries, n)

	s, ok := f.SiteByID(f.Entries[0].SiteID)
	require.True(t, ok)
	for i, e := range f.Entries {
		values, err := f.Values(e, s)
		require.NoError(t, err)
		require.Equal(t, int32(i), values[0])
	}
}

// TestAtMostOnceAccounting exercises spec.md §8 property #3: for every
// Log call, exactly one of TotalLogsWritten/DroppedLogs increments.
func TestAtMostOnceAccounting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace")
	require.NoError(t, Init(path))
	defer Shutdown()

	p, err := Preallocate()
	require.NoError(t, err)
	site := NewSite(LevelInfo, "acct.c", 1, "v=%d", ArgInt32)

	const n = 2000
	for i := 0; i < n; i++ {
		p.Log(LevelInfo, site, int32(i))
	}

	waitForStats(t, n, func() uint64 {
		s := GetStats()
		return s.TotalLogsWritten + s.DroppedLogs
	})

	s := GetStats()
	require.Equal(t, uint64(n), s.TotalLogsWritten+s.DroppedLogs)
}

// TestOverflowAndDropAccounting exercises scenario (d): a tiny buffer
// driven past capacity records drops, then recovers once drained.
func TestOverflowAndDropAccounting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace")
	cfg := config.Default(path)
	cfg.StagingBufferSize = 256 // small enough to overflow quickly
	require.NoError(t, InitEx(cfg))
	defer Shutdown()

	p, err := Preallocate()
	require.NoError(t, err)
	site := NewSite(LevelWarn, "overflow.c", 1, "v=%d", ArgInt32)

	for i := 0; i < 500; i++ {
		p.Log(LevelWarn, site, int32(i))
	}

	require.Greater(t, GetStats().DroppedLogs, uint64(0))

	time.Sleep(50 * time.Millisecond) // let the consumer drain what fit
	for i := 0; i < 10; i++ {
		p.Log(LevelWarn, site, int32(1000+i))
	}
	waitForStats(t, 1, func() uint64 { return GetStats().TotalLogsWritten })
}

// TestOverArityRegistrationDrops exercises a site whose declared
// ArgTypes exceed registry.MaxArgs: registration fails once inside the
// site's sync.Once, and every subsequent Log call against it must count
// as a drop rather than aliasing onto site id 0.
func TestOverArityRegistrationDrops(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace")
	require.NoError(t, Init(path))
	defer Shutdown()

	p, err := Preallocate()
	require.NoError(t, err)

	argTypes := make([]ArgType, 51) // registry.MaxArgs is 50
	for i := range argTypes {
		argTypes[i] = ArgInt32
	}
	site := NewSite(LevelInfo, "overarity.c", 1, "too many args", argTypes...)
	args := make([]any, 51)
	for i := range args {
		args[i] = int32(i)
	}

	before := GetStats().DroppedLogs
	const n = 5
	for i := 0; i < n; i++ {
		p.Log(LevelInfo, site, args...)
	}

	after := GetStats().DroppedLogs
	require.Equal(t, uint64(n), after-before)
	require.Equal(t, uint64(n), GetStats().SiteRegistrationDrops)
}

// TestConcurrentStress exercises scenario (e): N producers x M logs
// each, exact accounting and per-producer ordering.
func TestConcurrentStress(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping concurrency stress test in -short mode")
	}
	path := filepath.Join(t.TempDir(), "trace")
	require.NoError(t, Init(path))
	defer Shutdown()

	const (
		numProducers = 8
		logsEach     = 2000
	)
	site := NewSite(LevelInfo, "stress.c", 1, "producer=%d seq=%d", ArgInt32, ArgInt32)

	var wg sync.WaitGroup
	for pid := 0; pid < numProducers; pid++ {
		wg.Add(1)
		go func(pid int) {
			defer wg.Done()
			p, err := Preallocate()
			require.NoError(t, err)
			for seq := 0; seq < logsEach; seq++ {
				p.Log(LevelInfo, site, int32(pid), int32(seq))
			}
		}(pid)
	}
	wg.Wait()

	want := uint64(numProducers * logsEach)
	waitForStats(t, want, func() uint64 {
		s := GetStats()
		return s.TotalLogsWritten + s.DroppedLogs
	})

	s := GetStats()
	require.Equal(t, want, s.TotalLogsWritten+s.DroppedLogs)

	require.NoError(t, Shutdown())

	f, err := decode.Open(path + ".clog")
	require.NoError(t, err)

	lastSeqByProducer := make(map[int32]int32)
	for _, e := range f.Entries {
		site, ok := f.SiteByID(e.SiteID)
		require.True(t, ok)
		values, err := f.Values(e, site)
		require.NoError(t, err)
		producer := values[0].(int32)
		seq := values[1].(int32)
		last, seen := lastSeqByProducer[producer]
		if seen {
			require.Greater(t, seq, last)
		}
		lastSeqByProducer[producer] = seq
	}
}

// TestTextFormatBypassesCodec exercises spec.md §6: TEXT format routes
// entries to a text formatter instead of the compression codec.
func TestTextFormatBypassesCodec(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace")
	cfg := config.Default(path)
	cfg.Format = config.FormatText
	cfg.TextPattern = "[%l] %m"
	require.NoError(t, InitEx(cfg))
	defer Shutdown()

	p, err := Preallocate()
	require.NoError(t, err)
	site := NewSite(LevelError, "text.c", 5, "boom: %s", ArgString)
	p.Log(LevelError, site, "disk full")

	waitForStats(t, 1, func() uint64 { return GetStats().TotalLogsWritten })
	require.NoError(t, Shutdown())

	data, err := os.ReadFile(path + ".log")
	require.NoError(t, err)
	require.Equal(t, "[ERROR] boom: disk full\n", string(data))
}

// TestDailyRotationNamesFileWithDate exercises spec.md §6's DAILY
// rotation file naming.
func TestDailyRotationNamesFileWithDate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace")
	cfg := config.Default(path)
	cfg.RotationPolicy = config.RotationDaily
	require.NoError(t, InitEx(cfg))
	defer Shutdown()

	p, err := Preallocate()
	require.NoError(t, err)
	site := NewSite(LevelInfo, "rotate.c", 1, "hello")
	p.Log(LevelInfo, site)

	waitForStats(t, 1, func() uint64 { return GetStats().TotalLogsWritten })
	require.NoError(t, Shutdown())

	want := fmt.Sprintf("%s-%s.clog", path, time.Now().Format("2006-01-02"))
	_, err = os.Stat(want)
	require.NoError(t, err)
}

// TestDoubleInitAndDoubleShutdownAreSafe exercises spec.md §5's
// "double-init and double-shutdown are safe no-ops".
func TestDoubleInitAndDoubleShutdownAreSafe(t *testing.T) {
	path1 := filepath.Join(t.TempDir(), "trace1")
	path2 := filepath.Join(t.TempDir(), "trace2")
	require.NoError(t, Init(path1))
	require.NoError(t, Init(path2)) // no-op: the engine on path1 keeps running
	require.NoError(t, Shutdown())
	require.NoError(t, Shutdown()) // no-op
}

// TestPreallocateBeforeInitReturnsNotInit checks that before Init there
// is no engine to log through: Preallocate reports ErrCodeNotInit
// instead of handing out a Producer.
func TestPreallocateBeforeInitReturnsNotInit(t *testing.T) {
	_, err := Preallocate()
	require.Error(t, err)
	require.True(t, IsCode(err, ErrCodeNotInit))
}

func TestGetStatsOnNilEngineIsZeroValue(t *testing.T) {
	require.Equal(t, Stats{}, GetStats())
}
