package idme

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/S0me0neR0man/idmestash/internal/blockdev"
)

const testPSN = 0x1a2b3c4d

func newRegion(t *testing.T, dev blockdev.Device) *blockdev.Region {
	t.Helper()
	return blockdev.NewRegion(dev, 0, NumBlocks, zaptest.NewLogger(t))
}

func openManager(t *testing.T, dev blockdev.Device, opts ...Option) *Manager {
	t.Helper()
	m, err := Open(newRegion(t, dev), zaptest.NewLogger(t), opts...)
	require.NoError(t, err)
	return m
}

func TestManager_FirstBootDefaults(t *testing.T) {
	dev := blockdev.NewMemDevice(BlockSize, testPSN)
	m := openManager(t, dev)

	require.True(t, m.Fresh())
	require.Equal(t, StateReady, m.State())
	require.True(t, m.Codec().Bound())
	require.Equal(t, DefaultVersion, m.Version())

	items, err := m.Items()
	require.NoError(t, err)
	require.Len(t, items, len(DefaultTable))
	for i, it := range items {
		require.Equal(t, DefaultTable[i].Name, it.Name)
		require.Equal(t, DefaultTable[i].Value, it.Value())
	}
	require.Equal(t, NumBlocks, dev.Writes, "defaults persisted once")

	again := openManager(t, dev)
	require.False(t, again.Fresh())
	a, err := m.Snapshot()
	require.NoError(t, err)
	b, err := again.Snapshot()
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestManager_EndToEnd(t *testing.T) {
	table := []ItemSpec{
		{Name: "bootmode", Size: 4, Exportable: true, Permission: 0o444, Value: "2"},
		{Name: "bootcount", Size: 8, Exportable: true, Permission: 0o444, Value: "0"},
	}
	dev := blockdev.NewMemDevice(BlockSize, testPSN)
	m := openManager(t, dev, WithDefaults(table))

	v, err := m.GetString("bootmode")
	require.NoError(t, err)
	require.Equal(t, "2", v)

	require.NoError(t, m.Set("bootmode", []byte("1")))
	buf := make([]byte, 4)
	n, err := m.Get("bootmode", buf)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Equal(t, []byte("1\x00\x00\x00"), buf)

	for i := 0; i < 3; i++ {
		_, err := m.BootCountTick()
		require.NoError(t, err)
	}
	v, err = m.GetString("bootcount")
	require.NoError(t, err)
	require.Equal(t, "3", v)

	// everything reached the medium
	reopened := openManager(t, dev, WithDefaults(table))
	v, err = reopened.GetString("bootcount")
	require.NoError(t, err)
	require.Equal(t, "3", v)
	mode, err := reopened.BootMode()
	require.NoError(t, err)
	require.Equal(t, BootModeNormal, mode)
}

func TestManager_BootCountMonotonic(t *testing.T) {
	table := []ItemSpec{{Name: "bootcount", Size: 8, Value: "garbage"}}
	m := openManager(t, blockdev.NewMemDevice(BlockSize, testPSN), WithDefaults(table))

	for k := 1; k <= 12; k++ {
		n, err := m.BootCountTick()
		require.NoError(t, err)
		require.Equal(t, k, n)
	}
}

func TestManager_BootCountAbsent(t *testing.T) {
	table := []ItemSpec{{Name: "bootmode", Size: 4, Value: "6"}}
	m := openManager(t, blockdev.NewMemDevice(BlockSize, testPSN), WithDefaults(table))

	_, err := m.BootCountTick()
	require.ErrorIs(t, err, ErrNotFound)

	mode, err := m.BootMode()
	require.NoError(t, err)
	require.Equal(t, BootModeFastboot, mode)
}

func TestManager_Clean(t *testing.T) {
	dev := blockdev.NewMemDevice(BlockSize, testPSN)
	m := openManager(t, dev)
	require.NoError(t, m.Set("serial", []byte("ABC")))

	require.NoError(t, m.Clean())
	_, err := m.GetString("serial")
	require.ErrorIs(t, err, ErrInvalidMagic)
	require.ErrorIs(t, m.Set("serial", []byte("X")), ErrInvalidMagic)
	require.ErrorIs(t, m.Print(&bytes.Buffer{}), ErrInvalidMagic)
	require.ErrorIs(t, m.Clean(), ErrInvalidMagic)

	reopened := openManager(t, dev)
	require.True(t, reopened.Fresh())
	v, err := reopened.GetString("serial")
	require.NoError(t, err)
	require.Equal(t, "0", v)
}

func TestManager_SetVersion(t *testing.T) {
	dev := blockdev.NewMemDevice(BlockSize, testPSN)
	m := openManager(t, dev)

	require.ErrorIs(t, m.SetVersion("9.9"), ErrUnknownVersion)
	require.NoError(t, m.SetVersion("1.2"))
	require.Equal(t, "1.2", m.Version())

	// binding kept until the next load
	_, err := m.GetString("bootmode")
	require.NoError(t, err)

	reopened := openManager(t, dev)
	require.False(t, reopened.Codec().Bound())
	_, err = reopened.Get("bootmode", make([]byte, 4))
	require.ErrorIs(t, err, ErrUnbound)
	require.ErrorIs(t, reopened.Set("bootmode", []byte("1")), ErrUnbound)
	require.Equal(t, CodeUnbound, Code(err))
}

func TestManager_SetVersionPrefixStaysBound(t *testing.T) {
	for _, tc := range []struct {
		arg    string
		stored string
	}{
		{"2", "2.0"},
		{"2.", "2.0"},
		{"2.1", "2.1"},
	} {
		t.Run(tc.arg, func(t *testing.T) {
			dev := blockdev.NewMemDevice(BlockSize, testPSN)
			m := openManager(t, dev)
			require.NoError(t, m.Set("bootmode", []byte("3")))
			require.NoError(t, m.SetVersion(tc.arg))
			require.Equal(t, tc.stored, m.Version())

			reopened := openManager(t, dev)
			require.Equal(t, tc.stored, reopened.Version())
			require.True(t, reopened.Codec().Bound())
			v, err := reopened.GetString("bootmode")
			require.NoError(t, err)
			require.Equal(t, "3", v)
		})
	}
}

func TestManager_SetVersionPrefixStoresTableEntry(t *testing.T) {
	dev := blockdev.NewMemDevice(BlockSize, testPSN)
	m := openManager(t, dev)
	require.NoError(t, m.SetVersion("1"))

	reopened := openManager(t, dev)
	require.Equal(t, "1.2", reopened.Version())
	require.False(t, reopened.Codec().Bound())
}

func TestManager_LoadFailureIsPermanent(t *testing.T) {
	dev := blockdev.NewMemDevice(BlockSize, testPSN)
	bad := uint64(3)
	dev.FailReadAt = &bad

	m := New(newRegion(t, dev), zaptest.NewLogger(t))
	err := m.Load()
	require.ErrorIs(t, err, ErrNotLoaded)
	require.ErrorIs(t, err, blockdev.ErrInjected)
	require.Equal(t, CodeIO, Code(err))
	require.Equal(t, StateFailed, m.State())

	dev.FailReadAt = nil
	require.ErrorIs(t, m.Load(), ErrNotLoaded)
	_, err = m.GetString("bootmode")
	require.ErrorIs(t, err, ErrNotLoaded)
	require.Zero(t, dev.Writes)

	_, err = Open(newRegion(t, blockdev.NewMemDevice(BlockSize, testPSN)), zaptest.NewLogger(t))
	require.NoError(t, err)
}

func TestManager_NotLoaded(t *testing.T) {
	m := New(newRegion(t, blockdev.NewMemDevice(BlockSize, testPSN)), zaptest.NewLogger(t))
	_, err := m.GetString("bootmode")
	require.ErrorIs(t, err, ErrNotLoaded)
	require.ErrorIs(t, m.Restore(make([]byte, ImageSize)), ErrNotLoaded)
}

func TestManager_PersistDefaultsFailure(t *testing.T) {
	dev := blockdev.NewMemDevice(BlockSize, testPSN)
	bad := uint64(0)
	dev.FailWriteAt = &bad

	m := New(newRegion(t, dev), zaptest.NewLogger(t))
	require.ErrorIs(t, m.Load(), blockdev.ErrInjected)
	require.Equal(t, StateReady, m.State())

	v, err := m.GetString("bootmode")
	require.NoError(t, err)
	require.Equal(t, "2", v)
	require.NoError(t, m.Load())
}

func TestManager_SetFailureSkipsWriteBack(t *testing.T) {
	dev := blockdev.NewMemDevice(BlockSize, testPSN)
	m := openManager(t, dev)
	writes := dev.Writes

	require.ErrorIs(t, m.Set("missing", []byte("1")), ErrNotFound)
	require.ErrorIs(t, m.Set("bootmode", nil), ErrNilValue)
	require.Equal(t, writes, dev.Writes)

	require.NoError(t, m.Set("bootmode", []byte("3")))
	require.Equal(t, writes+NumBlocks, dev.Writes)
}

func TestManager_ConcurrentLoad(t *testing.T) {
	dev := blockdev.NewMemDevice(BlockSize, testPSN)
	m := New(newRegion(t, dev), zaptest.NewLogger(t))

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- m.Load()
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, NumBlocks, dev.Writes)
}

func TestManager_SerialNumber(t *testing.T) {
	m := openManager(t, blockdev.NewMemDevice(BlockSize, testPSN))
	require.Equal(t, "1a2b3c4d", m.SerialNumber(testPSN))

	require.NoError(t, m.Set("serial", []byte("G0K0H1")))
	require.Equal(t, "G0K0H1", m.SerialNumber(testPSN))
}

func TestManager_SnapshotRestore(t *testing.T) {
	dev := blockdev.NewMemDevice(BlockSize, testPSN)
	m := openManager(t, dev)

	snap, err := m.Snapshot()
	require.NoError(t, err)
	require.NoError(t, m.Set("bootmode", []byte("4")))

	require.ErrorIs(t, m.Restore(snap[:100]), ErrCapacity)
	require.NoError(t, m.Restore(snap))

	v, err := openManager(t, dev).GetString("bootmode")
	require.NoError(t, err)
	require.Equal(t, "2", v)
}

func TestManager_RestoreRecoversFailedLoad(t *testing.T) {
	good := defaultImage(t, DefaultTable)
	dev := blockdev.NewMemDevice(BlockSize, testPSN)
	bad := uint64(0)
	dev.FailReadAt = &bad

	m := New(newRegion(t, dev), zaptest.NewLogger(t))
	require.Error(t, m.Load())

	require.NoError(t, m.Restore(good))
	require.Equal(t, StateReady, m.State())
	v, err := m.GetString("bootcount")
	require.NoError(t, err)
	require.Equal(t, "0", v)
}

func TestManager_SetMiddleware(t *testing.T) {
	var seen []string
	record := func(next SetHandler) SetHandler {
		return SetHandlerFunc(func(req *SetRequest) error {
			seen = append(seen, req.Name)
			return next.Set(req)
		})
	}
	m := openManager(t, blockdev.NewMemDevice(BlockSize, testPSN), WithSetMiddleware(record))

	require.NoError(t, m.Set("postmode", []byte("1")))
	_, err := m.BootCountTick()
	require.NoError(t, err)
	require.Equal(t, []string{"postmode", "bootcount"}, seen)
}

func TestManager_ExportFlat(t *testing.T) {
	m := openManager(t, blockdev.NewMemDevice(BlockSize, testPSN))

	require.ErrorIs(t, m.ExportFlat(nil), ErrNilBuffer)

	dst := make([]byte, AtagSize)
	require.NoError(t, m.ExportFlat(dst))
	require.EqualValues(t, len(DefaultTable), Image(dst).ItemsNum())
}
