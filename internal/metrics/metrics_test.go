package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	r1 := Register()
	r2 := Register()
	require.NotNil(t, r1)
	require.Same(t, r1, r2)
}

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(writeBacks.WithLabelValues("error"))
	WriteBack(time.Now(), errors.New("boom"))
	require.Equal(t, before+1, testutil.ToFloat64(writeBacks.WithLabelValues("error")))

	Set("bootmode", nil)
	require.GreaterOrEqual(t, testutil.ToFloat64(sets.WithLabelValues("bootmode", "ok")), 1.0)

	Set("no-such-item", errors.New("not found"))
	series := testutil.CollectAndCount(sets)
	failed := testutil.ToFloat64(sets.WithLabelValues(FailedItem, "error"))
	Set("another-missing-item", errors.New("not found"))
	require.Equal(t, failed+1, testutil.ToFloat64(sets.WithLabelValues(FailedItem, "error")))
	require.Equal(t, series, testutil.CollectAndCount(sets))

	BootCount(7)
	require.Equal(t, 7.0, testutil.ToFloat64(bootCount))

	Command("set", -4)
	require.GreaterOrEqual(t, testutil.ToFloat64(commands.WithLabelValues("set", "-4")), 1.0)
}
