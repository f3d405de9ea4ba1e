// Package metrics prometheus collectors for the idme store
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "idme"

	// FailedItem item label of every failed set; names of failed sets come
	// from console input and are not bounded.
	FailedItem = "_failed"
)

var (
	writeBacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "writebacks_total",
			Help:      "Full image write-backs to the boot partition. Broken down by result.",
		},
		[]string{"result"},
	)

	writeBackDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "writeback_duration_seconds",
			Help:      "Duration of a full image write-back.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
	)

	sets = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "sets_total",
			Help:      "Item mutations. Broken down by item name and result, failures share one item label.",
		},
		[]string{"item", "result"},
	)

	bootCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "bootcount",
			Help:      "Last persisted boot count.",
		},
	)

	commands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "console",
			Name:      "commands_total",
			Help:      "Console commands. Broken down by command kind and return code.",
		},
		[]string{"kind", "code"},
	)
)

var register sync.Once
var Registry *prometheus.Registry

// Register creates Registry with every collector. Only the first call has effect.
func Register() *prometheus.Registry {
	register.Do(func() {
		Registry = prometheus.NewRegistry()
		Registry.MustRegister(writeBacks, writeBackDuration, sets, bootCount, commands)
	})
	return Registry
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func WriteBack(start time.Time, err error) {
	writeBacks.WithLabelValues(result(err)).Inc()
	writeBackDuration.Observe(time.Since(start).Seconds())
}

func Set(item string, err error) {
	if err != nil {
		item = FailedItem
	}
	sets.WithLabelValues(item, result(err)).Inc()
}

func BootCount(n int) {
	bootCount.Set(float64(n))
}

func Command(kind string, code int) {
	commands.WithLabelValues(kind, strconv.Itoa(code)).Inc()
}
