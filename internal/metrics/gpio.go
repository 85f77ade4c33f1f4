// Package metrics provides Prometheus metrics for the GPIO line and the
// tally manager.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	gpioValue = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "tally",
		Subsystem: "gpio",
		Name:      "value",
		Help:      "Last logic level written to or read from the line (0 or 1)",
	}, []string{"line"})

	gpioState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "tally",
		Subsystem: "gpio",
		Name:      "state",
		Help:      "Lifecycle state of the line (0 uninitialized, 1 ready, 2 closed)",
	}, []string{"line"})

	gpioErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tally",
		Subsystem: "gpio",
		Name:      "errors_total",
		Help:      "Failed sysfs operations by operation",
	}, []string{"line", "op"})

	streamsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tally",
		Name:      "streams_active",
		Help:      "Number of streams currently reported active",
	})
)

// SetGPIOValue records the current level of a line.
func SetGPIOValue(line string, high bool) {
	v := 0.0
	if high {
		v = 1
	}
	gpioValue.WithLabelValues(line).Set(v)
}

// SetGPIOState records the lifecycle state of a line.
func SetGPIOState(line string, state int) {
	gpioState.WithLabelValues(line).Set(float64(state))
}

// IncGPIOError counts a failed operation (export, unexport, direction, read, write).
func IncGPIOError(line, op string) {
	gpioErrors.WithLabelValues(line, op).Inc()
}

// SetStreamsActive records how many streams are active.
func SetStreamsActive(n int) {
	streamsActive.Set(float64(n))
}
