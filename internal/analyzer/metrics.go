package analyzer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// invocationsTotal counts analyzer runs by mode and outcome
	invocationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pony_lsp_analyzer_invocations_total",
		Help: "Total analyzer invocations by mode and outcome",
	}, []string{"mode", "outcome"})

	// invocationDuration tracks analyzer wall-clock time
	invocationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pony_lsp_analyzer_duration_seconds",
		Help:    "Analyzer run time in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
	}, []string{"mode"})

	// invocationsInFlight is the number of running analyzer processes
	invocationsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pony_lsp_analyzer_in_flight",
		Help: "Analyzer processes currently running",
	})

	// decodeFailures counts responses that could not be decoded
	decodeFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pony_lsp_decode_failures_total",
		Help: "Analyzer responses that failed to decode, by mode",
	}, []string{"mode"})
)

// RecordDecodeFailure counts a response of the given mode that could not
// be decoded.
func RecordDecodeFailure(mode Mode) {
	decodeFailures.WithLabelValues(string(mode)).Inc()
}
