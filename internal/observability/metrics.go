package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wrapctl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "wrapctl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	toolRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wrapctl",
			Subsystem: "tool",
			Name:      "runs_total",
			Help:      "Tool runs by result.",
		},
		[]string{"tool", "result"},
	)
	toolRunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "wrapctl",
			Subsystem: "tool",
			Name:      "run_duration_seconds",
			Help:      "Tool run duration in seconds, from build to exit.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
		},
		[]string{"tool", "result"},
	)
	toolOutputLines = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wrapctl",
			Subsystem: "tool",
			Name:      "output_lines_total",
			Help:      "Output lines pumped from tool processes.",
		},
		[]string{"tool"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, toolRuns, toolRunDuration, toolOutputLines)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordToolRun(tool, result string, duration time.Duration) {
	RegisterMetrics()
	toolRuns.WithLabelValues(tool, result).Inc()
	toolRunDuration.WithLabelValues(tool, result).Observe(duration.Seconds())
}

func RecordToolOutputLine(tool string) {
	RegisterMetrics()
	toolOutputLines.WithLabelValues(tool).Inc()
}
