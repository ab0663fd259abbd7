package textfetch

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricFetches   = "fetches_total"
	metricDials     = "dials_total"
	metricEvictions = "evictions_total"
	metricBodySize  = "body_size_bytes"
)

var sizeBuckets = []float64{0, 256, 1024, 4096, 16384, 65536, 262144, 1048576, 4194304}

type metrics struct {
	fetches   *prometheus.CounterVec
	dials     *prometheus.CounterVec
	evictions *prometheus.CounterVec
	bodySize  *prometheus.HistogramVec
}

// Collectors are registered once per process and shared by all sessions.
var defaultMetrics = newMetrics()

func newMetrics() *metrics {
	return &metrics{
		fetches: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "textfetch",
			Subsystem: "session",
			Name:      metricFetches,
			Help:      "Completed fetches",
		}, []string{"scheme", "cache", "code"}),
		dials: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "textfetch",
			Subsystem: "pool",
			Name:      metricDials,
			Help:      "Connections opened",
		}, []string{"scheme"}),
		evictions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "textfetch",
			Subsystem: "pool",
			Name:      metricEvictions,
			Help:      "Connections discarded after a failed transaction",
		}, []string{"scheme"}),
		bodySize: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "textfetch",
			Subsystem: "session",
			Name:      metricBodySize,
			Help:      "Size of returned bodies",
			Buckets:   sizeBuckets,
		}, []string{"scheme"}),
	}
}

func (m *metrics) fetched(r Result) {
	label := prometheus.Labels{
		"scheme": r.URL.Scheme.String(),
		"cache":  cacheLabel(r),
		"code":   strconv.Itoa(r.StatusCode),
	}
	m.fetches.With(label).Inc()
	m.bodySize.With(prometheus.Labels{"scheme": r.URL.Scheme.String()}).Observe(float64(len(r.Body)))
}

func cacheLabel(r Result) string {
	if !r.URL.IsNetwork() {
		return "bypass"
	}
	if r.CacheStatus.Status == "" {
		return "none"
	}
	return string(r.CacheStatus.Status)
}
