package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	syncRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalogsync_runs_total",
			Help: "Completed sync runs by outcome.",
		},
		[]string{"trigger", "outcome"},
	)
	syncRunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catalogsync_run_duration_seconds",
			Help:    "Duration of completed sync runs.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"outcome"},
	)
	syncRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "catalogsync_runs_rejected_total",
			Help: "Sync triggers rejected because a run was already in progress.",
		},
	)
	upstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalogsync_upstream_requests_total",
			Help: "Requests sent to the ERP API.",
		},
		[]string{"resource", "status"},
	)
	upstreamRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catalogsync_upstream_request_duration_seconds",
			Help:    "Latency of ERP API requests.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"resource"},
	)
	catalogProducts = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalogsync_catalog_products",
			Help: "Products in the last committed catalog.",
		},
	)
	catalogPriceUnresolved = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalogsync_catalog_price_unresolved",
			Help: "Products without a resolved price in the last committed catalog.",
		},
	)
	integrityAlerts = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "catalogsync_integrity_alerts",
			Help: "Open catalog integrity alerts by severity.",
		},
		[]string{"severity"},
	)
)

func init() {
	prometheus.MustRegister(syncRunsTotal)
	prometheus.MustRegister(syncRunDuration)
	prometheus.MustRegister(syncRejectedTotal)
	prometheus.MustRegister(upstreamRequestsTotal)
	prometheus.MustRegister(upstreamRequestDuration)
	prometheus.MustRegister(catalogProducts)
	prometheus.MustRegister(catalogPriceUnresolved)
	prometheus.MustRegister(integrityAlerts)
}

func RecordRun(trigger string, success bool, duration time.Duration) {
	outcome := "failed"
	if success {
		outcome = "succeeded"
	}
	syncRunsTotal.WithLabelValues(trigger, outcome).Inc()
	syncRunDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func RecordRejected() {
	syncRejectedTotal.Inc()
}

// RecordUpstream counts one ERP request. A zero status means a transport error.
func RecordUpstream(resource string, statusCode int, duration time.Duration) {
	upstreamRequestsTotal.WithLabelValues(resource, classifyStatus(statusCode)).Inc()
	upstreamRequestDuration.WithLabelValues(resource).Observe(duration.Seconds())
}

func SetCatalogSize(products, unresolved int) {
	catalogProducts.Set(float64(products))
	catalogPriceUnresolved.Set(float64(unresolved))
}

// SetIntegrityAlerts replaces the alert gauges with the given per-severity counts.
func SetIntegrityAlerts(bySeverity map[string]int) {
	integrityAlerts.Reset()
	for severity, n := range bySeverity {
		integrityAlerts.WithLabelValues(severity).Set(float64(n))
	}
}

func classifyStatus(statusCode int) string {
	switch {
	case statusCode == 0:
		return "error"
	case statusCode >= 200 && statusCode < 300:
		return "2xx"
	case statusCode >= 300 && statusCode < 400:
		return "3xx"
	case statusCode >= 400 && statusCode < 500:
		return "4xx"
	case statusCode >= 500 && statusCode < 600:
		return "5xx"
	}
	return "unknown"
}

func Handler() http.Handler {
	return promhttp.Handler()
}
