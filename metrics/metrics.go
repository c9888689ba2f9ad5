// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Notification results.
const (
	ResultSent    = "sent"
	ResultFailed  = "failed"
	ResultSkipped = "skipped"
)

var (
	ReportsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cima",
		Name:      "reports_created_total",
		Help:      "Reports persisted through the API.",
	})

	Notifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cima",
		Name:      "notifications_total",
		Help:      "Dispatch attempts per channel and result.",
	}, []string{"channel", "result"})

	RealtimeSubscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "cima",
		Name:      "realtime_subscribers",
		Help:      "Currently connected realtime clients.",
	})

	registry = prometheus.NewRegistry()
)

func init() {
	registry.MustRegister(
		ReportsCreated,
		Notifications,
		RealtimeSubscribers,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
