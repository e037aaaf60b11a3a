package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry owns a private prometheus registry. All recording methods are
// safe on a nil *Registry so callers and tests can run without metrics.
type Registry struct {
	reg *prometheus.Registry

	SweepRuns          *prometheus.CounterVec
	SweepItemFailures  *prometheus.CounterVec
	SweepDuration      *prometheus.HistogramVec
	OrdersCreated      *prometheus.CounterVec
	NotificationsSent  *prometheus.CounterVec
	CapacityRejections *prometheus.CounterVec
	HTTPRequests       *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
}

func NewRegistry(namespace string) *Registry {
	r := prometheus.NewRegistry()

	sweepRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "sweep_runs_total", Help: "Completed sweep executions.",
	}, []string{"sweep"})
	sweepFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "sweep_item_failures_total", Help: "Products a sweep failed to process.",
	}, []string{"sweep"})
	sweepDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Name: "sweep_duration_seconds", Help: "Wall time of one sweep.",
		Buckets: prometheus.DefBuckets,
	}, []string{"sweep"})
	ordersCreated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "orders_created_total", Help: "Reorder orders created.",
	}, []string{"type"})
	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "notifications_created_total", Help: "Notification records created.",
	}, []string{"type"})
	capacity := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "capacity_rejections_total", Help: "Stock increments refused by the max stock ceiling.",
	}, []string{"operation"})
	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "http_requests_total", Help: "HTTP requests served.",
	}, []string{"method", "route", "status"})
	httpDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Name: "http_request_duration_seconds", Help: "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	r.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		sweepRuns, sweepFailures, sweepDuration, ordersCreated, notifications, capacity,
		httpRequests, httpDuration,
	)

	return &Registry{
		reg:                r,
		SweepRuns:          sweepRuns,
		SweepItemFailures:  sweepFailures,
		SweepDuration:      sweepDuration,
		OrdersCreated:      ordersCreated,
		NotificationsSent:  notifications,
		CapacityRejections: capacity,
		HTTPRequests:       httpRequests,
		HTTPDuration:       httpDuration,
	}
}

func (r *Registry) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

func (r *Registry) ObserveSweep(sweep string, failures int, took time.Duration) {
	if r == nil {
		return
	}
	r.SweepRuns.WithLabelValues(sweep).Inc()
	r.SweepItemFailures.WithLabelValues(sweep).Add(float64(failures))
	r.SweepDuration.WithLabelValues(sweep).Observe(took.Seconds())
}

func (r *Registry) OrderCreated(orderType string) {
	if r == nil {
		return
	}
	r.OrdersCreated.WithLabelValues(orderType).Inc()
}

func (r *Registry) NotificationCreated(kind string) {
	if r == nil {
		return
	}
	r.NotificationsSent.WithLabelValues(kind).Inc()
}

func (r *Registry) CapacityRejected(operation string) {
	if r == nil {
		return
	}
	r.CapacityRejections.WithLabelValues(operation).Inc()
}

func (r *Registry) ObserveHTTP(method, route string, status int, took time.Duration) {
	if r == nil {
		return
	}
	r.HTTPRequests.WithLabelValues(method, route, statusClass(status)).Inc()
	r.HTTPDuration.WithLabelValues(method, route).Observe(took.Seconds())
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
