package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	SalesTotal          prometheus.Counter
	RestoresTotal       *prometheus.CounterVec
	NumberingFailures   prometheus.Counter
}

// New registers the ledger collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"path"},
		),
		SalesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledger_sales_confirmed_total",
			Help: "Sales written to the ledger",
		}),
		RestoresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_restores_total",
				Help: "Backup restores by outcome",
			},
			[]string{"result"},
		),
		NumberingFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledger_numbering_failures_total",
			Help: "Sales aborted because no sale number could be issued",
		}),
	}
	m.registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.SalesTotal,
		m.RestoresTotal,
		m.NumberingFailures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one finished request. route is the matched route
// pattern, not the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveRequest(method string, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

func (m *Metrics) SaleConfirmed() {
	if m == nil {
		return
	}
	m.SalesTotal.Inc()
}

func (m *Metrics) Restored(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.RestoresTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) NumberingFailed() {
	if m == nil {
		return
	}
	m.NumberingFailures.Inc()
}
