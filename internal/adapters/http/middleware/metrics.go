package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payflow",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "payflow",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "payflow",
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Number of HTTP requests currently being processed",
		},
	)
)

// Business metrics recorded by the handlers.
var (
	transactionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payflow",
			Subsystem: "business",
			Name:      "transactions_total",
			Help:      "Total number of transactions",
		},
		[]string{"type", "status", "currency"},
	)

	webhooksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payflow",
			Subsystem: "business",
			Name:      "webhooks_inbound_total",
			Help:      "Total number of inbound gateway webhooks",
		},
		[]string{"gateway", "outcome"},
	)
)

// Metrics records request counts, latency and in-flight gauge per route.
// The templated route path is used as the label so ids do not explode
// cardinality.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method
		start := time.Now()

		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		c.Next()

		httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}

// RecordTransaction counts one posted transaction.
func RecordTransaction(txType, status, currency string) {
	transactionsTotal.WithLabelValues(txType, status, currency).Inc()
}

// RecordWebhook counts one inbound webhook by outcome (ok, rejected).
func RecordWebhook(gateway, outcome string) {
	webhooksTotal.WithLabelValues(gateway, outcome).Inc()
}
