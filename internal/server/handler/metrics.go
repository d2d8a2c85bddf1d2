package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	wlRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "waveledger_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	wlRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "waveledger_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	wlWavesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "waveledger_waves_total",
		Help: "Total waves appended to the ledger.",
	})

	wlObserverFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "waveledger_observer_failures_total",
		Help: "Total observer callbacks that returned an error or panicked.",
	})

	wlWebhookDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "waveledger_webhook_deliveries_total",
		Help: "Total webhook deliveries by success status.",
	}, []string{"status"})

	wlStreamClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "waveledger_stream_clients",
		Help: "Currently connected WebSocket stream clients.",
	})
)

// PrometheusMiddleware returns a Gin middleware that records per-request
// metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		wlRequestsTotal.WithLabelValues(method, path, status).Inc()
		wlRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordWaveAppend records a successful wave append.
func RecordWaveAppend() {
	wlWavesTotal.Inc()
}

// RecordObserverOutcome records the outcome of one observer callback.
// It matches the waves.MetricsRecorder signature.
func RecordObserverOutcome(observerFailed bool) {
	if observerFailed {
		wlObserverFailuresTotal.Inc()
	}
}

// RecordWebhookDelivery records a webhook delivery attempt.
func RecordWebhookDelivery(success bool) {
	if success {
		wlWebhookDeliveriesTotal.WithLabelValues("success").Inc()
	} else {
		wlWebhookDeliveriesTotal.WithLabelValues("failure").Inc()
	}
}

func streamClientConnected()    { wlStreamClients.Inc() }
func streamClientDisconnected() { wlStreamClients.Dec() }
