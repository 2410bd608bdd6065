package monitor

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the pipeline's metrics: checkout and webhook
// outcomes, outbox dispatch progress, and sweep timings. Each Collector
// carries its own registry so instances stay independent.
type Collector struct {
	registry *prometheus.Registry

	checkoutTotal       *prometheus.CounterVec
	paymentWebhookTotal *prometheus.CounterVec
	outboxDispatched    *prometheus.CounterVec
	outboxDeadEvents    prometheus.Gauge
	sweepDuration       *prometheus.HistogramVec
	sweepFailureTotal   *prometheus.CounterVec
	httpRequestTotal    *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewCollector creates a Collector with all metrics registered.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,

		checkoutTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkout_total",
				Help: "Total number of checkout attempts by outcome",
			},
			[]string{"status"},
		),
		paymentWebhookTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_webhook_total",
				Help: "Total number of payment webhooks by provider and outcome",
			},
			[]string{"provider", "status"},
		),
		outboxDispatched: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "outbox_events_dispatched_total",
				Help: "Total number of outbox events handled by the dispatcher",
			},
			[]string{"status"},
		),
		outboxDeadEvents: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "outbox_dead_events",
				Help: "Events stuck in FAILED past the retry ceiling awaiting inspection",
			},
		),
		sweepDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sweep_duration_seconds",
				Help:    "Duration of scheduled sweep runs",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"job"},
		),
		sweepFailureTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sweep_failure_total",
				Help: "Total number of failed sweep runs",
			},
			[]string{"job"},
		),
		httpRequestTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_request_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}

// RecordCheckout records one checkout attempt.
func (c *Collector) RecordCheckout(status string) {
	c.checkoutTotal.WithLabelValues(status).Inc()
}

// RecordPaymentWebhook records one received webhook.
func (c *Collector) RecordPaymentWebhook(provider, status string) {
	c.paymentWebhookTotal.WithLabelValues(provider, status).Inc()
}

// RecordOutboxDispatch records the outcome counts of one dispatcher pass.
func (c *Collector) RecordOutboxDispatch(completed, failed int) {
	c.outboxDispatched.WithLabelValues("completed").Add(float64(completed))
	c.outboxDispatched.WithLabelValues("failed").Add(float64(failed))
}

// SetOutboxDeadEvents updates the dead-event gauge.
func (c *Collector) SetOutboxDeadEvents(count int64) {
	c.outboxDeadEvents.Set(float64(count))
}

// RecordSweep records one sweep run.
func (c *Collector) RecordSweep(job string, duration time.Duration, err error) {
	c.sweepDuration.WithLabelValues(job).Observe(duration.Seconds())
	if err != nil {
		c.sweepFailureTotal.WithLabelValues(job).Inc()
	}
}

// RecordHTTPRequest records one served HTTP request.
func (c *Collector) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	c.httpRequestTotal.WithLabelValues(method, path, status).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// Handler exposes the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
