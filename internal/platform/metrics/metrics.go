// Package metrics defines the Prometheus collectors of both services.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Transitions          *prometheus.CounterVec
	GuardDenials         *prometheus.CounterVec
	SignaturesRecorded   *prometheus.CounterVec
	OutboxPublished      *prometheus.CounterVec
	NotificationReceipts *prometheus.CounterVec
	StatsCacheLookups    *prometheus.CounterVec
	HTTPRequests         *prometheus.CounterVec
	HTTPDuration         *prometheus.HistogramVec
}

// New registers every collector with reg. Tests pass prometheus.NewRegistry()
// so repeated construction does not collide with the default registry.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "deed_status_transitions_total",
			Help: "Committed deed status transitions",
		}, []string{"from", "to"}),
		GuardDenials: f.NewCounterVec(prometheus.CounterOpts{
			Name: "deed_guard_denials_total",
			Help: "Signing actions denied by the authorization guard",
		}, []string{"action", "role"}),
		SignaturesRecorded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "deed_signatures_recorded_total",
			Help: "Signatures recorded, duplicates included",
		}, []string{"party", "duplicate"}),
		OutboxPublished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "notification_outbox_published_total",
			Help: "Outbox messages handed to the notification transport",
		}, []string{"result"}),
		NotificationReceipts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "notification_receipts_total",
			Help: "Delivery receipts consumed from the notification transport",
		}, []string{"result"}),
		StatsCacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "stats_cache_lookups_total",
			Help: "Statistics snapshot cache lookups",
		}, []string{"result"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests served by the API gateway",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// The observe helpers accept a nil receiver so components can run without metrics.

func (m *Metrics) ObserveTransition(from, to string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) ObserveGuardDenial(action, role string) {
	if m == nil {
		return
	}
	m.GuardDenials.WithLabelValues(action, role).Inc()
}

func (m *Metrics) ObserveSignature(party string, duplicate bool) {
	if m == nil {
		return
	}
	m.SignaturesRecorded.WithLabelValues(party, strconv.FormatBool(duplicate)).Inc()
}

func (m *Metrics) ObserveOutboxPublish(result string) {
	if m == nil {
		return
	}
	m.OutboxPublished.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveReceipt(result string) {
	if m == nil {
		return
	}
	m.NotificationReceipts.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.StatsCacheLookups.WithLabelValues(result).Inc()
}

// GinMiddleware records request count and latency per route template, which
// keeps deed ids out of the label set.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		m.HTTPRequests.WithLabelValues(c.Request.Method, route, status).Inc()
		m.HTTPDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
