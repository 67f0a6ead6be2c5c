// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "route", "status"})
	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	ChatMessagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_messages_total",
		Help: "Total number of chat messages accepted",
	})
	// ChatPostRejections is labelled by gate stage: banned, muted, lockdown, slow_mode.
	ChatPostRejections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_post_rejections_total",
		Help: "Chat posts refused by the moderation gate",
	}, []string{"reason"})

	JanitorPruned = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "janitor_pruned_rows_total",
		Help: "Rows removed by the housekeeping job",
	}, []string{"table"})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		ChatMessagesTotal,
		ChatPostRejections,
		JanitorPruned,
	)
}
