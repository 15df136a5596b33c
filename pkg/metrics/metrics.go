// Package metrics provides Prometheus metrics for the matching service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MatchingBatchesTotal tracks CRM batches executed by the matcher
	MatchingBatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "matching",
			Name:      "batches_total",
			Help:      "Total number of CRM batches executed by operation and status",
		},
		[]string{"operation", "status"},
	)

	// MatchingCallsTotal tracks individual calls compiled into batches
	MatchingCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "matching",
			Name:      "calls_total",
			Help:      "Total number of CRM calls compiled by operation",
		},
		[]string{"operation"},
	)

	// MatchingBatchDuration tracks batch round trips in seconds
	MatchingBatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "clover",
			Subsystem: "matching",
			Name:      "batch_duration_seconds",
			Help:      "Duration of CRM batch round trips in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)

	// MatchingDegradationsTotal tracks field values replaced by defaults or dropped
	MatchingDegradationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "matching",
			Name:      "degradations_total",
			Help:      "Total number of field values that degraded to a default or empty value",
		},
		[]string{"kind"},
	)

	// EuropaceRequestsTotal tracks outbound loan API requests
	EuropaceRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "europace",
			Name:      "requests_total",
			Help:      "Total number of Europace API requests",
		},
		[]string{"operation", "status_code"},
	)

	// BitrixRequestsTotal tracks outbound CRM requests
	BitrixRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "bitrix",
			Name:      "requests_total",
			Help:      "Total number of Bitrix24 REST requests",
		},
		[]string{"method", "status_code"},
	)

	// SyncTasksTotal tracks sync tasks processed from kafka
	SyncTasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "sync",
			Name:      "tasks_total",
			Help:      "Total number of sync tasks by status",
		},
		[]string{"status"},
	)

	// HTTPRequestDuration tracks API requests by route and status class
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "clover",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of API requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)
