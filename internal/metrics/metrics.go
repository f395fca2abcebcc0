// Package metrics holds the process-wide prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "classroom",
		Subsystem: "dispatch",
		Name:      "queue_depth",
		Help:      "Tasks waiting in a serial dispatch queue.",
	}, []string{"queue"})

	TaskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "classroom",
		Subsystem: "dispatch",
		Name:      "task_seconds",
		Help:      "Run time of serial dispatch tasks.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
	}, []string{"queue"})

	TaskFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "classroom",
		Subsystem: "dispatch",
		Name:      "task_failures_total",
		Help:      "Serial dispatch tasks that returned an error, by reason.",
	}, []string{"queue", "reason"})

	Events = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "classroom",
		Subsystem: "reconciler",
		Name:      "events_total",
		Help:      "Session events handled by the reconciler.",
	}, []string{"event"})

	DroppedEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "classroom",
		Subsystem: "reconciler",
		Name:      "dropped_events_total",
		Help:      "Events and peer signals dropped without a state change.",
	}, []string{"reason"})
)
