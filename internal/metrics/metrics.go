// Package metrics exposes Prometheus collectors for the engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AttendanceMarks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "amalnama",
		Name:      "attendance_marks_total",
		Help:      "Attendance marks recorded, by status.",
	}, []string{"status"})

	ThresholdAlerts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "amalnama",
		Name:      "attendance_threshold_alerts_total",
		Help:      "Threshold bands fired by attendance marks, by band.",
	}, []string{"band"})

	GradesPosted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "amalnama",
		Name:      "grades_posted_total",
		Help:      "Grade events added or updated.",
	}, []string{"op"})

	NotificationsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "amalnama",
		Name:      "notifications_created_total",
		Help:      "Notifications written, by severity.",
	}, []string{"severity"})

	EmailsQueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "amalnama",
		Name:      "emails_queued_total",
		Help:      "Email requests handed to the outbox, by type and result.",
	}, []string{"type", "result"})

	EmailsDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "amalnama",
		Name:      "emails_delivered_total",
		Help:      "Email delivery outcomes after retries, by type and result.",
	}, []string{"type", "result"})

	EmailAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "amalnama",
		Name:      "email_attempts_total",
		Help:      "Individual provider send attempts.",
	})

	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "amalnama",
		Name:      "http_rate_limited_total",
		Help:      "Requests rejected by the per-client rate limiter.",
	})
)
