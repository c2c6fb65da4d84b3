package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

var (
	LinkAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waba_link_attempts_total",
			Help: "Account link attempts by entry point and outcome",
		},
		[]string{"via", "outcome"},
	)
	PinSubmissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waba_pin_submissions_total",
			Help: "Two-step verification PIN submissions by outcome",
		},
		[]string{"outcome"},
	)
	StatusRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waba_status_refreshes_total",
			Help: "Status poller runs by outcome",
		},
		[]string{"outcome"},
	)
	SignupMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waba_signup_messages_total",
			Help: "Cross-window signup messages by shape and outcome",
		},
		[]string{"shape", "outcome"},
	)
	RemoteUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waba_remote_updates_total",
			Help: "Remote-origin tenant updates by outcome (applied or stale)",
		},
		[]string{"outcome"},
	)
	SignupSessions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "waba_signup_sessions_total",
			Help: "Embedded signup sessions started",
		},
	)
	RefreshLag = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "waba_status_refresh_lag_seconds",
			Help:    "Delay between a status refresh's scheduled time and its processing",
			Buckets: prometheus.LinearBuckets(0, 1, 10), // 0 to 10 seconds
		},
	)
)

// InitMetrics registers every collector on the default registry.
func InitMetrics(logger *zap.Logger) {
	collectors := map[string]prometheus.Collector{
		"LinkAttempts":    LinkAttempts,
		"PinSubmissions":  PinSubmissions,
		"StatusRefreshes": StatusRefreshes,
		"SignupMessages":  SignupMessages,
		"RemoteUpdates":   RemoteUpdates,
		"SignupSessions":  SignupSessions,
		"RefreshLag":      RefreshLag,
	}
	for name, c := range collectors {
		if err := prometheus.Register(c); err != nil {
			logger.Error("failed to register metric", zap.String("metric", name), zap.Error(err))
		}
	}
}
