package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relay_sessions_active",
		Help: "Currently connected practice sessions",
	})

	SessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_sessions_total",
		Help: "Practice sessions started, by practice kind",
	}, []string{"kind"})

	SessionsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_sessions_rejected_total",
		Help: "Connections refused before a session was created",
	}, []string{"reason"})

	SessionsEnded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_sessions_ended_total",
		Help: "Finalized sessions by trigger",
	}, []string{"trigger"})

	SessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "relay_session_duration_seconds",
		Help:    "Wall-clock length of finalized sessions",
		Buckets: []float64{10, 30, 60, 120, 180, 240, 300, 360},
	})

	SpeakingSeconds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_speaking_seconds_total",
		Help: "Speaking time observed from audio, by role",
	}, []string{"role"})

	UpstreamEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_upstream_events_total",
		Help: "Upstream realtime events received, by type",
	}, []string{"type"})

	UpstreamDialErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_upstream_dial_errors_total",
		Help: "Failed upstream realtime connection attempts",
	})

	ClientEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_client_events_total",
		Help: "Client events handled, by type",
	}, []string{"type"})

	PersistErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_persist_errors_total",
		Help: "Persistence writes that failed, by operation",
	}, []string{"op"})

	FeedbackDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "relay_feedback_duration_seconds",
		Help:    "Feedback generation latency",
		Buckets: []float64{0.25, 0.5, 1.0, 2.0, 3.0, 5.0, 8.0, 13.0},
	})

	FeedbackErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_feedback_errors_total",
		Help: "Feedback generation failures",
	})
)
