// Package metrics holds the Prometheus collectors exported on /metrics
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "caseprep"

var (
	// turnsTotal counts candidate turns.
	// Labels: mode, phase (phase the turn was processed in), kind (reply, exhibit, fallback, rejected, closed)
	turnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "interview",
		Name:      "turns_total",
		Help:      "Candidate turns processed by the interview state machine",
	}, []string{"mode", "phase", "kind"})

	// transitionsTotal counts phase transitions.
	// Labels: from, to, reason (keyword, turns, exhibits_exhausted)
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "interview",
		Name:      "transitions_total",
		Help:      "Interview phase transitions",
	}, []string{"from", "to", "reason"})

	exhibitsReleased = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "interview",
		Name:      "exhibits_released_total",
		Help:      "Exhibits released to candidates",
	})

	sessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sessions",
		Name:      "status_changes_total",
		Help:      "Session status changes",
	}, []string{"status"})

	activeConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Open interview WebSocket connections",
	})

	// llmDuration measures calls to the text-generation service.
	// Labels: operation (reply, evaluate, coach), status (success, error)
	llmDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "llm",
		Name:      "request_duration_seconds",
		Help:      "Duration of text-generation requests in seconds",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
	}, []string{"operation", "status"})
)

// ObserveTurn records one processed candidate turn
func ObserveTurn(mode, phase, kind string) {
	turnsTotal.WithLabelValues(mode, phase, kind).Inc()
}

// ObserveTransition records a phase change
func ObserveTransition(from, to, reason string) {
	transitionsTotal.WithLabelValues(from, to, reason).Inc()
}

// IncExhibitsReleased records a released exhibit
func IncExhibitsReleased() {
	exhibitsReleased.Inc()
}

// ObserveSessionStatus records a session entering status
func ObserveSessionStatus(status string) {
	sessionsTotal.WithLabelValues(status).Inc()
}

// ConnectionOpened and ConnectionClosed track live WebSocket connections
func ConnectionOpened() { activeConnections.Inc() }

func ConnectionClosed() { activeConnections.Dec() }

// ObserveLLMCall records the duration and outcome of a text-generation call
func ObserveLLMCall(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	llmDuration.WithLabelValues(operation, status).Observe(time.Since(start).Seconds())
}
