// Package metrics exposes connection, security and access telemetry to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/fastygo/storefront-guard/domain"
)

const namespace = "guard"

var (
	connectionStatuses = []domain.ConnectionStatus{
		domain.StatusIdle, domain.StatusConnecting, domain.StatusConnected,
		domain.StatusDisconnected, domain.StatusError, domain.StatusFailed,
	}
	decisions = []domain.Decision{
		domain.DecisionChecking, domain.DecisionUnauthenticated, domain.DecisionSessionExpired,
		domain.DecisionAccessDenied, domain.DecisionSecurityDenied, domain.DecisionLocked,
		domain.DecisionMaintenance, domain.DecisionAuthenticated, domain.DecisionError,
	}
)

// Recorder owns the guard's collectors. A nil *Recorder is valid and records nothing.
type Recorder struct {
	connectionStatus  *prometheus.GaugeVec
	reconnectAttempts prometheus.Gauge
	reconnectsTotal   prometheus.Counter
	reconnectDelay    prometheus.Histogram
	messagesTotal     prometheus.Counter
	securityScore     prometheus.Gauge
	securityThreats   *prometheus.GaugeVec
	accessDecision    *prometheus.GaugeVec
	decisionsTotal    *prometheus.CounterVec
	sessionExtensions *prometheus.CounterVec
}

// New registers every collector on reg.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		connectionStatus: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "connection_status",
			Help:      "1 for the current realtime connection status, 0 otherwise",
		}, []string{"status"}),
		reconnectAttempts: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "reconnect_attempts",
			Help:      "Consecutive failed connection attempts",
		}),
		reconnectsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "reconnects_scheduled_total",
			Help:      "Total number of scheduled reconnects",
		}),
		reconnectDelay: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "reconnect_delay_seconds",
			Help:      "Delay before each scheduled reconnect",
			Buckets:   prometheus.LinearBuckets(3, 3, 5),
		}),
		messagesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "messages_received_total",
			Help:      "Total number of inbound frames",
		}),
		securityScore: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "security",
			Name:      "score",
			Help:      "Latest security score (0-100)",
		}),
		securityThreats: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "security",
			Name:      "active_threats",
			Help:      "Active threats by severity",
		}, []string{"severity"}),
		accessDecision: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "access",
			Name:      "decision",
			Help:      "1 for the current access decision, 0 otherwise",
		}, []string{"decision"}),
		decisionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "access",
			Name:      "decisions_total",
			Help:      "Total number of access decision changes",
		}, []string{"decision"}),
		sessionExtensions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "extensions_total",
			Help:      "Session extension attempts by result",
		}, []string{"result"}),
	}
}

func (r *Recorder) ObserveConnectionState(s domain.ConnectionState) {
	if r == nil {
		return
	}
	for _, status := range connectionStatuses {
		v := 0.0
		if status == s.Status {
			v = 1
		}
		r.connectionStatus.WithLabelValues(string(status)).Set(v)
	}
	r.reconnectAttempts.Set(float64(s.ReconnectAttempts))
}

func (r *Recorder) ObserveReconnectScheduled(delay time.Duration) {
	if r == nil {
		return
	}
	r.reconnectsTotal.Inc()
	r.reconnectDelay.Observe(delay.Seconds())
}

func (r *Recorder) ObserveMessage() {
	if r == nil {
		return
	}
	r.messagesTotal.Inc()
}

func (r *Recorder) ObserveAssessment(a domain.Assessment) {
	if r == nil {
		return
	}
	r.securityScore.Set(float64(a.Score))
	counts := map[domain.Severity]int{
		domain.SeverityLow:      0,
		domain.SeverityMedium:   0,
		domain.SeverityHigh:     0,
		domain.SeverityCritical: 0,
	}
	for _, t := range a.Threats {
		counts[t.Severity]++
	}
	for severity, n := range counts {
		r.securityThreats.WithLabelValues(string(severity)).Set(float64(n))
	}
}

func (r *Recorder) ObserveDecision(d domain.Decision) {
	if r == nil {
		return
	}
	for _, candidate := range decisions {
		v := 0.0
		if candidate == d {
			v = 1
		}
		r.accessDecision.WithLabelValues(string(candidate)).Set(v)
	}
	r.decisionsTotal.WithLabelValues(string(d)).Inc()
}

func (r *Recorder) ObserveSessionExtension(err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "failed"
	}
	r.sessionExtensions.WithLabelValues(result).Inc()
}
