package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/fastygo/storefront-guard/domain"
)

func TestRecorder_Connection(t *testing.T) {
	r := New(prometheus.NewRegistry())

	r.ObserveConnectionState(domain.ConnectionState{Status: domain.StatusConnected})
	r.ObserveConnectionState(domain.ConnectionState{Status: domain.StatusDisconnected, ReconnectAttempts: 2})
	r.ObserveReconnectScheduled(6 * time.Second)
	r.ObserveMessage()
	r.ObserveMessage()

	assert.Equal(t, 0.0, testutil.ToFloat64(r.connectionStatus.WithLabelValues("connected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.connectionStatus.WithLabelValues("disconnected")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.reconnectAttempts))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.reconnectsTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.messagesTotal))
}

func TestRecorder_SecurityAndAccess(t *testing.T) {
	r := New(prometheus.NewRegistry())

	r.ObserveAssessment(domain.Assessment{
		Score:   80,
		Threats: []domain.Threat{{ID: "insecure-connection", Severity: domain.SeverityHigh}},
	})
	assert.Equal(t, 80.0, testutil.ToFloat64(r.securityScore))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.securityThreats.WithLabelValues("high")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.securityThreats.WithLabelValues("critical")))

	r.ObserveDecision(domain.DecisionChecking)
	r.ObserveDecision(domain.DecisionAuthenticated)
	assert.Equal(t, 1.0, testutil.ToFloat64(r.accessDecision.WithLabelValues("authenticated")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.accessDecision.WithLabelValues("checking")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.decisionsTotal.WithLabelValues("checking")))

	r.ObserveSessionExtension(nil)
	r.ObserveSessionExtension(errors.New("rejected"))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.sessionExtensions.WithLabelValues("failed")))
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.ObserveConnectionState(domain.ConnectionState{})
		r.ObserveReconnectScheduled(time.Second)
		r.ObserveMessage()
		r.ObserveAssessment(domain.Assessment{})
		r.ObserveDecision(domain.DecisionError)
		r.ObserveSessionExtension(nil)
	})
}

func TestNew_RegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)
	r.ObserveMessage()

	n, err := testutil.GatherAndCount(reg, "guard_realtime_messages_received_total")
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
}
