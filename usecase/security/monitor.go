// Package security scores the health of the client environment and reports active threats.
package security

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fastygo/storefront-guard/domain"
	"github.com/fastygo/storefront-guard/internal/scheduler"
)

// Probe reads the current environment signals.
type Probe interface {
	Signals(ctx context.Context) Signals
}

// ProbeFunc adapts a function to Probe.
type ProbeFunc func(ctx context.Context) Signals

func (f ProbeFunc) Signals(ctx context.Context) Signals { return f(ctx) }

// Observer receives every fresh assessment (metrics, telemetry).
type Observer interface {
	ObserveAssessment(domain.Assessment)
}

// Config controls the scan cadence and scoring.
type Config struct {
	// Cadence is a cron expression or descriptor; empty means every 30 seconds.
	Cadence        string
	Penalties      Penalties
	ClearanceScore int
	Detectors      []Detector
	ProbeTimeout   time.Duration
}

// DefaultConfig returns the stock monitor configuration.
func DefaultConfig() Config {
	return Config{
		Cadence:        "@every 30s",
		Penalties:      DefaultPenalties(),
		ClearanceScore: DefaultClearanceScore,
		Detectors:      DefaultDetectors(),
		ProbeTimeout:   2 * time.Second,
	}
}

// Monitor recomputes an Assessment once at Start and then on the cadence.
// It never mutates anything outside itself.
type Monitor struct {
	probe    Probe
	sched    scheduler.Scheduler
	cfg      Config
	cadence  cron.Schedule
	observer Observer
	logger   *zap.Logger

	mu         sync.RWMutex
	assessment domain.Assessment
	known      bool
	handle     scheduler.Handle
	nextSub    int
	subs       map[int]func(domain.Assessment)
}

// NewMonitor validates the cadence and builds a stopped monitor.
func NewMonitor(probe Probe, sched scheduler.Scheduler, cfg Config, observer Observer, logger *zap.Logger) (*Monitor, error) {
	def := DefaultConfig()
	if cfg.Cadence == "" {
		cfg.Cadence = def.Cadence
	}
	if cfg.Penalties == (Penalties{}) {
		cfg.Penalties = def.Penalties
	}
	if cfg.ClearanceScore <= 0 {
		cfg.ClearanceScore = def.ClearanceScore
	}
	if cfg.Detectors == nil {
		cfg.Detectors = def.Detectors
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = def.ProbeTimeout
	}
	cadence, err := scheduler.ParseCadence(cfg.Cadence)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		probe:    probe,
		sched:    sched,
		cfg:      cfg,
		cadence:  cadence,
		observer: observer,
		logger:   logger.Named("security"),
		subs:     make(map[int]func(domain.Assessment)),
	}, nil
}

// Start runs one scan immediately and schedules the rest.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.handle != nil {
		m.mu.Unlock()
		return
	}
	m.handle = scheduler.OnSchedule(m.sched, m.cadence, m.Scan)
	m.mu.Unlock()

	m.Scan()
}

// Stop cancels the scan schedule and discards the last assessment.
func (m *Monitor) Stop() {
	m.mu.Lock()
	handle := m.handle
	m.handle = nil
	m.assessment = domain.Assessment{}
	m.known = false
	m.mu.Unlock()

	if handle != nil {
		handle.Cancel()
	}
}

// Reset discards the last assessment. A running monitor rescans at once.
func (m *Monitor) Reset() {
	m.mu.Lock()
	m.assessment = domain.Assessment{}
	m.known = false
	running := m.handle != nil
	m.mu.Unlock()

	if running {
		m.Scan()
	}
}

// Scan computes a fresh assessment, stores it and notifies subscribers.
func (m *Monitor) Scan() {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.ProbeTimeout)
	defer cancel()

	var signals Signals
	if m.probe != nil {
		signals = m.probe.Signals(ctx)
	}
	assessment := domain.Assessment{
		Score:     ComputeScore(signals, m.cfg.Penalties),
		Threats:   DetectThreats(signals, m.cfg.Detectors...),
		CheckedAt: m.sched.Now(),
	}

	m.mu.Lock()
	m.assessment = assessment
	m.known = true
	subs := make([]func(domain.Assessment), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	if len(assessment.Threats) > 0 {
		m.logger.Warn("security threats detected",
			zap.Int("score", assessment.Score),
			zap.Int("threats", len(assessment.Threats)),
			zap.String("highest", string(assessment.Highest())))
	} else {
		m.logger.Debug("security scan complete", zap.Int("score", assessment.Score))
	}
	if m.observer != nil {
		m.observer.ObserveAssessment(assessment)
	}
	for _, fn := range subs {
		fn(assessment)
	}
}

// Assessment returns the last snapshot and whether a scan has completed.
func (m *Monitor) Assessment() (domain.Assessment, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.assessment, m.known
}

// IsSecure reports score >= clearance score and no active threats.
func (m *Monitor) IsSecure() bool {
	a, known := m.Assessment()
	return known && a.IsSecure(m.cfg.ClearanceScore)
}

// ClearanceScore returns the configured cutoff.
func (m *Monitor) ClearanceScore() int {
	return m.cfg.ClearanceScore
}

// Subscribe registers fn for every new assessment. The returned func unregisters it.
func (m *Monitor) Subscribe(fn func(domain.Assessment)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSub++
	id := m.nextSub
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}
