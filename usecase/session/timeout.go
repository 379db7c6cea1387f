// Package session implements the countdown session timeout monitor.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fastygo/storefront-guard/domain"
	"github.com/fastygo/storefront-guard/internal/scheduler"
)

// State is the timeout state of the current session.
type State int

const (
	StateActive State = iota
	StateWarning
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateWarning:
		return "warning"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Config controls the session window and warning period.
type Config struct {
	SessionDuration time.Duration
	WarningTime     time.Duration
	TickInterval    time.Duration
}

// DefaultConfig returns a 30 minute session with a 5 minute warning, ticking every second.
func DefaultConfig() Config {
	return Config{
		SessionDuration: 30 * time.Minute,
		WarningTime:     5 * time.Minute,
		TickInterval:    time.Second,
	}
}

// Extender performs the renewal behind ExtendSession, usually a token refresh.
type Extender func(ctx context.Context) error

// Monitor derives active/warning/expired from an expiry timestamp once per tick.
// Warning and expiry notifications are edge-triggered.
type Monitor struct {
	sched  scheduler.Scheduler
	cfg    Config
	extend Extender
	logger *zap.Logger

	mu           sync.Mutex
	session      domain.Session
	state        State
	running      bool
	tick         scheduler.Handle
	nextListener int
	onWarning    map[int]func(remaining time.Duration)
	onExpired    map[int]func()
}

// NewMonitor builds an idle monitor. Call Start to begin ticking.
func NewMonitor(sched scheduler.Scheduler, cfg Config, extend Extender, logger *zap.Logger) *Monitor {
	def := DefaultConfig()
	if cfg.SessionDuration <= 0 {
		cfg.SessionDuration = def.SessionDuration
	}
	if cfg.WarningTime <= 0 {
		cfg.WarningTime = def.WarningTime
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = def.TickInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		sched:     sched,
		cfg:       cfg,
		extend:    extend,
		logger:    logger.Named("session_timeout"),
		state:     StateExpired,
		onWarning: make(map[int]func(time.Duration)),
		onExpired: make(map[int]func()),
	}
}

// Start arms the tick timer for a session expiring at expiresAt.
// A zero expiresAt starts a fresh window of SessionDuration.
func (m *Monitor) Start(expiresAt time.Time) {
	m.mu.Lock()
	now := m.sched.Now()
	if expiresAt.IsZero() {
		expiresAt = now.Add(m.cfg.SessionDuration)
	}
	m.session = domain.Session{
		ID:           newSessionID(),
		ExpiresAt:    expiresAt,
		LastActivity: now,
		CreatedAt:    now,
	}
	m.state = StateActive
	if m.tick != nil {
		m.tick.Cancel()
	}
	m.tick = m.sched.Every(m.cfg.TickInterval, m.Tick)
	m.running = true
	m.mu.Unlock()

	m.logger.Debug("session monitor started", zap.Time("expires_at", expiresAt))
	m.Tick()
}

// Reset moves the expiry without touching the tick timer. It is the explicit
// re-arm used after a token refresh and leaves the expired state.
func (m *Monitor) Reset(expiresAt time.Time) {
	m.mu.Lock()
	m.session.ExpiresAt = expiresAt
	m.state = StateActive
	m.mu.Unlock()
	m.Tick()
}

// Touch records user activity.
func (m *Monitor) Touch() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session.LastActivity = m.sched.Now()
}

// Stop cancels the tick timer. Safe to call repeatedly.
func (m *Monitor) Stop() {
	m.mu.Lock()
	tick := m.tick
	m.tick = nil
	m.running = false
	m.mu.Unlock()

	defer func() {
		if tick != nil {
			tick.Cancel()
		}
	}()
	m.logger.Debug("session monitor stopped")
}

// Tick recomputes the state. It runs on every timer tick and may be called directly.
func (m *Monitor) Tick() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	now := m.sched.Now()
	remaining := m.session.TimeUntilExpiry(now)
	prev := m.state
	next := m.deriveLocked(remaining)
	m.state = next

	var warn []func(time.Duration)
	var expired []func()
	if next == StateWarning && prev != StateWarning {
		warn = listeners(m.onWarning)
	}
	if next == StateExpired && prev != StateExpired {
		expired = listeners(m.onExpired)
	}
	m.mu.Unlock()

	if len(warn) > 0 {
		m.logger.Info("session entering warning period", zap.Duration("remaining", remaining))
		for _, fn := range warn {
			fn(remaining)
		}
	}
	if len(expired) > 0 {
		m.logger.Info("session expired")
		for _, fn := range expired {
			fn()
		}
	}
}

func (m *Monitor) deriveLocked(remaining time.Duration) State {
	// Expired is terminal until ExtendSession or Reset.
	if m.state == StateExpired || remaining <= 0 {
		return StateExpired
	}
	if remaining <= m.cfg.WarningTime {
		return StateWarning
	}
	return StateActive
}

// ExtendSession renews the session through the extender. On success the expiry
// becomes now + SessionDuration and the state returns to active. On failure
// the monitor is left expired and the error is returned for the caller to act on.
func (m *Monitor) ExtendSession(ctx context.Context) error {
	if m.extend != nil {
		if err := m.extend(ctx); err != nil {
			m.mu.Lock()
			m.state = StateExpired
			m.mu.Unlock()
			m.logger.Warn("session extension failed", zap.Error(err))
			return domain.WrapError(domain.ErrCodeUnauthorized, domain.ErrRefreshFailed.Message, err)
		}
	}

	m.mu.Lock()
	now := m.sched.Now()
	m.session.ExpiresAt = now.Add(m.cfg.SessionDuration)
	m.session.LastActivity = now
	m.state = StateActive
	expiresAt := m.session.ExpiresAt
	m.mu.Unlock()

	m.logger.Info("session extended", zap.Time("expires_at", expiresAt))
	return nil
}

// State returns the state computed at the last tick.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// TimeUntilExpiry is max(0, expiresAt - now).
func (m *Monitor) TimeUntilExpiry() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.TimeUntilExpiry(m.sched.Now())
}

// Session returns a copy of the tracked session.
func (m *Monitor) Session() domain.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// OnWarning registers fn for warning-period entry. The returned func unregisters it.
func (m *Monitor) OnWarning(fn func(remaining time.Duration)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextListener++
	id := m.nextListener
	m.onWarning[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.onWarning, id)
	}
}

// OnExpired registers fn for expiry. The returned func unregisters it.
func (m *Monitor) OnExpired(fn func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextListener++
	id := m.nextListener
	m.onExpired[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.onExpired, id)
	}
}

func listeners[T any](set map[int]T) []T {
	out := make([]T, 0, len(set))
	for _, fn := range set {
		out = append(out, fn)
	}
	return out
}

func newSessionID() string {
	return "sess_" + uuid.NewString()
}
