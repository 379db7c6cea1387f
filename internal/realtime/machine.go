package realtime

import (
	"encoding/json"
	"time"

	"github.com/fastygo/storefront-guard/domain"
)

// EventKind is an input to the connection state machine.
type EventKind string

const (
	EventConnect      EventKind = "connect"
	EventOpen         EventKind = "open"
	EventMessage      EventKind = "message"
	EventHeartbeat    EventKind = "heartbeat"
	EventError        EventKind = "error"
	EventClose        EventKind = "close"
	EventReconnectDue EventKind = "reconnect_due"
	EventDisable      EventKind = "disable"
	// EventRetry is a manual reconnect that resets the attempt counter.
	EventRetry EventKind = "retry"
)

type Event struct {
	Kind    EventKind
	Message *domain.Message
	Err     error
	// gen ties socket events to the connection that produced them; zero means not socket-bound.
	gen uint64
}

// EffectKind is an instruction the driver carries out after a transition.
type EffectKind string

const (
	EffectDial              EffectKind = "dial"
	EffectStartHeartbeat    EffectKind = "start_heartbeat"
	EffectStopHeartbeat     EffectKind = "stop_heartbeat"
	EffectSendPing          EffectKind = "send_ping"
	EffectScheduleReconnect EffectKind = "schedule_reconnect"
	EffectCancelReconnect   EffectKind = "cancel_reconnect"
	EffectCloseSocket       EffectKind = "close_socket"
	EffectDeliver           EffectKind = "deliver"
	EffectLogExhausted      EffectKind = "log_exhausted"
	EffectNotify            EffectKind = "notify"
)

type Effect struct {
	Kind    EffectKind
	Delay   time.Duration
	Message *domain.Message
}

// MaxBackoffStep caps the reconnect delay multiplier.
const MaxBackoffStep = 5

// Machine is the complete state of one logical connection. It is a value;
// Transition returns a new one.
type Machine struct {
	Status      domain.ConnectionStatus
	Quality     domain.ConnectionQuality
	Attempts    int
	Enabled     bool
	LastMessage *domain.Message
	LastError   string

	// Configured is false when no socket URL could be resolved.
	Configured bool

	MaxAttempts       int
	ReconnectInterval time.Duration

	heartbeat        bool
	reconnectPending bool
	exhaustedLogged  bool
}

// NewMachine returns an idle machine. An unconfigured machine ignores every event.
func NewMachine(configured bool, maxAttempts int, reconnectInterval time.Duration) Machine {
	return Machine{
		Status:            domain.StatusIdle,
		Quality:           domain.QualityUnknown,
		Configured:        configured,
		MaxAttempts:       maxAttempts,
		ReconnectInterval: reconnectInterval,
	}
}

// State projects the observable part of the machine.
func (m Machine) State() domain.ConnectionState {
	return domain.ConnectionState{
		Status:            m.Status,
		ReconnectAttempts: m.Attempts,
		Quality:           m.Quality,
		LastMessage:       m.LastMessage,
		LastError:         m.LastError,
		Enabled:           m.Enabled,
	}
}

// ReconnectDelay is interval * min(attempts, MaxBackoffStep).
func ReconnectDelay(interval time.Duration, attempts int) time.Duration {
	step := attempts
	if step > MaxBackoffStep {
		step = MaxBackoffStep
	}
	if step < 1 {
		step = 1
	}
	return interval * time.Duration(step)
}

// Transition applies ev to m. It has no side effects.
func Transition(m Machine, ev Event) (Machine, []Effect) {
	if !m.Configured {
		return m, nil
	}

	switch ev.Kind {
	case EventConnect, EventRetry:
		if ev.Kind == EventRetry {
			m.Attempts = 0
			m.exhaustedLogged = false
		}
		if m.Enabled && (m.Status == domain.StatusConnecting || m.Status == domain.StatusConnected) {
			return m, nil
		}
		m.Enabled = true
		var effects []Effect
		if m.reconnectPending {
			m.reconnectPending = false
			effects = append(effects, Effect{Kind: EffectCancelReconnect})
		}
		m.Status = domain.StatusConnecting
		return m, append(effects, Effect{Kind: EffectDial}, Effect{Kind: EffectNotify})

	case EventOpen:
		if !m.Enabled {
			return m, []Effect{{Kind: EffectCloseSocket}}
		}
		m.Attempts = 0
		m.Status = domain.StatusConnected
		m.Quality = domain.QualityGood
		m.LastError = ""
		m.exhaustedLogged = false
		m.heartbeat = true
		return m, []Effect{{Kind: EffectStartHeartbeat}, {Kind: EffectNotify}}

	case EventMessage:
		if ev.Message == nil {
			return m, nil
		}
		m.LastMessage = ev.Message
		if ev.Message.Type == "pong" {
			m.Quality = domain.QualityExcellent
		}
		return m, []Effect{{Kind: EffectDeliver, Message: ev.Message}, {Kind: EffectNotify}}

	case EventHeartbeat:
		if m.Status != domain.StatusConnected {
			return m, nil
		}
		return m, []Effect{{Kind: EffectSendPing}}

	case EventError:
		if !m.Enabled {
			return m, nil
		}
		m.Status = domain.StatusError
		m.Quality = domain.QualityPoor
		if ev.Err != nil {
			m.LastError = ev.Err.Error()
		}
		return m, []Effect{{Kind: EffectNotify}}

	case EventClose:
		var effects []Effect
		if m.heartbeat {
			m.heartbeat = false
			effects = append(effects, Effect{Kind: EffectStopHeartbeat})
		}
		if !m.Enabled {
			m.Status = domain.StatusDisconnected
			m.Quality = domain.QualityUnknown
			return m, append(effects, Effect{Kind: EffectNotify})
		}
		if ev.Err != nil {
			m.LastError = ev.Err.Error()
		}
		m.Status = domain.StatusDisconnected
		m.Quality = domain.QualityUnknown
		m.Attempts++
		if m.Attempts > m.MaxAttempts {
			m.Status = domain.StatusFailed
			if !m.exhaustedLogged {
				m.exhaustedLogged = true
				effects = append(effects, Effect{Kind: EffectLogExhausted})
			}
			return m, append(effects, Effect{Kind: EffectNotify})
		}
		m.reconnectPending = true
		effects = append(effects, Effect{Kind: EffectScheduleReconnect, Delay: ReconnectDelay(m.ReconnectInterval, m.Attempts)})
		return m, append(effects, Effect{Kind: EffectNotify})

	case EventReconnectDue:
		m.reconnectPending = false
		if !m.Enabled || m.Status != domain.StatusDisconnected {
			return m, nil
		}
		m.Status = domain.StatusConnecting
		return m, []Effect{{Kind: EffectDial}, {Kind: EffectNotify}}

	case EventDisable:
		var effects []Effect
		if m.reconnectPending {
			m.reconnectPending = false
			effects = append(effects, Effect{Kind: EffectCancelReconnect})
		}
		if m.heartbeat {
			m.heartbeat = false
			effects = append(effects, Effect{Kind: EffectStopHeartbeat})
		}
		switch m.Status {
		case domain.StatusConnecting, domain.StatusConnected, domain.StatusError:
			effects = append(effects, Effect{Kind: EffectCloseSocket})
		}
		changed := m.Enabled || len(effects) > 0 || m.Status != domain.StatusDisconnected
		m.Enabled = false
		m.Status = domain.StatusDisconnected
		m.Quality = domain.QualityUnknown
		if changed {
			effects = append(effects, Effect{Kind: EffectNotify})
		}
		return m, effects
	}
	return m, nil
}

// ParseFrame builds a Message from one inbound frame. Invalid JSON keeps Raw and leaves Data nil.
func ParseFrame(raw []byte, at time.Time) domain.Message {
	msg := domain.Message{
		Raw:        append([]byte(nil), raw...),
		ReceivedAt: at,
	}
	if !json.Valid(raw) {
		return msg
	}
	msg.Data = json.RawMessage(msg.Raw)
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil {
		msg.Type = envelope.Type
	}
	return msg
}
