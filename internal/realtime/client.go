// Package realtime keeps one logical WebSocket connection alive with a
// heartbeat and linear-capped reconnects.
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/fastygo/storefront-guard/domain"
	"github.com/fastygo/storefront-guard/internal/scheduler"
)

// Conn is the part of a socket the client uses. *websocket.Conn satisfies it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer opens sockets.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// GorillaDialer dials with gorilla/websocket.
type GorillaDialer struct {
	Dialer *websocket.Dialer
	Header http.Header
}

func (d GorillaDialer) Dial(ctx context.Context, url string) (Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, url, d.Header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Observer receives connection telemetry.
type Observer interface {
	ObserveConnectionState(domain.ConnectionState)
	ObserveReconnectScheduled(delay time.Duration)
	ObserveMessage()
}

type Options struct {
	URL                  string
	Origins              Origins
	Enabled              bool
	MaxReconnectAttempts int
	ReconnectInterval    time.Duration
	PingInterval         time.Duration
	HandshakeTimeout     time.Duration
}

// DefaultOptions returns the stock timings.
func DefaultOptions() Options {
	return Options{
		MaxReconnectAttempts: 5,
		ReconnectInterval:    3000 * time.Millisecond,
		PingInterval:         30000 * time.Millisecond,
		HandshakeTimeout:     10 * time.Second,
	}
}

var pingFrame = []byte(`{"type":"ping"}`)

// Client drives Machine with a real socket, timers and subscribers.
type Client struct {
	id       string
	url      string
	opts     Options
	dialer   Dialer
	sched    scheduler.Scheduler
	observer Observer
	logger   *zap.Logger

	mu        sync.Mutex
	machine   Machine
	conn      Conn
	gen       uint64
	heartbeat scheduler.Handle
	reconnect scheduler.Handle
	nextSub   int
	subs      map[int]func(domain.Message)
	stateSubs map[int]func(domain.ConnectionState)

	writeMu sync.Mutex
}

// NewClient resolves the socket URL. When realtime is switched off or the URL
// cannot be resolved the client is disabled and never dials.
func NewClient(opts Options, dialer Dialer, sched scheduler.Scheduler, observer Observer, logger *zap.Logger) *Client {
	def := DefaultOptions()
	if opts.MaxReconnectAttempts <= 0 {
		opts.MaxReconnectAttempts = def.MaxReconnectAttempts
	}
	if opts.ReconnectInterval <= 0 {
		opts.ReconnectInterval = def.ReconnectInterval
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = def.PingInterval
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = def.HandshakeTimeout
	}
	if dialer == nil {
		dialer = GorillaDialer{Dialer: &websocket.Dialer{HandshakeTimeout: opts.HandshakeTimeout}}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var resolved string
	configured := false
	if opts.Enabled {
		resolved, configured = ResolveURL(opts.URL, opts.Origins)
	}

	c := &Client{
		id:        uuid.NewString(),
		url:       resolved,
		opts:      opts,
		dialer:    dialer,
		sched:     sched,
		observer:  observer,
		machine:   NewMachine(configured, opts.MaxReconnectAttempts, opts.ReconnectInterval),
		subs:      make(map[int]func(domain.Message)),
		stateSubs: make(map[int]func(domain.ConnectionState)),
	}
	c.logger = logger.Named("realtime").With(zap.String("client_id", c.id))
	if !configured {
		c.logger.Info("realtime disabled", zap.Bool("switch", opts.Enabled), zap.String("url", opts.URL))
	}
	return c
}

// URL is the resolved socket URL, empty when disabled.
func (c *Client) URL() string { return c.url }

// Disabled reports whether the client was configured off.
func (c *Client) Disabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.machine.Configured
}

// Connect dials the socket. It blocks until the handshake succeeds or fails;
// failures are retried in the background.
func (c *Client) Connect() { c.dispatch(Event{Kind: EventConnect}) }

// Reconnect retries immediately with a fresh attempt budget.
func (c *Client) Reconnect() { c.dispatch(Event{Kind: EventRetry}) }

// Disconnect cancels all timers and closes the socket. It is idempotent.
func (c *Client) Disconnect() { c.dispatch(Event{Kind: EventDisable}) }

// State returns a snapshot of the connection state.
func (c *Client) State() domain.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.machine.State()
}

// SendMessage writes payload as a text frame. Strings and byte slices are sent
// verbatim, anything else is JSON encoded. It returns false when the socket
// is not open or the write fails.
func (c *Client) SendMessage(payload any) bool {
	var data []byte
	switch v := payload.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			c.logger.Warn("unserializable payload", zap.Error(err))
			return false
		}
		data = encoded
	}

	c.mu.Lock()
	conn := c.conn
	open := c.machine.Status == domain.StatusConnected
	c.mu.Unlock()
	if conn == nil || !open {
		c.logger.Debug("message dropped", zap.Error(domain.ErrNotConnected))
		return false
	}
	if err := c.write(conn, data); err != nil {
		c.logger.Warn("message write failed", zap.Error(err))
		return false
	}
	return true
}

// Subscribe registers fn for every inbound frame. The returned func unregisters it.
func (c *Client) Subscribe(fn func(domain.Message)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextSub++
	id := c.nextSub
	c.subs[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

// OnStateChange registers fn for every state change.
func (c *Client) OnStateChange(fn func(domain.ConnectionState)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextSub++
	id := c.nextSub
	c.stateSubs[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.stateSubs, id)
	}
}

func (c *Client) dispatch(ev Event) {
	queue := []Event{ev}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		queue = append(queue, c.step(next)...)
	}
}

// step runs one transition. Timer and socket bookkeeping happens under the
// lock; dialing, writes and callbacks happen after it is released.
func (c *Client) step(ev Event) []Event {
	c.mu.Lock()
	if ev.gen != 0 && ev.gen != c.gen {
		c.mu.Unlock()
		return nil
	}
	next, effects := Transition(c.machine, ev)
	c.machine = next

	var (
		dial      bool
		ping      Conn
		closing   Conn
		deliver   []*domain.Message
		notify    bool
		exhausted bool
		delay     time.Duration
	)
	if ev.Kind == EventClose && c.conn != nil {
		closing = c.conn
		c.conn = nil
	}
	for _, eff := range effects {
		switch eff.Kind {
		case EffectDial:
			dial = true
		case EffectStartHeartbeat:
			c.stopHeartbeatLocked()
			c.heartbeat = c.sched.Every(c.opts.PingInterval, func() {
				c.dispatch(Event{Kind: EventHeartbeat})
			})
		case EffectStopHeartbeat:
			c.stopHeartbeatLocked()
		case EffectSendPing:
			ping = c.conn
		case EffectScheduleReconnect:
			c.cancelReconnectLocked()
			delay = eff.Delay
			c.reconnect = c.sched.After(eff.Delay, func() {
				c.dispatch(Event{Kind: EventReconnectDue})
			})
		case EffectCancelReconnect:
			c.cancelReconnectLocked()
		case EffectCloseSocket:
			if c.conn != nil {
				closing = c.conn
				c.conn = nil
			}
			c.gen++
		case EffectDeliver:
			deliver = append(deliver, eff.Message)
		case EffectLogExhausted:
			exhausted = true
		case EffectNotify:
			notify = true
		}
	}
	state := c.machine.State()
	subs := c.messageSubsLocked(len(deliver) > 0)
	stateSubs := c.stateSubsLocked(notify)
	c.mu.Unlock()

	if closing != nil {
		closing.Close()
	}
	if ping != nil {
		if err := c.write(ping, pingFrame); err != nil {
			c.logger.Debug("heartbeat write failed", zap.Error(err))
		}
	}
	if delay > 0 {
		c.logger.Info("reconnect scheduled", zap.Int("attempt", state.ReconnectAttempts), zap.Duration("delay", delay))
		if c.observer != nil {
			c.observer.ObserveReconnectScheduled(delay)
		}
	}
	if exhausted {
		c.logger.Error("reconnect attempts exhausted",
			zap.String("url", c.url),
			zap.Int("max_attempts", c.opts.MaxReconnectAttempts))
	}
	for _, msg := range deliver {
		if c.observer != nil {
			c.observer.ObserveMessage()
		}
		for _, fn := range subs {
			fn(*msg)
		}
	}
	if notify {
		if c.observer != nil {
			c.observer.ObserveConnectionState(state)
		}
		for _, fn := range stateSubs {
			fn(state)
		}
	}
	if dial {
		return c.dial()
	}
	return nil
}

func (c *Client) dial() []Event {
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.HandshakeTimeout)
	defer cancel()

	conn, err := c.dialer.Dial(ctx, c.url)
	if err != nil {
		c.logger.Warn("dial failed", zap.String("url", c.url), zap.Error(err))
		return []Event{{Kind: EventError, Err: err}, {Kind: EventClose}}
	}

	c.mu.Lock()
	if !c.machine.Enabled || c.machine.Status != domain.StatusConnecting {
		c.mu.Unlock()
		conn.Close()
		return nil
	}
	c.gen++
	gen := c.gen
	c.conn = conn
	c.mu.Unlock()

	c.logger.Info("connected", zap.String("url", c.url))
	go c.readLoop(conn, gen)
	return []Event{{Kind: EventOpen, gen: gen}}
}

func (c *Client) readLoop(conn Conn, gen uint64) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				err = nil
			}
			c.dispatch(Event{Kind: EventClose, Err: err, gen: gen})
			return
		}
		msg := ParseFrame(data, c.sched.Now())
		c.dispatch(Event{Kind: EventMessage, Message: &msg, gen: gen})
	}
}

func (c *Client) write(conn Conn, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) stopHeartbeatLocked() {
	if c.heartbeat != nil {
		c.heartbeat.Cancel()
		c.heartbeat = nil
	}
}

func (c *Client) cancelReconnectLocked() {
	if c.reconnect != nil {
		c.reconnect.Cancel()
		c.reconnect = nil
	}
}

func (c *Client) messageSubsLocked(want bool) []func(domain.Message) {
	if !want {
		return nil
	}
	out := make([]func(domain.Message), 0, len(c.subs))
	for _, fn := range c.subs {
		out = append(out, fn)
	}
	return out
}

func (c *Client) stateSubsLocked(want bool) []func(domain.ConnectionState) {
	if !want {
		return nil
	}
	out := make([]func(domain.ConnectionState), 0, len(c.stateSubs))
	for _, fn := range c.stateSubs {
		out = append(out, fn)
	}
	return out
}
