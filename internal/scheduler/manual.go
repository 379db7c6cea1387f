package scheduler

import (
	"sort"
	"sync"
	"time"
)

// Manual is a virtual-time scheduler. Nothing fires until Advance is called;
// due callbacks then run synchronously on the caller's goroutine in due-time
// order (registration order breaks ties).
type Manual struct {
	mu     sync.Mutex
	now    time.Time
	seq    uint64
	timers map[uint64]*manualTimer
}

type manualTimer struct {
	id       uint64
	at       time.Time
	interval time.Duration
	fn       func()
}

// NewManual starts virtual time at start.
func NewManual(start time.Time) *Manual {
	return &Manual{
		now:    start,
		timers: make(map[uint64]*manualTimer),
	}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) After(d time.Duration, fn func()) Handle {
	return m.add(d, 0, fn)
}

func (m *Manual) Every(d time.Duration, fn func()) Handle {
	if d <= 0 {
		return noop{}
	}
	return m.add(d, d, fn)
}

func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

// NextDelay reports how far away the earliest pending timer is.
func (m *Manual) NextDelay() (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := m.earliestLocked()
	if next == nil {
		return 0, false
	}
	return next.at.Sub(m.now), true
}

// Delays lists the remaining delay of every pending one-shot timer, ascending.
func (m *Manual) Delays() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []time.Duration
	for _, t := range m.timers {
		if t.interval == 0 {
			out = append(out, t.at.Sub(m.now))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Advance moves virtual time forward by d, firing everything that falls due.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	for {
		m.mu.Lock()
		next := m.earliestLocked()
		if next == nil || next.at.After(target) {
			m.now = target
			m.mu.Unlock()
			return
		}
		m.now = next.at
		if next.interval > 0 {
			next.at = next.at.Add(next.interval)
		} else {
			delete(m.timers, next.id)
		}
		fn := next.fn
		m.mu.Unlock()

		fn()
	}
}

func (m *Manual) add(d, interval time.Duration, fn func()) Handle {
	if fn == nil {
		return noop{}
	}
	if d < 0 {
		d = 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t := &manualTimer{id: m.seq, at: m.now.Add(d), interval: interval, fn: fn}
	m.timers[t.id] = t
	return &manualHandle{owner: m, id: t.id}
}

func (m *Manual) earliestLocked() *manualTimer {
	var next *manualTimer
	for _, t := range m.timers {
		if next == nil || t.at.Before(next.at) || (t.at.Equal(next.at) && t.id < next.id) {
			next = t
		}
	}
	return next
}

type manualHandle struct {
	owner *Manual
	id    uint64
}

func (h *manualHandle) Cancel() bool {
	h.owner.mu.Lock()
	defer h.owner.mu.Unlock()
	if _, ok := h.owner.timers[h.id]; !ok {
		return false
	}
	delete(h.owner.timers, h.id)
	return true
}
