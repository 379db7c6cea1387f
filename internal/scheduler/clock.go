package scheduler

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Clock schedules callbacks on a clockwork clock. Interval callbacks for one
// handle run sequentially on their own goroutine.
type Clock struct {
	clock clockwork.Clock

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]struct{}
}

// NewClock wraps clock; a nil clock means the real wall clock.
func NewClock(clock clockwork.Clock) *Clock {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Clock{
		clock:   clock,
		pending: make(map[uint64]struct{}),
	}
}

func (c *Clock) Now() time.Time {
	return c.clock.Now()
}

func (c *Clock) After(d time.Duration, fn func()) Handle {
	if fn == nil {
		return noop{}
	}
	id := c.track()
	h := &clockHandle{owner: c, id: id}
	h.timer = c.clock.AfterFunc(d, func() {
		if c.release(id) {
			fn()
		}
	})
	return h
}

func (c *Clock) Every(d time.Duration, fn func()) Handle {
	if fn == nil || d <= 0 {
		return noop{}
	}
	id := c.track()
	ticker := c.clock.NewTicker(d)
	stop := make(chan struct{})
	h := &clockHandle{owner: c, id: id, ticker: ticker, stop: stop}

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.Chan():
				fn()
			case <-stop:
				return
			}
		}
	}()
	return h
}

func (c *Clock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Clock) track() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	c.pending[c.nextID] = struct{}{}
	return c.nextID
}

func (c *Clock) release(id uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.pending[id]; !ok {
		return false
	}
	delete(c.pending, id)
	return true
}

type clockHandle struct {
	owner  *Clock
	id     uint64
	timer  clockwork.Timer
	ticker clockwork.Ticker
	stop   chan struct{}
}

func (h *clockHandle) Cancel() bool {
	if !h.owner.release(h.id) {
		return false
	}
	if h.timer != nil {
		h.timer.Stop()
	}
	if h.stop != nil {
		close(h.stop)
	}
	return true
}
