// Package scheduler is the single tick source shared by the monitors, the
// access gate and the realtime client. Production code runs on a clockwork
// clock; tests drive a Manual scheduler and advance virtual time.
package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Handle cancels a scheduled callback. Cancel is idempotent and reports
// whether this call stopped a pending callback.
type Handle interface {
	Cancel() bool
}

// Scheduler runs callbacks after a delay or on a fixed interval.
type Scheduler interface {
	Now() time.Time
	After(d time.Duration, fn func()) Handle
	Every(d time.Duration, fn func()) Handle
	// Pending is the number of live timers, used for leak checks.
	Pending() int
}

// ParseCadence parses a cron expression or descriptor such as "@every 30s".
func ParseCadence(expr string) (cron.Schedule, error) {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("parse cadence %q: %w", expr, err)
	}
	return sched, nil
}

// OnSchedule runs fn at each activation of sched, re-arming a one-shot timer after every run.
func OnSchedule(s Scheduler, sched cron.Schedule, fn func()) Handle {
	h := &chained{}
	var arm func()
	arm = func() {
		now := s.Now()
		delay := sched.Next(now).Sub(now)
		if delay < 0 {
			delay = 0
		}
		h.set(s.After(delay, func() {
			fn()
			if !h.cancelled() {
				arm()
			}
		}))
	}
	arm()
	return h
}

type chained struct {
	mu      sync.Mutex
	current Handle
	stopped bool
}

func (c *chained) set(h Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		h.Cancel()
		return
	}
	c.current = h
}

func (c *chained) cancelled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

func (c *chained) Cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return false
	}
	c.stopped = true
	if c.current != nil {
		c.current.Cancel()
	}
	return true
}

// noop is returned for invalid requests so callers can always Cancel.
type noop struct{}

func (noop) Cancel() bool { return false }
