package monitor

import (
	"context"
	"sync"
	"time"

	redislib "github.com/redis/go-redis/v9"
	bbolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	boltinfra "github.com/fastygo/storefront-guard/internal/infrastructure/bolt"
	"github.com/fastygo/storefront-guard/internal/scheduler"
)

type Status struct {
	Redis        bool      `json:"redis"`
	RedisEnabled bool      `json:"redis_enabled"`
	Storage      bool      `json:"storage"`
	LastCheck    time.Time `json:"last_check"`
}

// Health periodically pings the local credential store and the optional status store.
type Health struct {
	redis *redislib.Client
	store *bbolt.DB
	sched scheduler.Scheduler

	status   Status
	mu       sync.RWMutex
	interval time.Duration
	handle   scheduler.Handle
	logger   *zap.Logger
}

func NewHealth(redis *redislib.Client, store *bbolt.DB, sched scheduler.Scheduler, interval time.Duration, logger *zap.Logger) *Health {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Health{
		redis:    redis,
		store:    store,
		sched:    sched,
		interval: interval,
		logger:   logger.Named("health"),
	}
}

func (h *Health) Start() {
	h.mu.Lock()
	if h.handle != nil {
		h.mu.Unlock()
		return
	}
	h.handle = h.sched.Every(h.interval, h.Refresh)
	h.mu.Unlock()

	h.Refresh()
}

func (h *Health) Stop() {
	h.mu.Lock()
	handle := h.handle
	h.handle = nil
	h.mu.Unlock()
	if handle != nil {
		handle.Cancel()
	}
}

// IsOnline is true when the credential store works and, if configured, redis answers.
func (h *Health) IsOnline() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status.Storage && (!h.status.RedisEnabled || h.status.Redis)
}

func (h *Health) Status() Status {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status
}

func (h *Health) Refresh() {
	status := Status{
		Redis:        h.checkRedis(),
		RedisEnabled: h.redis != nil,
		Storage:      h.checkStorage(),
		LastCheck:    h.sched.Now(),
	}

	h.mu.Lock()
	h.status = status
	h.mu.Unlock()
}

func (h *Health) checkRedis() bool {
	if h.redis == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.redis.Ping(ctx).Err(); err != nil {
		h.logger.Warn("redis ping failed", zap.Error(err))
		return false
	}
	return true
}

func (h *Health) checkStorage() bool {
	if err := boltinfra.Ping(h.store); err != nil {
		h.logger.Warn("credential store check failed", zap.Error(err))
		return false
	}
	return true
}
