package handler

import (
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/storefront-guard/api/transport"
	"github.com/fastygo/storefront-guard/internal/infrastructure/monitor"
	"github.com/fastygo/storefront-guard/pkg/httpcontext"
)

type HealthHandler struct {
	baseHandler
	health *monitor.Health
}

func NewHealthHandler(health *monitor.Health, adapter *httpcontext.Adapter, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		baseHandler: newBaseHandler(adapter, logger),
		health:      health,
	}
}

// @Summary Health check
// @Tags health
// @Router /health [get]
func (h *HealthHandler) Check(ctx *fasthttp.RequestCtx) {
	status := h.health.Status()
	payload := map[string]interface{}{
		"timestamp": time.Now().UTC(),
		"services": map[string]interface{}{
			"storage": status.Storage,
			"redis": map[string]interface{}{
				"enabled": status.RedisEnabled,
				"online":  status.Redis,
			},
		},
		"last_check": status.LastCheck,
	}

	if h.health.IsOnline() {
		h.respondSuccess(ctx, http.StatusOK, payload)
		return
	}
	h.respondJSON(ctx, http.StatusServiceUnavailable, transport.NewError("DEGRADED", "dependencies unhealthy", payload))
}
