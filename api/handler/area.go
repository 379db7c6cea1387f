package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/storefront-guard/api/transport"
	"github.com/fastygo/storefront-guard/domain"
	"github.com/fastygo/storefront-guard/pkg/httpcontext"
	"github.com/fastygo/storefront-guard/usecase/access"
)

// ConnectionSource is the realtime client as seen by the status API.
type ConnectionSource interface {
	State() domain.ConnectionState
	Reconnect()
}

// AssessmentSource supplies the latest security assessment.
type AssessmentSource interface {
	Assessment() (domain.Assessment, bool)
}

// AreaHandler serves the guarded account and admin areas.
type AreaHandler struct {
	baseHandler
	gate       *access.Gate
	connection ConnectionSource
	security   AssessmentSource
}

// NewAreaHandler builds the handler. connection and security may be nil.
func NewAreaHandler(gate *access.Gate, connection ConnectionSource, security AssessmentSource, adapter *httpcontext.Adapter, logger *zap.Logger) *AreaHandler {
	return &AreaHandler{
		baseHandler: newBaseHandler(adapter, logger),
		gate:        gate,
		connection:  connection,
		security:    security,
	}
}

// @Summary Account area
// @Tags areas
// @Router /api/v1/account [get]
func (h *AreaHandler) Account(ctx *fasthttp.RequestCtx) {
	h.respondSuccess(ctx, http.StatusOK, map[string]interface{}{
		"user":   h.gate.User(),
		"access": transport.NewDecisionResponse(h.gate.Decision()),
	})
}

// @Summary Admin overview of connection, security and session
// @Tags areas
// @Router /api/v1/admin/overview [get]
func (h *AreaHandler) Overview(ctx *fasthttp.RequestCtx) {
	payload := map[string]interface{}{
		"access":  transport.NewDecisionResponse(h.gate.Decision()),
		"session": h.gate.Session().State().String(),
	}
	if h.connection != nil {
		payload["connection"] = h.connection.State()
	}
	if h.security != nil {
		if a, ok := h.security.Assessment(); ok {
			payload["security"] = a
		}
	}
	h.respondSuccess(ctx, http.StatusOK, payload)
}

// @Summary Toggle maintenance mode
// @Tags areas
// @Router /api/v1/admin/maintenance [post]
func (h *AreaHandler) Maintenance(ctx *fasthttp.RequestCtx) {
	var req transport.MaintenanceRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.gate.SetMaintenance(stdCtx, req.Enabled); err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, transport.NewDecisionResponse(h.gate.Decision()))
}

// @Summary Realtime connection state
// @Tags connection
// @Router /api/v1/connection [get]
func (h *AreaHandler) Connection(ctx *fasthttp.RequestCtx) {
	if h.connection == nil {
		h.respondJSON(ctx, http.StatusNotFound, transport.NewError(string(domain.ErrCodeNotFound), "realtime disabled", nil))
		return
	}
	h.respondSuccess(ctx, http.StatusOK, h.connection.State())
}

// @Summary Retry the realtime connection after exhaustion
// @Tags connection
// @Router /api/v1/connection/reconnect [post]
func (h *AreaHandler) Reconnect(ctx *fasthttp.RequestCtx) {
	if h.connection == nil {
		h.respondJSON(ctx, http.StatusNotFound, transport.NewError(string(domain.ErrCodeNotFound), "realtime disabled", nil))
		return
	}
	h.connection.Reconnect()
	h.respondSuccess(ctx, http.StatusAccepted, h.connection.State())
}
