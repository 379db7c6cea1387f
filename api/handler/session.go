package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/storefront-guard/api/transport"
	"github.com/fastygo/storefront-guard/domain"
	"github.com/fastygo/storefront-guard/pkg/httpcontext"
	appLogger "github.com/fastygo/storefront-guard/pkg/logger"
	"github.com/fastygo/storefront-guard/usecase/access"
)

// SessionHandler exposes the local session and the access decision to the UI layer.
type SessionHandler struct {
	baseHandler
	gate *access.Gate
}

func NewSessionHandler(gate *access.Gate, adapter *httpcontext.Adapter, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		baseHandler: newBaseHandler(adapter, logger),
		gate:        gate,
	}
}

// @Summary Current session and access decision
// @Tags session
// @Router /api/v1/session [get]
func (h *SessionHandler) Get(ctx *fasthttp.RequestCtx) {
	h.respondSuccess(ctx, http.StatusOK, h.snapshot())
}

// @Summary Store a token pair issued by the backend
// @Tags session
// @Router /api/v1/session/login [post]
func (h *SessionHandler) Login(ctx *fasthttp.RequestCtx) {
	var req transport.LoginRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	pair := domain.TokenPair{AccessToken: req.AccessToken, RefreshToken: req.RefreshToken}
	if _, err := h.gate.Login(stdCtx, pair, nil); err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	appLogger.WithRequestID(stdCtx, h.logger).Info("signed in", zap.String("decision", string(h.gate.Decision())))
	h.respondSuccess(ctx, http.StatusCreated, h.snapshot())
}

// @Summary Refresh the token and renew the session window
// @Tags session
// @Router /api/v1/session/extend [post]
func (h *SessionHandler) Extend(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.gate.ExtendSession(stdCtx); err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, h.snapshot())
}

// @Summary Record user activity
// @Tags session
// @Router /api/v1/session/activity [post]
func (h *SessionHandler) Activity(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.gate.Touch(stdCtx); err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, h.snapshot())
}

// @Summary Sign out locally and on the backend
// @Tags session
// @Router /api/v1/session/logout [post]
func (h *SessionHandler) Logout(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.gate.Logout(stdCtx); err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, transport.NewDecisionResponse(h.gate.Decision()))
}

// @Summary Lock the signed-in account until a point in time
// @Tags session
// @Router /api/v1/session/lock [post]
func (h *SessionHandler) Lock(ctx *fasthttp.RequestCtx) {
	var req transport.LockRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.gate.Lock(stdCtx, req.Until); err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, transport.NewDecisionResponse(h.gate.Decision()))
}

func (h *SessionHandler) snapshot() transport.SessionResponse {
	mon := h.gate.Session()
	sess := mon.Session()
	resp := transport.SessionResponse{
		Decision: transport.NewDecisionResponse(h.gate.Decision()),
		State:    "none",
	}
	user := h.gate.User()
	if user == nil {
		return resp
	}
	resp.State = mon.State().String()
	resp.ExpiresAt = sess.ExpiresAt
	resp.LastActivity = sess.LastActivity
	resp.SecondsToExpiry = int64(mon.TimeUntilExpiry().Seconds())
	resp.UserID = user.ID
	resp.Role = user.Role
	return resp
}
