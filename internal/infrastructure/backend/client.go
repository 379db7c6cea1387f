// Package backend calls the storefront backend's auth endpoints over fasthttp.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/storefront-guard/api/transport"
	"github.com/fastygo/storefront-guard/domain"
	"github.com/fastygo/storefront-guard/internal/config"
	"github.com/fastygo/storefront-guard/usecase"
)

const (
	pathRefresh     = "/api/v1/auth/refresh"
	pathLogout      = "/api/v1/auth/logout"
	pathSession     = "/api/v1/auth/session"
	pathPermissions = "/api/v1/auth/permissions"
)

// Doer sends one request. *fasthttp.Client satisfies it.
type Doer interface {
	DoDeadline(req *fasthttp.Request, resp *fasthttp.Response, deadline time.Time) error
}

// TokenSource returns the bearer token for authenticated calls; empty means none.
type TokenSource func(ctx context.Context) string

type Client struct {
	baseURL string
	timeout time.Duration
	doer    Doer
	token   TokenSource
	logger  *zap.Logger
}

func NewClient(cfg config.BackendConfig, doer Doer, token TokenSource, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if doer == nil {
		doer = &fasthttp.Client{
			Name:         "storefront-guard",
			ReadTimeout:  cfg.Timeout,
			WriteTimeout: cfg.Timeout,
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		timeout: cfg.Timeout,
		doer:    doer,
		token:   token,
		logger:  logger.Named("backend"),
	}
}

// Refresh exchanges a refresh token for a new pair.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	var out transport.TokenPairResponse
	status, err := c.call(ctx, fasthttp.MethodPost, pathRefresh, false,
		transport.RefreshRequest{RefreshToken: refreshToken}, &out)
	if err != nil {
		return domain.TokenPair{}, err
	}
	if status != http.StatusOK || out.AccessToken == "" {
		return domain.TokenPair{}, domain.WrapError(domain.ErrCodeUnauthorized, domain.ErrRefreshFailed.Message,
			fmt.Errorf("backend answered %d", status))
	}
	return domain.TokenPair{AccessToken: out.AccessToken, RefreshToken: out.RefreshToken}, nil
}

// Logout revokes the current session on the backend.
func (c *Client) Logout(ctx context.Context) error {
	status, err := c.call(ctx, fasthttp.MethodPost, pathLogout, true, nil, nil)
	if err != nil {
		return err
	}
	if status >= http.StatusBadRequest && status != http.StatusUnauthorized {
		return fmt.Errorf("logout: backend answered %d", status)
	}
	return nil
}

// CheckSession reports whether the backend still honours the session.
// A 401 is a definite no, not an error.
func (c *Client) CheckSession(ctx context.Context) (bool, error) {
	var out transport.SessionCheckResponse
	status, err := c.call(ctx, fasthttp.MethodGet, pathSession, true, nil, &out)
	if err != nil {
		return false, err
	}
	switch {
	case status == http.StatusUnauthorized:
		return false, nil
	case status != http.StatusOK:
		return false, fmt.Errorf("session check: backend answered %d", status)
	}
	return out.Valid, nil
}

// CheckPermissions asks the backend whether user satisfies the roles and permissions.
// A 403 is a definite no, not an error.
func (c *Client) CheckPermissions(ctx context.Context, user *domain.User, roles, permissions []string) (bool, error) {
	req := transport.PermissionCheckRequest{Roles: roles, Permissions: permissions}
	if user != nil {
		req.UserID = user.ID
	}
	var out transport.PermissionCheckResponse
	status, err := c.call(ctx, fasthttp.MethodPost, pathPermissions, true, req, &out)
	if err != nil {
		return false, err
	}
	switch {
	case status == http.StatusForbidden:
		return false, nil
	case status != http.StatusOK:
		return false, domain.WrapError(domain.ErrCodeUnavailable, domain.ErrPermissionCheck.Message,
			fmt.Errorf("backend answered %d", status))
	}
	return out.Allowed, nil
}

// Register exposes the client on the dispatcher.
func (c *Client) Register(d *usecase.Dispatcher) {
	d.RegisterCommand(usecase.CommandAuthRefresh, func(ctx context.Context, payload interface{}) (interface{}, error) {
		refreshToken, ok := payload.(string)
		if !ok {
			return nil, domain.ErrInvalidPayload
		}
		return c.Refresh(ctx, refreshToken)
	})
	d.RegisterCommand(usecase.CommandAuthLogout, func(ctx context.Context, _ interface{}) (interface{}, error) {
		return nil, c.Logout(ctx)
	})
	d.RegisterQuery(usecase.QueryAuthSession, func(ctx context.Context, _ interface{}) (interface{}, error) {
		return c.CheckSession(ctx)
	})
	d.RegisterQuery(usecase.QueryAuthPermissions, func(ctx context.Context, params interface{}) (interface{}, error) {
		q, ok := params.(usecase.PermissionQuery)
		if !ok {
			return nil, domain.ErrInvalidPayload
		}
		return c.CheckPermissions(ctx, q.User, q.Roles, q.Permissions)
	})
}

// call sends a JSON request and decodes the envelope's data into out.
// Transport failures return an error; HTTP statuses are returned for the caller to judge.
func (c *Client) call(ctx context.Context, method, path string, authorized bool, body, out interface{}) (int, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + path)
	req.Header.SetMethod(method)
	req.Header.Set(fasthttp.HeaderAccept, "application/json")
	if authorized && c.token != nil {
		if tok := c.token(ctx); tok != "" {
			req.Header.Set(fasthttp.HeaderAuthorization, "Bearer "+tok)
		}
	}
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		req.Header.SetContentType("application/json")
		req.SetBody(payload)
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	start := time.Now()
	if err := c.doer.DoDeadline(req, resp, deadline); err != nil {
		c.logger.Warn("backend call failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return 0, domain.WrapError(domain.ErrCodeUnavailable, "backend unavailable", err)
	}
	status := resp.StatusCode()
	c.logger.Debug("backend call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", status),
		zap.Duration("took", time.Since(start)))

	if out != nil && status == http.StatusOK && len(resp.Body()) > 0 {
		var env struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(resp.Body(), &env); err != nil || len(env.Data) == 0 {
			return status, domain.WrapError(domain.ErrCodeInvalid, "malformed backend response", err)
		}
		if err := json.Unmarshal(env.Data, out); err != nil {
			return status, domain.WrapError(domain.ErrCodeInvalid, "malformed backend response", err)
		}
	}
	return status, nil
}
