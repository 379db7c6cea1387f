package router

import (
	"github.com/fasthttp/router"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	apiHandler "github.com/fastygo/storefront-guard/api/handler"
)

type Handlers struct {
	Health  *apiHandler.HealthHandler
	Session *apiHandler.SessionHandler
	Area    *apiHandler.AreaHandler
}

// Guards wrap the protected and admin routes.
type Guards struct {
	Protected func(fasthttp.RequestHandler) fasthttp.RequestHandler
	Admin     func(fasthttp.RequestHandler) fasthttp.RequestHandler
}

// New registers the status API. A nil gatherer leaves /metrics unrouted.
func New(handlers Handlers, guards Guards, gatherer prometheus.Gatherer) *router.Router {
	r := router.New()

	r.GET("/health", handlers.Health.Check)
	if gatherer != nil {
		r.GET("/metrics", fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	// Session routes
	r.GET("/api/v1/session", handlers.Session.Get)
	r.POST("/api/v1/session/login", handlers.Session.Login)
	r.POST("/api/v1/session/extend", handlers.Session.Extend)
	r.POST("/api/v1/session/activity", handlers.Session.Activity)
	r.POST("/api/v1/session/logout", handlers.Session.Logout)
	r.POST("/api/v1/session/lock", guards.Protected(handlers.Session.Lock))

	// Realtime connection
	r.GET("/api/v1/connection", handlers.Area.Connection)
	r.POST("/api/v1/connection/reconnect", handlers.Area.Reconnect)

	// Guarded areas
	r.GET("/api/v1/account", guards.Protected(handlers.Area.Account))
	r.GET("/api/v1/admin/overview", guards.Admin(handlers.Area.Overview))
	r.POST("/api/v1/admin/maintenance", guards.Admin(handlers.Area.Maintenance))

	return r
}
