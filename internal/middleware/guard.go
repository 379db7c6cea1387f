package middleware

import (
	"context"
	"encoding/json"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/storefront-guard/api/transport"
	"github.com/fastygo/storefront-guard/domain"
	"github.com/fastygo/storefront-guard/pkg/httpcontext"
	appLogger "github.com/fastygo/storefront-guard/pkg/logger"
	"github.com/fastygo/storefront-guard/usecase/access"
)

var marshal = json.Marshal

// DecisionKey is the user value holding the decision that let a request through.
const DecisionKey = "access_decision"

// Evaluator decides a requirement set against the current facts.
type Evaluator interface {
	Evaluate(ctx context.Context, req access.Requirements) domain.Decision
}

// Guard admits a request only when req evaluates to authenticated and
// answers every other decision with its HTTP status and recovery affordance.
func Guard(ev Evaluator, req access.Requirements, adapter *httpcontext.Adapter, logger *zap.Logger) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	if adapter == nil {
		adapter = httpcontext.NewAdapter(context.Background(), 0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			stdCtx, cancel := adapter.Attach(ctx)
			decision := ev.Evaluate(stdCtx, req)
			cancel()

			if decision.Allowed() {
				ctx.SetUserValue(DecisionKey, decision)
				next(ctx)
				return
			}

			log := appLogger.WithRequestID(stdCtx, logger)
			log.Info("request denied",
				zap.String("path", string(ctx.Path())),
				zap.String("decision", string(decision)))

			status := transport.DecisionStatus(decision)
			body, err := marshal(transport.NewDenied(decision))
			if err != nil {
				log.Error("failed to encode denial", zap.Error(err))
				ctx.Error(transport.DeniedCode(decision), status)
				return
			}
			ctx.Response.Header.SetContentType("application/json")
			ctx.SetStatusCode(status)
			ctx.SetBody(body)
		}
	}
}
