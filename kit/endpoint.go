// Package kit holds the transport-neutral endpoint plumbing shared by
// domscribe's exposed surfaces. An Endpoint is the unit of work; transports
// (MCP, CLI) adapt their wire formats onto it, and middleware composes
// cross-cutting concerns without touching handler code.
package kit

import (
	"context"
	"log/slog"
	"time"
)

// Endpoint is a single request/response interaction.
type Endpoint func(ctx context.Context, req any) (any, error)

// Middleware wraps an Endpoint with additional behaviour.
type Middleware func(Endpoint) Endpoint

// Chain composes middlewares left to right: the first middleware is the
// outermost. Chain(a, b, c)(e) runs a(b(c(e))).
func Chain(mws ...Middleware) Middleware {
	return func(next Endpoint) Endpoint {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}

// Logging returns a Middleware that records each call's name, transport,
// request ID, duration and outcome on logger.
func Logging(name string, logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Endpoint) Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			attrs := []any{
				"endpoint", name,
				"transport", GetTransport(ctx),
				"request_id", GetRequestID(ctx),
				"duration_ms", time.Since(start).Milliseconds(),
			}
			if err != nil {
				logger.Warn("kit: endpoint failed", append(attrs, "error", err)...)
				return resp, err
			}
			logger.Debug("kit: endpoint ok", attrs...)
			return resp, nil
		}
	}
}
