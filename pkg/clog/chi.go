package clog

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type chiConfig struct {
	Filter func(r *http.Request) bool
}

type ChiOption interface {
	apply(*chiConfig)
}

type chiOptionFunc func(*chiConfig)

func (o chiOptionFunc) apply(c *chiConfig) {
	o(c)
}

// WithChiFilter skips the access log line for requests where filter returns false.
func WithChiFilter(filter func(r *http.Request) bool) ChiOption {
	return chiOptionFunc(func(cfg *chiConfig) {
		cfg.Filter = filter
	})
}

func DefaultChiHealthCheckFilter(r *http.Request) bool {
	return !strings.HasSuffix(r.URL.Path, "/health")
}

// SlogChiMiddleware writes one access log line per request. The attribute
// bag it opens is shared with the handler, so anything the handler adds
// (user, building, error) lands on the same line. Mount it after
// middleware.RequestID to get request_id.
func SlogChiMiddleware(opts ...ChiOption) func(http.Handler) http.Handler {
	var cfg chiConfig
	for _, opt := range opts {
		opt.apply(&cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := ContextWithSlog(r.Context())
			attrs := map[string]any{
				"method": r.Method,
				"path":   r.URL.Path,
				"remote": r.RemoteAddr,
			}
			if id := middleware.GetReqID(ctx); id != "" {
				attrs["request_id"] = id
			}
			AddAttributes(ctx, attrs)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))
			if cfg.Filter != nil && !cfg.Filter(r) {
				return
			}

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			done := map[string]any{
				"status":   status,
				"bytes":    ww.BytesWritten(),
				"duration": time.Since(start),
			}
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				done["route"] = rctx.RoutePattern()
			}
			AddAttributes(ctx, done)
			slog.Log(ctx, HTTPStatusToLevel(status).Slog(), http.StatusText(status))
		})
	}
}
