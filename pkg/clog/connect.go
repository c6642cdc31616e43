package clog

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"connectrpc.com/connect"
)

type connectConfig struct {
	Filter func(spec connect.Spec, err error) bool
}

type ConnectOption interface {
	apply(*connectConfig)
}

type connectOptionFunc func(*connectConfig)

func (o connectOptionFunc) apply(c *connectConfig) {
	o(c)
}

// WithConnectFilter skips logging for calls where filter returns false.
func WithConnectFilter(filter func(spec connect.Spec, err error) bool) ConnectOption {
	return connectOptionFunc(func(cfg *connectConfig) {
		cfg.Filter = filter
	})
}

// FailedHealthCheckFilter logs health checks only when they fail.
func FailedHealthCheckFilter(spec connect.Spec, err error) bool {
	return spec.Procedure != "/grpc.health.v1.Health/Check" || err != nil
}

func NewSlogConnectUnaryInterceptor(opts ...ConnectOption) connect.UnaryInterceptorFunc {
	var cfg connectConfig
	for _, opt := range opts {
		opt.apply(&cfg)
	}

	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			ctx = ContextWithSlog(ctx)
			AddAttributes(ctx, map[string]any{
				"method":    req.HTTPMethod(),
				"procedure": req.Spec().Procedure,
			})

			resp, err := next(ctx, req)
			if cfg.Filter != nil && !cfg.Filter(req.Spec(), err) {
				return resp, err
			}

			if err == nil {
				AddAttributes(ctx, map[string]any{"code": "ok", "duration": time.Since(start)})
				slog.InfoContext(ctx, "Finished")
				return resp, nil
			}
			var connectErr *connect.Error
			if !errors.As(err, &connectErr) {
				connectErr = connect.NewError(connect.CodeUnknown, err)
			}
			AddAttributes(ctx, map[string]any{"code": connectErr.Code().String(), "duration": time.Since(start)})
			slog.Log(ctx, ConnectCodeToLevel(connectErr.Code()).Slog(), connectErr.Message())
			return resp, err
		}
	}
}
