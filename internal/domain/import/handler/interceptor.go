package handler

import (
	"context"
	"log/slog"
	"time"

	"connectrpc.com/connect"
)

// NewLoggingInterceptor logs every unary call with its outcome.
func NewLoggingInterceptor(logger *slog.Logger) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			res, err := next(ctx, req)

			attrs := []any{
				"procedure", req.Spec().Procedure,
				"duration", time.Since(start),
			}
			if err != nil {
				code := connect.CodeOf(err)
				attrs = append(attrs, "code", code.String(), slog.Any("error", err))
				if code == connect.CodeInternal || code == connect.CodeUnknown {
					logger.Error("rpc failed", attrs...)
				} else {
					logger.Warn("rpc rejected", attrs...)
				}
				return res, err
			}
			logger.Info("rpc served", attrs...)
			return res, nil
		}
	}
}
