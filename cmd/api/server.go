package main

import (
	"net/http"

	"connectrpc.com/connect"
	connectcors "connectrpc.com/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	importhandler "github.com/FACorreiaa/echo-ingest/internal/domain/import/handler"
)

// newServer builds the HTTP handler: the import procedures behind rate
// limiting and CORS, plus health and metrics endpoints.
func newServer(d *Dependencies) http.Handler {
	mux := http.NewServeMux()

	path, h := d.ImportHandler.Handler(
		connect.WithInterceptors(importhandler.NewLoggingInterceptor(d.Logger)),
		connect.WithReadMaxBytes(int(d.Config.Server.MaxUploadBytes)),
	)
	limiter := rate.NewLimiter(rate.Limit(d.Config.Server.RateLimitPerSecond), d.Config.Server.RateLimitBurst)
	mux.Handle(path, rateLimit(limiter, h))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if d.Config.Observability.MetricsEnabled {
		mux.Handle("GET /metrics", metricsHandler(d.Registry))
	}

	return withCORS(d.Config.Server.AllowedOrigins, mux)
}

// rateLimit rejects requests once the shared limiter is exhausted.
func rateLimit(limiter *rate.Limiter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withCORS allows the review UI origins to call Connect procedures.
func withCORS(origins []string, h http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: connectcors.AllowedMethods(),
		AllowedHeaders: connectcors.AllowedHeaders(),
		ExposedHeaders: connectcors.ExposedHeaders(),
		MaxAge:         7200,
	}).Handler(h)
}

func metricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
