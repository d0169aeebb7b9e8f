package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

type RouterConfig struct {
	ActionSecret       string
	ActionAuthDisabled bool
}

// httpLogger is a middleware that logs HTTP requests using slog.
func httpLogger(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			requestID := chiMiddleware.GetReqID(r.Context())
			remoteIP := r.RemoteAddr

			next.ServeHTTP(ww, r)

			logger.LogAttrs(r.Context(), slog.LevelInfo, "HTTP request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status_code", ww.Status()),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()),
				slog.String("request_id", requestID),
				slog.String("remote_ip", remoteIP),
			)
		}
		return http.HandlerFunc(fn)
	}
}

// NewRouter wires the action and webhook routes. The webhook route is authenticated
// by its signature and is not behind the action secret.
func NewRouter(cfg RouterConfig, actions *ActionHandler, webhooks *WebhookHandler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(httpLogger(logger))
	r.Use(PrometheusMetricsMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Group(func(r chi.Router) {
		r.Use(ActionAuthMiddleware(cfg.ActionSecret, cfg.ActionAuthDisabled, logger))
		r.Post("/create-payment", actions.CreatePayment)
		r.Post("/setup-autopay", actions.SetupAutopay)
	})
	r.Post("/stripe-webhook", webhooks.HandleStripeWebhook)

	return r
}
