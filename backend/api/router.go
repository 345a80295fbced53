// Package api provides the REST API for windowtrader.
// It includes routing, handlers, and middleware.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/marcusklein/windowtrader/backend/config"
	"github.com/marcusklein/windowtrader/backend/execution"
	"github.com/marcusklein/windowtrader/backend/machine"
	"github.com/marcusklein/windowtrader/backend/markethours"
	"github.com/marcusklein/windowtrader/backend/metrics"
	"github.com/marcusklein/windowtrader/backend/notifications"
	"github.com/marcusklein/windowtrader/backend/realtime"
	"github.com/marcusklein/windowtrader/backend/signals"
	"github.com/marcusklein/windowtrader/backend/tracing"
)

// NewRouter creates and configures the main HTTP router. There is no
// AuthMiddleware here — spec.md places authentication/token storage
// explicitly out of scope; AuditMiddleware still records the caller's IP
// and a hash of whatever API key is presented, for audit trails alone.
func NewRouter(
	cfg *config.Config,
	registry *machine.Registry,
	router *signals.Router,
	broker *execution.PaperBroker,
	orderManager *execution.OrderManager,
	wsManager *realtime.WebSocketManager,
	notificationManager *notifications.Manager,
	gate *markethours.Gate,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(TraceMiddleware)
	r.Use(middleware.RealIP)
	r.Use(zerologLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Rate limiting - prevent abuse.
	r.Use(httprate.LimitByIP(100, 1*time.Minute))
	r.Use(httprate.LimitByIP(20, 1*time.Second))

	// Request body size limit - prevent memory exhaustion attacks.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, 1048576)
			next.ServeHTTP(w, r)
		})
	})

	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			w.Header().Set("Content-Security-Policy", "default-src 'self'")
			next.ServeHTTP(w, r)
		})
	})

	r.Use(newCORSMiddleware(cfg))

	h := NewHandler(cfg, registry, router, broker, orderManager, wsManager, notificationManager, gate)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"service": "windowtrader-api",
			"version": "1.0.0",
			"status":  "running",
		})
	})

	if wsManager != nil {
		r.Get("/ws", wsManager.HandleWebSocket)
	}

	r.Get("/health", h.HealthHandler)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(AuditMiddleware)

		r.Post("/signals", h.SubmitSignalHandler)

		r.Route("/execution", func(r chi.Router) {
			r.Get("/orders", h.GetOrdersHandler)
			r.Get("/orders/{id}", h.GetOrderHandler)
			r.Get("/trades", h.GetTradesHandler)
			r.Get("/positions", h.GetPositionsHandler)
			r.Get("/balance", h.GetBalanceHandler)
			r.Get("/pnl", h.GetPnlHandler)
		})

		r.Get("/machines", h.GetMachinesHandler)

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", h.GetNotificationsHandler)
			r.Put("/read-all", h.MarkAllNotificationsReadHandler)
			r.Put("/{id}/read", h.MarkNotificationReadHandler)
		})

		r.Get("/system/metrics", h.RuntimeMetricsHandler)

		r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{
				"mode":   "paper",
				"status": "active",
			})
		})
	})

	return r
}

// zerologLogger is middleware that logs requests using zerolog. Includes
// the trace_id from context for request correlation.
func zerologLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logger := tracing.Logger(r.Context())
		logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request completed")
	})
}

// newCORSMiddleware creates CORS middleware with origin whitelisting.
func newCORSMiddleware(cfg *config.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allowed := false
			for _, allowedOrigin := range cfg.AllowedOrigins {
				if origin == allowedOrigin {
					allowed = true
					break
				}
			}

			if allowed {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, PATCH, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Windowtrader-API-Key")
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Access-Control-Max-Age", "3600")
			}

			if r.Method == "OPTIONS" {
				if allowed {
					w.WriteHeader(http.StatusOK)
				} else {
					w.WriteHeader(http.StatusForbidden)
				}
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
