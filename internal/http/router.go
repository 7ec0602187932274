package httpapi

import (
	"net/http"
	"time"

	"resto-ops-services/internal/chat"
	"resto-ops-services/internal/config"
	"resto-ops-services/internal/http/handlers"
	"resto-ops-services/internal/metrics"
	"resto-ops-services/internal/middleware"
	"resto-ops-services/internal/queue"
	"resto-ops-services/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

func NewRouter(repo store.Repository, logger *zap.Logger, cfg config.Config, queueClient *queue.Client, machine *chat.Machine, chatClient *chat.Client) http.Handler {
	h := &handlers.Handler{Repo: repo, Logger: logger, Config: cfg, Chat: machine, ChatClient: chatClient}
	if queueClient != nil {
		h.Queue = queueClient
	}
	return Routes(h, cfg)
}

// Routes mounts every endpoint on a fresh router for h.
func Routes(h *handlers.Handler, cfg config.Config) http.Handler {
	r := chi.NewRouter()
	r.Use(requestLogger(h.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Telemetry(h.Logger))
	r.Use(metrics.Middleware)

	if cfg.Env == "development" || len(cfg.CorsAllowedOrigins) > 0 {
		options := cors.Options{
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{
				"Accept",
				"Authorization",
				"Content-Type",
				"X-Requested-With",
				"X-Request-Id",
				"Cache-Control",
			},
			ExposedHeaders:   []string{middleware.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           300,
		}

		if cfg.Env == "development" {
			options.AllowOriginFunc = func(_ *http.Request, origin string) bool {
				return true
			}
		} else {
			options.AllowedOrigins = cfg.CorsAllowedOrigins
		}

		r.Use(cors.Handler(options))
	}

	r.Get("/health", h.Health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/chat", func(r chi.Router) {
			r.Use(setResponseHeader("Cache-Control", "no-store"))
			r.Get("/levels", h.PublicChatLevels)
			r.Post("/validate", h.PublicChatValidate)
			r.Post("/sessions", h.PublicChatSessionCreate)
			r.Get("/sessions/{sessionId}", h.PublicChatSessionGet)
			r.Post("/sessions/{sessionId}/messages", h.PublicChatSessionMessage)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.StaffAuth(cfg.JWTSecret))

			r.Post("/orders", h.StaffOrderCreate)
			r.Get("/orders/{orderId}", h.StaffOrderGet)
			r.Patch("/orders/{orderId}/status", h.StaffOrderUpdateStatus)
			r.Patch("/orders/{orderId}/items/{itemId}/status", h.StaffOrderItemUpdateStatus)

			r.Get("/tables", h.StaffTablesList)
			r.Post("/tables/{tableId}/occupy", h.StaffTableOccupy)
			r.Post("/tables/{tableId}/release", h.StaffTableRelease)
			r.Post("/tables/{tableId}/cleaning", h.StaffTableCleaning)
			r.Post("/tables/{tableId}/available", h.StaffTableAvailable)
			r.Post("/tables/{tableId}/hold", h.StaffTableHold)

			r.Post("/reservations", h.StaffReservationCreate)
			r.Get("/reservations/{reservationId}", h.StaffReservationGet)
			r.Post("/reservations/{reservationId}/confirm", h.StaffReservationConfirm)
			r.Post("/reservations/{reservationId}/reject", h.StaffReservationReject)
			r.Post("/reservations/{reservationId}/activate", h.StaffReservationActivate)
			r.Post("/reservations/{reservationId}/complete", h.StaffReservationComplete)
			r.Post("/reservations/{reservationId}/no-show", h.StaffReservationNoShow)
		})
	})

	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("duration", time.Since(start)),
				zap.String("requestId", r.Header.Get(middleware.RequestIDHeader)),
			)
		})
	}
}

func setResponseHeader(name string, value string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set(name, value)
			next.ServeHTTP(w, r)
		})
	}
}
