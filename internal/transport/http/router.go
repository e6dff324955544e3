package http

import (
	"log/slog"
	"net/http"
	"time"

	"battle-arena/internal/app"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter wires the duel API, the live view and the health endpoint.
func NewRouter(service *app.DuelService, logger *slog.Logger, checks map[string]Checker) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	duels := NewDuelHandler(service, logger)
	ws := NewWSHandler(service, logger)

	r.Get("/healthz", handleHealth(logger, checks))
	r.Get("/ws", ws.ServeWS)
	r.Get("/subjects", duels.subjects)

	r.Route("/duels", func(r chi.Router) {
		r.Post("/", duels.create)
		r.Route("/{duelID}", func(r chi.Router) {
			r.Get("/", duels.get)
			r.Post("/accept", duels.accept)
			r.Post("/decline", duels.decline)
			r.Post("/answers", duels.submit)
			r.Get("/questions", duels.questions)
		})
	})
	r.Route("/accounts/{accountID}", func(r chi.Router) {
		r.Get("/duels", duels.list)
		r.Get("/pending-count", duels.pendingCount)
		r.Get("/opponents", duels.opponents)
	})
	return r
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"duration", time.Since(start),
					"request_id", middleware.GetReqID(r.Context()),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
