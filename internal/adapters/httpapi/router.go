package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/mikey/phishing-detector/internal/metrics"
)

// NewRouter wires the handler's routes behind the shared middleware stack
func NewRouter(h *Handler, recorder *metrics.Recorder, logger *zap.Logger) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger, recorder))
	r.Use(allowAllOrigins)
	r.Use(recoverer(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Post("/get-messages/", h.GetMessages)
	r.Post("/get-messages", h.GetMessages)
	r.Post("/check_emails", h.CheckEmail)
	r.Post("/check-phishing", h.CheckEmail)
	r.Get("/health", h.Health)
	r.Method(http.MethodGet, "/metrics", recorder.Handler())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	return r
}
