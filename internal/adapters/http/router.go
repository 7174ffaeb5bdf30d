package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/viralforge/mesh/services/financial-rails/M43-referral-commission-service/internal/application"
)

// Handler is the HTTP adapter entrypoint for referral use-cases.
// Keeping only application dependency here preserves clean adapter boundaries.
type Handler struct {
	service *application.Service
}

// NewHandler constructs an HTTP handler bound to application service.
func NewHandler(service *application.Service) *Handler {
	return &Handler{service: service}
}

// NewRouter registers M43 HTTP routes and middleware stack.
// Centralizing routes here keeps error behavior consistent across endpoints.
func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)

	r.Get("/healthz", handler.healthz)
	r.Get("/readyz", handler.readyz)

	r.Route("/api", func(r chi.Router) {
		r.Get("/users", handler.listUsers)
		r.Get("/users/{user_id}", handler.getUser)

		r.Route("/referral", func(r chi.Router) {
			r.Post("/register", handler.register)
			r.Post("/generate", handler.generateCode)
			r.Get("/network", handler.network)
			r.Get("/earnings", handler.earnings)
			r.Post("/claim", handler.claim)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Get("/users/{user_id}/commission-profile", handler.getCommissionProfile)
			r.Put("/users/{user_id}/commission-profile", handler.updateCommissionProfile)
		})

		r.Route("/webhook", func(r chi.Router) {
			r.Post("/trade", handler.tradeWebhook)
			r.Get("/trade/{job_id}", handler.tradeJobStatus)
		})
	})

	return r
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusOK, "ok")
}

func (h *Handler) readyz(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusOK, "ready")
}
