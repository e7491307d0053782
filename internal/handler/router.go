// Package handler assembles the HTTP surface of the service.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/alyahmadi/sakina/backend/internal/config"
	"github.com/alyahmadi/sakina/backend/internal/handler/session"
	"github.com/alyahmadi/sakina/backend/internal/handler/voice"
	middlewarePkg "github.com/alyahmadi/sakina/backend/internal/middleware"
	"github.com/alyahmadi/sakina/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(cfg *config.Config, sessionHandler *session.Handler, voiceHandler *voice.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(cfg.Server.AllowedOrigins))

	r.Route("/api", func(api chi.Router) {
		sessionHandler.RegisterRoutes(api)
		voiceHandler.RegisterRoutes(api)

		api.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
	})

	return r
}
