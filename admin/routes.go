package admin

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// NewRouter registers all admin API routes using chi router
func NewRouter(handlers *AdminHandlers) chi.Router {
	r := chi.NewRouter()
	r.Use(requestLogger)

	r.Get("/topology", handlers.handleTopology)
	r.Get("/votes", handlers.handleVotes)
	r.Get("/nodes/{name}/settings", handlers.handleNodeSettings)
	r.Get("/history", handlers.handleHistory)
	r.Get("/metrics", handlers.handleMetrics)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeErrorResponse(w, http.StatusNotFound, "no such endpoint")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "admin endpoints are read-only")
	})

	log.Debug().Msg("Admin endpoints registered")
	return r
}
