package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/photo-moments/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	momentsHandler := handlers.NewMomentsHandler(s.store)
	assetsHandler := handlers.NewAssetsHandler(s.store)
	statsHandler := handlers.NewStatsHandler(s.store)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handlers.HealthCheck)
		r.Get("/stats", statsHandler.Get)

		r.Get("/moments", momentsHandler.List)
		r.Get("/moments/{id}", momentsHandler.Get)

		r.Get("/assets/{id}", assetsHandler.Get)
	})

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"not found"}` + "\n"))
	})
}
