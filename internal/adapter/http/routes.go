package http

import (
	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/experiences", h.CollectExperience)
		r.Post("/experiences/batch", h.CollectBatch)
		r.Get("/experiences", h.ListExperiences)
		r.Delete("/experiences", h.ClearExperiences)
		r.Get("/statistics", h.GetStatistics)
		r.Post("/export", h.ExportExperiences)
	})
}
