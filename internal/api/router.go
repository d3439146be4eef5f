package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter wires the handlers into a chi router with the standard
// middleware stack.
func NewRouter(h *Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	// Runs are synchronous and walk listings with polite delays, so the
	// request timeout has to accommodate a full pass.
	r.Use(middleware.Timeout(10 * time.Minute))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://localhost:*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/runs", h.TriggerRun)

		r.Get("/products", h.ListProducts)

		r.Route("/listings/{listingID}", func(r chi.Router) {
			r.Get("/", h.GetListing)
			r.Get("/observations", h.ListObservations)
			r.Patch("/", h.SetListingActive)
		})

		r.Route("/retailers", func(r chi.Router) {
			r.Get("/", h.ListRetailers)
			r.Post("/", h.UpsertRetailer)
			r.Post("/seed", h.SeedRetailers)
		})
	})

	return r
}
