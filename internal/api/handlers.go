// Package api exposes the price tracker over HTTP: triggering runs,
// browsing the catalog and price history, and managing retailers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/navintel/pricewatch/internal/database"
	"github.com/navintel/pricewatch/internal/models"
)

// Runner triggers one batch scrape pass.
type Runner interface {
	Run(ctx context.Context) (*models.RunSummary, error)
}

// Store is the subset of the database layer the API needs.
type Store interface {
	ListProducts(ctx context.Context) ([]*models.Product, error)
	ListRetailers(ctx context.Context) ([]*models.Retailer, error)
	UpsertRetailer(ctx context.Context, r *models.Retailer) error
	SeedRetailers(ctx context.Context) error
	GetListing(ctx context.Context, id int64) (*models.Listing, error)
	SetListingActive(ctx context.Context, id int64, active bool) error
	ListObservations(ctx context.Context, listingID int64, limit int) ([]*models.PriceObservation, error)
}

type Handlers struct {
	store  Store
	runner Runner
	logger *slog.Logger
}

func NewHandlers(store Store, runner Runner, logger *slog.Logger) *Handlers {
	return &Handlers{
		store:  store,
		runner: runner,
		logger: logger.With("component", "api"),
	}
}

// RunResponse reports one triggered run.
type RunResponse struct {
	RunID           string         `json:"run_id"`
	Outcome         models.Outcome `json:"outcome"`
	Attempted       int            `json:"attempted"`
	Created         int            `json:"created"`
	FailedRetailers []string       `json:"failed_retailers"`
}

// TriggerRun starts a batch pass over the active listings. The pass is
// synchronous: the response carries the finished run's outcome.
func (h *Handlers) TriggerRun(w http.ResponseWriter, r *http.Request) {
	summary, err := h.runner.Run(r.Context())
	if err != nil {
		h.logger.Error("run failed", "error", err)
		h.respondError(w, http.StatusInternalServerError, "run failed")
		return
	}

	h.respondJSON(w, http.StatusOK, RunResponse{
		RunID:           summary.RunID,
		Outcome:         summary.Classify(),
		Attempted:       summary.Attempted,
		Created:         summary.Created,
		FailedRetailers: summary.FailedRetailers,
	})
}

// ListProducts returns the catalog.
func (h *Handlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.store.ListProducts(r.Context())
	if err != nil {
		h.logger.Error("failed to list products", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list products")
		return
	}
	h.respondJSON(w, http.StatusOK, products)
}

// GetListing returns one listing with its product and retailer.
func (h *Handlers) GetListing(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "listingID"), 10, 64)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid listing ID")
		return
	}

	listing, err := h.store.GetListing(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		h.respondError(w, http.StatusNotFound, "listing not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to get listing", "listing_id", id, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to get listing")
		return
	}
	h.respondJSON(w, http.StatusOK, listing)
}

// ListObservations returns a listing's price history, newest first.
func (h *Handlers) ListObservations(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "listingID"), 10, 64)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid listing ID")
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}

	observations, err := h.store.ListObservations(r.Context(), id, limit)
	if err != nil {
		h.logger.Error("failed to list observations", "listing_id", id, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list observations")
		return
	}
	h.respondJSON(w, http.StatusOK, observations)
}

// SetListingActive flips a listing in or out of the scrape rotation.
func (h *Handlers) SetListingActive(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "listingID"), 10, 64)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid listing ID")
		return
	}

	var req struct {
		Active *bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Active == nil {
		h.respondError(w, http.StatusBadRequest, "active is required")
		return
	}

	if err := h.store.SetListingActive(r.Context(), id, *req.Active); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			h.respondError(w, http.StatusNotFound, "listing not found")
			return
		}
		h.logger.Error("failed to update listing", "listing_id", id, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to update listing")
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]bool{"active": *req.Active})
}

// ListRetailers returns all retailers with their rulesets.
func (h *Handlers) ListRetailers(w http.ResponseWriter, r *http.Request) {
	retailers, err := h.store.ListRetailers(r.Context())
	if err != nil {
		h.logger.Error("failed to list retailers", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list retailers")
		return
	}
	h.respondJSON(w, http.StatusOK, retailers)
}

// UpsertRetailer creates or updates a retailer and its selectors.
func (h *Handlers) UpsertRetailer(w http.ResponseWriter, r *http.Request) {
	var retailer models.Retailer
	if err := json.NewDecoder(r.Body).Decode(&retailer); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if retailer.Name == "" || retailer.BaseURL == "" {
		h.respondError(w, http.StatusBadRequest, "name and base_url are required")
		return
	}

	if err := h.store.UpsertRetailer(r.Context(), &retailer); err != nil {
		h.logger.Error("failed to upsert retailer", "retailer", retailer.Name, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to upsert retailer")
		return
	}
	h.respondJSON(w, http.StatusOK, retailer)
}

// SeedRetailers installs the default retailer set.
func (h *Handlers) SeedRetailers(w http.ResponseWriter, r *http.Request) {
	if err := h.store.SeedRetailers(r.Context()); err != nil {
		h.logger.Error("failed to seed retailers", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to seed retailers")
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "seeded"})
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
