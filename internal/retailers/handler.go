// Package retailers routes listings to retailer-specific extraction
// handlers, falling back to the generic ruleset path when a handler
// fails or no handler is registered for the listing's domain.
package retailers

import (
	"context"
	"errors"
	"sort"

	"github.com/navintel/pricewatch/internal/models"
)

var (
	// ErrNoPrice means the page was fetched but carried no pricing signal.
	ErrNoPrice = errors.New("no pricing signal found")
	// ErrNotFound means the handler could not locate the product at all.
	ErrNotFound = errors.New("product not found")
	// ErrInactive marks listings or retailers excluded from scraping.
	ErrInactive = errors.New("listing or retailer inactive")
)

// Handler extracts pricing for listings on one retailer's domain.
type Handler interface {
	Name() string
	Extract(ctx context.Context, listing *models.Listing) (*models.ExtractResult, error)
}

// Registry maps domains to handlers. It is assembled explicitly by the
// caller; there is no package-level registration.
type Registry struct {
	handlers map[string]Handler
}

func NewRegistry(handlers map[string]Handler) *Registry {
	if handlers == nil {
		handlers = make(map[string]Handler)
	}
	return &Registry{handlers: handlers}
}

// Lookup returns the handler for a domain, if one is registered.
func (r *Registry) Lookup(domain string) (Handler, bool) {
	h, ok := r.handlers[domain]
	return h, ok
}

// Domains lists registered domains in stable order.
func (r *Registry) Domains() []string {
	domains := make([]string, 0, len(r.handlers))
	for d := range r.handlers {
		domains = append(domains, d)
	}
	sort.Strings(domains)
	return domains
}
