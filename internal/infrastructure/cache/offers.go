package cache

import (
	"sync"

	"github.com/smartshop/backend/internal/domain"
)

// OfferCache remembers the offers last fetched per (barcode, scope).
// Writes overwrite; there is no expiry since entries are bounded by the
// barcodes shoppers put on lists.
type OfferCache struct {
	mu   sync.RWMutex
	data map[string][]domain.StoreOffer
}

// NewOfferCache creates an empty offer cache.
func NewOfferCache() *OfferCache {
	return &OfferCache{data: make(map[string][]domain.StoreOffer)}
}

func offerKey(ean string, scope domain.Scope) string {
	return ean + "|" + string(scope)
}

// Get returns a copy of the cached offers.
func (c *OfferCache) Get(ean string, scope domain.Scope) ([]domain.StoreOffer, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	offers, ok := c.data[offerKey(ean, scope)]
	if !ok {
		return nil, false
	}
	return append([]domain.StoreOffer(nil), offers...), true
}

// Put replaces the offers for (ean, scope).
func (c *OfferCache) Put(ean string, scope domain.Scope, offers []domain.StoreOffer) {
	stored := append([]domain.StoreOffer(nil), offers...)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[offerKey(ean, scope)] = stored
}

// Len returns the number of cached (barcode, scope) pairs.
func (c *OfferCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}
