package domain

import (
	"context"
	"time"
)

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) (interface{}, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// OfferStore holds the offers last seen per (barcode, scope).
type OfferStore interface {
	Get(ean string, scope Scope) ([]StoreOffer, bool)
	Put(ean string, scope Scope, offers []StoreOffer)
}

// CatalogSearch is a free-text catalog query.
type CatalogSearch struct {
	Query       string
	Size        int
	Groups      []string
	Category    string
	Subcategory string
	Brand       string
}

// StoreQuery is a store-locator query around a point.
type StoreQuery struct {
	Center   GeoPoint
	RadiusKm float64
	Limit    int
	Groups   []string
}

// CatalogClient defines the interface for the upstream grocery price catalog
type CatalogClient interface {
	ProductsByEAN(ctx context.Context, ean string) ([]RawProduct, error)
	SearchProducts(ctx context.Context, search CatalogSearch) ([]RawProduct, error)
}

// StoreLocator finds physical stores near a point.
type StoreLocator interface {
	PhysicalStores(ctx context.Context, query StoreQuery) ([]PhysicalStore, error)
}

// ListRepository persists shopping lists.
type ListRepository interface {
	CreateList(ctx context.Context, name string) (*ShoppingList, error)
	GetList(ctx context.Context, id string) (*ShoppingList, error)
	AddItem(ctx context.Context, listID string, item ShoppingListItem) (*ShoppingList, error)
	RemoveItem(ctx context.Context, listID, itemID string) error
	ClearItems(ctx context.Context, listID string) error
}
