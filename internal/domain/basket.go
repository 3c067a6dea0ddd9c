package domain

import (
	"fmt"
	"time"
)

// ShoppingListItem is one line of a shopper's list. EAN may be empty for
// free-text items, which can never be priced.
type ShoppingListItem struct {
	ID    string `json:"id"`
	EAN   string `json:"ean,omitempty"`
	Name  string `json:"name"`
	Brand string `json:"brand,omitempty"`
	Size  string `json:"size,omitempty"`
	Qty   int    `json:"qty"`
}

// Quantity returns Qty clamped to at least 1.
func (i ShoppingListItem) Quantity() int {
	if i.Qty < 1 {
		return 1
	}
	return i.Qty
}

// ShoppingList is a persisted list of items.
type ShoppingList struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	CreatedAt time.Time          `json:"createdAt"`
	Items     []ShoppingListItem `json:"items"`
}

// StoreOffer is one store's price for one barcode.
type StoreOffer struct {
	StoreID       string       `json:"store_id"`
	StoreName     string       `json:"store_name"`
	Group         string       `json:"group"`
	IsOnline      bool         `json:"isOnline"`
	Price         float64      `json:"price"`
	PricePerKg    *float64     `json:"pricePerKg"`
	PricePerLiter *float64     `json:"pricePerLiter"`
	UnitPricing   *UnitPricing `json:"unitPricing,omitempty"`
	PackageInfo   *PackageInfo `json:"packageInfo,omitempty"`
}

// GeoPoint is a WGS84 coordinate.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// CandidateStore is a unit of ranking: a physical store or chain, or an online shop.
type CandidateStore struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Group      string    `json:"group"`
	IsPhysical bool      `json:"isPhysical"`
	Position   *GeoPoint `json:"position,omitempty"`
}

// PhysicalStore is a store listing returned by the store locator.
type PhysicalStore struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Group    string    `json:"group"`
	Address  string    `json:"address,omitempty"`
	Position *GeoPoint `json:"position,omitempty"`
}

// BasketLine is the price picked for one list item at one candidate.
// Price is nil when the candidate had no matching offer.
type BasketLine struct {
	EAN      string   `json:"ean"`
	Qty      int      `json:"qty"`
	Price    *float64 `json:"price"`
	StoreID  string   `json:"store_id,omitempty"`
	Group    string   `json:"group,omitempty"`
	IsOnline bool     `json:"isOnline"`
}

// RankedStoreResult is the aggregated basket for one candidate store.
type RankedStoreResult struct {
	Store      CandidateStore `json:"store"`
	ItemsTotal float64        `json:"itemsTotal"`
	Found      int            `json:"found"`
	Coverage   float64        `json:"coverage"`
	Score      float64        `json:"score"`
	Lines      []BasketLine   `json:"lines"`
}

// RankingWeights tunes admission and scoring.
type RankingWeights struct {
	MinCoverage    float64 `json:"minCoverage"`
	CoverageWeight float64 `json:"coverageWeight"`
	MaxResults     int     `json:"maxResults"`
	ApplyQuantity  bool    `json:"applyQuantity"`
}

// DefaultRankingWeights returns the standard admission and scoring constants.
func DefaultRankingWeights() RankingWeights {
	return RankingWeights{
		MinCoverage:    0.60,
		CoverageWeight: 50,
		MaxResults:     3,
		ApplyQuantity:  true,
	}
}

// RankingOverride changes some ranking weights for one request. Nil fields
// keep the configured value.
type RankingOverride struct {
	MinCoverage    *float64 `json:"minCoverage"`
	CoverageWeight *float64 `json:"coverageWeight"`
	MaxResults     *int     `json:"maxResults"`
	ApplyQuantity  *bool    `json:"applyQuantity"`
}

// Apply returns base with the set fields replaced.
func (o RankingOverride) Apply(base RankingWeights) (RankingWeights, error) {
	w := base
	if o.MinCoverage != nil {
		if *o.MinCoverage < 0 || *o.MinCoverage > 1 {
			return base, fmt.Errorf("%w: minCoverage must be between 0 and 1", ErrInvalidRequest)
		}
		w.MinCoverage = *o.MinCoverage
	}
	if o.CoverageWeight != nil {
		if *o.CoverageWeight < 0 {
			return base, fmt.Errorf("%w: coverageWeight must not be negative", ErrInvalidRequest)
		}
		w.CoverageWeight = *o.CoverageWeight
	}
	if o.MaxResults != nil {
		if *o.MaxResults < 1 {
			return base, fmt.Errorf("%w: maxResults must be at least 1", ErrInvalidRequest)
		}
		w.MaxResults = *o.MaxResults
	}
	if o.ApplyQuantity != nil {
		w.ApplyQuantity = *o.ApplyQuantity
	}
	return w, nil
}

// RankingOutcome is the answer to "which store is cheapest for my list".
type RankingOutcome struct {
	Results       []RankedStoreResult `json:"results"`
	LowConfidence bool                `json:"lowConfidence"`
	Reason        string              `json:"reason,omitempty"`
	Candidates    int                 `json:"candidates"`
	Missing       []string            `json:"missing"`
	Failed        []string            `json:"failed,omitempty"`
}

// OfferLookup returns the known offers for a barcode.
type OfferLookup func(ean string) []StoreOffer
