package domain

// RawProduct is one upstream catalog record as decoded from JSON.
// Its shape varies between chains and API versions; it is never mutated.
type RawProduct map[string]any

// PackageInfo describes the parsed package size of a product.
// Kilograms and Liters are never both set.
type PackageInfo struct {
	Raw       *string  `json:"raw"`
	Quantity  *float64 `json:"quantity"`
	Unit      *string  `json:"unit"`
	UnitRaw   *string  `json:"unitRaw"`
	Kilograms *float64 `json:"kilograms"`
	Liters    *float64 `json:"liters"`
}

// UnitPricing source used when the price per unit was derived from the package size.
const UnitPriceSourceFallbackPackage = "fallback-package"

// UnitPricing holds the comparison price of a product.
type UnitPricing struct {
	Value         *float64 `json:"value"`
	Quantity      *float64 `json:"quantity"`
	Unit          *string  `json:"unit"`
	UnitRaw       *string  `json:"unitRaw"`
	Display       *string  `json:"display"`
	PricePerUnit  *float64 `json:"pricePerUnit"`
	PricePerKg    *float64 `json:"pricePerKg"`
	PricePerLiter *float64 `json:"pricePerLiter"`
	Source        *string  `json:"source"`
}

// ProductAttributes are derived dietary and labelling flags.
type ProductAttributes struct {
	LactoseFree bool     `json:"lactoseFree"`
	FatPct      *float64 `json:"fatPct"`
	IsOrganic   bool     `json:"isOrganic"`
}

// NormalizedProduct is the canonical form of one store offer for one product.
type NormalizedProduct struct {
	ID             *string           `json:"id"`
	Name           string            `json:"name"`
	Brand          string            `json:"brand"`
	EAN            string            `json:"ean"`
	Size           string            `json:"size"`
	Price          *float64          `json:"price"`
	Store          *string           `json:"store"`
	Group          *string           `json:"group"`
	UpdatedAt      *string           `json:"updatedAt"`
	Category       *string           `json:"category"`
	Subcategory    *string           `json:"subcategory"`
	Categories     []string          `json:"categories"`
	Subcategories  []string          `json:"subcategories"`
	Tags           []string          `json:"tags"`
	TagsNormalized []string          `json:"tagsNormalized"`
	Attributes     ProductAttributes `json:"attributes"`
	PackageInfo    PackageInfo       `json:"packageInfo"`
	UnitPricing    UnitPricing       `json:"unitPricing"`
	PricePerKg     *float64          `json:"pricePerKg"`
	PricePerLiter  *float64          `json:"pricePerLiter"`
}

// StoreName returns the canonical store name or "".
func (p *NormalizedProduct) StoreName() string {
	if p.Store == nil {
		return ""
	}
	return *p.Store
}

// GroupCode returns the canonical chain code or "".
func (p *NormalizedProduct) GroupCode() string {
	if p.Group == nil {
		return ""
	}
	return *p.Group
}

// Scope restricts offers to physical stores, online stores or both.
type Scope string

const (
	ScopeAll      Scope = "all"
	ScopePhysical Scope = "physical"
	ScopeOnline   Scope = "online"
)

// ParseScope maps free text to a Scope, defaulting to ScopeAll.
func ParseScope(s string) Scope {
	switch Scope(lower(s)) {
	case ScopeOnline:
		return ScopeOnline
	case ScopePhysical:
		return ScopePhysical
	default:
		return ScopeAll
	}
}

// SearchResult is the response of a product lookup or search.
type SearchResult struct {
	Query          string              `json:"query"`
	Count          int                 `json:"count"`
	Scope          Scope               `json:"scope"`
	AppliedFilters map[string]any      `json:"appliedFilters"`
	BestPrice      *NormalizedProduct  `json:"bestPrice"`
	Items          []NormalizedProduct `json:"items"`
}
