package usecase

import (
	"regexp"
	"slices"
	"strings"

	"github.com/smartshop/backend/internal/domain"
)

var onlineStoreRegex = regexp.MustCompile(`(?i)(oda|kolonial|nettbutikk|online)`)

// IsOnlineStore reports whether a store name or chain code denotes an online shop.
func IsOnlineStore(store, group string) bool {
	return onlineStoreRegex.MatchString(store + " " + group)
}

// FilterByScope keeps the products sold in the requested kind of store.
func FilterByScope(products []domain.NormalizedProduct, scope domain.Scope) []domain.NormalizedProduct {
	if scope != domain.ScopeOnline && scope != domain.ScopePhysical {
		return products
	}
	out := make([]domain.NormalizedProduct, 0, len(products))
	for _, p := range products {
		online := IsOnlineStore(p.StoreName(), p.GroupCode())
		if online == (scope == domain.ScopeOnline) {
			out = append(out, p)
		}
	}
	return out
}

// BestPrice returns the cheapest priced product, first seen on ties.
func BestPrice(products []domain.NormalizedProduct) *domain.NormalizedProduct {
	var best *domain.NormalizedProduct
	for i := range products {
		p := &products[i]
		if p.Price == nil {
			continue
		}
		if best == nil || *p.Price < *best.Price {
			best = p
		}
	}
	return best
}

// OffersFromProducts turns normalized products into store offers. Products
// without a price are skipped.
func OffersFromProducts(products []domain.NormalizedProduct) []domain.StoreOffer {
	out := make([]domain.StoreOffer, 0, len(products))
	for i := range products {
		p := &products[i]
		if p.Price == nil {
			continue
		}
		name, group := p.StoreName(), p.GroupCode()
		id := group
		if id == "" {
			id = name
		}
		if name == "" {
			name = group
		}
		offer := domain.StoreOffer{
			StoreID:       id,
			StoreName:     name,
			Group:         group,
			IsOnline:      IsOnlineStore(p.StoreName(), group),
			Price:         *p.Price,
			PricePerKg:    firstPtr(p.PricePerKg, p.UnitPricing.PricePerKg),
			PricePerLiter: firstPtr(p.PricePerLiter, p.UnitPricing.PricePerLiter),
		}
		if pricing := p.UnitPricing; pricing != (domain.UnitPricing{}) {
			offer.UnitPricing = &pricing
		}
		if pkg := p.PackageInfo; pkg != (domain.PackageInfo{}) {
			offer.PackageInfo = &pkg
		}
		out = append(out, offer)
	}
	return out
}

// FilterOffersByGroups keeps offers whose chain code is in groups. An empty
// groups list keeps everything.
func FilterOffersByGroups(offers []domain.StoreOffer, groups []string) []domain.StoreOffer {
	allowed := upperAll(groups)
	if len(allowed) == 0 {
		return offers
	}
	out := make([]domain.StoreOffer, 0, len(offers))
	for _, o := range offers {
		if slices.Contains(allowed, strings.ToUpper(o.Group)) {
			out = append(out, o)
		}
	}
	return out
}

// CandidateOptions controls which stores take part in a ranking.
type CandidateOptions struct {
	Scope domain.Scope
	// PreferredGroups restricts candidates to these chain codes when non-empty.
	PreferredGroups []string
	// NearbyStores are physical stores from the locator. When empty, physical
	// candidates are derived per chain from the offers instead.
	NearbyStores []domain.PhysicalStore
}

// DeriveCandidates builds the candidate stores for a list of barcodes.
// Physical candidates come first, then online shops, each in first-seen order.
func DeriveCandidates(eans []string, lookup domain.OfferLookup, opts CandidateOptions) []domain.CandidateStore {
	preferred := make(map[string]struct{}, len(opts.PreferredGroups))
	for _, g := range opts.PreferredGroups {
		if g = strings.ToUpper(strings.TrimSpace(g)); g != "" {
			preferred[g] = struct{}{}
		}
	}
	allowed := func(group string) bool {
		if len(preferred) == 0 {
			return true
		}
		_, ok := preferred[strings.ToUpper(group)]
		return ok
	}

	var candidates []domain.CandidateStore
	if opts.Scope != domain.ScopeOnline {
		if len(opts.NearbyStores) > 0 {
			candidates = append(candidates, nearbyCandidates(opts.NearbyStores, allowed)...)
		} else {
			candidates = append(candidates, chainCandidates(eans, lookup, allowed)...)
		}
	}
	if opts.Scope != domain.ScopePhysical {
		candidates = append(candidates, onlineCandidates(eans, lookup, allowed)...)
	}
	return candidates
}

func nearbyCandidates(stores []domain.PhysicalStore, allowed func(string) bool) []domain.CandidateStore {
	out := make([]domain.CandidateStore, 0, len(stores))
	seen := map[string]struct{}{}
	for _, s := range stores {
		name, group := CanonicalizeStore(s.Name, s.Group)
		if group == "" || !allowed(group) {
			continue
		}
		id := s.ID
		if id == "" {
			id = group + ":" + s.Name
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		display := strings.TrimSpace(s.Name)
		if display == "" {
			display = name
		}
		out = append(out, domain.CandidateStore{
			ID:         id,
			Name:       display,
			Group:      group,
			IsPhysical: true,
			Position:   s.Position,
		})
	}
	return out
}

func chainCandidates(eans []string, lookup domain.OfferLookup, allowed func(string) bool) []domain.CandidateStore {
	var out []domain.CandidateStore
	seen := map[string]struct{}{}
	for _, ean := range eans {
		for _, o := range lookup(ean) {
			if o.Group == "" || o.IsOnline || !allowed(o.Group) {
				continue
			}
			if _, dup := seen[o.Group]; dup {
				continue
			}
			seen[o.Group] = struct{}{}
			name := o.StoreName
			if name == "" {
				name = o.Group
			}
			out = append(out, domain.CandidateStore{ID: o.Group, Name: name, Group: o.Group, IsPhysical: true})
		}
	}
	return out
}

func onlineCandidates(eans []string, lookup domain.OfferLookup, allowed func(string) bool) []domain.CandidateStore {
	var out []domain.CandidateStore
	index := map[string]int{}
	for _, ean := range eans {
		for _, o := range lookup(ean) {
			if !o.IsOnline || o.Group == "" || !allowed(o.Group) {
				continue
			}
			id := o.StoreID
			if id == "" {
				id = o.Group
			}
			name := o.StoreName
			if name == "" {
				name = o.Group
			}
			c := domain.CandidateStore{ID: id, Name: name, Group: o.Group}
			// Later offers for the same chain replace the earlier identity.
			if i, ok := index[o.Group]; ok {
				out[i] = c
				continue
			}
			index[o.Group] = len(out)
			out = append(out, c)
		}
	}
	return out
}

// offerMatches reports whether an offer was sold by the candidate.
func offerMatches(c domain.CandidateStore, o domain.StoreOffer) bool {
	if c.IsPhysical {
		return o.Group != "" && c.Group != "" && o.Group == c.Group
	}
	if c.ID != "" && o.StoreID != "" {
		return o.StoreID == c.ID
	}
	return o.IsOnline && o.Group != "" && c.Group != "" && o.Group == c.Group
}
