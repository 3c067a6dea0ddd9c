package usecase

import (
	"github.com/shopspring/decimal"

	"github.com/smartshop/backend/internal/domain"
)

// AggregateBasket prices the list at every candidate. For each item the
// cheapest matching offer is used; items without one are "not found" and add
// nothing to the total. Line prices are multiplied by quantity when
// applyQuantity is set. Score is left for the ranker.
func AggregateBasket(items []domain.ShoppingListItem, lookup domain.OfferLookup, candidates []domain.CandidateStore, applyQuantity bool) []domain.RankedStoreResult {
	offersByEAN := make(map[string][]domain.StoreOffer, len(items))
	for _, item := range items {
		if item.EAN == "" {
			continue
		}
		if _, ok := offersByEAN[item.EAN]; !ok {
			offersByEAN[item.EAN] = lookup(item.EAN)
		}
	}

	results := make([]domain.RankedStoreResult, 0, len(candidates))
	for _, c := range candidates {
		total := decimal.Zero
		found := 0
		lines := make([]domain.BasketLine, 0, len(items))

		for _, item := range items {
			line := domain.BasketLine{EAN: item.EAN, Qty: item.Quantity()}
			best, ok := cheapestOffer(c, offersByEAN[item.EAN])
			if ok {
				price := best.Price
				line.Price = &price
				line.StoreID = best.StoreID
				line.Group = best.Group
				line.IsOnline = best.IsOnline

				lineTotal := decimal.NewFromFloat(price)
				if applyQuantity {
					lineTotal = lineTotal.Mul(decimal.NewFromInt(int64(item.Quantity())))
				}
				total = total.Add(lineTotal)
				found++
			}
			lines = append(lines, line)
		}

		coverage := 0.0
		if len(items) > 0 {
			coverage = float64(found) / float64(len(items))
		}
		results = append(results, domain.RankedStoreResult{
			Store:      c,
			ItemsTotal: total.Round(2).InexactFloat64(),
			Found:      found,
			Coverage:   coverage,
			Lines:      lines,
		})
	}
	return results
}

func cheapestOffer(c domain.CandidateStore, offers []domain.StoreOffer) (domain.StoreOffer, bool) {
	var best domain.StoreOffer
	ok := false
	for _, o := range offers {
		if !offerMatches(c, o) {
			continue
		}
		if !ok || o.Price < best.Price {
			best, ok = o, true
		}
	}
	return best, ok
}
