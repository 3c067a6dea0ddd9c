package usecase

import (
	"sort"

	"github.com/smartshop/backend/internal/domain"
)

// Score is the ranking score of a basket: the total plus a penalty for every
// missing share of the list. Lower is better.
func Score(total, coverage, coverageWeight float64) float64 {
	return total + (1-coverage)*coverageWeight
}

// RankStores scores, orders and admits aggregated baskets.
//
// Baskets below the minimum coverage are not admitted. When none is admitted,
// every basket is returned instead, lowest total first, flagged low
// confidence. Results are truncated to w.MaxResults.
func RankStores(rows []domain.RankedStoreResult, w domain.RankingWeights) domain.RankingOutcome {
	outcome := domain.RankingOutcome{Candidates: len(rows), Results: []domain.RankedStoreResult{}}
	if len(rows) == 0 {
		outcome.Reason = domain.ReasonNoCandidates
		return outcome
	}

	scored := make([]domain.RankedStoreResult, len(rows))
	copy(scored, rows)
	for i := range scored {
		scored[i].Score = Score(scored[i].ItemsTotal, scored[i].Coverage, w.CoverageWeight)
	}
	sortResults(scored)

	admitted := make([]domain.RankedStoreResult, 0, len(scored))
	for _, r := range scored {
		if r.Coverage >= w.MinCoverage {
			admitted = append(admitted, r)
		}
	}

	if len(admitted) == 0 {
		outcome.LowConfidence = true
		outcome.Reason = domain.ReasonCoverageThreshold
		admitted = append(admitted, scored...)
		sortByTotal(admitted)
	}

	if w.MaxResults > 0 && len(admitted) > w.MaxResults {
		admitted = admitted[:w.MaxResults]
	}
	outcome.Results = admitted
	return outcome
}

// sortResults orders by score, then coverage descending, then total, then store id.
func sortResults(results []domain.RankedStoreResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score < b.Score
		}
		if a.Coverage != b.Coverage {
			return a.Coverage > b.Coverage
		}
		if a.ItemsTotal != b.ItemsTotal {
			return a.ItemsTotal < b.ItemsTotal
		}
		return a.Store.ID < b.Store.ID
	})
}

// sortByTotal orders fallback baskets by total, then coverage descending, then
// store id. Baskets that priced nothing go last.
func sortByTotal(results []domain.RankedStoreResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if (a.Found == 0) != (b.Found == 0) {
			return a.Found > 0
		}
		if a.ItemsTotal != b.ItemsTotal {
			return a.ItemsTotal < b.ItemsTotal
		}
		if a.Coverage != b.Coverage {
			return a.Coverage > b.Coverage
		}
		return a.Store.ID < b.Store.ID
	})
}

// AggregateAndRank prices the list at every candidate and ranks the baskets.
func AggregateAndRank(items []domain.ShoppingListItem, lookup domain.OfferLookup, candidates []domain.CandidateStore, w domain.RankingWeights) domain.RankingOutcome {
	rows := AggregateBasket(items, lookup, candidates, w.ApplyQuantity)
	outcome := RankStores(rows, w)
	outcome.Missing = missingEANs(items, rows)
	return outcome
}

// missingEANs lists barcodes no candidate could price.
func missingEANs(items []domain.ShoppingListItem, rows []domain.RankedStoreResult) []string {
	priced := map[string]bool{}
	for _, r := range rows {
		for _, l := range r.Lines {
			if l.Price != nil {
				priced[l.EAN] = true
			}
		}
	}
	missing := []string{}
	seen := map[string]bool{}
	for _, item := range items {
		if item.EAN == "" || priced[item.EAN] || seen[item.EAN] {
			continue
		}
		seen[item.EAN] = true
		missing = append(missing, item.EAN)
	}
	return missing
}
