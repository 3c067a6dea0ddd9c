package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/smartshop/backend/internal/domain"
)

const (
	defaultSearchSize = 10
	maxSearchSize     = 40
)

// PriceServiceConfig holds configuration for the price service
type PriceServiceConfig struct {
	CacheTTL    time.Duration
	MaxAttempts int
	Backoff     time.Duration
	Concurrency int
	RadiusKm    float64
	StoreLimit  int
	Weights     domain.RankingWeights
}

// PriceService answers product searches and best-store questions using the
// upstream catalog, with caching in front of it.
type PriceService struct {
	cache   domain.CacheRepository
	offers  domain.OfferStore
	catalog domain.CatalogClient
	locator domain.StoreLocator
	config  PriceServiceConfig
	logger  zerolog.Logger
}

// NewPriceService creates a new price service with dependencies.
// locator may be nil, in which case physical candidates are always per chain.
func NewPriceService(
	cache domain.CacheRepository,
	offers domain.OfferStore,
	catalog domain.CatalogClient,
	locator domain.StoreLocator,
	config PriceServiceConfig,
) *PriceService {
	if config.CacheTTL == 0 {
		config.CacheTTL = 10 * time.Minute
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.Backoff == 0 {
		config.Backoff = 600 * time.Millisecond
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 6
	}
	if config.RadiusKm <= 0 {
		config.RadiusKm = 10
	}
	if config.StoreLimit <= 0 {
		config.StoreLimit = 100
	}
	if config.Weights == (domain.RankingWeights{}) {
		config.Weights = domain.DefaultRankingWeights()
	}

	return &PriceService{
		cache:   cache,
		offers:  offers,
		catalog: catalog,
		locator: locator,
		config:  config,
		logger:  log.With().Str("component", "price_service").Logger(),
	}
}

// SearchRequest is a product lookup by barcode or free text.
type SearchRequest struct {
	EAN     string
	Query   string
	Scope   domain.Scope
	Groups  []string
	Filters ParsedFilters
}

// Search looks up products by barcode, or searches by text when no barcode is
// given. Filter-only requests search for the filters' fallback text.
func (s *PriceService) Search(ctx context.Context, req SearchRequest) (*domain.SearchResult, error) {
	ean := domain.CleanEAN(req.EAN)
	query := SanitizeQuery(req.Query)
	if ean == "" && query == "" {
		query = req.Filters.FallbackQuery
	}
	if ean == "" && query == "" {
		return nil, fmt.Errorf("%w: ean or search text is required", domain.ErrInvalidRequest)
	}
	if ean != "" && !domain.IsLookupEAN(ean) {
		return nil, fmt.Errorf("%w: ean must have 8 to 14 digits", domain.ErrInvalidRequest)
	}

	var raws []domain.RawProduct
	var err error
	if ean != "" {
		raws, err = s.productsByEAN(ctx, ean)
	} else {
		raws, err = s.searchProducts(ctx, query, req)
	}
	if err != nil {
		return nil, err
	}

	products := NormalizeProducts(raws, NormalizeContext{EAN: ean, Groups: req.Groups})
	products = FilterByScope(products, req.Scope)
	products = ApplyFilters(products, req.Filters.FilterSpec)

	label := ean
	if label == "" {
		label = query
	}
	return &domain.SearchResult{
		Query:          label,
		Count:          len(products),
		Scope:          normalizedScope(req.Scope),
		AppliedFilters: req.Filters.Exposed(),
		BestPrice:      BestPrice(products),
		Items:          products,
	}, nil
}

func (s *PriceService) productsByEAN(ctx context.Context, ean string) ([]domain.RawProduct, error) {
	key := "ean:" + ean
	if raws, ok := s.getFromCache(ctx, key); ok {
		return raws, nil
	}
	raws, err := s.catalog.ProductsByEAN(ctx, ean)
	if err != nil {
		return nil, err
	}
	s.setInCache(ctx, key, raws)
	return raws, nil
}

func (s *PriceService) searchProducts(ctx context.Context, query string, req SearchRequest) ([]domain.RawProduct, error) {
	size := defaultSearchSize
	if req.Filters.Limit > 0 {
		size = clampInt(req.Filters.Limit, 1, maxSearchSize)
	}
	search := domain.CatalogSearch{
		Query:       query,
		Size:        size,
		Groups:      upperAll(req.Groups),
		Category:    req.Filters.Category,
		Subcategory: req.Filters.Subcategory,
		Brand:       req.Filters.Brand,
	}

	key := searchCacheKey(search)
	if raws, ok := s.getFromCache(ctx, key); ok {
		return raws, nil
	}
	raws, err := s.catalog.SearchProducts(ctx, search)
	if err != nil {
		return nil, err
	}
	s.setInCache(ctx, key, raws)
	return raws, nil
}

// Normalize converts caller-supplied records without contacting upstream.
func (s *PriceService) Normalize(raws []domain.RawProduct, ean string, groups []string) []domain.NormalizedProduct {
	return NormalizeProducts(raws, NormalizeContext{EAN: ean, Groups: groups})
}

// OfferSet is the result of looking up offers for many barcodes.
type OfferSet struct {
	Offers map[string][]domain.StoreOffer
	// Failed lists barcodes whose lookup failed after all retries.
	Failed []string
}

// Lookup returns the offers for a barcode, or nil.
func (o OfferSet) Lookup(ean string) []domain.StoreOffer {
	return o.Offers[ean]
}

// LookupOffers fetches offers for every barcode concurrently. Cached offers are
// used first; with cachedOnly nothing is fetched. The offer cache holds every
// chain's offers; groups narrows them after the read. A failed lookup does not
// abort the others; its barcode is reported in Failed. Only cancellation of
// ctx is returned as an error.
func (s *PriceService) LookupOffers(ctx context.Context, eans []string, scope domain.Scope, groups []string, cachedOnly bool) (OfferSet, error) {
	scope = normalizedScope(scope)
	set := OfferSet{Offers: make(map[string][]domain.StoreOffer, len(eans))}

	var pending []string
	seen := map[string]bool{}
	for _, raw := range eans {
		ean := domain.CleanEAN(raw)
		if ean == "" || seen[ean] {
			continue
		}
		seen[ean] = true
		if offers, ok := s.offers.Get(ean, scope); ok && len(offers) > 0 {
			if offers = FilterOffersByGroups(offers, groups); len(offers) > 0 {
				set.Offers[ean] = offers
			}
			continue
		}
		if !cachedOnly {
			pending = append(pending, ean)
		}
	}
	if len(pending) == 0 {
		return set, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Concurrency)
	for _, ean := range pending {
		g.Go(func() error {
			offers, err := s.fetchOffersWithRetry(gctx, ean, scope)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				set.Failed = append(set.Failed, ean)
				return nil
			}
			if offers = FilterOffersByGroups(offers, groups); len(offers) > 0 {
				set.Offers[ean] = offers
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return OfferSet{}, err
	}
	sort.Strings(set.Failed)
	return set, nil
}

// fetchOffersWithRetry retries one barcode with linearly growing delays.
func (s *PriceService) fetchOffersWithRetry(ctx context.Context, ean string, scope domain.Scope) ([]domain.StoreOffer, error) {
	var lastErr error
	for attempt := 1; attempt <= s.config.MaxAttempts; attempt++ {
		offers, err := s.fetchOffers(ctx, ean, scope)
		if err == nil {
			return offers, nil
		}
		lastErr = err
		if errors.Is(err, domain.ErrInvalidRequest) || ctx.Err() != nil {
			break
		}
		s.logger.Warn().Err(err).Str("ean", ean).Int("attempt", attempt).Msg("offer lookup failed")
		if attempt == s.config.MaxAttempts {
			break
		}

		timer := time.NewTimer(time.Duration(attempt) * s.config.Backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, lastErr
}

// fetchOffers returns the offers of every chain for ean in scope.
func (s *PriceService) fetchOffers(ctx context.Context, ean string, scope domain.Scope) ([]domain.StoreOffer, error) {
	raws, err := s.catalog.ProductsByEAN(ctx, ean)
	if err != nil {
		return nil, err
	}
	products := NormalizeProducts(raws, NormalizeContext{EAN: ean})
	offers := OffersFromProducts(FilterByScope(products, scope))
	if len(offers) > 0 {
		s.offers.Put(ean, scope, offers)
	}
	return offers, nil
}

// BasketRequest asks which stores price a list most cheaply.
type BasketRequest struct {
	Items  []domain.ShoppingListItem
	Scope  domain.Scope
	Groups []string
	// Position enables nearby physical stores; nil uses chain-level candidates.
	Position   *domain.GeoPoint
	RadiusKm   float64
	CachedOnly bool
	Weights    *domain.RankingOverride
}

// BestStores looks up offers for every list item and ranks candidate stores.
func (s *PriceService) BestStores(ctx context.Context, req BasketRequest) (*domain.RankingOutcome, error) {
	items := make([]domain.ShoppingListItem, 0, len(req.Items))
	var eans []string
	for _, item := range req.Items {
		item.EAN = domain.CleanEAN(item.EAN)
		items = append(items, item)
		if item.EAN != "" {
			eans = append(eans, item.EAN)
		}
	}
	if len(eans) == 0 {
		return nil, fmt.Errorf("%w: the list has no items with a barcode", domain.ErrInvalidRequest)
	}

	weights := s.config.Weights
	if req.Weights != nil {
		var err error
		if weights, err = req.Weights.Apply(weights); err != nil {
			return nil, err
		}
	}
	scope := normalizedScope(req.Scope)

	set, err := s.LookupOffers(ctx, eans, scope, req.Groups, req.CachedOnly)
	if err != nil {
		return nil, err
	}

	opts := CandidateOptions{Scope: scope, PreferredGroups: req.Groups}
	if scope != domain.ScopeOnline && req.Position != nil && s.locator != nil {
		opts.NearbyStores = s.nearbyStores(ctx, req)
	}
	candidates := DeriveCandidates(eans, set.Lookup, opts)

	outcome := AggregateAndRank(items, set.Lookup, candidates, weights)
	outcome.Failed = set.Failed

	s.logger.Info().
		Int("items", len(items)).
		Int("candidates", outcome.Candidates).
		Int("results", len(outcome.Results)).
		Bool("low_confidence", outcome.LowConfidence).
		Str("scope", string(scope)).
		Msg("ranked stores")
	return &outcome, nil
}

// nearbyStores queries the locator; failures fall back to chain candidates.
func (s *PriceService) nearbyStores(ctx context.Context, req BasketRequest) []domain.PhysicalStore {
	radius := req.RadiusKm
	if radius <= 0 {
		radius = s.config.RadiusKm
	}
	stores, err := s.locator.PhysicalStores(ctx, domain.StoreQuery{
		Center:   *req.Position,
		RadiusKm: radius,
		Limit:    s.config.StoreLimit,
		Groups:   upperAll(req.Groups),
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("store locator failed, using chain candidates")
		return nil
	}
	return stores
}

// NearbyStores lists physical stores around a point.
func (s *PriceService) NearbyStores(ctx context.Context, query domain.StoreQuery) ([]domain.PhysicalStore, error) {
	if s.locator == nil {
		return nil, fmt.Errorf("%w: store locator is not configured", domain.ErrUpstreamFailure)
	}
	if query.RadiusKm <= 0 {
		query.RadiusKm = s.config.RadiusKm
	}
	if query.Limit <= 0 {
		query.Limit = s.config.StoreLimit
	}
	query.Groups = upperAll(query.Groups)
	return s.locator.PhysicalStores(ctx, query)
}

// getFromCache returns cached upstream records. Values read back from a
// JSON-backed cache are decoded again.
func (s *PriceService) getFromCache(ctx context.Context, key string) ([]domain.RawProduct, bool) {
	value, err := s.cache.Get(ctx, key)
	if err != nil {
		return nil, false
	}
	if raws, ok := value.([]domain.RawProduct); ok {
		return raws, true
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, false
	}
	var raws []domain.RawProduct
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, false
	}
	return raws, true
}

func (s *PriceService) setInCache(ctx context.Context, key string, raws []domain.RawProduct) {
	if err := s.cache.Set(ctx, key, raws, s.config.CacheTTL); err != nil {
		s.logger.Debug().Err(err).Str("key", key).Msg("cache write failed")
	}
}

func searchCacheKey(q domain.CatalogSearch) string {
	return fmt.Sprintf("search:%s:%d:%s:%s:%s:%s",
		strings.ToLower(q.Query), q.Size, strings.Join(q.Groups, ","),
		strings.ToLower(q.Category), strings.ToLower(q.Subcategory), strings.ToLower(q.Brand))
}

func normalizedScope(scope domain.Scope) domain.Scope {
	return domain.ParseScope(string(scope))
}

func upperAll(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.ToUpper(strings.TrimSpace(v)); v != "" {
			out = append(out, v)
		}
	}
	return out
}
