package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/smartshop/backend/internal/domain"
	"github.com/smartshop/backend/internal/usecase"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	prices *usecase.PriceService
	lists  *usecase.ListService
	gate   *usecase.QueryGate
	logger zerolog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(prices *usecase.PriceService, lists *usecase.ListService, gate *usecase.QueryGate) *Handler {
	if gate == nil {
		gate = usecase.NewQueryGate()
	}
	return &Handler{
		prices: prices,
		lists:  lists,
		gate:   gate,
		logger: log.With().Str("component", "http_handler").Logger(),
	}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "smartshop-backend",
		"version": "1.0.0",
	})
}

// SearchProducts handles barcode lookups and free-text product searches.
// A newer search with the same X-Client-ID cancels the older one.
func (h *Handler) SearchProducts(c *gin.Context) {
	values := c.Request.URL.Query()
	req := usecase.SearchRequest{
		EAN:     values.Get("ean"),
		Query:   firstNonEmpty(values.Get("q"), values.Get("search")),
		Scope:   domain.ParseScope(values.Get("scope")),
		Groups:  splitCSV(values.Get("group")),
		Filters: usecase.ParseFilterSpec(values),
	}

	ctx, done := h.gate.Begin(c.Request.Context(), c.GetHeader(clientIDHeader))
	defer done()

	result, err := h.prices.Search(ctx, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// NormalizeProducts normalizes raw catalog records posted by the caller.
func (h *Handler) NormalizeProducts(c *gin.Context) {
	var raws []domain.RawProduct
	if err := c.ShouldBindJSON(&raws); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be a JSON array of product records"})
		return
	}

	products := h.prices.Normalize(raws, c.Query("ean"), splitCSV(c.Query("group")))
	c.JSON(http.StatusOK, gin.H{
		"count": len(products),
		"items": products,
	})
}

// NearbyStores lists physical stores around lat/lng.
func (h *Handler) NearbyStores(c *gin.Context) {
	lat, latErr := strconv.ParseFloat(c.Query("lat"), 64)
	lng, lngErr := strconv.ParseFloat(c.Query("lng"), 64)
	if latErr != nil || lngErr != nil || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lat and lng are required coordinates"})
		return
	}

	query := domain.StoreQuery{
		Center: domain.GeoPoint{Lat: lat, Lng: lng},
		Groups: splitCSV(c.Query("group")),
	}
	if radius, err := strconv.ParseFloat(c.Query("radius_km"), 64); err == nil && radius > 0 {
		query.RadiusKm = radius
	}
	if limit, err := strconv.Atoi(c.Query("limit")); err == nil && limit > 0 {
		query.Limit = limit
	}

	stores, err := h.prices.NearbyStores(c.Request.Context(), query)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if stores == nil {
		stores = []domain.PhysicalStore{}
	}
	c.JSON(http.StatusOK, gin.H{
		"count":  len(stores),
		"stores": stores,
	})
}

type basketRequestBody struct {
	Items      []domain.ShoppingListItem `json:"items"`
	Scope      string                    `json:"scope"`
	Groups     []string                  `json:"groups"`
	Position   *domain.GeoPoint          `json:"position"`
	RadiusKm   float64                   `json:"radiusKm"`
	CachedOnly bool                      `json:"cachedOnly"`
	Weights    *domain.RankingOverride   `json:"weights"`
}

func (b basketRequestBody) toRequest() usecase.BasketRequest {
	return usecase.BasketRequest{
		Items:      b.Items,
		Scope:      domain.ParseScope(b.Scope),
		Groups:     b.Groups,
		Position:   b.Position,
		RadiusKm:   b.RadiusKm,
		CachedOnly: b.CachedOnly,
		Weights:    b.Weights,
	}
}

// BestStores ranks stores for a basket posted in the body.
func (h *Handler) BestStores(c *gin.Context) {
	var body basketRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid basket: " + err.Error()})
		return
	}

	outcome, err := h.prices.BestStores(c.Request.Context(), body.toRequest())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

type createListBody struct {
	Name string `json:"name"`
}

// CreateList creates an empty shopping list.
func (h *Handler) CreateList(c *gin.Context) {
	var body createListBody
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid list: " + err.Error()})
			return
		}
	}

	list, err := h.lists.CreateList(c.Request.Context(), body.Name)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, list)
}

// GetList returns a shopping list with its items.
func (h *Handler) GetList(c *gin.Context) {
	list, err := h.lists.GetList(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// AddListItem adds an item, merging quantities for a barcode already on the list.
func (h *Handler) AddListItem(c *gin.Context) {
	var item domain.ShoppingListItem
	if err := c.ShouldBindJSON(&item); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item: " + err.Error()})
		return
	}

	list, err := h.lists.AddItem(c.Request.Context(), c.Param("id"), item)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// RemoveListItem deletes one item.
func (h *Handler) RemoveListItem(c *gin.Context) {
	if err := h.lists.RemoveItem(c.Request.Context(), c.Param("id"), c.Param("itemId")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ClearList removes every item from a list.
func (h *Handler) ClearList(c *gin.Context) {
	if err := h.lists.ClearItems(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListBestStores ranks stores for a stored list.
func (h *Handler) ListBestStores(c *gin.Context) {
	var body basketRequestBody
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid basket: " + err.Error()})
			return
		}
	}

	outcome, err := h.lists.BestStores(c.Request.Context(), c.Param("id"), body.toRequest())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

// respondError maps domain errors to HTTP responses.
func (h *Handler) respondError(c *gin.Context, err error) {
	_ = c.Error(err)

	var upstream *domain.UpstreamError
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrListNotFound), errors.Is(err, domain.ErrItemNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &upstream):
		status := http.StatusBadGateway
		if upstream.StatusCode >= http.StatusBadRequest {
			status = upstream.StatusCode
		}
		c.JSON(status, gin.H{"error": "upstream request failed", "detail": upstream.Detail})
	case errors.Is(err, domain.ErrUpstreamFailure):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	case errors.Is(err, context.Canceled) && c.Request.Context().Err() == nil:
		c.JSON(http.StatusConflict, gin.H{"error": "superseded by a newer request"})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "request timed out"})
	default:
		h.logger.Error().Err(err).Str("path", c.Request.URL.Path).Msg("unhandled error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
