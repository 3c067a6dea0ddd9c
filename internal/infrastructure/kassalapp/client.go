package kassalapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/smartshop/backend/internal/domain"
)

// DefaultBaseURL is the public Kassalapp API root.
const DefaultBaseURL = "https://kassal.app/api/v1"

const maxErrorDetail = 500

// Client handles communication with the Kassalapp grocery price API
type Client struct {
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	rateLimiter *rate.Limiter
	logger      zerolog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithRateLimit sets the sustained request rate and burst.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) {
		if perSecond > 0 && burst > 0 {
			c.rateLimiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// NewClient creates a new Kassalapp API client
func NewClient(apiKey, baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		apiKey:      apiKey,
		baseURL:     strings.TrimRight(baseURL, "/"),
		rateLimiter: rate.NewLimiter(rate.Limit(2), 5),
		logger:      log.With().Str("component", "kassalapp").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// get waits for the rate limiter and performs an authenticated GET.
// The body is fully read and closed.
func (c *Client) get(ctx context.Context, reqURL string) (int, []byte, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return 0, nil, fmt.Errorf("rate limiter error: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "SmartShop/1.0")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, nil, ctx.Err()
		}
		return 0, nil, &domain.UpstreamError{Detail: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, &domain.UpstreamError{StatusCode: resp.StatusCode, Detail: err.Error()}
	}
	c.logger.Debug().
		Str("url", req.URL.Path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("upstream request")
	return resp.StatusCode, body, nil
}

// ProductsByEAN returns every store's record for a barcode. An unknown
// barcode yields an empty list.
func (c *Client) ProductsByEAN(ctx context.Context, ean string) ([]domain.RawProduct, error) {
	reqURL := fmt.Sprintf("%s/products/ean/%s", c.baseURL, url.PathEscape(ean))

	status, body, err := c.get(ctx, reqURL)
	if err != nil {
		return nil, err
	}
	switch {
	case status == http.StatusNotFound:
		c.logger.Debug().Str("ean", ean).Msg("barcode not in catalog")
		return []domain.RawProduct{}, nil
	case status != http.StatusOK:
		return nil, upstreamError(status, body)
	}

	products, err := decodeEANResponse(body)
	if err != nil {
		return nil, err
	}
	c.logger.Debug().Str("ean", ean).Int("records", len(products)).Msg("barcode lookup")
	return products, nil
}

// SearchProducts runs a free-text catalog search. A rejected query (422)
// yields an empty list.
func (c *Client) SearchProducts(ctx context.Context, search domain.CatalogSearch) ([]domain.RawProduct, error) {
	params := url.Values{}
	if search.Query != "" {
		params.Set("search", search.Query)
	}
	size := search.Size
	if size <= 0 {
		size = 10
	}
	params.Set("size", strconv.Itoa(size))
	params.Set("unique", "1")
	params.Set("exclude_without_ean", "1")
	if len(search.Groups) > 0 {
		params.Set("group", strings.Join(search.Groups, ","))
	}
	if search.Category != "" {
		params.Set("category", search.Category)
	}
	if search.Subcategory != "" {
		params.Set("subcategory", search.Subcategory)
	}
	if search.Brand != "" {
		params.Set("brand", search.Brand)
	}
	reqURL := fmt.Sprintf("%s/products?%s", c.baseURL, params.Encode())

	status, body, err := c.get(ctx, reqURL)
	if err != nil {
		return nil, err
	}
	switch {
	case status == http.StatusUnprocessableEntity:
		c.logger.Debug().Str("query", search.Query).Msg("search rejected by catalog")
		return []domain.RawProduct{}, nil
	case status != http.StatusOK:
		return nil, upstreamError(status, body)
	}

	products, err := decodeListResponse(body)
	if err != nil {
		return nil, err
	}
	c.logger.Debug().Str("query", search.Query).Int("records", len(products)).Msg("catalog search")
	return products, nil
}

// PhysicalStores lists stores around a point.
func (c *Client) PhysicalStores(ctx context.Context, query domain.StoreQuery) ([]domain.PhysicalStore, error) {
	km := query.RadiusKm
	if km <= 0 {
		km = 10
	}
	size := query.Limit
	if size <= 0 {
		size = 100
	}
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(query.Center.Lat, 'f', -1, 64))
	params.Set("lng", strconv.FormatFloat(query.Center.Lng, 'f', -1, 64))
	params.Set("km", strconv.FormatFloat(km, 'f', -1, 64))
	params.Set("size", strconv.Itoa(size))
	if len(query.Groups) > 0 {
		params.Set("group", strings.Join(query.Groups, ","))
	}
	reqURL := fmt.Sprintf("%s/physical-stores?%s", c.baseURL, params.Encode())

	status, body, err := c.get(ctx, reqURL)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, upstreamError(status, body)
	}
	return decodeStores(body)
}

func upstreamError(status int, body []byte) error {
	detail := strings.TrimSpace(string(body))
	if r := []rune(detail); len(r) > maxErrorDetail {
		detail = string(r[:maxErrorDetail])
	}
	return &domain.UpstreamError{StatusCode: status, Detail: detail}
}

// decodeJSON decodes with json.Number so numeric fields keep full precision.
func decodeJSON(body []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
