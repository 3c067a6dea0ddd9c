package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartshop/backend/config"
	"github.com/smartshop/backend/internal/domain"
	"github.com/smartshop/backend/internal/infrastructure/cache"
	"github.com/smartshop/backend/internal/infrastructure/sqlite"
	"github.com/smartshop/backend/internal/usecase"
)

const (
	milkEAN   = "7038010009457"
	coffeeEAN = "7311041013663"
)

// TestMain sets up test environment before running tests
func TestMain(m *testing.M) {
	// Set Gin to test mode once for all tests
	gin.SetMode(gin.TestMode)

	// Run tests
	exitCode := m.Run()

	// Exit with the test result code
	os.Exit(exitCode)
}

// --- Mock implementations ---

// mockCacheRepository is a mock implementation of domain.CacheRepository
type mockCacheRepository struct {
	mu   sync.Mutex
	data map[string]interface{}
}

func newMockCacheRepository() *mockCacheRepository {
	return &mockCacheRepository{data: make(map[string]interface{})}
}

func (m *mockCacheRepository) Get(ctx context.Context, key string) (interface{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if value, ok := m.data[key]; ok {
		return value, nil
	}
	return nil, domain.ErrCacheMiss
}

func (m *mockCacheRepository) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}



// mockCatalogClient is a mock implementation of domain.CatalogClient
type mockCatalogClient struct {
	mu         sync.Mutex
	products   map[string][]domain.RawProduct
	search     []domain.RawProduct
	err        error
	calls      int
	lastSearch domain.CatalogSearch
}

func newMockCatalogClient() *mockCatalogClient {
	return &mockCatalogClient{products: make(map[string][]domain.RawProduct)}
}

func (m *mockCatalogClient) ProductsByEAN(ctx context.Context, ean string) ([]domain.RawProduct, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.products[ean], nil
}

func (m *mockCatalogClient) SearchProducts(ctx context.Context, search domain.CatalogSearch) ([]domain.RawProduct, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastSearch = search
	if m.err != nil {
		return nil, m.err
	}
	return m.search, nil
}

// mockStoreLocator is a mock implementation of domain.StoreLocator
type mockStoreLocator struct {
	stores    []domain.PhysicalStore
	err       error
	lastQuery domain.StoreQuery
}

func (m *mockStoreLocator) PhysicalStores(ctx context.Context, query domain.StoreQuery) ([]domain.PhysicalStore, error) {
	m.lastQuery = query
	if m.err != nil {
		return nil, m.err
	}
	return m.stores, nil
}

func offerRecord(name string, price float64, store, code string) domain.RawProduct {
	return domain.RawProduct{
		"name":          name,
		"current_price": price,
		"store":         map[string]any{"name": store, "code": code},
	}
}

func seededCatalog() *mockCatalogClient {
	catalog := newMockCatalogClient()
	catalog.products[milkEAN] = []domain.RawProduct{
		offerRecord("Lettmelk 1 l", 20, "KIWI", "kiwi"),
		offerRecord("Lettmelk 1 l", 18, "REMA 1000", "rema_1000"),
		offerRecord("Lettmelk 1 l", 25, "Oda", "oda"),
	}
	catalog.products[coffeeEAN] = []domain.RawProduct{
		offerRecord("Kaffe 500 g", 30, "KIWI", "kiwi"),
		offerRecord("Kaffe 500 g", 35, "Oda", "oda"),
	}
	return catalog
}

type testEnv struct {
	router  *gin.Engine
	catalog *mockCatalogClient
	locator *mockStoreLocator
}

// setupTestRouter creates a test router backed by mocks and an in-memory list store
func setupTestRouter(t *testing.T, catalog *mockCatalogClient) testEnv {
	t.Helper()

	cfg := &config.Config{
		Server: config.ServerConfig{
			Port:           "8080",
			Environment:    "test",
			AllowedOrigins: []string{"http://localhost:*"},
		},
	}

	repo, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	locator := &mockStoreLocator{}
	prices := usecase.NewPriceService(
		newMockCacheRepository(),
		cache.NewOfferCache(),
		catalog,
		locator,
		usecase.PriceServiceConfig{
			MaxAttempts: 2,
			Backoff:     time.Millisecond,
		},
	)
	handler := NewHandler(prices, usecase.NewListService(repo, prices), usecase.NewQueryGate())

	return testEnv{router: SetupRouter(cfg, handler), catalog: catalog, locator: locator}
}

func doRequest(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var response map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response), w.Body.String())
	return response
}

// TestHealthCheckEndpoint tests the health check endpoint
func TestHealthCheckEndpoint(t *testing.T) {
	t.Run("returns healthy status", func(t *testing.T) {
		env := setupTestRouter(t, newMockCatalogClient())

		w := doRequest(env.router, http.MethodGet, "/health", "")

		require.Equal(t, http.StatusOK, w.Code)
		response := decodeBody(t, w)
		assert.Equal(t, "healthy", response["status"])
		assert.Equal(t, "smartshop-backend", response["service"])
		assert.NotEmpty(t, response["version"])
		assert.NotEmpty(t, w.Header().Get(requestIDHeader))
	})

	t.Run("accepts GET requests only", func(t *testing.T) {
		env := setupTestRouter(t, newMockCatalogClient())

		for _, method := range []string{"POST", "PUT", "DELETE", "PATCH"} {
			w := doRequest(env.router, method, "/health", "")
			assert.Equal(t, http.StatusNotFound, w.Code, method)
		}
	})
}

func TestSearchProductsEndpoint(t *testing.T) {
	t.Run("looks up a barcode and picks the best price", func(t *testing.T) {
		env := setupTestRouter(t, seededCatalog())

		w := doRequest(env.router, http.MethodGet, "/api/v1/products?ean="+milkEAN, "")

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		response := decodeBody(t, w)
		assert.Equal(t, milkEAN, response["query"])
		assert.EqualValues(t, 3, response["count"])
		assert.Equal(t, "all", response["scope"])

		best := response["bestPrice"].(map[string]any)
		assert.EqualValues(t, 18, best["price"])
		assert.Equal(t, "REMA 1000", best["store"])
		assert.Equal(t, "REMA_1000", best["group"])
	})

	t.Run("restricts to online stores", func(t *testing.T) {
		env := setupTestRouter(t, seededCatalog())

		w := doRequest(env.router, http.MethodGet, "/api/v1/products?ean="+milkEAN+"&scope=online", "")

		require.Equal(t, http.StatusOK, w.Code)
		response := decodeBody(t, w)
		assert.EqualValues(t, 1, response["count"])
		best := response["bestPrice"].(map[string]any)
		assert.Equal(t, "Oda", best["store"])
	})

	t.Run("rejects a request without barcode or text", func(t *testing.T) {
		env := setupTestRouter(t, seededCatalog())

		w := doRequest(env.router, http.MethodGet, "/api/v1/products", "")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Zero(t, env.catalog.calls)
	})

	t.Run("rejects a malformed barcode", func(t *testing.T) {
		env := setupTestRouter(t, seededCatalog())

		w := doRequest(env.router, http.MethodGet, "/api/v1/products?ean=123", "")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Zero(t, env.catalog.calls)
	})

	t.Run("searches with the filter fallback text", func(t *testing.T) {
		catalog := newMockCatalogClient()
		catalog.search = []domain.RawProduct{
			{"name": "Melk laktosefri", "current_price": 24.9, "labels": []any{"laktosefri"}, "store": map[string]any{"name": "KIWI", "code": "kiwi"}},
			{"name": "Helmelk", "current_price": 21.9, "store": map[string]any{"name": "KIWI", "code": "kiwi"}},
		}
		env := setupTestRouter(t, catalog)

		w := doRequest(env.router, http.MethodGet, "/api/v1/products?category=Meieri&lactoseFree=true", "")

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Contains(t, catalog.lastSearch.Query, "laktosefri")
		assert.Equal(t, "Meieri", catalog.lastSearch.Category)

		response := decodeBody(t, w)
		filters := response["appliedFilters"].(map[string]any)
		assert.Equal(t, true, filters["lactoseFree"])
	})

	t.Run("maps upstream status codes", func(t *testing.T) {
		catalog := newMockCatalogClient()
		catalog.err = &domain.UpstreamError{StatusCode: http.StatusServiceUnavailable, Detail: "maintenance"}
		env := setupTestRouter(t, catalog)

		w := doRequest(env.router, http.MethodGet, "/api/v1/products?q=melk", "")

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		response := decodeBody(t, w)
		assert.Equal(t, "maintenance", response["detail"])
	})

	t.Run("maps transport failures to bad gateway", func(t *testing.T) {
		catalog := newMockCatalogClient()
		catalog.err = &domain.UpstreamError{Detail: "connection refused"}
		env := setupTestRouter(t, catalog)

		w := doRequest(env.router, http.MethodGet, "/api/v1/products?q=melk", "")

		assert.Equal(t, http.StatusBadGateway, w.Code)
	})
}

func TestNormalizeProductsEndpoint(t *testing.T) {
	env := setupTestRouter(t, newMockCatalogClient())

	t.Run("normalizes posted records", func(t *testing.T) {
		body := `[{"name":"Juice","current_price":{"price":30},"size":"750 ml","store":{"name":"Coop Extra Storo"}}]`
		w := doRequest(env.router, http.MethodPost, "/api/v1/products/normalize?ean="+milkEAN, body)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		response := decodeBody(t, w)
		assert.EqualValues(t, 1, response["count"])

		item := response["items"].([]any)[0].(map[string]any)
		assert.Equal(t, milkEAN, item["ean"])
		assert.Equal(t, "Extra", item["store"])
		assert.Equal(t, "COOP_EXTRA", item["group"])
		assert.InDelta(t, 40.0, item["pricePerLiter"], 1e-9)
		assert.Nil(t, item["pricePerKg"])
	})

	t.Run("rejects a non-array body", func(t *testing.T) {
		w := doRequest(env.router, http.MethodPost, "/api/v1/products/normalize", `{"name":"x"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestNearbyStoresEndpoint(t *testing.T) {
	t.Run("requires coordinates", func(t *testing.T) {
		env := setupTestRouter(t, newMockCatalogClient())

		w := doRequest(env.router, http.MethodGet, "/api/v1/stores/nearby?lat=59.9", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("passes radius, limit and groups to the locator", func(t *testing.T) {
		env := setupTestRouter(t, newMockCatalogClient())
		env.locator.stores = []domain.PhysicalStore{{ID: "1", Name: "KIWI Storo", Group: "KIWI"}}

		w := doRequest(env.router, http.MethodGet, "/api/v1/stores/nearby?lat=59.94&lng=10.77&radius_km=2.5&limit=5&group=kiwi,meny_no", "")

		require.Equal(t, http.StatusOK, w.Code)
		response := decodeBody(t, w)
		assert.EqualValues(t, 1, response["count"])
		assert.Equal(t, 2.5, env.locator.lastQuery.RadiusKm)
		assert.Equal(t, 5, env.locator.lastQuery.Limit)
		assert.Equal(t, []string{"KIWI", "MENY_NO"}, env.locator.lastQuery.Groups)
	})

	t.Run("defaults radius and limit", func(t *testing.T) {
		env := setupTestRouter(t, newMockCatalogClient())

		w := doRequest(env.router, http.MethodGet, "/api/v1/stores/nearby?lat=59.94&lng=10.77", "")

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 10.0, env.locator.lastQuery.RadiusKm)
		assert.Equal(t, 100, env.locator.lastQuery.Limit)
	})
}

func TestBestStoresEndpoint(t *testing.T) {
	t.Run("ranks chains for a basket", func(t *testing.T) {
		env := setupTestRouter(t, seededCatalog())

		body := `{"items":[{"ean":"` + milkEAN + `","qty":1},{"ean":"` + coffeeEAN + `","qty":1}]}`
		w := doRequest(env.router, http.MethodPost, "/api/v1/basket/best-stores", body)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var outcome domain.RankingOutcome
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &outcome))

		assert.False(t, outcome.LowConfidence)
		assert.Equal(t, 3, outcome.Candidates)
		assert.Empty(t, outcome.Missing)
		require.Len(t, outcome.Results, 2)
		assert.Equal(t, "KIWI", outcome.Results[0].Store.Group)
		assert.Equal(t, 50.0, outcome.Results[0].ItemsTotal)
		assert.Equal(t, "ODA", outcome.Results[1].Store.Group)
	})

	t.Run("partial weights keep the coverage rules", func(t *testing.T) {
		env := setupTestRouter(t, seededCatalog())

		body := `{"items":[{"ean":"` + milkEAN + `","qty":2},{"ean":"` + coffeeEAN + `"},{"ean":"7040913334515"}],` +
			`"weights":{"applyQuantity":false}}`
		w := doRequest(env.router, http.MethodPost, "/api/v1/basket/best-stores", body)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var outcome domain.RankingOutcome
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &outcome))

		assert.False(t, outcome.LowConfidence)
		assert.Equal(t, []string{"7040913334515"}, outcome.Missing)
		require.Len(t, outcome.Results, 2)
		assert.Equal(t, "KIWI", outcome.Results[0].Store.Group)
		assert.Equal(t, 50.0, outcome.Results[0].ItemsTotal)
		assert.InDelta(t, 50+50.0/3, outcome.Results[0].Score, 1e-9)
		assert.Equal(t, "ODA", outcome.Results[1].Store.Group)
	})

	t.Run("rejects out of range weights", func(t *testing.T) {
		env := setupTestRouter(t, seededCatalog())

		body := `{"items":[{"ean":"` + milkEAN + `"}],"weights":{"minCoverage":2}}`
		w := doRequest(env.router, http.MethodPost, "/api/v1/basket/best-stores", body)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("rejects a basket without barcodes", func(t *testing.T) {
		env := setupTestRouter(t, seededCatalog())

		w := doRequest(env.router, http.MethodPost, "/api/v1/basket/best-stores", `{"items":[{"name":"brød"}]}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("reports failed lookups", func(t *testing.T) {
		catalog := seededCatalog()
		catalog.err = &domain.UpstreamError{StatusCode: http.StatusTooManyRequests}
		env := setupTestRouter(t, catalog)

		body := `{"items":[{"ean":"` + milkEAN + `"}]}`
		w := doRequest(env.router, http.MethodPost, "/api/v1/basket/best-stores", body)

		require.Equal(t, http.StatusOK, w.Code)
		var outcome domain.RankingOutcome
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &outcome))
		assert.Equal(t, []string{milkEAN}, outcome.Failed)
		assert.Equal(t, domain.ReasonNoCandidates, outcome.Reason)
		assert.Equal(t, 2, catalog.calls)
	})
}

func TestShoppingListEndpoints(t *testing.T) {
	env := setupTestRouter(t, seededCatalog())

	w := doRequest(env.router, http.MethodPost, "/api/v1/lists", `{"name":"Fredag"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var list domain.ShoppingList
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.NotEmpty(t, list.ID)
	assert.Equal(t, "Fredag", list.Name)
	base := "/api/v1/lists/" + list.ID

	for _, body := range []string{
		`{"ean":"` + milkEAN + `","name":"Lettmelk"}`,
		`{"ean":"` + milkEAN + `","name":"Lettmelk"}`,
		`{"ean":"` + coffeeEAN + `","name":"Kaffe"}`,
	} {
		w = doRequest(env.router, http.MethodPost, base+"/items", body)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	w = doRequest(env.router, http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Items, 2)
	assert.Equal(t, 2, list.Items[0].Qty)

	t.Run("ranks the stored list", func(t *testing.T) {
		w := doRequest(env.router, http.MethodPost, base+"/best-stores", `{"scope":"physical"}`)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var outcome domain.RankingOutcome
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &outcome))
		require.NotEmpty(t, outcome.Results)
		assert.Equal(t, "KIWI", outcome.Results[0].Store.Group)
		assert.Equal(t, 70.0, outcome.Results[0].ItemsTotal)
	})

	t.Run("rejects an item without barcode or name", func(t *testing.T) {
		w := doRequest(env.router, http.MethodPost, base+"/items", `{"qty":3}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("removes an item", func(t *testing.T) {
		w := doRequest(env.router, http.MethodDelete, base+"/items/"+list.Items[1].ID, "")
		assert.Equal(t, http.StatusNoContent, w.Code)

		w = doRequest(env.router, http.MethodDelete, base+"/items/"+list.Items[1].ID, "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("clears the list", func(t *testing.T) {
		w := doRequest(env.router, http.MethodDelete, base+"/items", "")
		assert.Equal(t, http.StatusNoContent, w.Code)

		w = doRequest(env.router, http.MethodGet, base, "")
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
		assert.Empty(t, list.Items)
	})

	t.Run("unknown list is not found", func(t *testing.T) {
		w := doRequest(env.router, http.MethodGet, "/api/v1/lists/does-not-exist", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

// TestCORSIntegration tests CORS headers work end-to-end with full router
func TestCORSIntegration(t *testing.T) {
	env := setupTestRouter(t, newMockCatalogClient())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}

// TestAPIVersioning tests that API v1 routes are correctly versioned
func TestAPIVersioning(t *testing.T) {
	env := setupTestRouter(t, newMockCatalogClient())

	for _, path := range []string{"/api/products", "/products", "/api/v2/products"} {
		w := doRequest(env.router, http.MethodGet, path, "")
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
}
