package kassalapp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartshop/backend/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient("test-key", server.URL, WithRateLimit(1000, 100), WithTimeout(2*time.Second))
}

func TestNewClient(t *testing.T) {
	client := NewClient("test-api-key", "https://api.example.com/")

	assert.NotNil(t, client)
	assert.Equal(t, "test-api-key", client.apiKey)
	assert.Equal(t, "https://api.example.com", client.baseURL)
	assert.Equal(t, 15*time.Second, client.httpClient.Timeout)
	assert.NotNil(t, client.rateLimiter)
}

func TestNewClient_DefaultBaseURL(t *testing.T) {
	client := NewClient("k", "")
	assert.Equal(t, DefaultBaseURL, client.baseURL)
}

func TestProductsByEAN_Success(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/products/ean/7038010009457", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"ean":"7038010009457","products":[
			{"name":"Lettmelk","current_price":{"price":24.9},"store":{"name":"KIWI","code":"KIWI"}},
			{"name":"Lettmelk","current_price":{"price":26.5},"store":{"name":"Meny Storo","code":"MENY_NO"}}
		]}}`))
	})

	products, err := client.ProductsByEAN(context.Background(), "7038010009457")
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "Lettmelk", products[0]["name"])
}

func TestProductsByEAN_BareObject(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"name":"Brunost","ean":"7038010055720"}}`))
	})

	products, err := client.ProductsByEAN(context.Background(), "7038010055720")
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Brunost", products[0]["name"])
}

func TestProductsByEAN_NotFoundIsEmpty(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	products, err := client.ProductsByEAN(context.Background(), "00000000")
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestProductsByEAN_UpstreamError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("bad gateway"))
	})

	_, err := client.ProductsByEAN(context.Background(), "7038010009457")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUpstreamFailure))

	var upstream *domain.UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.Equal(t, http.StatusBadGateway, upstream.StatusCode)
	assert.Equal(t, "bad gateway", upstream.Detail)
}

func TestProductsByEAN_InvalidJSON(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	})

	_, err := client.ProductsByEAN(context.Background(), "7038010009457")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode response")
}

func TestSearchProducts_QueryParameters(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/products", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "melk", q.Get("search"))
		assert.Equal(t, "20", q.Get("size"))
		assert.Equal(t, "1", q.Get("unique"))
		assert.Equal(t, "1", q.Get("exclude_without_ean"))
		assert.Equal(t, "KIWI,REMA_1000", q.Get("group"))
		assert.Equal(t, "Meieri", q.Get("category"))
		assert.Equal(t, "Tine", q.Get("brand"))
		assert.Empty(t, q.Get("subcategory"))

		_, _ = w.Write([]byte(`{"data":[{"name":"Tine Lettmelk"},{"name":"Tine Helmelk"},"junk"]}`))
	})

	products, err := client.SearchProducts(context.Background(), domain.CatalogSearch{
		Query:    "melk",
		Size:     20,
		Groups:   []string{"KIWI", "REMA_1000"},
		Category: "Meieri",
		Brand:    "Tine",
	})
	require.NoError(t, err)
	assert.Len(t, products, 2)
}

func TestSearchProducts_UnprocessableIsEmpty(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	})

	products, err := client.SearchProducts(context.Background(), domain.CatalogSearch{Query: "x"})
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestSearchProducts_ServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.SearchProducts(context.Background(), domain.CatalogSearch{Query: "melk"})
	require.Error(t, err)

	var upstream *domain.UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.Equal(t, http.StatusInternalServerError, upstream.StatusCode)
}

func TestPhysicalStores(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/physical-stores", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "59.91", q.Get("lat"))
		assert.Equal(t, "10.75", q.Get("lng"))
		assert.Equal(t, "10", q.Get("km"))
		assert.Equal(t, "100", q.Get("size"))

		_, _ = w.Write([]byte(`{"data":[
			{"id":101,"name":"KIWI Grünerløkka","group":"KIWI","address":"Thorvald Meyers gate 1","position":{"lat":59.92,"lng":10.76}},
			{"id":"rema-7","name":"REMA 1000 Torggata","group":"REMA_1000","latitude":"59.915","longitude":"10.751"},
			{"name":"Joker Sentrum","group":"JOKER_NO"}
		]}`))
	})

	stores, err := client.PhysicalStores(context.Background(), domain.StoreQuery{
		Center: domain.GeoPoint{Lat: 59.91, Lng: 10.75},
	})
	require.NoError(t, err)
	require.Len(t, stores, 3)

	assert.Equal(t, "101", stores[0].ID)
	assert.Equal(t, "KIWI", stores[0].Group)
	require.NotNil(t, stores[0].Position)
	assert.InDelta(t, 59.92, stores[0].Position.Lat, 1e-9)

	assert.Equal(t, "rema-7", stores[1].ID)
	require.NotNil(t, stores[1].Position)
	assert.InDelta(t, 10.751, stores[1].Position.Lng, 1e-9)

	assert.Equal(t, "JOKER_NO:Joker Sentrum", stores[2].ID)
	assert.Nil(t, stores[2].Position)
}

func TestPhysicalStores_BareArray(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"1","name":"Coop Extra Storo","group":"COOP_EXTRA"}]`))
	})

	stores, err := client.PhysicalStores(context.Background(), domain.StoreQuery{RadiusKm: 5, Limit: 10})
	require.NoError(t, err)
	require.Len(t, stores, 1)
	assert.Equal(t, "Coop Extra Storo", stores[0].Name)
}

func TestContextCancellation(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.ProductsByEAN(ctx, "7038010009457")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
