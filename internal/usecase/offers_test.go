package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartshop/backend/internal/domain"
)

func TestIsOnlineStore(t *testing.T) {
	assert.True(t, IsOnlineStore("Oda", "ODA"))
	assert.True(t, IsOnlineStore("", "KOLONIAL"))
	assert.True(t, IsOnlineStore("Meny nettbutikk", "MENY_NO"))
	assert.True(t, IsOnlineStore("Coop Online", ""))
	assert.False(t, IsOnlineStore("KIWI", "KIWI"))
	assert.False(t, IsOnlineStore("", ""))
}

func scopeFixtures() []domain.NormalizedProduct {
	return []domain.NormalizedProduct{
		{Name: "kiwi", Store: ptr("KIWI"), Group: ptr("KIWI"), Price: ptr(20.0)},
		{Name: "oda", Store: ptr("Oda"), Group: ptr("ODA"), Price: ptr(18.0)},
		{Name: "meny", Store: ptr("MENY"), Group: ptr("MENY_NO")},
	}
}

func TestFilterByScope(t *testing.T) {
	products := scopeFixtures()

	assert.Equal(t, []string{"kiwi", "oda", "meny"}, names(FilterByScope(products, domain.ScopeAll)))
	assert.Equal(t, []string{"oda"}, names(FilterByScope(products, domain.ScopeOnline)))
	assert.Equal(t, []string{"kiwi", "meny"}, names(FilterByScope(products, domain.ScopePhysical)))
}

func TestBestPrice(t *testing.T) {
	best := BestPrice(scopeFixtures())
	require.NotNil(t, best)
	assert.Equal(t, "oda", best.Name)

	assert.Nil(t, BestPrice([]domain.NormalizedProduct{{Name: "unpriced"}}))
	assert.Nil(t, BestPrice(nil))

	tied := []domain.NormalizedProduct{{Name: "first", Price: ptr(10.0)}, {Name: "second", Price: ptr(10.0)}}
	assert.Equal(t, "first", BestPrice(tied).Name)
}

func TestOffersFromProducts(t *testing.T) {
	products := append(scopeFixtures(), domain.NormalizedProduct{
		Name:          "bare",
		Store:         ptr("Lokal butikk"),
		Price:         ptr(12.0),
		PricePerLiter: ptr(12.0),
		PackageInfo:   domain.PackageInfo{Liters: ptr(1.0)},
	})

	offers := OffersFromProducts(products)

	require.Len(t, offers, 3, "unpriced products are skipped")
	assert.Equal(t, domain.StoreOffer{StoreID: "KIWI", StoreName: "KIWI", Group: "KIWI", Price: 20}, offers[0])
	assert.True(t, offers[1].IsOnline)
	assert.Equal(t, "ODA", offers[1].StoreID)

	bare := offers[2]
	assert.Equal(t, "Lokal butikk", bare.StoreID)
	assert.Empty(t, bare.Group)
	require.NotNil(t, bare.PricePerLiter)
	assert.Equal(t, 12.0, *bare.PricePerLiter)
	require.NotNil(t, bare.PackageInfo)
	assert.Nil(t, bare.UnitPricing)
}

func TestDeriveCandidates(t *testing.T) {
	lookup := offerMap(map[string][]domain.StoreOffer{
		eanMilk: {
			physicalOffer("KIWI", 20),
			physicalOffer("REMA_1000", 18),
			onlineOffer("ODA", 25),
		},
		eanCoffee: {
			physicalOffer("KIWI", 30),
			physicalOffer("MENY_NO", 40),
			{StoreID: "ODA-OSLO", StoreName: "Oda Oslo", Group: "ODA", IsOnline: true, Price: 35},
		},
	})
	eans := []string{eanMilk, eanCoffee}

	t.Run("chains then online shops", func(t *testing.T) {
		got := DeriveCandidates(eans, lookup, CandidateOptions{Scope: domain.ScopeAll})

		assert.Equal(t, []string{"KIWI", "REMA_1000", "MENY_NO", "ODA-OSLO"}, candidateIDs(got))
		assert.True(t, got[0].IsPhysical)
		assert.False(t, got[3].IsPhysical)
		assert.Equal(t, "Oda Oslo", got[3].Name)
	})

	t.Run("scope restricts the kind", func(t *testing.T) {
		online := DeriveCandidates(eans, lookup, CandidateOptions{Scope: domain.ScopeOnline})
		assert.Equal(t, []string{"ODA-OSLO"}, candidateIDs(online))

		physical := DeriveCandidates(eans, lookup, CandidateOptions{Scope: domain.ScopePhysical})
		assert.Equal(t, []string{"KIWI", "REMA_1000", "MENY_NO"}, candidateIDs(physical))
	})

	t.Run("preferred groups", func(t *testing.T) {
		got := DeriveCandidates(eans, lookup, CandidateOptions{PreferredGroups: []string{"kiwi", " oda "}})
		assert.Equal(t, []string{"KIWI", "ODA-OSLO"}, candidateIDs(got))
	})

	t.Run("nearby stores replace chain candidates", func(t *testing.T) {
		pos := &domain.GeoPoint{Lat: 59.94, Lng: 10.77}
		got := DeriveCandidates(eans, lookup, CandidateOptions{
			Scope: domain.ScopePhysical,
			NearbyStores: []domain.PhysicalStore{
				{ID: "kiwi-1", Name: "KIWI Storo", Group: "KIWI", Position: pos},
				{ID: "kiwi-1", Name: "KIWI Storo", Group: "KIWI"},
				{Name: "Coop Extra Nydalen"},
				{ID: "x", Name: "Ukjent"},
			},
		})

		require.Len(t, got, 2)
		assert.Equal(t, "kiwi-1", got[0].ID)
		assert.Equal(t, "KIWI Storo", got[0].Name)
		assert.Equal(t, pos, got[0].Position)
		assert.Equal(t, "COOP_EXTRA:Coop Extra Nydalen", got[1].ID)
		assert.Equal(t, "COOP_EXTRA", got[1].Group)
	})
}

func candidateIDs(candidates []domain.CandidateStore) []string {
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.ID)
	}
	return out
}
