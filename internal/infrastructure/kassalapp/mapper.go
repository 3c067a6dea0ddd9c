package kassalapp

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/smartshop/backend/internal/domain"
)

// decodeEANResponse accepts {data:{products:[...]}}, {data:{...}}, {products:[...]}
// or a bare product object.
func decodeEANResponse(body []byte) ([]domain.RawProduct, error) {
	var envelope map[string]any
	if err := decodeJSON(body, &envelope); err != nil {
		return nil, err
	}
	if envelope == nil {
		return []domain.RawProduct{}, nil
	}

	one := envelope
	if data, ok := envelope["data"].(map[string]any); ok {
		one = data
	}
	if list, ok := one["products"].([]any); ok {
		return rawProducts(list), nil
	}
	if len(one) == 0 {
		return []domain.RawProduct{}, nil
	}
	return []domain.RawProduct{domain.RawProduct(one)}, nil
}

// decodeListResponse accepts {data:[...]} or a bare array.
func decodeListResponse(body []byte) ([]domain.RawProduct, error) {
	var payload any
	if err := decodeJSON(body, &payload); err != nil {
		return nil, err
	}
	switch v := payload.(type) {
	case []any:
		return rawProducts(v), nil
	case map[string]any:
		if list, ok := v["data"].([]any); ok {
			return rawProducts(list), nil
		}
	}
	return []domain.RawProduct{}, nil
}

func rawProducts(list []any) []domain.RawProduct {
	out := make([]domain.RawProduct, 0, len(list))
	for _, entry := range list {
		if m, ok := entry.(map[string]any); ok {
			out = append(out, domain.RawProduct(m))
		}
	}
	return out
}

// storeDTO is one physical store as returned by the locator.
type storeDTO struct {
	ID        any       `json:"id"`
	Name      string    `json:"name"`
	Group     string    `json:"group"`
	Address   string    `json:"address"`
	Position  *pointDTO `json:"position"`
	Location  *pointDTO `json:"location"`
	Latitude  flexFloat `json:"latitude"`
	Longitude flexFloat `json:"longitude"`
}

type pointDTO struct {
	Lat flexFloat `json:"lat"`
	Lng flexFloat `json:"lng"`
}

// flexFloat accepts a JSON number or numeric string; anything else is unset.
type flexFloat struct {
	Value float64
	Valid bool
}

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	f.Value, f.Valid = n, true
	return nil
}

// decodeStores accepts {data:[...]}, {results:[...]} or a bare array.
func decodeStores(body []byte) ([]domain.PhysicalStore, error) {
	var envelope struct {
		Data    []storeDTO `json:"data"`
		Results []storeDTO `json:"results"`
	}
	var list []storeDTO
	if err := json.Unmarshal(body, &list); err != nil {
		if err := decodeJSON(body, &envelope); err != nil {
			return nil, err
		}
		list = envelope.Data
		if len(list) == 0 {
			list = envelope.Results
		}
	}

	stores := make([]domain.PhysicalStore, 0, len(list))
	for _, dto := range list {
		stores = append(stores, mapStore(dto))
	}
	return stores, nil
}

func mapStore(dto storeDTO) domain.PhysicalStore {
	store := domain.PhysicalStore{
		ID:      storeID(dto.ID),
		Name:    strings.TrimSpace(dto.Name),
		Group:   strings.TrimSpace(dto.Group),
		Address: strings.TrimSpace(dto.Address),
	}
	for _, p := range []*pointDTO{dto.Position, dto.Location, {Lat: dto.Latitude, Lng: dto.Longitude}} {
		if p != nil && p.Lat.Valid && p.Lng.Valid {
			store.Position = &domain.GeoPoint{Lat: p.Lat.Value, Lng: p.Lng.Value}
			break
		}
	}
	if store.ID == "" {
		if store.Group != "" {
			store.ID = store.Group + ":" + store.Name
		} else {
			store.ID = store.Name
		}
	}
	return store
}

func storeID(v any) string {
	switch id := v.(type) {
	case string:
		return strings.TrimSpace(id)
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case json.Number:
		return id.String()
	}
	return ""
}
