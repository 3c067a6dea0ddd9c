package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/smartshop/backend/internal/domain"
)

// ListService manages persisted shopping lists and prices them.
type ListService struct {
	repo   domain.ListRepository
	prices *PriceService
}

// NewListService creates a list service. prices may be nil when only list
// storage is needed.
func NewListService(repo domain.ListRepository, prices *PriceService) *ListService {
	return &ListService{repo: repo, prices: prices}
}

// CreateList creates an empty list; a blank name becomes "Handleliste".
func (s *ListService) CreateList(ctx context.Context, name string) (*domain.ShoppingList, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Handleliste"
	}
	return s.repo.CreateList(ctx, name)
}

// GetList returns a list by id.
func (s *ListService) GetList(ctx context.Context, id string) (*domain.ShoppingList, error) {
	return s.repo.GetList(ctx, id)
}

// AddItem validates and adds an item. The barcode is cleaned to digits and
// dropped when it is not a usable barcode, keeping the item as free text.
func (s *ListService) AddItem(ctx context.Context, listID string, item domain.ShoppingListItem) (*domain.ShoppingList, error) {
	item.EAN = listEAN(item.EAN)
	item.Name = strings.TrimSpace(item.Name)
	item.Brand = strings.TrimSpace(item.Brand)
	item.Size = strings.TrimSpace(item.Size)
	if item.EAN == "" && item.Name == "" {
		return nil, fmt.Errorf("%w: item needs a barcode or a name", domain.ErrInvalidRequest)
	}
	if item.Name == "" {
		item.Name = item.EAN
	}
	item.Qty = item.Quantity()
	return s.repo.AddItem(ctx, listID, item)
}

// RemoveItem deletes one item from a list.
func (s *ListService) RemoveItem(ctx context.Context, listID, itemID string) error {
	return s.repo.RemoveItem(ctx, listID, itemID)
}

// ClearItems empties a list.
func (s *ListService) ClearItems(ctx context.Context, listID string) error {
	return s.repo.ClearItems(ctx, listID)
}

// BestStores ranks stores for a stored list. Items in req are replaced by the
// list's items.
func (s *ListService) BestStores(ctx context.Context, listID string, req BasketRequest) (*domain.RankingOutcome, error) {
	if s.prices == nil {
		return nil, fmt.Errorf("%w: pricing is not configured", domain.ErrUpstreamFailure)
	}
	list, err := s.repo.GetList(ctx, listID)
	if err != nil {
		return nil, err
	}
	req.Items = list.Items
	return s.prices.BestStores(ctx, req)
}

// listEAN keeps a cleaned barcode of lookup length; 13-digit codes must also
// carry a valid check digit.
func listEAN(raw string) string {
	ean := domain.CleanEAN(raw)
	if !domain.IsLookupEAN(ean) {
		return ""
	}
	if len(ean) == 13 && !domain.ValidEAN13(ean) {
		return ""
	}
	return ean
}
