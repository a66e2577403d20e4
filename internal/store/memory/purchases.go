package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"shopdesk/internal/domain"
	"shopdesk/internal/store"
)

func (s *Store) ListPurchases(_ context.Context) ([]domain.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	purchases := make([]domain.Purchase, 0, len(s.purchases))
	for _, p := range s.purchases {
		summary := clonePurchase(p)
		summary.Items = nil
		purchases = append(purchases, summary)
	}
	slices.SortFunc(purchases, func(a, b domain.Purchase) int {
		if c := strings.Compare(b.PurchaseDate, a.PurchaseDate); c != 0 {
			return c
		}
		return cmpInt64(b.ID, a.ID)
	})
	return purchases, nil
}

func (s *Store) GetPurchase(_ context.Context, id int64) (*domain.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	purchase, exists := s.purchases[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	out := clonePurchase(purchase)
	return &out, nil
}

// CreatePurchase stocks in a supplier delivery. Lines may register new
// products inline; those start at zero stock and receive the line quantity.
func (s *Store) CreatePurchase(_ context.Context, in domain.PurchaseInput) (*domain.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	date, err := store.PurchaseDate(in.PurchaseDate)
	if err != nil {
		return nil, err
	}
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("%w: purchase has no items", store.ErrInvalidTransaction)
	}

	newCodes := map[string]bool{}
	for i, item := range in.Items {
		if err := store.ValidatePurchaseLine(i, item); err != nil {
			return nil, err
		}
		if item.ProductID != nil {
			if _, ok := s.products[*item.ProductID]; !ok {
				return nil, fmt.Errorf("line %d: product %d: %w", i+1, *item.ProductID, store.ErrNotFound)
			}
			continue
		}
		code := strings.ToUpper(strings.TrimSpace(item.Product.Code))
		if s.codeTaken(code, 0) || newCodes[code] {
			return nil, fmt.Errorf("%w: product code %s already exists", store.ErrConflict, code)
		}
		newCodes[code] = true
	}

	purchase := domain.Purchase{
		ID:           s.next(seqPurchase),
		PurchaseDate: date,
		Supplier:     store.SupplierName(in.Supplier),
	}
	for _, item := range in.Items {
		var product domain.Product
		if item.ProductID != nil {
			product = s.products[*item.ProductID]
		} else {
			product = store.NewProduct(item)
			product.ID = s.next(seqProduct)
		}
		product.CurrentStock += item.Quantity
		product.BuyPrice = item.UnitPrice
		if item.SellPrice != nil && item.SellPrice.IsPositive() {
			product.SellPrice = *item.SellPrice
		}
		s.products[product.ID] = product

		purchase.Items = append(purchase.Items, purchaseItem(s.next(seqPurchaseItem), product, item))
	}
	store.SummarizePurchase(&purchase)

	s.purchases[purchase.ID] = purchase
	out := clonePurchase(purchase)
	return &out, nil
}

// UpdatePurchase replaces the lines of an existing purchase. The stock taken
// in by the old lines is reversed before the new lines are applied, and the
// whole update is rejected if that would leave any product below zero.
func (s *Store) UpdatePurchase(_ context.Context, id int64, in domain.PurchaseInput) (*domain.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.purchases[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	date, err := store.PurchaseDate(in.PurchaseDate)
	if err != nil {
		return nil, err
	}
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("%w: purchase has no items", store.ErrInvalidTransaction)
	}

	delta := map[int64]int{}
	for _, item := range existing.Items {
		delta[item.ProductID] -= item.Quantity
	}
	for i, item := range in.Items {
		if err := store.ValidatePurchaseLine(i, item); err != nil {
			return nil, err
		}
		if item.ProductID == nil {
			return nil, fmt.Errorf("%w: line %d: new products cannot be added while editing", store.ErrInvalidTransaction, i+1)
		}
		if _, ok := s.products[*item.ProductID]; !ok {
			return nil, fmt.Errorf("line %d: product %d: %w", i+1, *item.ProductID, store.ErrNotFound)
		}
		delta[*item.ProductID] += item.Quantity
	}
	for productID, change := range delta {
		product, ok := s.products[productID]
		if !ok {
			continue
		}
		if product.CurrentStock+change < 0 {
			return nil, fmt.Errorf("%w for %s: %d already sold", store.ErrInsufficientStock, product.Code, -(product.CurrentStock + change))
		}
	}

	for productID, change := range delta {
		if product, ok := s.products[productID]; ok {
			product.CurrentStock += change
			s.products[productID] = product
		}
	}

	purchase := domain.Purchase{
		ID:           id,
		PurchaseDate: date,
		Supplier:     store.SupplierName(in.Supplier),
	}
	for _, item := range in.Items {
		product := s.products[*item.ProductID]
		product.BuyPrice = item.UnitPrice
		if item.SellPrice != nil && item.SellPrice.IsPositive() {
			product.SellPrice = *item.SellPrice
		}
		s.products[product.ID] = product
		purchase.Items = append(purchase.Items, purchaseItem(s.next(seqPurchaseItem), product, item))
	}
	store.SummarizePurchase(&purchase)

	s.purchases[id] = purchase
	out := clonePurchase(purchase)
	return &out, nil
}

func purchaseItem(id int64, product domain.Product, in domain.PurchaseItemInput) domain.PurchaseItem {
	return domain.PurchaseItem{
		ID:        id,
		ProductID: product.ID,
		Quantity:  in.Quantity,
		UnitPrice: in.UnitPrice,
		LineTotal: in.UnitPrice.Mul(units(in.Quantity)),
		Product:   productRef(product),
	}
}
