package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/SigNoz/marketplace-storefront/internal/localstore"
	"github.com/SigNoz/marketplace-storefront/internal/metrics"
	"github.com/SigNoz/marketplace-storefront/internal/models"
	"github.com/shopspring/decimal"
)

// CartService keeps the cart as a single JSON blob in the local store.
// The blob is the only authority: every call reads it, mutations write the
// whole sequence back.
type CartService struct {
	mu      sync.Mutex
	store   localstore.Store
	key     string
	metrics *metrics.AppMetrics
}

// NewCartService creates a cart persisted under key
func NewCartService(store localstore.Store, key string, m *metrics.AppMetrics) *CartService {
	return &CartService{
		store:   store,
		key:     key,
		metrics: m,
	}
}

// Read returns the persisted cart in insertion order. A missing or unreadable
// blob is an empty cart. Repeated lines for a product are merged.
func (s *CartService) Read(ctx context.Context) ([]models.CartItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// Add increments the line for product, or appends it with quantity 1
func (s *CartService) Add(ctx context.Context, product models.Product) ([]models.CartItem, error) {
	return s.mutate(ctx, func(items []models.CartItem) []models.CartItem {
		for i := range items {
			if items[i].ProductID == product.ID {
				items[i].Quantity++
				return items
			}
		}
		return append(items, models.CartItem{ProductID: product.ID, Product: product, Quantity: 1})
	})
}

// AddIfAbsent appends product with quantity 1 unless it is already in the cart
func (s *CartService) AddIfAbsent(ctx context.Context, product models.Product) ([]models.CartItem, error) {
	return s.mutate(ctx, func(items []models.CartItem) []models.CartItem {
		for _, it := range items {
			if it.ProductID == product.ID {
				return items
			}
		}
		return append(items, models.CartItem{ProductID: product.ID, Product: product, Quantity: 1})
	})
}

// Remove drops the line for productID. Unknown ids are ignored.
func (s *CartService) Remove(ctx context.Context, productID string) ([]models.CartItem, error) {
	return s.mutate(ctx, func(items []models.CartItem) []models.CartItem {
		return without(items, productID)
	})
}

// SetQuantity replaces the quantity of an existing line. A quantity of zero
// or less removes the line.
func (s *CartService) SetQuantity(ctx context.Context, productID string, quantity int) ([]models.CartItem, error) {
	return s.mutate(ctx, func(items []models.CartItem) []models.CartItem {
		if quantity <= 0 {
			return without(items, productID)
		}
		for i := range items {
			if items[i].ProductID == productID {
				items[i].Quantity = quantity
			}
		}
		return items
	})
}

// Clear deletes the persisted cart
func (s *CartService) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	s.metrics.RecordCart(ctx, 0, 0)
	return nil
}

// Total is the sum of price times quantity over items
func (s *CartService) Total(items []models.CartItem) decimal.Decimal {
	return CartTotal(items)
}

// CartTotal is the sum of price times quantity over items
func CartTotal(items []models.CartItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(decimal.NewFromFloat(it.Product.Price).Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

func (s *CartService) mutate(ctx context.Context, fn func([]models.CartItem) []models.CartItem) ([]models.CartItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	items = fn(items)

	raw, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cart: %w", err)
	}
	if err := s.store.Set(ctx, s.key, string(raw)); err != nil {
		return nil, fmt.Errorf("failed to save cart: %w", err)
	}

	total, _ := CartTotal(items).Float64()
	s.metrics.RecordCart(ctx, quantityOf(items), total)
	return items, nil
}

func (s *CartService) load(ctx context.Context) ([]models.CartItem, error) {
	raw, ok, err := s.store.Get(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to read cart: %w", err)
	}
	items := []models.CartItem{}
	if !ok || raw == "" {
		return items, nil
	}
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		slog.WarnContext(ctx, "discarding unreadable cart", slog.String("key", s.key), slog.Any("error", err))
		return []models.CartItem{}, nil
	}
	return normalize(items), nil
}

// normalize merges repeated lines for one product into the first, summing
// quantities, and drops lines without a product or a positive quantity.
// Blobs written by this service are already normal.
func normalize(items []models.CartItem) []models.CartItem {
	out := make([]models.CartItem, 0, len(items))
	index := make(map[string]int, len(items))
	for _, it := range items {
		if it.ProductID == "" || it.Quantity < 1 {
			continue
		}
		if i, ok := index[it.ProductID]; ok {
			out[i].Quantity += it.Quantity
			continue
		}
		index[it.ProductID] = len(out)
		out = append(out, it)
	}
	return out
}

func without(items []models.CartItem, productID string) []models.CartItem {
	out := items[:0]
	for _, it := range items {
		if it.ProductID != productID {
			out = append(out, it)
		}
	}
	return out
}

func quantityOf(items []models.CartItem) int {
	n := 0
	for _, it := range items {
		n += it.Quantity
	}
	return n
}
