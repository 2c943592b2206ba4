package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/inventory"
)

type CartService struct {
	store cart.Store
	stock StockReader
	log   *slog.Logger
}

func NewCartService(store cart.Store, stock StockReader, log *slog.Logger) *CartService {
	return &CartService{store: store, stock: stock, log: log}
}

// LineAdjustment describes a change made to a cart line during validation.
type LineAdjustment struct {
	ProductID string `json:"productId"`
	Color     string `json:"color,omitempty"`
	Size      string `json:"size,omitempty"`
	Previous  int    `json:"previousQuantity"`
	Quantity  int    `json:"quantity"`
	Removed   bool   `json:"removed"`
	Reason    string `json:"reason"`
}

func (s *CartService) Get(ctx context.Context, owner string) (*cart.Cart, error) {
	return s.store.Get(ctx, owner)
}

// AddProduct resolves the selection against the live product and adds it to
// the owner's cart. The resulting line quantity may not exceed stock.
func (s *CartService) AddProduct(ctx context.Context, owner, productID string, qty int, color, size string) (*cart.Cart, error) {
	if qty < 1 {
		return nil, fmt.Errorf("%w: quantity must be at least 1", ErrValidation)
	}

	p, err := s.stock.ProductFresh(ctx, productID)
	if err != nil {
		return nil, err
	}

	_, v := p.FindVariant(color)
	if v == nil && len(p.Variants) > 0 {
		return nil, fmt.Errorf("%w: unknown color %q", ErrValidation, color)
	}
	if v != nil {
		color = v.Color
		if size != "" {
			_, sz := v.FindSize(size)
			if sz == nil {
				return nil, fmt.Errorf("%w: unknown size %q", ErrValidation, size)
			}
			size = sz.Name
		} else if len(v.Sizes) > 0 {
			size = v.Sizes[0].Name
		}
	}

	c, err := s.store.Get(ctx, owner)
	if err != nil {
		return nil, err
	}

	available := inventory.QuantityFor(p, color, size)
	inCart := 0
	if existing, ok := c.Find(p.ID, color, size); ok {
		inCart = existing.Quantity
	}
	if inCart+qty > available {
		return nil, &inventory.InsufficientStockError{
			ProductID: p.ID, Color: color, Size: size,
			Requested: inCart + qty, Available: available,
		}
	}

	item := cart.Item{
		Product: cart.ProductSnapshot{
			ID:       p.ID,
			Name:     p.Name,
			Price:    p.Price,
			Currency: p.Currency,
		},
		Quantity:  qty,
		ImageURL:  p.PrimaryImage(v),
		Selection: cart.Selection{Color: color, Size: size},
	}
	if err := c.Add(item); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := s.store.Save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// UpdateQuantity sets a line's quantity after checking it against stock.
func (s *CartService) UpdateQuantity(ctx context.Context, owner, productID, color, size string, qty int) (*cart.Cart, error) {
	if qty < 1 {
		return nil, fmt.Errorf("%w: quantity must be at least 1", ErrValidation)
	}

	c, err := s.store.Get(ctx, owner)
	if err != nil {
		return nil, err
	}
	if _, ok := c.Find(productID, color, size); !ok {
		return nil, cart.ErrItemNotFound
	}

	available, err := s.stock.AvailableFresh(ctx, productID, color, size)
	if err != nil {
		return nil, err
	}
	if qty > available {
		return nil, &inventory.InsufficientStockError{
			ProductID: productID, Color: color, Size: size,
			Requested: qty, Available: available,
		}
	}

	if err := c.SetQuantity(productID, color, size, qty); err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CartService) Remove(ctx context.Context, owner, productID, color, size string) (*cart.Cart, error) {
	c, err := s.store.Get(ctx, owner)
	if err != nil {
		return nil, err
	}
	if c.Remove(productID, color, size) == 0 {
		return nil, cart.ErrItemNotFound
	}
	if err := s.store.Save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CartService) Clear(ctx context.Context, owner string) error {
	return s.store.Delete(ctx, owner)
}

// Validate clamps every line to the stock on hand, dropping lines that can no
// longer be bought, and reports what changed.
func (s *CartService) Validate(ctx context.Context, owner string) (*cart.Cart, []LineAdjustment, error) {
	c, err := s.store.Get(ctx, owner)
	if err != nil {
		return nil, nil, err
	}

	adjustments := make([]LineAdjustment, 0)
	kept := make([]cart.Item, 0, len(c.Items))
	for _, item := range c.Items {
		available, err := s.stock.Available(ctx, item.Product.ID, item.Selection.Color, item.Selection.Size)
		if err != nil && !errors.Is(err, inventory.ErrProductNotFound) {
			return nil, nil, err
		}

		adj := LineAdjustment{
			ProductID: item.Product.ID,
			Color:     item.Selection.Color,
			Size:      item.Selection.Size,
			Previous:  item.Quantity,
		}
		switch {
		case err != nil:
			adj.Removed, adj.Reason = true, "product no longer exists"
		case available <= 0:
			adj.Removed, adj.Reason = true, "out of stock"
		case item.Quantity > available:
			adj.Quantity, adj.Reason = available, "quantity reduced to available stock"
			item.Quantity = available
		default:
			kept = append(kept, item)
			continue
		}

		if !adj.Removed {
			kept = append(kept, item)
		}
		adjustments = append(adjustments, adj)
	}

	if len(adjustments) > 0 {
		c.Items = kept
		if err := s.store.Save(ctx, c); err != nil {
			return nil, nil, err
		}
		s.log.InfoContext(ctx, "cart adjusted to stock", "owner", owner, "changes", len(adjustments))
	}
	return c, adjustments, nil
}
