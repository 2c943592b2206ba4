package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/repository"
)

const defaultMaxAttempts = 5

type WriterOption func(*StockWriter)

// WithRequireColor makes an adjustment without a color invalid instead of
// defaulting to the first variant.
func WithRequireColor(require bool) WriterOption {
	return func(w *StockWriter) { w.requireColor = require }
}

// WithMaxAttempts bounds the optimistic retry loop.
func WithMaxAttempts(n int) WriterOption {
	return func(w *StockWriter) {
		if n > 0 {
			w.maxAttempts = n
		}
	}
}

// StockWriter decrements per-variant, per-size stock counters.
type StockWriter struct {
	products     repository.ProductRepository
	cache        cache.ProductCache
	log          *slog.Logger
	requireColor bool
	maxAttempts  int
}

func NewStockWriter(products repository.ProductRepository, productCache cache.ProductCache, log *slog.Logger, opts ...WriterOption) *StockWriter {
	w := &StockWriter{
		products:    products,
		cache:       productCache,
		log:         log,
		maxAttempts: defaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Decrement removes adj.Quantity units from the selected size. Stock never
// goes below zero; units sold beyond what was on hand are reported as the
// result's Shortfall. The write only lands if nobody changed the product
// since it was read, otherwise the whole read-modify-write is retried.
func (w *StockWriter) Decrement(ctx context.Context, adj domain.StockAdjustment) (*domain.StockAdjustmentResult, error) {
	if err := w.validate(adj); err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		res, err := w.tryDecrement(ctx, adj)
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return nil, err
		}

		w.log.DebugContext(ctx, "stock version conflict, retrying",
			"product_id", adj.ProductID, "attempt", attempt)
		if attempt < w.maxAttempts {
			if err := sleepCtx(ctx, backoff(attempt)); err != nil {
				return nil, err
			}
		}
	}

	return nil, fmt.Errorf("%w: product %s after %d attempts", ErrConcurrentUpdate, adj.ProductID, w.maxAttempts)
}

func (w *StockWriter) validate(adj domain.StockAdjustment) error {
	switch {
	case strings.TrimSpace(adj.ProductID) == "":
		return fmt.Errorf("%w: product id is required", ErrInvalidAdjustment)
	case strings.TrimSpace(adj.Size) == "":
		return fmt.Errorf("%w: size is required", ErrInvalidAdjustment)
	case adj.Quantity < 1:
		return fmt.Errorf("%w: quantity must be at least 1, got %d", ErrInvalidAdjustment, adj.Quantity)
	case w.requireColor && strings.TrimSpace(adj.Color) == "":
		return fmt.Errorf("%w: color is required", ErrInvalidAdjustment)
	}
	return nil
}

func (w *StockWriter) tryDecrement(ctx context.Context, adj domain.StockAdjustment) (*domain.StockAdjustmentResult, error) {
	p, err := w.products.GetProduct(ctx, adj.ProductID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, adj.ProductID)
		}
		return nil, err
	}
	if len(p.Variants) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoVariants, adj.ProductID)
	}

	vi, v := p.FindVariant(adj.Color)
	if v == nil {
		return nil, fmt.Errorf("%w: %q on product %s", ErrVariantNotFound, adj.Color, adj.ProductID)
	}
	si, s := v.FindSize(adj.Size)
	if s == nil {
		return nil, fmt.Errorf("%w: %q in color %q on product %s", ErrSizeNotFound, adj.Size, v.Color, adj.ProductID)
	}

	previous := s.Quantity
	newQuantity := domain.ClampedDecrement(previous, adj.Quantity)
	shortfall := 0
	if previous < adj.Quantity {
		shortfall = adj.Quantity - previous
		w.log.WarnContext(ctx, "insufficient stock, clamping to zero",
			"product_id", adj.ProductID,
			"color", v.Color,
			"size", s.Name,
			"available", previous,
			"requested", adj.Quantity,
		)
	}

	variants := p.CloneVariants()
	variants[vi].Sizes[si].Quantity = newQuantity
	if err := w.products.UpdateVariants(ctx, p.ID, p.Version, variants); err != nil {
		return nil, err
	}
	w.invalidate(p.ID, p.Version+1)

	w.log.InfoContext(ctx, "stock decremented",
		"product_id", p.ID,
		"color", v.Color,
		"size", s.Name,
		"previous", previous,
		"new", newQuantity,
	)

	return &domain.StockAdjustmentResult{
		Success:          true,
		ProductID:        p.ID,
		Variant:          v.Color,
		Size:             s.Name,
		PreviousQuantity: previous,
		NewQuantity:      newQuantity,
		Shortfall:        shortfall,
	}, nil
}

// invalidate drops the cached product and keeps reads that started before
// the write from caching the old version again.
func (w *StockWriter) invalidate(productID string, version int64) {
	if w.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := w.cache.Invalidate(ctx, productID, version); err != nil {
		w.log.Warn("product cache invalidate failed", "product_id", productID, "error", err)
	}
}

func backoff(attempt int) time.Duration {
	base := time.Duration(attempt) * 5 * time.Millisecond
	return base + time.Duration(rand.Intn(5))*time.Millisecond
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
