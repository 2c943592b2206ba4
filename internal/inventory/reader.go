package inventory

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"golang.org/x/sync/singleflight"
)

// StockReader answers "how many units are available" for a product selection.
type StockReader struct {
	products repository.ProductRepository
	cache    cache.ProductCache
	sfg      singleflight.Group // Prevents cache stampede
	log      *slog.Logger
}

// NewStockReader builds a reader. productCache may be nil, in which case every
// read goes to the repository.
func NewStockReader(products repository.ProductRepository, productCache cache.ProductCache, log *slog.Logger) *StockReader {
	return &StockReader{
		products: products,
		cache:    productCache,
		log:      log,
	}
}

// Available returns the stock for the selection using the product cache.
func (r *StockReader) Available(ctx context.Context, productID, color, size string) (int, error) {
	p, err := r.Product(ctx, productID)
	if err != nil {
		return 0, err
	}
	return QuantityFor(p, color, size), nil
}

// AvailableFresh bypasses the cache. Checkout uses it.
func (r *StockReader) AvailableFresh(ctx context.Context, productID, color, size string) (int, error) {
	p, err := r.ProductFresh(ctx, productID)
	if err != nil {
		return 0, err
	}
	return QuantityFor(p, color, size), nil
}

// Product returns the product, from cache when possible.
func (r *StockReader) Product(ctx context.Context, productID string) (*domain.Product, error) {
	if r.cache == nil {
		return r.ProductFresh(ctx, productID)
	}

	v, err, _ := r.sfg.Do(productID, func() (interface{}, error) {
		p, err := r.cache.Get(ctx, productID)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			r.log.WarnContext(ctx, "product cache get failed", "product_id", productID, "error", err)
		}

		p, err = r.products.GetProduct(ctx, productID)
		if err != nil {
			return nil, err
		}

		// the cache drops this fill if a write invalidated a newer version
		// since the read above
		setCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		if err := r.cache.Set(setCtx, p); err != nil {
			r.log.WarnContext(ctx, "product cache set failed", "product_id", p.ID, "error", err)
		}
		return p, nil
	})
	if err != nil {
		return nil, err
	}

	// singleflight shares the pointer between callers
	p := *v.(*domain.Product)
	p.Variants = v.(*domain.Product).CloneVariants()
	return &p, nil
}

func (r *StockReader) ProductFresh(ctx context.Context, productID string) (*domain.Product, error) {
	return r.products.GetProduct(ctx, productID)
}

// QuantityFor applies the availability rules to a loaded product:
// no variants means nothing to sell, an empty color picks the first variant,
// an unknown color or size has nothing available and an empty size sums
// every size of the variant.
func QuantityFor(p *domain.Product, color, size string) int {
	_, v := p.FindVariant(color)
	if v == nil {
		return 0
	}
	if size == "" {
		return v.TotalQuantity()
	}
	_, s := v.FindSize(size)
	if s == nil {
		return 0
	}
	return s.Quantity
}
