package cache

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

type ProductCache interface {
	Get(ctx context.Context, productID string) (*domain.Product, error)
	// Set stores the product unless it is older than the version recorded by
	// the last Invalidate.
	Set(ctx context.Context, product *domain.Product) error
	// Invalidate drops the entry and refuses later fills below minVersion.
	Invalidate(ctx context.Context, productID string, minVersion int64) error
}

var ErrCacheMiss = errors.New("cache miss")
