package inventory

import (
	"errors"
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/repository"
)

var (
	ErrInvalidAdjustment = errors.New("invalid stock adjustment")
	ErrProductNotFound   = repository.ErrProductNotFound
	ErrNoVariants        = errors.New("product has no variants")
	ErrVariantNotFound   = errors.New("color variant not found")
	ErrSizeNotFound      = errors.New("size not found")
	ErrConcurrentUpdate  = errors.New("stock update lost to concurrent writers")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// InsufficientStockError carries the quantity that is actually available.
type InsufficientStockError struct {
	ProductID string
	Color     string
	Size      string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s (%s/%s): requested %d, available %d",
		e.ProductID, e.Color, e.Size, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// IsRetryable reports whether a failed adjustment may succeed later. Missing
// products, variants or sizes and malformed requests will not.
func IsRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrInvalidAdjustment),
		errors.Is(err, ErrProductNotFound),
		errors.Is(err, ErrNoVariants),
		errors.Is(err, ErrVariantNotFound),
		errors.Is(err, ErrSizeNotFound):
		return false
	}
	return true
}
