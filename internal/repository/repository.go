package repository

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

const (
	productsCollection = "products"
	ordersCollection   = "orders"
	salesCollection    = "sales"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrOrderNotFound   = errors.New("order not found")
	ErrSaleNotFound    = errors.New("sale not found")

	// ErrVersionConflict is returned by a conditional write whose expected
	// version no longer matches the stored document.
	ErrVersionConflict = errors.New("version conflict")
	ErrDuplicateOrder  = errors.New("order already exists")
	ErrStatusConflict  = errors.New("order status changed concurrently")
)

type ProductRepository interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetProductBySlug(ctx context.Context, slug string) (*domain.Product, error)
	ListLatest(ctx context.Context, limit int) ([]domain.Product, error)
	Search(ctx context.Context, query string, limit int) ([]domain.Product, error)
	// UpdateVariants replaces the variants array only if the stored version
	// equals expectedVersion, and bumps the version.
	UpdateVariants(ctx context.Context, id string, expectedVersion int64, variants []domain.ColorVariant) error
}

type OrderRepository interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrderByNumber(ctx context.Context, orderNumber string) (*domain.Order, error)
	GetOrderBySessionID(ctx context.Context, sessionID string) (*domain.Order, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]domain.Order, error)
	UpdateOrderStatus(ctx context.Context, orderNumber string, from, to domain.OrderStatus) error
}

type SaleRepository interface {
	ActiveSaleByCouponCode(ctx context.Context, couponCode string, now time.Time) (*domain.Sale, error)
}
