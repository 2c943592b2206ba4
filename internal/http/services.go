package http

import (
	"context"

	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/payment"
	"github.com/fjod/go_cart/storefront/internal/service"
)

type CatalogService interface {
	Latest(ctx context.Context, limit int) ([]domain.Product, error)
	Search(ctx context.Context, query string, limit int) ([]domain.Product, error)
	Product(ctx context.Context, idOrSlug string) (*domain.Product, error)
	ActiveSale(ctx context.Context, couponCode string) (*domain.Sale, error)
}

type StockReader interface {
	Available(ctx context.Context, productID, color, size string) (int, error)
}

type CartService interface {
	Get(ctx context.Context, owner string) (*cart.Cart, error)
	AddProduct(ctx context.Context, owner, productID string, qty int, color, size string) (*cart.Cart, error)
	UpdateQuantity(ctx context.Context, owner, productID, color, size string, qty int) (*cart.Cart, error)
	Remove(ctx context.Context, owner, productID, color, size string) (*cart.Cart, error)
	Clear(ctx context.Context, owner string) error
	Validate(ctx context.Context, owner string) (*cart.Cart, []service.LineAdjustment, error)
}

type CheckoutService interface {
	Checkout(ctx context.Context, owner string, meta service.Metadata) (*service.CheckoutResult, error)
	VerifyPayment(ctx context.Context, sessionID string) (bool, error)
}

type OrderService interface {
	ListForUser(ctx context.Context, userID string) ([]domain.Order, error)
	GetForUser(ctx context.Context, userID, orderNumber string) (*domain.Order, error)
	UpdateStatus(ctx context.Context, actorID, orderNumber string, next domain.OrderStatus) (*domain.Order, error)
}

type OrderMaterializer interface {
	Materialize(ctx context.Context, session *payment.Session) (*service.MaterializeResult, error)
}

type EventParser interface {
	ParseEvent(payload []byte, signature string) (*payment.Event, error)
}
