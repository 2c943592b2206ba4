package service

import (
	"context"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/ledger"
)

type StockReader interface {
	Available(ctx context.Context, productID, color, size string) (int, error)
	AvailableFresh(ctx context.Context, productID, color, size string) (int, error)
	ProductFresh(ctx context.Context, productID string) (*domain.Product, error)
}

type StockWriter interface {
	Decrement(ctx context.Context, adj domain.StockAdjustment) (*domain.StockAdjustmentResult, error)
}

// Ledger is the idempotency and retry bookkeeping the materializer needs.
type Ledger interface {
	Claim(ctx context.Context, sessionID, orderNumber string, lease time.Duration) (*ledger.ClaimResult, error)
	SetOrderID(ctx context.Context, sessionID, orderID string) error
	Complete(ctx context.Context, sessionID string) error
	Release(ctx context.Context, sessionID string) error
	RecordAdjustments(ctx context.Context, adjustments []ledger.Adjustment) error
	AdjustmentsForSession(ctx context.Context, sessionID string) ([]*ledger.Adjustment, error)
	MarkApplied(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, cause error) error
	MarkDead(ctx context.Context, id string, cause error) error
}
