package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/inventory"
	"github.com/fjod/go_cart/storefront/internal/ledger"
	"github.com/fjod/go_cart/storefront/internal/payment"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/google/uuid"
)

const (
	unknownProduct      = "Unknown Product"
	defaultClaimLease   = 2 * time.Minute
	errMissingProductID = "line item has no product id"
)

type MaterializeResult struct {
	Order       *domain.Order                  `json:"order"`
	Adjustments []domain.StockAdjustmentResult `json:"adjustments"`
	Duplicate   bool                           `json:"duplicate"`
}

// OrderMaterializer turns a paid checkout session into an order and applies
// the matching stock decrements exactly once per session.
type OrderMaterializer struct {
	processor payment.Processor
	orders    repository.OrderRepository
	stock     StockWriter
	ledger    Ledger
	carts     cart.Store
	lease     time.Duration
	log       *slog.Logger
}

// NewOrderMaterializer builds a materializer. carts may be nil; when set, the
// buyer's stored cart is cleared once the order exists.
func NewOrderMaterializer(processor payment.Processor, orders repository.OrderRepository, stock StockWriter, l Ledger, carts cart.Store, log *slog.Logger) *OrderMaterializer {
	return &OrderMaterializer{
		processor: processor,
		orders:    orders,
		stock:     stock,
		ledger:    l,
		carts:     carts,
		lease:     defaultClaimLease,
		log:       log,
	}
}

func (m *OrderMaterializer) Materialize(ctx context.Context, session *payment.Session) (*MaterializeResult, error) {
	orderNumber := session.Metadata[payment.MetaOrderNumber]
	if orderNumber == "" {
		return nil, fmt.Errorf("%w: session %s", ErrMissingOrderNumber, session.ID)
	}
	log := m.log.With("session_id", session.ID, "order_number", orderNumber)

	claim, err := m.ledger.Claim(ctx, session.ID, orderNumber, m.lease)
	if err != nil {
		return nil, err
	}
	switch claim.State {
	case ledger.ClaimCompleted:
		order, err := m.orders.GetOrderBySessionID(ctx, session.ID)
		if err != nil {
			return nil, fmt.Errorf("load processed order: %w", err)
		}
		log.InfoContext(ctx, "duplicate webhook delivery ignored")
		return &MaterializeResult{Order: order, Adjustments: []domain.StockAdjustmentResult{}, Duplicate: true}, nil
	case ledger.ClaimInProgress:
		return nil, fmt.Errorf("%w: %s", ErrSessionInProgress, session.ID)
	case ledger.ClaimResumed:
		log.WarnContext(ctx, "resuming abandoned session claim")
	}

	lineItems, err := m.processor.ListLineItems(ctx, session.ID)
	if err != nil {
		m.release(ctx, session.ID)
		return nil, err
	}

	order := m.buildOrder(session, orderNumber, lineItems)
	duplicate := false
	if err := m.orders.CreateOrder(ctx, order); err != nil {
		if !errors.Is(err, repository.ErrDuplicateOrder) {
			m.release(ctx, session.ID)
			return nil, err
		}
		existing, getErr := m.orders.GetOrderBySessionID(ctx, session.ID)
		if getErr != nil {
			m.release(ctx, session.ID)
			if errors.Is(getErr, repository.ErrOrderNotFound) {
				return nil, fmt.Errorf("%w: %s", ErrOrderConflict, orderNumber)
			}
			return nil, getErr
		}
		order, duplicate = existing, true
		log.InfoContext(ctx, "order already exists for session", "order_id", order.ID)
	} else {
		log.InfoContext(ctx, "order created", "order_id", order.ID, "items", len(order.Items))
	}

	if err := m.ledger.SetOrderID(ctx, session.ID, order.ID); err != nil {
		return nil, err
	}

	results, err := m.applyStock(ctx, log, session.ID, order)
	if err != nil {
		return nil, err
	}

	if err := m.ledger.Complete(ctx, session.ID); err != nil {
		log.ErrorContext(ctx, "failed to complete session claim", "error", err)
	}
	m.clearCart(ctx, log, order.UserID)

	return &MaterializeResult{Order: order, Adjustments: results, Duplicate: duplicate}, nil
}

// Resume reloads a session from the processor and materializes it again. Used
// for claims whose webhook delivery died half way.
func (m *OrderMaterializer) Resume(ctx context.Context, sessionID string) (*MaterializeResult, error) {
	session, err := m.processor.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return m.Materialize(ctx, session)
}

func (m *OrderMaterializer) buildOrder(session *payment.Session, orderNumber string, lineItems []payment.LineItem) *domain.Order {
	meta := session.Metadata
	items := make([]domain.OrderItem, 0, len(lineItems))
	var total int64
	for _, li := range lineItems {
		name := li.Description
		if name == "" {
			name = li.ProductName
		}
		if name == "" {
			name = unknownProduct
		}
		items = append(items, domain.OrderItem{
			Key:       uuid.NewString(),
			ProductID: li.ProductMetadata[payment.ProductMetaID],
			Name:      name,
			Quantity:  int(li.Quantity),
			Price:     li.UnitAmount,
			Options: domain.OrderItemOptions{
				Variant: li.ProductMetadata[payment.ProductMetaColor],
				Size:    li.ProductMetadata[payment.ProductMetaSize],
			},
		})
		total += li.UnitAmount * li.Quantity
	}
	if session.AmountTotal > 0 {
		total = session.AmountTotal
	}

	name := meta[payment.MetaCustomerName]
	if name == "" {
		name = session.CustomerName
	}
	first, last := splitName(name)
	email := meta[payment.MetaCustomerEmail]
	if email == "" {
		email = session.CustomerEmail
	}

	return &domain.Order{
		ID:                uuid.NewString(),
		OrderNumber:       orderNumber,
		CheckoutSessionID: session.ID,
		PaymentIntentID:   session.PaymentIntentID,
		CustomerID:        session.CustomerID,
		UserID:            meta[payment.MetaUserID],
		CustomerDetails: domain.CustomerDetails{
			UserID:      meta[payment.MetaUserID],
			Email:       email,
			FirstName:   first,
			LastName:    last,
			PhoneNumber: meta[payment.MetaCustomerPhone],
			Address:     meta[payment.MetaCustomerAddress],
		},
		Items:       items,
		TotalAmount: total,
		Currency:    session.Currency,
		Status:      domain.OrderStatusPaid,
		OrderDate:   time.Now().UTC(),
	}
}

// applyStock records one adjustment per order line and applies those that
// are still pending. Failures never undo the order: retryable ones go to the
// retry queue, the rest are kept as dead rows.
func (m *OrderMaterializer) applyStock(ctx context.Context, log *slog.Logger, sessionID string, order *domain.Order) ([]domain.StockAdjustmentResult, error) {
	results := make([]domain.StockAdjustmentResult, 0, len(order.Items))

	pending := make([]ledger.Adjustment, 0, len(order.Items))
	for i, item := range order.Items {
		if item.ProductID == "" {
			log.ErrorContext(ctx, "cannot adjust stock for line", "line", i, "error", errMissingProductID)
			results = append(results, domain.StockAdjustmentResult{Success: false, Error: errMissingProductID})
			continue
		}
		if item.Quantity < 1 {
			continue
		}
		pending = append(pending, ledger.Adjustment{
			SessionID:   sessionID,
			OrderNumber: order.OrderNumber,
			LineIndex:   i,
			ProductID:   item.ProductID,
			Color:       item.Options.Variant,
			Size:        item.Options.Size,
			Quantity:    item.Quantity,
		})
	}
	if err := m.ledger.RecordAdjustments(ctx, pending); err != nil {
		return nil, err
	}

	rows, err := m.ledger.AdjustmentsForSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		if row.State != ledger.StatePending {
			continue
		}
		adj := domain.StockAdjustment{ProductID: row.ProductID, Color: row.Color, Size: row.Size, Quantity: row.Quantity}
		res, err := m.stock.Decrement(ctx, adj)
		if err == nil {
			if markErr := m.ledger.MarkApplied(ctx, row.ID); markErr != nil {
				log.ErrorContext(ctx, "failed to mark adjustment applied", "adjustment_id", row.ID, "error", markErr)
			}
			results = append(results, *res)
			continue
		}

		log.ErrorContext(ctx, "stock adjustment failed",
			"adjustment_id", row.ID,
			"product_id", row.ProductID,
			"color", row.Color,
			"size", row.Size,
			"quantity", row.Quantity,
			"error", err,
		)
		results = append(results, domain.StockAdjustmentResult{
			Success:   false,
			ProductID: row.ProductID,
			Variant:   row.Color,
			Size:      row.Size,
			Error:     err.Error(),
		})

		mark := m.ledger.MarkDead
		if inventory.IsRetryable(err) {
			mark = m.ledger.MarkFailed
		}
		if markErr := mark(ctx, row.ID, err); markErr != nil {
			log.ErrorContext(ctx, "failed to record adjustment failure", "adjustment_id", row.ID, "error", markErr)
		}
	}
	return results, nil
}

func (m *OrderMaterializer) release(ctx context.Context, sessionID string) {
	if err := m.ledger.Release(ctx, sessionID); err != nil {
		m.log.ErrorContext(ctx, "failed to release session claim", "session_id", sessionID, "error", err)
	}
}

func (m *OrderMaterializer) clearCart(ctx context.Context, log *slog.Logger, userID string) {
	if m.carts == nil || userID == "" {
		return
	}
	if err := m.carts.Delete(ctx, userID); err != nil {
		log.WarnContext(ctx, "failed to clear cart after order", "user_id", userID, "error", err)
	}
}

// splitName splits on the first run of whitespace; the last name keeps every
// remaining word.
func splitName(name string) (string, string) {
	fields := strings.Fields(name)
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		return fields[0], ""
	}
	return fields[0], strings.Join(fields[1:], " ")
}
