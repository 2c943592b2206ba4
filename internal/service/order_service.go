package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/repository"
)

type OrderService struct {
	orders repository.OrderRepository
	log    *slog.Logger
}

func NewOrderService(orders repository.OrderRepository, log *slog.Logger) *OrderService {
	return &OrderService{orders: orders, log: log}
}

func (s *OrderService) ListForUser(ctx context.Context, userID string) ([]domain.Order, error) {
	return s.orders.ListOrdersByUser(ctx, userID)
}

// GetForUser hides orders of other users behind ErrOrderNotFound.
func (s *OrderService) GetForUser(ctx context.Context, userID, orderNumber string) (*domain.Order, error) {
	o, err := s.orders.GetOrderByNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, repository.ErrOrderNotFound
	}
	return o, nil
}

// UpdateStatus moves an order through fulfilment. It is a back-office
// operation: callers must have checked the actor's role, and the order may
// belong to anyone.
func (s *OrderService) UpdateStatus(ctx context.Context, actorID, orderNumber string, next domain.OrderStatus) (*domain.Order, error) {
	if !next.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, next)
	}
	o, err := s.orders.GetOrderByNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if !o.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, o.Status, next)
	}
	if err := s.orders.UpdateOrderStatus(ctx, orderNumber, o.Status, next); err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "order status changed", "order_number", orderNumber, "actor", actorID, "from", o.Status.String(), "to", next.String())
	o.Status = next
	return o, nil
}
