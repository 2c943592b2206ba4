package http

import (
	"context"
	"sync"

	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/payment"
	"github.com/fjod/go_cart/storefront/internal/service"
)

type mockCatalog struct {
	products  []domain.Product
	product   *domain.Product
	sale      *domain.Sale
	err       error
	lastQuery string
	lastLimit int
}

func (m *mockCatalog) Latest(_ context.Context, limit int) ([]domain.Product, error) {
	m.lastLimit = limit
	return m.products, m.err
}

func (m *mockCatalog) Search(_ context.Context, query string, limit int) ([]domain.Product, error) {
	m.lastQuery, m.lastLimit = query, limit
	return m.products, m.err
}

func (m *mockCatalog) Product(context.Context, string) (*domain.Product, error) {
	return m.product, m.err
}

func (m *mockCatalog) ActiveSale(context.Context, string) (*domain.Sale, error) {
	return m.sale, m.err
}

type mockStock struct {
	available int
	err       error
}

func (m *mockStock) Available(context.Context, string, string, string) (int, error) {
	return m.available, m.err
}

type mockCarts struct {
	cart        *cart.Cart
	adjustments []service.LineAdjustment
	err         error

	owner     string
	productID string
	color     string
	size      string
	qty       int
	cleared   bool
}

func (m *mockCarts) Get(_ context.Context, owner string) (*cart.Cart, error) {
	m.owner = owner
	return m.cart, m.err
}

func (m *mockCarts) AddProduct(_ context.Context, owner, productID string, qty int, color, size string) (*cart.Cart, error) {
	m.owner, m.productID, m.qty, m.color, m.size = owner, productID, qty, color, size
	return m.cart, m.err
}

func (m *mockCarts) UpdateQuantity(_ context.Context, owner, productID, color, size string, qty int) (*cart.Cart, error) {
	m.owner, m.productID, m.qty, m.color, m.size = owner, productID, qty, color, size
	return m.cart, m.err
}

func (m *mockCarts) Remove(_ context.Context, owner, productID, color, size string) (*cart.Cart, error) {
	m.owner, m.productID, m.color, m.size = owner, productID, color, size
	return m.cart, m.err
}

func (m *mockCarts) Clear(_ context.Context, owner string) error {
	m.owner = owner
	m.cleared = m.err == nil
	return m.err
}

func (m *mockCarts) Validate(_ context.Context, owner string) (*cart.Cart, []service.LineAdjustment, error) {
	m.owner = owner
	return m.cart, m.adjustments, m.err
}

type mockCheckout struct {
	result   *service.CheckoutResult
	paid     bool
	err      error
	meta     service.Metadata
	owner    string
	verified string
}

func (m *mockCheckout) Checkout(_ context.Context, owner string, meta service.Metadata) (*service.CheckoutResult, error) {
	m.owner, m.meta = owner, meta
	return m.result, m.err
}

func (m *mockCheckout) VerifyPayment(_ context.Context, sessionID string) (bool, error) {
	m.verified = sessionID
	return m.paid, m.err
}

type mockOrders struct {
	orders []domain.Order
	order  *domain.Order
	err    error
	status domain.OrderStatus
}

func (m *mockOrders) ListForUser(context.Context, string) ([]domain.Order, error) {
	return m.orders, m.err
}

func (m *mockOrders) GetForUser(context.Context, string, string) (*domain.Order, error) {
	return m.order, m.err
}

func (m *mockOrders) UpdateStatus(_ context.Context, _, _ string, next domain.OrderStatus) (*domain.Order, error) {
	m.status = next
	return m.order, m.err
}

type mockMaterializer struct {
	mu       sync.Mutex
	result   *service.MaterializeResult
	err      error
	sessions []string
}

func (m *mockMaterializer) Materialize(_ context.Context, s *payment.Session) (*service.MaterializeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = append(m.sessions, s.ID)
	return m.result, m.err
}

func (m *mockMaterializer) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

type mockEvents struct {
	event *payment.Event
	err   error
}

func (m *mockEvents) ParseEvent([]byte, string) (*payment.Event, error) {
	return m.event, m.err
}
