package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/inventory"
	"github.com/fjod/go_cart/storefront/internal/ledger"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/payment"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/stretchr/testify/require"
)

// MockProcessor implements payment.Processor for testing
type MockProcessor struct {
	mu sync.Mutex

	Customer      *payment.Customer
	CustomerErr   error
	CustomerCalls int

	CreateErr      error
	CreatedRequest *payment.SessionRequest
	CreateCalls    int

	Sessions map[string]*payment.Session
	GetErr   error

	LineItems    map[string][]payment.LineItem
	LineItemsErr error
	ListCalls    int
}

func NewMockProcessor() *MockProcessor {
	return &MockProcessor{
		Sessions:  make(map[string]*payment.Session),
		LineItems: make(map[string][]payment.LineItem),
	}
}

func (m *MockProcessor) FindCustomerByEmail(_ context.Context, _ string) (*payment.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CustomerCalls++
	return m.Customer, m.CustomerErr
}

func (m *MockProcessor) CreateSession(_ context.Context, req payment.SessionRequest) (*payment.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateCalls++
	m.CreatedRequest = &req
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	return &payment.Session{ID: "cs_test_new", URL: "https://pay.example.com/cs_test_new", Metadata: req.Metadata}, nil
}

func (m *MockProcessor) GetSession(_ context.Context, id string) (*payment.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	s, ok := m.Sessions[id]
	if !ok {
		return nil, payment.ErrSessionNotFound
	}
	return s, nil
}

func (m *MockProcessor) ListLineItems(_ context.Context, id string) ([]payment.LineItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ListCalls++
	if m.LineItemsErr != nil {
		return nil, m.LineItemsErr
	}
	return m.LineItems[id], nil
}

// memCartStore implements cart.Store in memory.
type memCartStore struct {
	mu    sync.Mutex
	carts map[string]*cart.Cart
}

func newMemCartStore() *memCartStore {
	return &memCartStore{carts: make(map[string]*cart.Cart)}
}

func (s *memCartStore) Get(_ context.Context, owner string) (*cart.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.carts[owner]
	if !ok {
		return cart.New(owner), nil
	}
	cp := *c
	cp.Items = append([]cart.Item(nil), c.Items...)
	return &cp, nil
}

func (s *memCartStore) Save(_ context.Context, c *cart.Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.IsEmpty() {
		delete(s.carts, c.OwnerID)
		return nil
	}
	cp := *c
	cp.Items = append([]cart.Item(nil), c.Items...)
	s.carts[c.OwnerID] = &cp
	return nil
}

func (s *memCartStore) Delete(_ context.Context, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, owner)
	return nil
}

// flakyWriter fails every decrement for the listed products.
type flakyWriter struct {
	StockWriter
	failFor map[string]error
}

func (w *flakyWriter) Decrement(ctx context.Context, adj domain.StockAdjustment) (*domain.StockAdjustmentResult, error) {
	if err, ok := w.failFor[adj.ProductID]; ok {
		return nil, err
	}
	return w.StockWriter.Decrement(ctx, adj)
}

// failingOrders fails CreateOrder with a fixed error.
type failingOrders struct {
	repository.OrderRepository
	err error
}

func (f *failingOrders) CreateOrder(context.Context, *domain.Order) error {
	return f.err
}

var errTransient = errors.New("connection reset")

func price(v int64) *int64 { return &v }

func tee() domain.Product {
	return domain.Product{
		ID:       "p1",
		Name:     "Tee",
		Price:    price(3000),
		Currency: "JPY",
		ImageURL: "https://img/tee.png",
		Variants: []domain.ColorVariant{
			{Color: "Red", ImageURL: "https://img/tee-red.png", Sizes: []domain.Size{{Name: "M", Quantity: 3}, {Name: "L", Quantity: 1}}},
			{Color: "Blue", Sizes: []domain.Size{{Name: "S", Quantity: 0}}},
		},
		CreatedAt: time.Now(),
	}
}

func socks() domain.Product {
	return domain.Product{
		ID:    "p2",
		Name:  "Socks",
		Price: price(500),
		Variants: []domain.ColorVariant{
			{Color: "White", Sizes: []domain.Size{{Name: "Free", Quantity: 10}}},
		},
		CreatedAt: time.Now(),
	}
}

type fixture struct {
	store     *repository.MemoryStore
	reader    *inventory.StockReader
	writer    *inventory.StockWriter
	ledger    *ledger.Repository
	carts     *memCartStore
	processor *MockProcessor
}

func newFixture(t *testing.T, products ...domain.Product) *fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	for _, p := range products {
		store.PutProduct(p)
	}

	l, err := ledger.NewSQLiteRepository(":memory:")
	require.NoError(t, err)
	require.NoError(t, l.RunMigrations("../ledger/migrations"))
	t.Cleanup(func() { l.Close() })

	log := logger.Discard()
	return &fixture{
		store:     store,
		reader:    inventory.NewStockReader(store, nil, log),
		writer:    inventory.NewStockWriter(store, nil, log),
		ledger:    l,
		carts:     newMemCartStore(),
		processor: NewMockProcessor(),
	}
}

func (f *fixture) stock(t *testing.T, productID, color, size string) int {
	t.Helper()
	n, err := f.reader.AvailableFresh(context.Background(), productID, color, size)
	require.NoError(t, err)
	return n
}
