package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

// MemoryStore implements ProductRepository, OrderRepository and
// SaleRepository in memory. It enforces the same version and uniqueness rules
// as the MongoDB repositories and is used for local runs and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	products map[string]*domain.Product
	orders   map[string]*domain.Order // orderNumber -> order
	sales    []domain.Sale
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products: make(map[string]*domain.Product),
		orders:   make(map[string]*domain.Order),
	}
}

// PutProduct inserts or replaces a product.
func (s *MemoryStore) PutProduct(p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := copyProduct(&p)
	s.products[p.ID] = cp
}

func (s *MemoryStore) PutSale(sale domain.Sale) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sales = append(s.sales, sale)
}

func (s *MemoryStore) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return nil, ErrProductNotFound
	}
	return copyProduct(p), nil
}

func (s *MemoryStore) GetProductBySlug(_ context.Context, slug string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.products {
		if p.Slug == slug {
			return copyProduct(p), nil
		}
	}
	return nil, ErrProductNotFound
}

func (s *MemoryStore) ListLatest(ctx context.Context, limit int) ([]domain.Product, error) {
	return s.filter(limit, func(*domain.Product) bool { return true }), nil
}

func (s *MemoryStore) Search(_ context.Context, query string, limit int) ([]domain.Product, error) {
	q := strings.ToLower(query)
	return s.filter(limit, func(p *domain.Product) bool {
		if strings.Contains(strings.ToLower(p.Name), q) {
			return true
		}
		for _, c := range p.Categories {
			if strings.Contains(strings.ToLower(c), q) {
				return true
			}
		}
		return false
	}), nil
}

func (s *MemoryStore) filter(limit int, match func(*domain.Product) bool) []domain.Product {
	if limit <= 0 {
		limit = defaultListLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Product, 0)
	for _, p := range s.products {
		if match(p) {
			out = append(out, *copyProduct(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *MemoryStore) UpdateVariants(_ context.Context, id string, expectedVersion int64, variants []domain.ColorVariant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return ErrProductNotFound
	}
	if p.Version != expectedVersion {
		return ErrVersionConflict
	}
	p.Variants = (&domain.Product{Variants: variants}).CloneVariants()
	p.Version++
	return nil
}

func (s *MemoryStore) CreateOrder(_ context.Context, order *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[order.OrderNumber]; ok {
		return ErrDuplicateOrder
	}
	for _, o := range s.orders {
		if o.CheckoutSessionID == order.CheckoutSessionID || o.ID == order.ID {
			return ErrDuplicateOrder
		}
	}
	s.orders[order.OrderNumber] = copyOrder(order)
	return nil
}

func (s *MemoryStore) GetOrderByNumber(_ context.Context, orderNumber string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[orderNumber]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return copyOrder(o), nil
}

func (s *MemoryStore) GetOrderBySessionID(_ context.Context, sessionID string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.orders {
		if o.CheckoutSessionID == sessionID {
			return copyOrder(o), nil
		}
	}
	return nil, ErrOrderNotFound
}

func (s *MemoryStore) ListOrdersByUser(_ context.Context, userID string) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Order, 0)
	for _, o := range s.orders {
		if o.UserID == userID {
			out = append(out, *copyOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].OrderDate.After(out[j].OrderDate)
	})
	return out, nil
}

func (s *MemoryStore) UpdateOrderStatus(_ context.Context, orderNumber string, from, to domain.OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderNumber]
	if !ok {
		return ErrOrderNotFound
	}
	if o.Status != from {
		return ErrStatusConflict
	}
	o.Status = to
	return nil
}

// OrderCount returns the number of stored orders.
func (s *MemoryStore) OrderCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}

func (s *MemoryStore) ActiveSaleByCouponCode(_ context.Context, couponCode string, now time.Time) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best *domain.Sale
	for i := range s.sales {
		sale := &s.sales[i]
		if sale.CouponCode != couponCode || !sale.ActiveAt(now) {
			continue
		}
		if best == nil || sale.ValidFrom.After(best.ValidFrom) {
			best = sale
		}
	}
	if best == nil {
		return nil, ErrSaleNotFound
	}
	cp := *best
	return &cp, nil
}

func copyProduct(p *domain.Product) *domain.Product {
	cp := *p
	cp.Variants = p.CloneVariants()
	cp.Categories = append([]string(nil), p.Categories...)
	cp.Gallery = append([]domain.GalleryImage(nil), p.Gallery...)
	if p.Price != nil {
		price := *p.Price
		cp.Price = &price
	}
	return &cp
}

func copyOrder(o *domain.Order) *domain.Order {
	cp := *o
	cp.Items = append([]domain.OrderItem(nil), o.Items...)
	return &cp
}
