package inventory

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/repository"
)

func newStore(products ...domain.Product) *repository.MemoryStore {
	s := repository.NewMemoryStore()
	for _, p := range products {
		s.PutProduct(p)
	}
	return s
}

func tee(stockM, stockL int) domain.Product {
	price := int64(3000)
	return domain.Product{
		ID:    "p1",
		Name:  "Tee",
		Price: &price,
		Variants: []domain.ColorVariant{
			{Color: "Red", Sizes: []domain.Size{{Name: "M", Quantity: stockM}, {Name: "L", Quantity: stockL}}},
			{Color: "Blue", Sizes: []domain.Size{{Name: "M", Quantity: 9}}},
		},
		CreatedAt: time.Now(),
	}
}

// syncBuffer lets the JSON log handler be shared across goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func captureLogger() (*slog.Logger, *syncBuffer) {
	buf := &syncBuffer{}
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}

// countingRepo wraps a repository and counts reads.
type countingRepo struct {
	repository.ProductRepository
	reads atomic.Int32
	delay time.Duration
}

func (r *countingRepo) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	r.reads.Add(1)
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	return r.ProductRepository.GetProduct(ctx, id)
}

// conflictingRepo always loses the version race.
type conflictingRepo struct {
	repository.ProductRepository
	writes atomic.Int32
}

func (r *conflictingRepo) UpdateVariants(context.Context, string, int64, []domain.ColorVariant) error {
	r.writes.Add(1)
	return repository.ErrVersionConflict
}

// mockCache records invalidations and honours version floors like the
// Redis cache.
type mockCache struct {
	mu      sync.Mutex
	items   map[string]*domain.Product
	floors  map[string]int64
	deleted []string
}

func newMockCache() *mockCache {
	return &mockCache{items: make(map[string]*domain.Product), floors: make(map[string]int64)}
}

func (c *mockCache) Get(_ context.Context, id string) (*domain.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.items[id]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	cp := *p
	cp.Variants = p.CloneVariants()
	return &cp, nil
}

func (c *mockCache) Set(_ context.Context, p *domain.Product) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p.Version < c.floors[p.ID] {
		return nil
	}
	cp := *p
	cp.Variants = p.CloneVariants()
	c.items[p.ID] = &cp
	return nil
}

func (c *mockCache) Invalidate(_ context.Context, id string, minVersion int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, id)
	if minVersion > c.floors[id] {
		c.floors[id] = minVersion
	}
	c.deleted = append(c.deleted, id)
	return nil
}

func (c *mockCache) has(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[id]
	return ok
}
