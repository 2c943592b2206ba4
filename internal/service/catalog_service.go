package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/repository"
)

const maxListLimit = 50

type CatalogService struct {
	products repository.ProductRepository
	sales    repository.SaleRepository
	now      func() time.Time
}

func NewCatalogService(products repository.ProductRepository, sales repository.SaleRepository) *CatalogService {
	return &CatalogService{products: products, sales: sales, now: time.Now}
}

func (s *CatalogService) Latest(ctx context.Context, limit int) ([]domain.Product, error) {
	return s.products.ListLatest(ctx, clampLimit(limit))
}

func (s *CatalogService) Search(ctx context.Context, query string, limit int) ([]domain.Product, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: search query is required", ErrValidation)
	}
	return s.products.Search(ctx, query, clampLimit(limit))
}

// Product looks the product up by id, then by slug.
func (s *CatalogService) Product(ctx context.Context, idOrSlug string) (*domain.Product, error) {
	p, err := s.products.GetProduct(ctx, idOrSlug)
	if errors.Is(err, repository.ErrProductNotFound) {
		return s.products.GetProductBySlug(ctx, idOrSlug)
	}
	return p, err
}

func (s *CatalogService) ActiveSale(ctx context.Context, couponCode string) (*domain.Sale, error) {
	couponCode = strings.TrimSpace(couponCode)
	if couponCode == "" {
		return nil, fmt.Errorf("%w: coupon code is required", ErrValidation)
	}
	return s.sales.ActiveSaleByCouponCode(ctx, couponCode, s.now())
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 10
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
