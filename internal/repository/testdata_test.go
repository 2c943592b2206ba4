package repository

import (
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

func price(v int64) *int64 { return &v }

func testProduct(id string, createdAt time.Time) domain.Product {
	return domain.Product{
		ID:         id,
		Name:       "Tee " + id,
		Slug:       "tee-" + id,
		Price:      price(3000),
		Currency:   "JPY",
		Categories: []string{"shirts"},
		Variants: []domain.ColorVariant{
			{Color: "Red", Sizes: []domain.Size{{Name: "M", Quantity: 3}, {Name: "L", Quantity: 1}}},
			{Color: "Blue", Sizes: []domain.Size{{Name: "M", Quantity: 0}}},
		},
		CreatedAt: createdAt,
	}
}

func testOrder(number, session, user string, at time.Time) *domain.Order {
	return &domain.Order{
		ID:                "order-" + number,
		OrderNumber:       number,
		CheckoutSessionID: session,
		UserID:            user,
		Items: []domain.OrderItem{
			{Key: "k1", ProductID: "p1", Name: "Tee", Quantity: 1, Price: 3000, Options: domain.OrderItemOptions{Variant: "Red", Size: "M"}},
		},
		TotalAmount: 3000,
		Currency:    "jpy",
		Status:      domain.OrderStatusPaid,
		OrderDate:   at,
	}
}
