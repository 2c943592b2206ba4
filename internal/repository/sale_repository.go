package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type saleRepository struct {
	collection *mongo.Collection
}

func NewSaleRepository(db *mongo.Database) SaleRepository {
	return &saleRepository{collection: db.Collection(salesCollection)}
}

// ActiveSaleByCouponCode returns the most recently started active sale for the
// coupon whose validity window contains now.
func (r *saleRepository) ActiveSaleByCouponCode(ctx context.Context, couponCode string, now time.Time) (*domain.Sale, error) {
	filter := bson.M{
		"couponCode": couponCode,
		"isActive":   true,
		"validFrom":  bson.M{"$lte": now},
		"$or": bson.A{
			bson.M{"validUntil": bson.M{"$gte": now}},
			bson.M{"validUntil": bson.M{"$exists": false}},
			bson.M{"validUntil": time.Time{}},
		},
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "validFrom", Value: -1}})

	var s domain.Sale
	if err := r.collection.FindOne(ctx, filter, opts).Decode(&s); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrSaleNotFound
		}
		return nil, fmt.Errorf("failed to get sale: %w", err)
	}
	return &s, nil
}
