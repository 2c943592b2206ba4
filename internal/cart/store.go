package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Carts left untouched this long are dropped.
const cartTTL = 90 * 24 * time.Hour

type Store interface {
	// Get returns the owner's cart, or an empty cart when none is stored.
	Get(ctx context.Context, ownerID string) (*Cart, error)
	Save(ctx context.Context, c *Cart) error
	Delete(ctx context.Context, ownerID string) error
}

type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client, ttl: cartTTL}
}

func (s *RedisStore) Get(ctx context.Context, ownerID string) (*Cart, error) {
	data, err := s.client.Get(ctx, storeKey(ownerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return New(ownerID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var c Cart
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	if c.Items == nil {
		c.Items = []Item{}
	}
	c.OwnerID = ownerID
	return &c, nil
}

func (s *RedisStore) Save(ctx context.Context, c *Cart) error {
	if c.IsEmpty() {
		return s.Delete(ctx, c.OwnerID)
	}
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}
	if err := s.client.Set(ctx, storeKey(c.OwnerID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, ownerID string) error {
	if err := s.client.Del(ctx, storeKey(ownerID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func storeKey(ownerID string) string {
	return fmt.Sprintf("cart:%s", ownerID)
}
