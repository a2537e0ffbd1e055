// Package cart keeps each customer's working selection in Redis. A cart is
// ephemeral and owned solely by its customer; checkout reads it as input and
// clears it only after the order is confirmed.
package cart

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/yaffalhakim1/ecommerce-api/internal/models"

	"github.com/go-redis/redis/v8"
)

type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewStore creates a Redis-backed cart store
func NewStore(addr, password string, db int, ttl time.Duration) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Store{rdb: rdb, ttl: ttl}, nil
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.rdb.Close()
}

func cartKey(userID int64) string {
	return fmt.Sprintf("cart:%d", userID)
}

// AddLine adds quantity of a product to the cart, merging with any existing
// line for the same product. The cart TTL is refreshed on every write.
func (s *Store) AddLine(ctx context.Context, userID, productID int64, quantity int) error {
	key := cartKey(userID)

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, key, strconv.FormatInt(productID, 10), int64(quantity))
	pipe.Expire(ctx, key, s.ttl)

	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to add cart line: %w", err)
	}
	return nil
}

// Get returns the cart's lines in product-id order. An absent cart is an
// empty cart.
func (s *Store) Get(ctx context.Context, userID int64) ([]models.CartLine, error) {
	fields, err := s.rdb.HGetAll(ctx, cartKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read cart: %w", err)
	}

	lines := make([]models.CartLine, 0, len(fields))
	for field, value := range fields {
		productID, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			continue
		}
		quantity, err := strconv.Atoi(value)
		if err != nil || quantity < 1 {
			continue
		}
		lines = append(lines, models.CartLine{ProductID: productID, Quantity: quantity})
	}

	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })
	return lines, nil
}

// Clear destroys the cart. Called once checkout has confirmed success; every
// failure path leaves the cart intact.
func (s *Store) Clear(ctx context.Context, userID int64) error {
	return s.rdb.Del(ctx, cartKey(userID)).Err()
}
