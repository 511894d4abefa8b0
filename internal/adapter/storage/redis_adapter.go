package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/shoes-cart/internal/core/domain"
	"github.com/rl1809/shoes-cart/internal/port"
)

const stockKeyPrefix = "stock:"

// RedisAdapter stores the cart record as a plain string value and serves
// stock counts kept under stock:<product id>.
type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) Get(ctx context.Context, key string) (string, error) {
	value, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", port.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get: %w", err)
	}
	return value, nil
}

// Set writes without expiry; the record lives until overwritten.
func (r *RedisAdapter) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *RedisAdapter) GetStock(ctx context.Context, productID int64) (domain.Stock, error) {
	available, err := r.client.Get(ctx, stockKey(productID)).Int()
	if errors.Is(err, redis.Nil) {
		return domain.Stock{}, domain.ErrProductNotFound
	}
	if err != nil {
		return domain.Stock{}, fmt.Errorf("redis get stock: %w", err)
	}

	stock := domain.Stock{ProductID: productID, Available: available}
	if err := stock.Validate(); err != nil {
		return domain.Stock{}, err
	}
	return stock, nil
}

func (r *RedisAdapter) SetStock(ctx context.Context, productID int64, available int) error {
	return r.client.Set(ctx, stockKey(productID), available, 0).Err()
}

func stockKey(productID int64) string {
	return stockKeyPrefix + strconv.FormatInt(productID, 10)
}
