package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/minimart/pkg/config"
	"github.com/example/minimart/pkg/models"
	"github.com/go-redis/redis/v8"
)

const (
	productCacheTTL     = 30 * time.Minute
	orderStatusCacheTTL = 10 * time.Minute
)

// RedisRepository is a cache-aside layer over the catalog and order stores.
// It is never authoritative: misses and errors fall through to MongoDB.
type RedisRepository struct {
	client *redis.Client
	config *config.RedisConfig
}

func NewRedisRepository(cfg *config.RedisConfig) *RedisRepository {
	return &RedisRepository{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
			PoolSize: cfg.PoolSize,
		}),
		config: cfg,
	}
}

func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisRepository) Del(ctx context.Context, keys ...string) error {
	return r.client.Del(ctx, keys...).Err()
}

func (r *RedisRepository) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, expiration).Err()
}

func (r *RedisRepository) GetJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := r.client.Get(ctx, key).Result()
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(data), dest)
}

func (r *RedisRepository) Close() error {
	return r.client.Close()
}

func productKey(id string) string {
	return fmt.Sprintf("product:%s", id)
}

func orderStatusKey(id string) string {
	return fmt.Sprintf("order:%s:status", id)
}

func (r *RedisRepository) CacheProduct(ctx context.Context, product *models.Product) error {
	return r.SetJSON(ctx, productKey(product.ID.Hex()), product, productCacheTTL)
}

func (r *RedisRepository) GetProductCache(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	if err := r.GetJSON(ctx, productKey(id), &product); err != nil {
		return nil, err
	}
	return &product, nil
}

// InvalidateProduct drops a cached product after any catalog write, including
// stock decrements and restores.
func (r *RedisRepository) InvalidateProduct(ctx context.Context, id string) error {
	return r.Del(ctx, productKey(id))
}

func (r *RedisRepository) CacheOrderStatus(ctx context.Context, orderID string, status models.Status) error {
	return r.client.Set(ctx, orderStatusKey(orderID), string(status), orderStatusCacheTTL).Err()
}

func (r *RedisRepository) GetOrderStatusCache(ctx context.Context, orderID string) (models.Status, error) {
	s, err := r.client.Get(ctx, orderStatusKey(orderID)).Result()
	if err != nil {
		return "", err
	}
	return models.Status(s), nil
}
