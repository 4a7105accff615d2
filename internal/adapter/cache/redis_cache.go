package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/olyamironova/deferswap/internal/domain"
	"github.com/olyamironova/deferswap/internal/port"
	"github.com/redis/go-redis/v9"
)

var _ port.Cache = (*RedisCache)(nil)

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{
		client: client,
		ttl:    ttl,
	}
}

// NewRedisClient is shared by the cache and the notification publisher.
func NewRedisClient(addr string, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func key(id uint64) string { return "order:" + strconv.FormatUint(id, 10) }

func (c *RedisCache) SetOrder(ctx context.Context, o *domain.Order) error {
	b, err := json.Marshal(o)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key(o.ID), b, c.ttl).Err()
}

func (c *RedisCache) GetOrder(ctx context.Context, id uint64) (*domain.Order, error) {
	b, err := c.client.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var o domain.Order
	if err := json.Unmarshal(b, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (c *RedisCache) Invalidate(ctx context.Context, id uint64) error {
	return c.client.Del(ctx, key(id)).Err()
}
