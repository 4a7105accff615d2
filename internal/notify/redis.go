package notify

import (
	"context"
	"encoding/json"

	"github.com/olyamironova/deferswap/internal/domain"
	"github.com/olyamironova/deferswap/internal/port"
	"github.com/redis/go-redis/v9"
)

var (
	_ port.Hook       = (*RedisPublisher)(nil)
	_ port.RecordSink = (*RedisPublisher)(nil)
)

// RedisPublisher forwards trade notices and order records to redis
// pub/sub channels "<prefix>:trades" and "<prefix>:records".
type RedisPublisher struct {
	client *redis.Client
	prefix string
}

func NewRedisPublisher(client *redis.Client, prefix string) *RedisPublisher {
	return &RedisPublisher{client: client, prefix: prefix}
}

func (p *RedisPublisher) TradesChannel() string  { return p.prefix + ":trades" }
func (p *RedisPublisher) RecordsChannel() string { return p.prefix + ":records" }

func (p *RedisPublisher) Notify(ctx context.Context, n domain.TradeNotice) error {
	b, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, p.TradesChannel(), b).Err()
}

func (p *RedisPublisher) Deliver(ctx context.Context, records []domain.Record) error {
	pipe := p.client.Pipeline()
	for _, r := range records {
		b, err := json.Marshal(r)
		if err != nil {
			return err
		}
		pipe.Publish(ctx, p.RecordsChannel(), b)
	}
	_, err := pipe.Exec(ctx)
	return err
}
