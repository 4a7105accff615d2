package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/olyamironova/deferswap/internal/domain"
	"github.com/olyamironova/deferswap/internal/port"
)

func (e *Engine) refreshCache(ctx context.Context, orders []*domain.Order) {
	if e.cache == nil {
		return
	}
	for _, o := range orders {
		if err := e.cache.SetOrder(ctx, o); err != nil {
			e.log.Warnw("cache_set_failed", "order", o.ID, "err", err)
			_ = e.cache.Invalidate(ctx, o.ID)
		}
	}
}

func (e *Engine) getOrLoadOrder(ctx context.Context, id uint64) (*domain.Order, error) {
	if e.cache != nil {
		if o, err := e.cache.GetOrder(ctx, id); err == nil && o != nil {
			return o, nil
		}
	}
	o, err := e.repo.GetOrder(ctx, id)
	if errors.Is(err, port.ErrNotFound) {
		return nil, fail(domain.OrderNotFound, reasonOrderMissing)
	}
	if err != nil {
		return nil, fmt.Errorf("load order %d: %w", id, err)
	}
	if e.cache != nil {
		_ = e.cache.SetOrder(ctx, o)
	}
	return o, nil
}
