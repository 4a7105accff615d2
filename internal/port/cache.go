package port

import (
	"context"

	"github.com/olyamironova/deferswap/internal/domain"
)

// Cache is a read-through copy of committed orders. A miss is (nil, nil).
type Cache interface {
	SetOrder(ctx context.Context, o *domain.Order) error
	GetOrder(ctx context.Context, id uint64) (*domain.Order, error)
	Invalidate(ctx context.Context, id uint64) error
}
