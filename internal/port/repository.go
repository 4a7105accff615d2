package port

import (
	"context"
	"errors"

	"github.com/olyamironova/deferswap/internal/domain"
)

// ErrNotFound is returned by adapters when a keyed lookup has no entry.
var ErrNotFound = errors.New("not found")

type Repository interface {
	BeginTx(ctx context.Context) (Tx, error)
	GetOrder(ctx context.Context, id uint64) (*domain.Order, error)
	LoadTradesForOrder(ctx context.Context, id uint64) ([]*domain.Trade, error)
	Close(ctx context.Context)
}

// Tx is one unit of work against the order table. Reads observe the
// transaction's own uncommitted writes.
type Tx interface {
	NextOrderID(ctx context.Context) (uint64, error)
	GetOrder(ctx context.Context, id uint64) (*domain.Order, error)
	SaveOrder(ctx context.Context, o *domain.Order) error
	SaveTrade(ctx context.Context, t *domain.Trade) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
