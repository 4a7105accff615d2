package in_memory

import (
	"context"
	"errors"
	"sync"

	"github.com/olyamironova/deferswap/internal/domain"
	"github.com/olyamironova/deferswap/internal/port"
)

var _ port.Repository = (*MemoryRepo)(nil)

type MemoryRepo struct {
	mu     sync.Mutex
	lastID uint64
	orders map[uint64]*domain.Order
	trades map[uint64][]*domain.Trade
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		orders: make(map[uint64]*domain.Order),
		trades: make(map[uint64][]*domain.Trade),
	}
}

func (r *MemoryRepo) BeginTx(ctx context.Context) (port.Tx, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return &memoryTx{
		repo:   r,
		lastID: r.lastID,
		orders: make(map[uint64]*domain.Order),
	}, nil
}

func (r *MemoryRepo) GetOrder(ctx context.Context, id uint64) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, port.ErrNotFound
	}
	return o.Clone(), nil
}

func (r *MemoryRepo) LoadTradesForOrder(ctx context.Context, id uint64) ([]*domain.Trade, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := make([]*domain.Trade, len(r.trades[id]))
	copy(res, r.trades[id])
	return res, nil
}

func (r *MemoryRepo) Close(ctx context.Context) {}

// memoryTx buffers writes until Commit.
type memoryTx struct {
	repo   *MemoryRepo
	lastID uint64
	orders map[uint64]*domain.Order
	trades []*domain.Trade
	done   bool
}

func (t *memoryTx) NextOrderID(ctx context.Context) (uint64, error) {
	t.lastID++
	return t.lastID, nil
}

func (t *memoryTx) GetOrder(ctx context.Context, id uint64) (*domain.Order, error) {
	if o, ok := t.orders[id]; ok {
		return o.Clone(), nil
	}
	return t.repo.GetOrder(ctx, id)
}

func (t *memoryTx) SaveOrder(ctx context.Context, o *domain.Order) error {
	if o == nil {
		return errors.New("nil order")
	}
	t.orders[o.ID] = o.Clone()
	return nil
}

func (t *memoryTx) SaveTrade(ctx context.Context, tr *domain.Trade) error {
	if tr == nil {
		return errors.New("nil trade")
	}
	c := *tr
	t.trades = append(t.trades, &c)
	return nil
}

func (t *memoryTx) Commit(ctx context.Context) error {
	if t.done {
		return errors.New("tx already closed")
	}
	t.done = true
	r := t.repo
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, o := range t.orders {
		r.orders[id] = o
		if id > r.lastID {
			r.lastID = id
		}
	}
	for _, tr := range t.trades {
		if tr.SellOrder != 0 {
			r.trades[tr.SellOrder] = append(r.trades[tr.SellOrder], tr)
		}
		if tr.BuyOrder != 0 {
			r.trades[tr.BuyOrder] = append(r.trades[tr.BuyOrder], tr)
		}
	}
	return nil
}

func (t *memoryTx) Rollback(ctx context.Context) error {
	t.done = true
	return nil
}
