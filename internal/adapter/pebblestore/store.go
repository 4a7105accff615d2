package pebblestore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/cockroachdb/pebble"
	"github.com/olyamironova/deferswap/internal/domain"
	"github.com/olyamironova/deferswap/internal/port"
)

var _ port.Repository = (*Store)(nil)

// Store keeps orders and trades in an embedded pebble database. Values are
// JSON; ids are fixed-width so keys sort numerically.
type Store struct {
	db *pebble.DB
}

func Open(path string) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("pebble: open %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close(ctx context.Context) {
	_ = s.db.Close()
}

var lastIDKey = []byte("meta/last_order_id")

func orderKey(id uint64) []byte {
	return []byte(fmt.Sprintf("order/%020d", id))
}

func tradePrefix(orderID uint64) []byte {
	return []byte(fmt.Sprintf("trade/%020d/", orderID))
}

func tradeKey(orderID uint64, t *domain.Trade) []byte {
	return append(tradePrefix(orderID), []byte(fmt.Sprintf("%020d/%06d/%s", t.Timestamp.UnixNano(), t.Seq, t.ID))...)
}

// prefixEnd returns the smallest key greater than every key with prefix p.
func prefixEnd(p []byte) []byte {
	end := append([]byte(nil), p...)
	end[len(end)-1]++
	return end
}

func (s *Store) BeginTx(ctx context.Context) (port.Tx, error) {
	return &storeTx{b: s.db.NewIndexedBatch()}, nil
}

func (s *Store) GetOrder(ctx context.Context, id uint64) (*domain.Order, error) {
	return getOrder(s.db, id)
}

func (s *Store) LoadTradesForOrder(ctx context.Context, id uint64) ([]*domain.Trade, error) {
	prefix := tradePrefix(id)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixEnd(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("pebble: iter: %w", err)
	}
	defer iter.Close()

	var res []*domain.Trade
	for iter.First(); iter.Valid(); iter.Next() {
		var t domain.Trade
		if err := json.Unmarshal(iter.Value(), &t); err != nil {
			return nil, fmt.Errorf("pebble: decode trade: %w", err)
		}
		res = append(res, &t)
	}
	return res, iter.Error()
}

type reader interface {
	Get(key []byte) ([]byte, io.Closer, error)
}

func getOrder(r reader, id uint64) (*domain.Order, error) {
	val, closer, err := r.Get(orderKey(id))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, port.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pebble: get order %d: %w", id, err)
	}
	defer closer.Close()
	var o domain.Order
	if err := json.Unmarshal(val, &o); err != nil {
		return nil, fmt.Errorf("pebble: decode order %d: %w", id, err)
	}
	return &o, nil
}

// storeTx is an indexed batch, so reads see the batch's own writes.
type storeTx struct {
	b    *pebble.Batch
	done bool
}

func (t *storeTx) NextOrderID(ctx context.Context) (uint64, error) {
	var last uint64
	val, closer, err := t.b.Get(lastIDKey)
	switch {
	case errors.Is(err, pebble.ErrNotFound):
	case err != nil:
		return 0, fmt.Errorf("pebble: get last id: %w", err)
	default:
		last = binary.BigEndian.Uint64(val)
		closer.Close()
	}
	next := last + 1
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], next)
	if err := t.b.Set(lastIDKey, buf[:], nil); err != nil {
		return 0, err
	}
	return next, nil
}

func (t *storeTx) GetOrder(ctx context.Context, id uint64) (*domain.Order, error) {
	return getOrder(t.b, id)
}

func (t *storeTx) SaveOrder(ctx context.Context, o *domain.Order) error {
	if o == nil {
		return errors.New("nil order")
	}
	val, err := json.Marshal(o)
	if err != nil {
		return err
	}
	return t.b.Set(orderKey(o.ID), val, nil)
}

func (t *storeTx) SaveTrade(ctx context.Context, tr *domain.Trade) error {
	if tr == nil {
		return errors.New("nil trade")
	}
	val, err := json.Marshal(tr)
	if err != nil {
		return err
	}
	for _, id := range []uint64{tr.SellOrder, tr.BuyOrder} {
		if id == 0 {
			continue
		}
		if err := t.b.Set(tradeKey(id, tr), val, nil); err != nil {
			return err
		}
	}
	return nil
}

func (t *storeTx) Commit(ctx context.Context) error {
	if t.done {
		return errors.New("pebble: tx already closed")
	}
	t.done = true
	defer t.b.Close()
	if err := t.b.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("pebble: commit: %w", err)
	}
	return nil
}

func (t *storeTx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	return t.b.Close()
}
