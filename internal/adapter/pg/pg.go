package pg

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/olyamironova/deferswap/internal/domain"
	"github.com/olyamironova/deferswap/internal/port"
)

//go:embed schema.sql
var schema string

var _ port.Repository = (*PgRepo)(nil)

type PgRepo struct {
	pool *pgxpool.Pool
}

// call Close when finish to work with database.
func NewPgRepo(ctx context.Context, dsn string) (*PgRepo, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pg: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg: ping: %w", err)
	}
	return &PgRepo{pool: pool}, nil
}

// Migrate creates the orders and trades tables if they are missing.
func (p *PgRepo) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("pg: migrate: %w", err)
	}
	return nil
}

func (p *PgRepo) Close(ctx context.Context) {
	if p.pool != nil {
		p.pool.Close()
	}
}

func (p *PgRepo) BeginTx(ctx context.Context) (port.Tx, error) {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, fmt.Errorf("pg: begin: %w", err)
	}
	return &pgTx{tx: tx}, nil
}

func (p *PgRepo) GetOrder(ctx context.Context, id uint64) (*domain.Order, error) {
	return getOrder(ctx, p.pool, id)
}

func (p *PgRepo) LoadTradesForOrder(ctx context.Context, id uint64) ([]*domain.Trade, error) {
	rows, err := p.pool.Query(ctx, `
SELECT id, seq, sell_order, buy_order, seller, buyer, base_symbol, quote_symbol,
       base_amount, quote_amount, base_fee, quote_fee, refund, timestamp
FROM trades
WHERE sell_order = $1 OR buy_order = $1
ORDER BY timestamp ASC, seq ASC
`, int64(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*domain.Trade
	for rows.Next() {
		var t domain.Trade
		var sellOrder, buyOrder int64
		var seller, buyer string
		if err := rows.Scan(&t.ID, &t.Seq, &sellOrder, &buyOrder, &seller, &buyer, &t.BaseSymbol, &t.QuoteSymbol,
			&t.BaseAmount, &t.QuoteAmount, &t.BaseFee, &t.QuoteFee, &t.Refund, &t.Timestamp); err != nil {
			return nil, err
		}
		t.SellOrder = uint64(sellOrder)
		t.BuyOrder = uint64(buyOrder)
		t.Seller = common.HexToAddress(seller)
		t.Buyer = common.HexToAddress(buyer)
		res = append(res, &t)
	}
	return res, rows.Err()
}

// querier is the subset shared by the pool and a transaction.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getOrder(ctx context.Context, q querier, id uint64) (*domain.Order, error) {
	var o domain.Order
	var oid int64
	var owner, status string
	err := q.QueryRow(ctx, `
SELECT id, owner, base_symbol, quote_symbol, base_amount, quote_amount,
       base_remaining, quote_remaining, is_sell, status, created_at, updated_at
FROM orders
WHERE id = $1
`, int64(id)).Scan(&oid, &owner, &o.BaseSymbol, &o.QuoteSymbol, &o.BaseAmount, &o.QuoteAmount,
		&o.BaseRemaining, &o.QuoteRemaining, &o.IsSell, &status, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, port.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	o.ID = uint64(oid)
	o.Owner = common.HexToAddress(owner)
	o.Status = domain.OrderStatus(status)
	return &o, nil
}

type pgTx struct {
	tx pgx.Tx
}

// NextOrderID relies on the engine serializing writers.
func (t *pgTx) NextOrderID(ctx context.Context) (uint64, error) {
	var next int64
	if err := t.tx.QueryRow(ctx, `SELECT COALESCE(MAX(id), 0) + 1 FROM orders`).Scan(&next); err != nil {
		return 0, err
	}
	return uint64(next), nil
}

func (t *pgTx) GetOrder(ctx context.Context, id uint64) (*domain.Order, error) {
	return getOrder(ctx, t.tx, id)
}

func (t *pgTx) SaveOrder(ctx context.Context, o *domain.Order) error {
	if o == nil {
		return errors.New("nil order")
	}
	_, err := t.tx.Exec(ctx, `
INSERT INTO orders(id, owner, base_symbol, quote_symbol, base_amount, quote_amount,
                   base_remaining, quote_remaining, is_sell, status, created_at, updated_at)
VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT (id) DO UPDATE SET
  base_remaining = EXCLUDED.base_remaining,
  quote_remaining = EXCLUDED.quote_remaining,
  status = EXCLUDED.status,
  updated_at = EXCLUDED.updated_at
`, int64(o.ID), o.Owner.Hex(), o.BaseSymbol, o.QuoteSymbol, o.BaseAmount, o.QuoteAmount,
		o.BaseRemaining, o.QuoteRemaining, o.IsSell, string(o.Status), o.CreatedAt, o.UpdatedAt)
	return err
}

func (t *pgTx) SaveTrade(ctx context.Context, tr *domain.Trade) error {
	if tr == nil {
		return errors.New("nil trade")
	}
	_, err := t.tx.Exec(ctx, `
INSERT INTO trades(id, seq, sell_order, buy_order, seller, buyer, base_symbol, quote_symbol,
                   base_amount, quote_amount, base_fee, quote_fee, refund, timestamp)
VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
ON CONFLICT (id) DO NOTHING
`, tr.ID, tr.Seq, int64(tr.SellOrder), int64(tr.BuyOrder), tr.Seller.Hex(), tr.Buyer.Hex(), tr.BaseSymbol, tr.QuoteSymbol,
		tr.BaseAmount, tr.QuoteAmount, tr.BaseFee, tr.QuoteFee, tr.Refund, tr.Timestamp)
	return err
}

func (t *pgTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *pgTx) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}
