package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/olyamironova/deferswap/internal/domain"
	"github.com/olyamironova/deferswap/internal/port"
	"github.com/shopspring/decimal"
)

// plan is the working set of a single ledger call: copies of the orders it
// reads, the transfers it wants, and the records it will emit. Nothing in
// here reaches the store or the bank until the whole call has succeeded.
type plan struct {
	now    time.Time
	fee    domain.FeeSchedule
	ledger common.Address
	base   domain.Token
	quote  domain.Token

	orders    map[uint64]*domain.Order // nil entry: looked up, absent
	dirty     []uint64
	trades    []*domain.Trade
	transfers []domain.Transfer
	records   []domain.Record
}

func (e *Engine) newPlan(base, quote domain.Token) *plan {
	return &plan{
		now:    e.now(),
		fee:    e.cfg.Fee,
		ledger: e.cfg.Ledger,
		base:   base,
		quote:  quote,
		orders: make(map[uint64]*domain.Order),
	}
}

// add places o in the snapshot without marking it for persistence.
func (p *plan) add(o *domain.Order) {
	p.orders[o.ID] = o
}

func (p *plan) put(o *domain.Order) {
	p.add(o)
	p.touch(o)
}

func (p *plan) touch(o *domain.Order) {
	for _, id := range p.dirty {
		if id == o.ID {
			return
		}
	}
	p.dirty = append(p.dirty, o.ID)
}

// load copies the given orders into the snapshot. Missing ids are kept as
// nil so the matcher can reject them in list order.
func (p *plan) load(ctx context.Context, tx port.Tx, ids []uint64) error {
	for _, id := range ids {
		if _, ok := p.orders[id]; ok {
			continue
		}
		o, err := tx.GetOrder(ctx, id)
		if errors.Is(err, port.ErrNotFound) {
			p.orders[id] = nil
			continue
		}
		if err != nil {
			return fmt.Errorf("load order %d: %w", id, err)
		}
		p.orders[id] = o.Clone()
	}
	return nil
}

func (p *plan) record(kind domain.RecordKind, o *domain.Order) {
	p.records = append(p.records, domain.Record{Kind: kind, Order: *o, Timestamp: p.now})
}

func (p *plan) move(kind domain.TransferKind, token domain.Token, from, to common.Address, amount decimal.Decimal) {
	if !amount.IsPositive() {
		return
	}
	p.transfers = append(p.transfers, domain.Transfer{
		Token:  token,
		From:   from,
		To:     to,
		Amount: amount,
		Kind:   kind,
	})
}

// touched returns the persisted orders in first-touch order.
func (p *plan) touched() []*domain.Order {
	res := make([]*domain.Order, 0, len(p.dirty))
	for _, id := range p.dirty {
		res = append(res, p.orders[id])
	}
	return res
}

func (p *plan) persist(ctx context.Context, tx port.Tx) error {
	for _, o := range p.touched() {
		if err := tx.SaveOrder(ctx, o); err != nil {
			return fmt.Errorf("save order %d: %w", o.ID, err)
		}
	}
	for _, t := range p.trades {
		if err := tx.SaveTrade(ctx, t); err != nil {
			return fmt.Errorf("save trade %s: %w", t.ID, err)
		}
	}
	return nil
}

func (p *plan) notices() []domain.TradeNotice {
	res := make([]domain.TradeNotice, 0, len(p.trades))
	for _, t := range p.trades {
		res = append(res, t.Notice())
	}
	return res
}
