package core

import (
	"github.com/olyamironova/deferswap/internal/domain"
	"github.com/shopspring/decimal"
)

// match runs aggressor against candidates in list order. The first
// candidate that fails validation aborts the whole sequence; the caller
// then discards the plan.
func (p *plan) match(aggressor *domain.Order, candidates []uint64) error {
	for _, id := range candidates {
		if aggressor.BaseRemaining.IsZero() {
			break
		}
		c := p.orders[id]
		switch {
		case c == nil:
			return fail(domain.OrderNotFound, reasonCandidateMissing)
		case !c.Active():
			return fail(domain.OrderNotActive, reasonCandidateDone)
		case !c.SamePair(aggressor):
			return fail(domain.PairMismatch, reasonPair)
		case c.IsSell == aggressor.IsSell:
			return fail(domain.SideMismatch, reasonSide)
		}

		sell, buy := aggressor, c
		if !aggressor.IsSell {
			sell, buy = c, aggressor
		}
		if !Crosses(sell, buy) {
			return fail(domain.PriceCrossViolation, reasonCross)
		}
		if err := p.cross(sell, buy, decimal.Min(aggressor.BaseRemaining, c.BaseRemaining)); err != nil {
			return err
		}
	}
	return nil
}

// cross fills baseFill between two resting orders. The fill executes at
// the sell order's remaining ratio; the buyer's unused escrow above its
// own ratio is refunded.
func (p *plan) cross(sell, buy *domain.Order, baseFill decimal.Decimal) error {
	quoteFill := Split(sell, baseFill)
	if quoteFill.GreaterThan(buy.QuoteRemaining) {
		return fail(domain.PriceCrossViolation, reasonBuyerShort)
	}

	p.touch(sell)
	p.touch(buy)
	p.reduceSell(sell, baseFill, quoteFill)
	refund := p.reduceBuy(buy, baseFill, quoteFill)

	p.exchange(fill{
		sellOrder: sell.ID,
		buyOrder:  buy.ID,
		seller:    sell.Owner,
		buyer:     buy.Owner,
		base:      baseFill,
		quote:     quoteFill,
		refund:    refund,
	})
	p.record(domain.RecordUpdated, sell)
	p.record(domain.RecordUpdated, buy)
	return nil
}

func (p *plan) reduceSell(o *domain.Order, base, quote decimal.Decimal) {
	o.BaseRemaining = o.BaseRemaining.Sub(base)
	o.QuoteRemaining = o.QuoteRemaining.Sub(quote)
	p.advance(o)
}

// reduceBuy takes base and quote off a buy order and re-normalises the
// quote escrow to the order's posted ratio. It returns the surplus.
func (p *plan) reduceBuy(o *domain.Order, base, quote decimal.Decimal) decimal.Decimal {
	left := o.QuoteRemaining.Sub(quote)
	o.BaseRemaining = o.BaseRemaining.Sub(base)

	keep := decimal.Zero
	if o.BaseRemaining.IsPositive() {
		keep = normalizedQuote(o, o.BaseRemaining)
		if keep.GreaterThan(left) || keep.IsZero() {
			keep = left
		}
	}
	o.QuoteRemaining = keep
	p.advance(o)
	return left.Sub(keep)
}

func (p *plan) advance(o *domain.Order) {
	if o.BaseRemaining.IsZero() {
		o.Status = domain.Filled
	} else {
		o.Status = domain.PartiallyFilled
	}
	o.UpdatedAt = p.now
}
