package core

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/olyamironova/deferswap/internal/domain"
	"github.com/shopspring/decimal"
)

// settle pays gross of token out of escrow to receiver, skimming the fee
// into the sink. Returns the fee taken.
func (p *plan) settle(token domain.Token, receiver common.Address, gross decimal.Decimal) decimal.Decimal {
	fee := p.fee.Fee(gross)
	p.move(domain.TransferPayout, token, p.ledger, receiver, gross.Sub(fee))
	p.move(domain.TransferFee, token, p.ledger, p.fee.Sink, fee)
	return fee
}

// refund returns escrow to its owner. Refunds never carry a fee.
func (p *plan) refund(token domain.Token, to common.Address, amount decimal.Decimal) {
	p.move(domain.TransferRefund, token, p.ledger, to, amount)
}

func (p *plan) escrow(token domain.Token, from common.Address, amount decimal.Decimal) {
	p.move(domain.TransferEscrow, token, from, p.ledger, amount)
}

type fill struct {
	sellOrder uint64
	buyOrder  uint64
	seller    common.Address
	buyer     common.Address
	base      decimal.Decimal
	quote     decimal.Decimal
	refund    decimal.Decimal
}

// exchange settles both legs of a fill plus the buyer's surplus refund.
func (p *plan) exchange(f fill) *domain.Trade {
	t := &domain.Trade{
		ID:          uuid.NewString(),
		Seq:         len(p.trades),
		SellOrder:   f.sellOrder,
		BuyOrder:    f.buyOrder,
		Seller:      f.seller,
		Buyer:       f.buyer,
		BaseSymbol:  p.base.Symbol,
		QuoteSymbol: p.quote.Symbol,
		BaseAmount:  f.base,
		QuoteAmount: f.quote,
		Refund:      f.refund,
		Timestamp:   p.now,
	}
	t.BaseFee = p.settle(p.base, f.buyer, f.base)
	t.QuoteFee = p.settle(p.quote, f.seller, f.quote)
	p.refund(p.quote, f.buyer, f.refund)
	p.trades = append(p.trades, t)
	return t
}

// checkPayment verifies the caller attached exactly what the escrow side
// needs: native value for a native asset, nothing for a pulled token.
func checkPayment(token domain.Token, pay domain.Payment, amount decimal.Decimal) error {
	if token.Channel() == domain.ChannelNative {
		if !pay.Value.Equal(amount) {
			return fail(domain.InvalidParameters, reasonEscrowMismatch)
		}
		return nil
	}
	if !pay.Value.IsZero() {
		return fail(domain.InvalidParameters, reasonEscrowMismatch)
	}
	return nil
}

func positiveInteger(d decimal.Decimal) bool {
	return d.IsPositive() && d.IsInteger()
}
