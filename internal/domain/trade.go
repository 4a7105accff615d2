package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Trade is one executed fill between a sell order and a buy order (or a
// direct deal, in which case one of the order ids is zero). Seq orders the
// fills of a single call, which all share one Timestamp.
type Trade struct {
	ID          string          `json:"id"`
	Seq         int             `json:"seq"`
	SellOrder   uint64          `json:"sell_order"`
	BuyOrder    uint64          `json:"buy_order"`
	Seller      common.Address  `json:"seller"`
	Buyer       common.Address  `json:"buyer"`
	BaseSymbol  string          `json:"base_symbol"`
	QuoteSymbol string          `json:"quote_symbol"`
	BaseAmount  decimal.Decimal `json:"base_amount"`
	QuoteAmount decimal.Decimal `json:"quote_amount"`
	BaseFee     decimal.Decimal `json:"base_fee"`
	QuoteFee    decimal.Decimal `json:"quote_fee"`
	Refund      decimal.Decimal `json:"refund"`
	Timestamp   time.Time       `json:"timestamp"`
}

// TradeNotice is what the external statistics hook receives per fill.
// StableAmount is the quote-side gross of the fill.
type TradeNotice struct {
	TradeID      string          `json:"trade_id"`
	BaseSymbol   string          `json:"base_symbol"`
	StableSymbol string          `json:"stable_symbol"`
	StableAmount decimal.Decimal `json:"stable_amount"`
	BaseAmount   decimal.Decimal `json:"base_amount"`
	Buyer        common.Address  `json:"buyer"`
	Seller       common.Address  `json:"seller"`
	SellOrder    uint64          `json:"sell_order"`
	BuyOrder     uint64          `json:"buy_order"`
	Timestamp    time.Time       `json:"timestamp"`
}

func (t *Trade) Notice() TradeNotice {
	return TradeNotice{
		TradeID:      t.ID,
		BaseSymbol:   t.BaseSymbol,
		StableSymbol: t.QuoteSymbol,
		StableAmount: t.QuoteAmount,
		BaseAmount:   t.BaseAmount,
		Buyer:        t.Buyer,
		Seller:       t.Seller,
		SellOrder:    t.SellOrder,
		BuyOrder:     t.BuyOrder,
		Timestamp:    t.Timestamp,
	}
}
