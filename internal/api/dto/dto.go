package dto

import (
	"time"

	"github.com/olyamironova/deferswap/internal/core"
	"github.com/olyamironova/deferswap/internal/domain"
	"github.com/shopspring/decimal"
)

type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

type CreateOrderRequest struct {
	BaseSymbol  string          `json:"base_symbol" binding:"required"`
	QuoteSymbol string          `json:"quote_symbol" binding:"required"`
	Side        Side            `json:"side" binding:"required,oneof=BUY SELL"`
	BaseAmount  decimal.Decimal `json:"base_amount"`
	QuoteAmount decimal.Decimal `json:"quote_amount"`
	Candidates  []uint64        `json:"candidates,omitempty"`
	Value       decimal.Decimal `json:"value"` // native amount attached to the call
}

// OrderID in DealRequest and MergeRequest is only read by transports
// that do not carry it in the path.
type DealRequest struct {
	OrderID uint64          `json:"order_id,omitempty"`
	Amount  decimal.Decimal `json:"amount"`
	Value   decimal.Decimal `json:"value"`
}

type MergeRequest struct {
	OrderID    uint64   `json:"order_id,omitempty"`
	Candidates []uint64 `json:"candidates"`
}

type CancelOrderRequest struct {
	OrderID uint64 `json:"order_id" binding:"required"`
}

type GetOrderRequest struct {
	OrderID uint64 `json:"order_id" binding:"required"`
}

// OrderResponse answers every state-changing order call.
type OrderResponse struct {
	Order   Order    `json:"order"`
	Trades  []Trade  `json:"trades"`
	Records []Record `json:"records"`
}

type GetOrderResponse struct {
	Order Order `json:"order"`
}

type GetTradesResponse struct {
	Trades []Trade `json:"trades"`
}

type FeeRateRequest struct {
	RateBps *int64 `json:"rate_bps" binding:"required"`
}

type FeeSinkRequest struct {
	Sink string `json:"sink" binding:"required"`
}

type RegisterTokenRequest struct {
	Symbol   string `json:"symbol" binding:"required"`
	Decimals uint8  `json:"decimals"`
	Contract string `json:"contract,omitempty"`
}

type HookRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

type SettingsResponse struct {
	Admin       string `json:"admin"`
	Ledger      string `json:"ledger"`
	FeeRateBps  int64  `json:"fee_rate_bps"`
	FeeSink     string `json:"fee_sink"`
	HookEnabled bool   `json:"hook_enabled"`
}

type FundRequest struct {
	Symbol string          `json:"symbol" binding:"required"`
	Amount decimal.Decimal `json:"amount"`
}

type BalanceResponse struct {
	Account   string          `json:"account"`
	Symbol    string          `json:"symbol"`
	Balance   decimal.Decimal `json:"balance"`
	Allowance decimal.Decimal `json:"allowance"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

type Order struct {
	ID             uint64          `json:"id"`
	Owner          string          `json:"owner"`
	BaseSymbol     string          `json:"base_symbol"`
	QuoteSymbol    string          `json:"quote_symbol"`
	Side           Side            `json:"side"`
	Price          decimal.Decimal `json:"price"`
	BaseAmount     decimal.Decimal `json:"base_amount"`
	QuoteAmount    decimal.Decimal `json:"quote_amount"`
	BaseRemaining  decimal.Decimal `json:"base_remaining"`
	QuoteRemaining decimal.Decimal `json:"quote_remaining"`
	Status         string          `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type Trade struct {
	ID          string          `json:"id"`
	Seq         int             `json:"seq"`
	SellOrder   uint64          `json:"sell_order"`
	BuyOrder    uint64          `json:"buy_order"`
	Seller      string          `json:"seller"`
	Buyer       string          `json:"buyer"`
	BaseAmount  decimal.Decimal `json:"base_amount"`
	QuoteAmount decimal.Decimal `json:"quote_amount"`
	BaseFee     decimal.Decimal `json:"base_fee"`
	QuoteFee    decimal.Decimal `json:"quote_fee"`
	Refund      decimal.Decimal `json:"refund"`
	Timestamp   time.Time       `json:"timestamp"`
}

type Record struct {
	Kind      string    `json:"kind"`
	Order     Order     `json:"order"`
	Timestamp time.Time `json:"timestamp"`
}

func (r *CreateOrderRequest) IsSell() bool {
	return r.Side == Sell
}

func ConvertOrder(o *domain.Order) Order {
	return Order{
		ID:             o.ID,
		Owner:          o.Owner.Hex(),
		BaseSymbol:     o.BaseSymbol,
		QuoteSymbol:    o.QuoteSymbol,
		Side:           Side(o.Side()),
		Price:          core.Price(o),
		BaseAmount:     o.BaseAmount,
		QuoteAmount:    o.QuoteAmount,
		BaseRemaining:  o.BaseRemaining,
		QuoteRemaining: o.QuoteRemaining,
		Status:         string(o.Status),
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
}

func ConvertTrades(trades []*domain.Trade) []Trade {
	res := make([]Trade, len(trades))
	for i, t := range trades {
		res[i] = Trade{
			ID:          t.ID,
			Seq:         t.Seq,
			SellOrder:   t.SellOrder,
			BuyOrder:    t.BuyOrder,
			Seller:      t.Seller.Hex(),
			Buyer:       t.Buyer.Hex(),
			BaseAmount:  t.BaseAmount,
			QuoteAmount: t.QuoteAmount,
			BaseFee:     t.BaseFee,
			QuoteFee:    t.QuoteFee,
			Refund:      t.Refund,
			Timestamp:   t.Timestamp,
		}
	}
	return res
}

func ConvertResult(r *core.Result) OrderResponse {
	records := make([]Record, len(r.Records))
	for i := range r.Records {
		rec := &r.Records[i]
		records[i] = Record{
			Kind:      string(rec.Kind),
			Order:     ConvertOrder(&rec.Order),
			Timestamp: rec.Timestamp,
		}
	}
	return OrderResponse{
		Order:   ConvertOrder(r.Order),
		Trades:  ConvertTrades(r.Trades),
		Records: records,
	}
}

func ConvertSettings(c core.Config) SettingsResponse {
	return SettingsResponse{
		Admin:       c.Admin.Hex(),
		Ledger:      c.Ledger.Hex(),
		FeeRateBps:  c.Fee.RateBps,
		FeeSink:     c.Fee.Sink.Hex(),
		HookEnabled: c.HookEnabled,
	}
}
