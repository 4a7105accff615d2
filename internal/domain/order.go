package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	Open            OrderStatus = "OPEN"
	PartiallyFilled OrderStatus = "PARTIALLY FILLED"
	Cancelled       OrderStatus = "CANCELLED"
	Filled          OrderStatus = "FILLED"
)

// Active reports whether an order in this status may still be matched or cancelled.
func (s OrderStatus) Active() bool {
	return s == Open || s == PartiallyFilled
}

// Order is a limit order trading BaseSymbol against QuoteSymbol.
// BaseAmount and QuoteAmount are the posted quantities and never change;
// the *Remaining fields shrink as the order is filled.
type Order struct {
	ID             uint64          `json:"id"`
	Owner          common.Address  `json:"owner"`
	BaseSymbol     string          `json:"base_symbol"`
	QuoteSymbol    string          `json:"quote_symbol"`
	BaseAmount     decimal.Decimal `json:"base_amount"`
	QuoteAmount    decimal.Decimal `json:"quote_amount"`
	BaseRemaining  decimal.Decimal `json:"base_remaining"`
	QuoteRemaining decimal.Decimal `json:"quote_remaining"`
	IsSell         bool            `json:"is_sell"`
	Status         OrderStatus     `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (o *Order) Active() bool {
	return o.Status.Active()
}

func (o *Order) SamePair(other *Order) bool {
	return o.BaseSymbol == other.BaseSymbol && o.QuoteSymbol == other.QuoteSymbol
}

// EscrowSymbol is the asset the ledger holds on behalf of the order.
func (o *Order) EscrowSymbol() string {
	if o.IsSell {
		return o.BaseSymbol
	}
	return o.QuoteSymbol
}

// Escrowed is the amount of EscrowSymbol still held for the order.
func (o *Order) Escrowed() decimal.Decimal {
	if o.IsSell {
		return o.BaseRemaining
	}
	return o.QuoteRemaining
}

// Side returns "SELL" or "BUY", used in logs and wire formats.
func (o *Order) Side() string {
	if o.IsSell {
		return "SELL"
	}
	return "BUY"
}

func (o *Order) Clone() *Order {
	c := *o
	return &c
}
