package core

import (
	"github.com/olyamironova/deferswap/internal/domain"
	"github.com/shopspring/decimal"
)

// PriceScale is the fixed-point scale of Price.
var PriceScale = decimal.New(1, 8)

// mulDivFloor returns floor(a*b/c) for non-negative integral operands.
func mulDivFloor(a, b, c decimal.Decimal) decimal.Decimal {
	q, _ := a.Mul(b).QuoRem(c, 0)
	return q
}

// Price is quote_amount * 1e8 / base_amount over the posted amounts.
func Price(o *domain.Order) decimal.Decimal {
	return mulDivFloor(o.QuoteAmount, PriceScale, o.BaseAmount)
}

// Crosses reports whether sell may trade against buy.
func Crosses(sell, buy *domain.Order) bool {
	return Price(sell).LessThanOrEqual(Price(buy))
}

// Split returns the quote amount matching baseFill at the order's remaining ratio.
func Split(o *domain.Order, baseFill decimal.Decimal) decimal.Decimal {
	return mulDivFloor(baseFill, o.QuoteRemaining, o.BaseRemaining)
}

// splitBase is the inverse of Split, used when the counterparty supplies quote.
func splitBase(o *domain.Order, quoteFill decimal.Decimal) decimal.Decimal {
	return mulDivFloor(quoteFill, o.BaseRemaining, o.QuoteRemaining)
}

// normalizedQuote is the quote a buy order should still escrow for
// baseRemaining at its posted ratio.
func normalizedQuote(o *domain.Order, baseRemaining decimal.Decimal) decimal.Decimal {
	return mulDivFloor(baseRemaining, o.QuoteAmount, o.BaseAmount)
}
