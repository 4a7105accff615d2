package domain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// FeeDenominator is the unit of FeeSchedule.RateBps (parts per ten thousand).
const FeeDenominator = 10000

var feeDenominator = decimal.NewFromInt(FeeDenominator)

type FeeSchedule struct {
	RateBps int64          `json:"rate_bps"`
	Sink    common.Address `json:"sink"`
}

// Enabled is true when a fee would actually be taken and routed somewhere.
func (f FeeSchedule) Enabled() bool {
	return f.RateBps > 0 && f.Sink != (common.Address{})
}

// Fee returns floor(gross * rate / 10000), or zero when the schedule is disabled.
func (f FeeSchedule) Fee(gross decimal.Decimal) decimal.Decimal {
	if !f.Enabled() || !gross.IsPositive() {
		return decimal.Zero
	}
	q, _ := gross.Mul(decimal.NewFromInt(f.RateBps)).QuoRem(feeDenominator, 0)
	return q
}
