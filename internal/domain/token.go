package domain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Channel is how an asset moves in and out of escrow.
type Channel string

const (
	// ChannelNative assets arrive as value attached to the call.
	ChannelNative Channel = "NATIVE"
	// ChannelToken assets are pulled against a prior allowance.
	ChannelToken Channel = "TOKEN"
)

// Token is a registry entry. A zero Contract address denotes the native unit.
type Token struct {
	Symbol   string         `json:"symbol"`
	Decimals uint8          `json:"decimals"`
	Contract common.Address `json:"contract"`
}

func (t Token) Channel() Channel {
	if t.Contract == (common.Address{}) {
		return ChannelNative
	}
	return ChannelToken
}

type TransferKind string

const (
	TransferEscrow TransferKind = "ESCROW"
	TransferPayout TransferKind = "PAYOUT"
	TransferFee    TransferKind = "FEE"
	TransferRefund TransferKind = "REFUND"
)

// Transfer is a single asset movement staged by the engine and executed
// by the bank inside the same unit of work.
type Transfer struct {
	Token  Token
	From   common.Address
	To     common.Address
	Amount decimal.Decimal
	Kind   TransferKind
}

// Payment is what a caller attached to a call: Value is the native amount
// sent along with it. Token-channel escrow is pulled by allowance and
// expects a zero Value.
type Payment struct {
	Value decimal.Decimal
}
