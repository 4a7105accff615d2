package core

import "github.com/olyamironova/deferswap/internal/domain"

const (
	reasonBadAmounts       = "amounts must be positive integers"
	reasonUnknownAsset     = "asset is not registered"
	reasonSameSymbol       = "base and quote symbols must differ"
	reasonEscrowMismatch   = "escrow payment does not match the order"
	reasonEmptyCandidates  = "candidate list is empty"
	reasonOrderMissing     = "order does not exist"
	reasonCandidateMissing = "candidate order does not exist"
	reasonOrderInactive    = "order is cancelled or filled"
	reasonCandidateDone    = "candidate order is cancelled or filled"
	reasonNotOwner         = "caller does not own the order"
	reasonPair             = "candidate trades a different pair"
	reasonSide             = "candidate is on the same side"
	reasonCross            = "candidate price does not cross"
	reasonBuyerShort       = "buy order escrow cannot cover the fill"
	reasonDealCapacity     = "fill exceeds the order's remaining amount"
	reasonDealDust         = "fill is too small to move the other leg"
	reasonNotAdmin         = "caller is not the administrator"
	reasonFeeRate          = "fee rate must be within 0..10000"
	reasonBadToken         = "token symbol is required"
)

func fail(kind domain.ErrorKind, reason string) error {
	return domain.NewError(kind, reason)
}
