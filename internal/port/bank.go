package port

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/olyamironova/deferswap/internal/domain"
	"github.com/shopspring/decimal"
)

// Bank moves assets between accounts. Transfers are staged on a BankTx
// and only become visible on Commit.
type Bank interface {
	Begin(ctx context.Context) (BankTx, error)
	Balance(ctx context.Context, symbol string, account common.Address) (decimal.Decimal, error)
}

type BankTx interface {
	// Transfer fails with domain.ErrInsufficientFunds or
	// domain.ErrInsufficientAllowance when the source cannot cover it.
	Transfer(ctx context.Context, t domain.Transfer) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Registry resolves asset symbols. Unknown symbols yield ErrNotFound.
type Registry interface {
	Token(ctx context.Context, symbol string) (domain.Token, error)
	Register(ctx context.Context, t domain.Token) error
}
