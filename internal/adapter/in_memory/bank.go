package in_memory

import (
	"context"
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/olyamironova/deferswap/internal/domain"
	"github.com/olyamironova/deferswap/internal/port"
	"github.com/shopspring/decimal"
)

var _ port.Bank = (*Bank)(nil)

type account struct {
	symbol string
	addr   common.Address
}

// Bank keeps balances and ledger allowances per asset. The ledger account
// spends its own balance freely; every other account needs an allowance
// for token-channel pulls.
type Bank struct {
	mu         sync.Mutex
	ledger     common.Address
	balances   map[account]decimal.Decimal
	allowances map[account]decimal.Decimal
}

func NewBank(ledger common.Address) *Bank {
	return &Bank{
		ledger:     ledger,
		balances:   make(map[account]decimal.Decimal),
		allowances: make(map[account]decimal.Decimal),
	}
}

// Mint credits amount out of thin air. Used for funding accounts.
func (b *Bank) Mint(symbol string, to common.Address, amount decimal.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	k := account{symbol, to}
	b.balances[k] = b.balances[k].Add(amount)
}

// Approve sets how much of symbol the ledger may pull from owner.
func (b *Bank) Approve(symbol string, owner common.Address, amount decimal.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.allowances[account{symbol, owner}] = amount
}

func (b *Bank) Allowance(symbol string, owner common.Address) decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.allowances[account{symbol, owner}]
}

func (b *Bank) Balance(ctx context.Context, symbol string, addr common.Address) (decimal.Decimal, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balances[account{symbol, addr}], nil
}

func (b *Bank) Begin(ctx context.Context) (port.BankTx, error) {
	return &bankTx{
		bank:       b,
		balances:   make(map[account]decimal.Decimal),
		allowances: make(map[account]decimal.Decimal),
	}, nil
}

// bankTx records balance and allowance deltas on top of the committed state.
type bankTx struct {
	bank       *Bank
	balances   map[account]decimal.Decimal
	allowances map[account]decimal.Decimal
	done       bool
}

func (t *bankTx) balance(k account) decimal.Decimal {
	return t.bank.balances[k].Add(t.balances[k])
}

func (t *bankTx) allowance(k account) decimal.Decimal {
	return t.bank.allowances[k].Add(t.allowances[k])
}

func (t *bankTx) Transfer(ctx context.Context, tr domain.Transfer) error {
	if t.done {
		return errors.New("bank tx already closed")
	}
	if tr.Amount.IsNegative() {
		return errors.New("negative transfer")
	}
	b := t.bank
	b.mu.Lock()
	defer b.mu.Unlock()

	from := account{tr.Token.Symbol, tr.From}
	to := account{tr.Token.Symbol, tr.To}
	pull := tr.Token.Channel() == domain.ChannelToken && tr.From != b.ledger
	if pull && t.allowance(from).LessThan(tr.Amount) {
		return domain.NewError(domain.InsufficientAllowance, "allowance too low for "+tr.Token.Symbol)
	}
	if t.balance(from).LessThan(tr.Amount) {
		return domain.NewError(domain.InsufficientFunds, "balance too low for "+tr.Token.Symbol)
	}
	if pull {
		t.allowances[from] = t.allowances[from].Sub(tr.Amount)
	}
	t.balances[from] = t.balances[from].Sub(tr.Amount)
	t.balances[to] = t.balances[to].Add(tr.Amount)
	return nil
}

func (t *bankTx) Commit(ctx context.Context) error {
	if t.done {
		return errors.New("bank tx already closed")
	}
	t.done = true
	b := t.bank
	b.mu.Lock()
	defer b.mu.Unlock()
	for k, d := range t.balances {
		b.balances[k] = b.balances[k].Add(d)
	}
	for k, d := range t.allowances {
		b.allowances[k] = b.allowances[k].Add(d)
	}
	return nil
}

func (t *bankTx) Rollback(ctx context.Context) error {
	t.done = true
	return nil
}
