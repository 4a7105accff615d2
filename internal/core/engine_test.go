package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/olyamironova/deferswap/internal/adapter/in_memory"
	"github.com/olyamironova/deferswap/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	admin  = common.HexToAddress("0x00000000000000000000000000000000000000a0")
	ledger = common.HexToAddress("0x00000000000000000000000000000000000000e5")
	sink   = common.HexToAddress("0x0000000000000000000000000000000000000fee")
	alice  = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob    = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	carol  = common.HexToAddress("0x00000000000000000000000000000000000ca201")

	eth  = domain.Token{Symbol: "ETH", Decimals: 18}
	usdt = domain.Token{Symbol: "USDT", Decimals: 6, Contract: common.HexToAddress("0xdac17f958d2ee523a2206206994597c13d831ec7")}
	dai  = domain.Token{Symbol: "DAI", Decimals: 18, Contract: common.HexToAddress("0x6b175474e89094c44da98b954eedeac495271d0f")}
)

type recordingNotifier struct {
	mu      sync.Mutex
	batches []domain.Batch
}

func (n *recordingNotifier) Publish(b domain.Batch) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.batches = append(n.batches, b)
}

type fixture struct {
	eng      *Engine
	bank     *in_memory.Bank
	repo     *in_memory.MemoryRepo
	notifier *recordingNotifier
}

func newFixture(t *testing.T, feeBps int64) *fixture {
	t.Helper()
	bank := in_memory.NewBank(ledger)
	repo := in_memory.NewMemoryRepo()
	n := &recordingNotifier{}
	cfg := Config{
		Admin:       admin,
		Ledger:      ledger,
		Fee:         domain.FeeSchedule{RateBps: feeBps, Sink: sink},
		HookEnabled: true,
	}
	eng := NewEngine(cfg, repo, bank, in_memory.NewRegistry(eth, usdt, dai),
		WithCache(in_memory.NewCache()),
		WithNotifier(n),
		WithClock(func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }),
	)
	for _, a := range []common.Address{alice, bob, carol} {
		bank.Mint("ETH", a, d(1_000_000))
		bank.Mint("USDT", a, d(10_000_000))
		bank.Approve("USDT", a, d(10_000_000))
	}
	return &fixture{eng: eng, bank: bank, repo: repo, notifier: n}
}

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func assertDec(t *testing.T, want int64, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	assert.Truef(t, d(want).Equal(got), "want %d, got %s %v", want, got.String(), msgAndArgs)
}

func (f *fixture) sell(t *testing.T, owner common.Address, base, quote int64, candidates ...uint64) *Result {
	t.Helper()
	res, err := f.eng.Create(context.Background(), CreateOrder{
		Owner: owner, BaseSymbol: "ETH", QuoteSymbol: "USDT",
		BaseAmount: d(base), QuoteAmount: d(quote), IsSell: true,
		Candidates: candidates,
		Payment:    domain.Payment{Value: d(base)},
	})
	require.NoError(t, err)
	return res
}

func (f *fixture) buy(t *testing.T, owner common.Address, base, quote int64, candidates ...uint64) *Result {
	t.Helper()
	res, err := f.eng.Create(context.Background(), CreateOrder{
		Owner: owner, BaseSymbol: "ETH", QuoteSymbol: "USDT",
		BaseAmount: d(base), QuoteAmount: d(quote),
		Candidates: candidates,
	})
	require.NoError(t, err)
	return res
}

func (f *fixture) order(t *testing.T, id uint64) *domain.Order {
	t.Helper()
	o, err := f.eng.GetOrder(context.Background(), id)
	require.NoError(t, err)
	return o
}

func (f *fixture) balance(t *testing.T, symbol string, a common.Address) decimal.Decimal {
	t.Helper()
	b, err := f.bank.Balance(context.Background(), symbol, a)
	require.NoError(t, err)
	return b
}

// assertConserved checks the ledger holds exactly what open orders escrow.
func (f *fixture) assertConserved(t *testing.T, lastID uint64) {
	t.Helper()
	held := map[string]decimal.Decimal{}
	for id := uint64(1); id <= lastID; id++ {
		o := f.order(t, id)
		held[o.EscrowSymbol()] = held[o.EscrowSymbol()].Add(o.Escrowed())
	}
	for _, sym := range []string{"ETH", "USDT"} {
		assert.Truef(t, held[sym].Equal(f.balance(t, sym, ledger)),
			"%s: orders escrow %s, ledger holds %s", sym, held[sym], f.balance(t, sym, ledger))
	}
}

func TestCreateSellOrder(t *testing.T) {
	f := newFixture(t, 0)
	res := f.sell(t, alice, 1, 3200)

	o := res.Order
	assert.Equal(t, uint64(1), o.ID)
	assert.Equal(t, domain.Open, o.Status)
	assertDec(t, 1, o.BaseRemaining)
	assertDec(t, 3200, o.QuoteRemaining)
	assert.True(t, Price(o).Equal(decimal.New(3200, 8)))
	assertDec(t, 1, f.balance(t, "ETH", ledger))
	require.Len(t, res.Records, 1)
	assert.Equal(t, domain.RecordCreated, res.Records[0].Kind)

	second := f.buy(t, bob, 1, 3000)
	assert.Equal(t, uint64(2), second.Order.ID)
	f.assertConserved(t, 2)
}

func TestSellAggressorEatsBuys(t *testing.T) {
	f := newFixture(t, 0)
	f.buy(t, alice, 3, 9600)
	f.buy(t, bob, 3, 9900)
	bobUSDT := f.balance(t, "USDT", bob)

	res := f.sell(t, carol, 10, 32000, 1, 2)

	agg := res.Order
	assert.Equal(t, domain.PartiallyFilled, agg.Status)
	assertDec(t, 4, agg.BaseRemaining)
	assertDec(t, 12800, agg.QuoteRemaining)

	for _, id := range []uint64{1, 2} {
		o := f.order(t, id)
		assert.Equal(t, domain.Filled, o.Status)
		assert.True(t, o.BaseRemaining.IsZero())
		assert.True(t, o.QuoteRemaining.IsZero())
	}
	// order 2 posted at 3300 but paid 9600; the 300 surplus goes back.
	assertDec(t, 300, f.balance(t, "USDT", bob).Sub(bobUSDT))
	assertDec(t, 19200, f.balance(t, "USDT", carol).Sub(d(10_000_000)))
	assertDec(t, 3, f.balance(t, "ETH", alice).Sub(d(1_000_000)))

	require.Len(t, res.Trades, 2)
	assertDec(t, 300, res.Trades[1].Refund)
	stored, err := f.eng.GetTradesForOrder(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	for i, tr := range stored {
		assert.Equal(t, i, tr.Seq)
		assert.Equal(t, res.Trades[i].ID, tr.ID)
	}
	assert.Equal(t, uint64(2), stored[1].BuyOrder)

	// created, then (sell, buy) per fill
	kinds := []domain.RecordKind{}
	ids := []uint64{}
	for _, r := range res.Records {
		kinds = append(kinds, r.Kind)
		ids = append(ids, r.Order.ID)
	}
	assert.Equal(t, []domain.RecordKind{domain.RecordCreated, domain.RecordUpdated, domain.RecordUpdated, domain.RecordUpdated, domain.RecordUpdated}, kinds)
	assert.Equal(t, []uint64{3, 3, 1, 3, 2}, ids)
	f.assertConserved(t, 3)
}

func TestBuyAggressorPaysSellerPrices(t *testing.T) {
	f := newFixture(t, 0)
	f.sell(t, alice, 3, 9600)
	f.sell(t, alice, 3, 9000)
	f.sell(t, bob, 10, 31000)
	before := f.balance(t, "USDT", carol)

	res := f.buy(t, carol, 10, 32000, 1, 2, 3)

	assert.Equal(t, domain.Filled, res.Order.Status)
	o3 := f.order(t, 3)
	assert.Equal(t, domain.PartiallyFilled, o3.Status)
	assertDec(t, 6, o3.BaseRemaining)
	assertDec(t, 18600, o3.QuoteRemaining)

	// 9600 + 9000 + 12400 spent, 1000 of 32000 refunded
	assertDec(t, 31000, before.Sub(f.balance(t, "USDT", carol)))
	assertDec(t, 10, f.balance(t, "ETH", carol).Sub(d(1_000_000)))
	f.assertConserved(t, 4)
}

func TestBuyAggressorStopsWhenFilled(t *testing.T) {
	f := newFixture(t, 0)
	f.sell(t, alice, 3, 9600)
	f.sell(t, alice, 3, 9000)

	res := f.buy(t, carol, 10, 32000, 1, 2)
	assert.Equal(t, domain.PartiallyFilled, res.Order.Status)
	assertDec(t, 4, res.Order.BaseRemaining)
	assertDec(t, 12800, res.Order.QuoteRemaining)
	assertDec(t, 600, res.Trades[1].Refund)

	// exhausted aggressor ignores the rest of the list, even bad entries
	f.sell(t, bob, 2, 6000)
	res = f.buy(t, carol, 1, 3200, 4, 99)
	assert.Equal(t, uint64(5), res.Order.ID)
	assert.Equal(t, domain.Filled, res.Order.Status)
	assertDec(t, 200, res.Trades[0].Refund)
	f.assertConserved(t, 5)
}

func TestMergeFeesOnBothLegs(t *testing.T) {
	f := newFixture(t, 50)
	f.buy(t, alice, 30000, 120000)
	f.buy(t, bob, 40000, 150000)
	f.sell(t, carol, 100000, 320000)

	res, err := f.eng.Merge(context.Background(), alice, 3, []uint64{1, 2})
	require.NoError(t, err)

	assertDec(t, 350, f.balance(t, "ETH", sink))
	assertDec(t, 1120, f.balance(t, "USDT", sink))
	assertDec(t, 30000, res.Order.BaseRemaining)
	assert.Equal(t, domain.PartiallyFilled, res.Order.Status)
	require.Len(t, res.Records, 4)
	f.assertConserved(t, 3)
}

func TestDealSellOrderWithFee(t *testing.T) {
	f := newFixture(t, 50)
	f.sell(t, alice, 1000, 3200)
	aliceUSDT := f.balance(t, "USDT", alice)
	bobETH := f.balance(t, "ETH", bob)

	res, err := f.eng.Deal(context.Background(), Deal{Caller: bob, OrderID: 1, Amount: d(3200)})
	require.NoError(t, err)

	assert.Equal(t, domain.Filled, res.Order.Status)
	assertDec(t, 5, f.balance(t, "ETH", sink))
	assertDec(t, 16, f.balance(t, "USDT", sink))
	assertDec(t, 3184, f.balance(t, "USDT", alice).Sub(aliceUSDT))
	assertDec(t, 995, f.balance(t, "ETH", bob).Sub(bobETH))
	require.Len(t, res.Records, 1)
	f.assertConserved(t, 1)
}

func TestDealPartialSellOrderWithFee(t *testing.T) {
	f := newFixture(t, 50)
	f.sell(t, alice, 2000, 3200)
	aliceUSDT := f.balance(t, "USDT", alice)

	res, err := f.eng.Deal(context.Background(), Deal{Caller: bob, OrderID: 1, Amount: d(1600)})
	require.NoError(t, err)

	assertDec(t, 1000, res.Order.BaseRemaining)
	assertDec(t, 1600, res.Order.QuoteRemaining)
	assertDec(t, 5, f.balance(t, "ETH", sink))
	assertDec(t, 8, f.balance(t, "USDT", sink))
	assertDec(t, 1592, f.balance(t, "USDT", alice).Sub(aliceUSDT))
}

func TestDealAmounts(t *testing.T) {
	f := newFixture(t, 0)
	f.sell(t, alice, 10, 32000)
	f.buy(t, alice, 10, 32000)
	ctx := context.Background()

	res, err := f.eng.Deal(ctx, Deal{Caller: bob, OrderID: 1, Amount: d(16000)})
	require.NoError(t, err)
	assertDec(t, 5, res.Order.BaseRemaining)
	assertDec(t, 16000, res.Order.QuoteRemaining)

	bobUSDT := f.balance(t, "USDT", bob)
	res, err = f.eng.Deal(ctx, Deal{Caller: bob, OrderID: 2, Amount: d(1), Payment: domain.Payment{Value: d(1)}})
	require.NoError(t, err)
	assertDec(t, 9, res.Order.BaseRemaining)
	assertDec(t, 28800, res.Order.QuoteRemaining)
	assertDec(t, 3200, f.balance(t, "USDT", bob).Sub(bobUSDT))

	_, err = f.eng.Deal(ctx, Deal{Caller: bob, OrderID: 1, Amount: d(16001)})
	assert.ErrorIs(t, err, domain.ErrInvalidParameters)
	_, err = f.eng.Deal(ctx, Deal{Caller: bob, OrderID: 2, Amount: d(10), Payment: domain.Payment{Value: d(10)}})
	assert.ErrorIs(t, err, domain.ErrInvalidParameters)
	// native leg needs the exact value attached
	_, err = f.eng.Deal(ctx, Deal{Caller: bob, OrderID: 2, Amount: d(1)})
	assert.ErrorIs(t, err, domain.ErrInvalidParameters)
	_, err = f.eng.Deal(ctx, Deal{Caller: bob, OrderID: 9, Amount: d(1)})
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)

	_, err = f.eng.Deal(ctx, Deal{Caller: bob, OrderID: 1, Amount: d(16000)})
	require.NoError(t, err)
	_, err = f.eng.Deal(ctx, Deal{Caller: bob, OrderID: 1, Amount: d(1)})
	assert.ErrorIs(t, err, domain.ErrOrderNotActive)

	// a base amount whose quote leg rounds to zero is rejected, not swallowed
	f.buy(t, alice, 10, 1)
	bobETH, bobUSDT := f.balance(t, "ETH", bob), f.balance(t, "USDT", bob)
	_, err = f.eng.Deal(ctx, Deal{Caller: bob, OrderID: 3, Amount: d(1), Payment: domain.Payment{Value: d(1)}})
	assert.ErrorIs(t, err, domain.ErrInvalidParameters)
	o := f.order(t, 3)
	assert.Equal(t, domain.Open, o.Status)
	assertDec(t, 10, o.BaseRemaining)
	assertDec(t, 1, o.QuoteRemaining)
	assert.True(t, bobETH.Equal(f.balance(t, "ETH", bob)))
	assert.True(t, bobUSDT.Equal(f.balance(t, "USDT", bob)))

	res, err = f.eng.Deal(ctx, Deal{Caller: bob, OrderID: 3, Amount: d(10), Payment: domain.Payment{Value: d(10)}})
	require.NoError(t, err)
	assert.Equal(t, domain.Filled, res.Order.Status)
	f.assertConserved(t, 3)
}

func TestCancelRefundsEscrow(t *testing.T) {
	f := newFixture(t, 50)
	ctx := context.Background()
	f.buy(t, alice, 1, 3200)
	before := f.balance(t, "USDT", alice)

	_, err := f.eng.Cancel(ctx, bob, 1)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	res, err := f.eng.Cancel(ctx, alice, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.Cancelled, res.Order.Status)
	assert.True(t, res.Order.BaseRemaining.IsZero())
	assert.True(t, res.Order.QuoteRemaining.IsZero())
	assertDec(t, 3200, f.balance(t, "USDT", alice).Sub(before))
	assert.True(t, f.balance(t, "USDT", sink).IsZero())

	require.Len(t, res.Records, 1)
	assert.Equal(t, domain.RecordCancelled, res.Records[0].Kind)
	assertDec(t, 3200, res.Records[0].Order.QuoteRemaining)

	_, err = f.eng.Cancel(ctx, alice, 1)
	assert.ErrorIs(t, err, domain.ErrOrderNotActive)
	_, err = f.eng.Cancel(ctx, alice, 2)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
	assert.Equal(t, domain.Cancelled, f.order(t, 1).Status)

	// partially filled: only what remains comes back
	f.buy(t, alice, 3, 9600)
	_, err = f.eng.Deal(ctx, Deal{Caller: bob, OrderID: 2, Amount: d(1), Payment: domain.Payment{Value: d(1)}})
	require.NoError(t, err)
	assert.Equal(t, domain.PartiallyFilled, f.order(t, 2).Status)
	before = f.balance(t, "USDT", alice)

	res, err = f.eng.Cancel(ctx, alice, 2)
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assertDec(t, 2, res.Records[0].Order.BaseRemaining)
	assertDec(t, 6400, res.Records[0].Order.QuoteRemaining)
	assertDec(t, 6400, f.balance(t, "USDT", alice).Sub(before))

	// sell orders refund native units
	f.sell(t, bob, 2, 6400)
	bobETH := f.balance(t, "ETH", bob)
	res, err = f.eng.Cancel(ctx, bob, 3)
	require.NoError(t, err)
	assert.Equal(t, domain.Cancelled, res.Order.Status)
	assertDec(t, 2, res.Records[0].Order.BaseRemaining)
	assertDec(t, 2, f.balance(t, "ETH", bob).Sub(bobETH))
	assert.True(t, f.balance(t, "ETH", sink).IsZero())
	f.assertConserved(t, 3)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t, 0)
	poor := common.HexToAddress("0x0000000000000000000000000000000000000bad")
	f.bank.Mint("USDT", poor, d(100))

	tests := []struct {
		name string
		req  CreateOrder
		want error
	}{
		{"zero base", CreateOrder{BaseSymbol: "ETH", QuoteSymbol: "USDT", BaseAmount: d(0), QuoteAmount: d(1)}, domain.ErrInvalidParameters},
		{"negative quote", CreateOrder{BaseSymbol: "ETH", QuoteSymbol: "USDT", BaseAmount: d(1), QuoteAmount: d(-1)}, domain.ErrInvalidParameters},
		{"fractional", CreateOrder{BaseSymbol: "ETH", QuoteSymbol: "USDT", BaseAmount: decimal.RequireFromString("0.5"), QuoteAmount: d(1)}, domain.ErrInvalidParameters},
		{"unknown base", CreateOrder{BaseSymbol: "XYZ", QuoteSymbol: "USDT", BaseAmount: d(1), QuoteAmount: d(1)}, domain.ErrUnregisteredAsset},
		{"unknown quote", CreateOrder{BaseSymbol: "ETH", QuoteSymbol: "XYZ", BaseAmount: d(1), QuoteAmount: d(1)}, domain.ErrUnregisteredAsset},
		{"same symbol", CreateOrder{BaseSymbol: "USDT", QuoteSymbol: "USDT", BaseAmount: d(1), QuoteAmount: d(1)}, domain.ErrInvalidParameters},
		{"sell without value", CreateOrder{Owner: alice, BaseSymbol: "ETH", QuoteSymbol: "USDT", BaseAmount: d(2), QuoteAmount: d(1), IsSell: true, Payment: domain.Payment{Value: d(1)}}, domain.ErrInvalidParameters},
		{"buy with value", CreateOrder{Owner: alice, BaseSymbol: "ETH", QuoteSymbol: "USDT", BaseAmount: d(2), QuoteAmount: d(1), Payment: domain.Payment{Value: d(1)}}, domain.ErrInvalidParameters},
		{"no allowance", CreateOrder{Owner: poor, BaseSymbol: "ETH", QuoteSymbol: "USDT", BaseAmount: d(1), QuoteAmount: d(50)}, domain.ErrInsufficientAllowance},
		{"no native balance", CreateOrder{Owner: poor, BaseSymbol: "ETH", QuoteSymbol: "USDT", BaseAmount: d(1), QuoteAmount: d(50), IsSell: true, Payment: domain.Payment{Value: d(1)}}, domain.ErrInsufficientFunds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.eng.Create(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	f.bank.Approve("USDT", poor, d(1000))
	_, err := f.eng.Create(context.Background(), CreateOrder{Owner: poor, BaseSymbol: "ETH", QuoteSymbol: "USDT", BaseAmount: d(1), QuoteAmount: d(500)})
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	// nothing above consumed an id
	res := f.sell(t, alice, 1, 1)
	assert.Equal(t, uint64(1), res.Order.ID)
}

func TestBatchIsAllOrNothing(t *testing.T) {
	f := newFixture(t, 50)
	ctx := context.Background()
	f.buy(t, alice, 3, 9600)  // 1
	f.buy(t, bob, 3, 9900)    // 2
	f.sell(t, bob, 1, 3000)   // 3 same side as the aggressor below
	f.buy(t, bob, 1, 100)     // 4 does not cross 3200
	f.sell(t, alice, 1, 3000) // 5
	_, err := f.eng.Cancel(ctx, alice, 5)
	require.NoError(t, err)

	ethBefore := f.balance(t, "ETH", ledger)
	usdtBefore := f.balance(t, "USDT", ledger)
	carolETH := f.balance(t, "ETH", carol)

	tests := []struct {
		name       string
		candidates []uint64
		want       error
	}{
		{"missing", []uint64{1, 42}, domain.ErrOrderNotFound},
		{"inactive", []uint64{1, 5}, domain.ErrOrderNotActive},
		{"same side", []uint64{1, 3}, domain.ErrSideMismatch},
		{"no cross", []uint64{1, 4}, domain.ErrPriceCrossViolation},
		{"duplicate", []uint64{1, 1}, domain.ErrOrderNotActive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.eng.Create(ctx, CreateOrder{
				Owner: carol, BaseSymbol: "ETH", QuoteSymbol: "USDT",
				BaseAmount: d(10), QuoteAmount: d(32000), IsSell: true,
				Candidates: tt.candidates,
				Payment:    domain.Payment{Value: d(10)},
			})
			assert.ErrorIs(t, err, tt.want)

			o := f.order(t, 1)
			assert.Equal(t, domain.Open, o.Status)
			assertDec(t, 3, o.BaseRemaining)
			assertDec(t, 9600, o.QuoteRemaining)
			assert.True(t, ethBefore.Equal(f.balance(t, "ETH", ledger)))
			assert.True(t, usdtBefore.Equal(f.balance(t, "USDT", ledger)))
			assert.True(t, carolETH.Equal(f.balance(t, "ETH", carol)))
			_, err = f.eng.GetOrder(ctx, 6)
			assert.ErrorIs(t, err, domain.ErrOrderNotFound)
		})
	}
	f.assertConserved(t, 5)
}

func TestMergeValidation(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	f.buy(t, alice, 1, 3200)
	f.sell(t, bob, 1, 3200)
	_, err := f.eng.Create(ctx, CreateOrder{
		Owner: alice, BaseSymbol: "ETH", QuoteSymbol: "DAI",
		BaseAmount: d(1), QuoteAmount: d(3200), IsSell: true,
		Payment: domain.Payment{Value: d(1)},
	})
	require.NoError(t, err)

	_, err = f.eng.Merge(ctx, carol, 1, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidParameters)
	_, err = f.eng.Merge(ctx, carol, 7, []uint64{2})
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
	_, err = f.eng.Merge(ctx, carol, 1, []uint64{3})
	assert.ErrorIs(t, err, domain.ErrPairMismatch)
	_, err = f.eng.Merge(ctx, carol, 1, []uint64{1})
	assert.ErrorIs(t, err, domain.ErrSideMismatch)

	// a bad candidate after a good one undoes the good fill too
	f.sell(t, carol, 2, 6400)
	_, err = f.eng.Merge(ctx, carol, 4, []uint64{1, 77})
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
	o1 := f.order(t, 1)
	assert.Equal(t, domain.Open, o1.Status)
	assertDec(t, 1, o1.BaseRemaining)
	assertDec(t, 3200, o1.QuoteRemaining)
	assert.Equal(t, domain.Open, f.order(t, 4).Status)
	assertDec(t, 2, f.order(t, 4).BaseRemaining)

	// anyone may reconcile crossed orders
	res, err := f.eng.Merge(ctx, carol, 1, []uint64{2})
	require.NoError(t, err)
	assert.Equal(t, domain.Filled, res.Order.Status)
	assert.Equal(t, domain.Filled, f.order(t, 2).Status)
	require.Len(t, res.Records, 2)
	assert.Equal(t, uint64(2), res.Records[0].Order.ID)
	assert.Equal(t, uint64(1), res.Records[1].Order.ID)

	_, err = f.eng.Merge(ctx, carol, 1, []uint64{2})
	assert.ErrorIs(t, err, domain.ErrOrderNotActive)
}

func TestRepeatedDealsKeepRatio(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	f.sell(t, alice, 7, 22)

	for i := 0; i < 3; i++ {
		res, err := f.eng.Deal(ctx, Deal{Caller: bob, OrderID: 1, Amount: d(4)})
		require.NoError(t, err)
		o := res.Order
		// rounding drift is at most one unit per fill
		ideal := o.BaseRemaining.Mul(d(22)).Div(d(7))
		drift := o.QuoteRemaining.Sub(ideal).Abs()
		assert.True(t, drift.LessThanOrEqual(d(int64(i+1))), "step %d: %s/%s", i, o.BaseRemaining, o.QuoteRemaining)
	}
	f.assertConserved(t, 1)
}

func TestNotifierReceivesCommittedBatches(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	f.sell(t, alice, 1, 3200)
	f.buy(t, bob, 1, 3200, 1)

	_, err := f.eng.Cancel(ctx, bob, 1)
	require.Error(t, err)

	require.Len(t, f.notifier.batches, 2)
	b := f.notifier.batches[1]
	require.Len(t, b.Notices, 1)
	n := b.Notices[0]
	assert.Equal(t, "USDT", n.StableSymbol)
	assertDec(t, 3200, n.StableAmount)
	assert.Equal(t, alice, n.Seller)
	assert.Equal(t, bob, n.Buyer)

	require.NoError(t, f.eng.SetHookEnabled(ctx, admin, false))
	f.sell(t, alice, 1, 3200)
	f.buy(t, bob, 1, 3200, 3)
	last := f.notifier.batches[len(f.notifier.batches)-1]
	assert.Empty(t, last.Notices)
	assert.Len(t, last.Records, 3)
}

func TestTradesForOrder(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	f.sell(t, alice, 2, 6400)
	f.buy(t, bob, 1, 3200, 1)
	f.buy(t, carol, 1, 3200, 1)

	trades, err := f.eng.GetTradesForOrder(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, trades, 2)
	trades, err = f.eng.GetTradesForOrder(ctx, 3)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, carol, trades[0].Buyer)

	_, err = f.eng.GetTradesForOrder(ctx, 99)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestAdmin(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	assert.ErrorIs(t, f.eng.SetFeeRate(ctx, alice, 10), domain.ErrUnauthorized)
	assert.ErrorIs(t, f.eng.SetFeeRate(ctx, admin, 10001), domain.ErrInvalidParameters)
	require.NoError(t, f.eng.SetFeeRate(ctx, admin, 30))
	assert.ErrorIs(t, f.eng.SetFeeSink(ctx, bob, bob), domain.ErrUnauthorized)
	require.NoError(t, f.eng.SetFeeSink(ctx, admin, carol))
	assert.Equal(t, domain.FeeSchedule{RateBps: 30, Sink: carol}, f.eng.Settings().Fee)

	wbtc := domain.Token{Symbol: "WBTC", Decimals: 8, Contract: common.HexToAddress("0x2260fac5e5542a773aa44fbcfedf7c193bc2c599")}
	assert.ErrorIs(t, f.eng.RegisterToken(ctx, alice, wbtc), domain.ErrUnauthorized)
	assert.ErrorIs(t, f.eng.RegisterToken(ctx, admin, domain.Token{}), domain.ErrInvalidParameters)
	require.NoError(t, f.eng.RegisterToken(ctx, admin, wbtc))

	f.bank.Mint("WBTC", alice, d(10))
	f.bank.Approve("WBTC", alice, d(10))
	res, err := f.eng.Create(ctx, CreateOrder{
		Owner: alice, BaseSymbol: "WBTC", QuoteSymbol: "USDT",
		BaseAmount: d(1), QuoteAmount: d(60000), IsSell: true,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.Open, res.Order.Status)
	assertDec(t, 1, f.balance(t, "WBTC", ledger))
}
