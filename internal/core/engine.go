package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/olyamironova/deferswap/internal/domain"
	"github.com/olyamironova/deferswap/internal/port"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Config is the administrator-controlled state the engine reads on every call.
type Config struct {
	Admin       common.Address
	Ledger      common.Address // account holding all escrow
	Fee         domain.FeeSchedule
	HookEnabled bool
}

// Engine implements the ledger operations: create, cancel, deal and merge.
// Calls are serialized; each one commits completely or not at all.
type Engine struct {
	repo     port.Repository
	bank     port.Bank
	registry port.Registry
	cache    port.Cache
	notifier port.Notifier
	log      *zap.SugaredLogger
	now      func() time.Time

	mu  sync.Mutex
	cfg Config
}

type Option func(*Engine)

func WithCache(c port.Cache) Option {
	return func(e *Engine) { e.cache = c }
}

func WithNotifier(n port.Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

func WithLogger(l *zap.SugaredLogger) Option {
	return func(e *Engine) { e.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(cfg Config, repo port.Repository, bank port.Bank, registry port.Registry, opts ...Option) *Engine {
	e := &Engine{
		repo:     repo,
		bank:     bank,
		registry: registry,
		log:      zap.NewNop().Sugar(),
		now:      func() time.Time { return time.Now().UTC() },
		cfg:      cfg,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type CreateOrder struct {
	Owner       common.Address
	BaseSymbol  string
	QuoteSymbol string
	BaseAmount  decimal.Decimal
	QuoteAmount decimal.Decimal
	IsSell      bool
	Candidates  []uint64
	Payment     domain.Payment
}

type Deal struct {
	Caller  common.Address
	OrderID uint64
	// Amount is what the caller supplies: quote against a sell order,
	// base against a buy order.
	Amount  decimal.Decimal
	Payment domain.Payment
}

// Result describes a committed call. Order is the order the call was
// addressed to, in its final state.
type Result struct {
	Order   *domain.Order
	Trades  []*domain.Trade
	Records []domain.Record
}

func (e *Engine) Create(ctx context.Context, req CreateOrder) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !positiveInteger(req.BaseAmount) || !positiveInteger(req.QuoteAmount) {
		return nil, fail(domain.InvalidParameters, reasonBadAmounts)
	}
	base, err := e.token(ctx, req.BaseSymbol)
	if err != nil {
		return nil, err
	}
	quote, err := e.token(ctx, req.QuoteSymbol)
	if err != nil {
		return nil, err
	}
	if req.BaseSymbol == req.QuoteSymbol {
		return nil, fail(domain.InvalidParameters, reasonSameSymbol)
	}
	escrowToken, escrowAmount := quote, req.QuoteAmount
	if req.IsSell {
		escrowToken, escrowAmount = base, req.BaseAmount
	}
	if err := checkPayment(escrowToken, req.Payment, escrowAmount); err != nil {
		return nil, err
	}

	var order *domain.Order
	p, err := e.execute(ctx, func(ctx context.Context, tx port.Tx) (*plan, error) {
		id, err := tx.NextOrderID(ctx)
		if err != nil {
			return nil, fmt.Errorf("next order id: %w", err)
		}
		p := e.newPlan(base, quote)
		order = &domain.Order{
			ID:             id,
			Owner:          req.Owner,
			BaseSymbol:     req.BaseSymbol,
			QuoteSymbol:    req.QuoteSymbol,
			BaseAmount:     req.BaseAmount,
			QuoteAmount:    req.QuoteAmount,
			BaseRemaining:  req.BaseAmount,
			QuoteRemaining: req.QuoteAmount,
			IsSell:         req.IsSell,
			Status:         domain.Open,
			CreatedAt:      p.now,
			UpdatedAt:      p.now,
		}
		p.put(order)
		p.escrow(escrowToken, req.Owner, escrowAmount)
		p.record(domain.RecordCreated, order)

		if len(req.Candidates) == 0 {
			return p, nil
		}
		if err := p.load(ctx, tx, req.Candidates); err != nil {
			return nil, err
		}
		if err := p.match(order, req.Candidates); err != nil {
			return nil, err
		}
		return p, nil
	})
	if err != nil {
		e.log.Infow("order_create_rejected", "owner", req.Owner.Hex(), "err", err)
		return nil, err
	}
	e.log.Infow("order_created",
		"order", order.ID,
		"owner", order.Owner.Hex(),
		"side", order.Side(),
		"pair", order.BaseSymbol+"/"+order.QuoteSymbol,
		"fills", len(p.trades),
		"status", order.Status,
	)
	return p.result(order), nil
}

func (e *Engine) Cancel(ctx context.Context, caller common.Address, id uint64) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var order *domain.Order
	p, err := e.execute(ctx, func(ctx context.Context, tx port.Tx) (*plan, error) {
		o, err := loadOrder(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		if o.Owner != caller {
			return nil, fail(domain.Unauthorized, reasonNotOwner)
		}
		if !o.Active() {
			return nil, fail(domain.OrderNotActive, reasonOrderInactive)
		}
		base, quote, err := e.pair(ctx, o)
		if err != nil {
			return nil, err
		}
		p := e.newPlan(base, quote)
		p.put(o)
		escrowToken := quote
		if o.IsSell {
			escrowToken = base
		}
		p.refund(escrowToken, o.Owner, o.Escrowed())

		o.Status = domain.Cancelled
		o.UpdatedAt = p.now
		p.record(domain.RecordCancelled, o)
		o.BaseRemaining = decimal.Zero
		o.QuoteRemaining = decimal.Zero
		order = o
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	e.log.Infow("order_cancelled", "order", id, "owner", caller.Hex())
	return p.result(order), nil
}

// Deal fills a single resting order directly against the caller.
func (e *Engine) Deal(ctx context.Context, req Deal) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !positiveInteger(req.Amount) {
		return nil, fail(domain.InvalidParameters, reasonBadAmounts)
	}

	var order *domain.Order
	p, err := e.execute(ctx, func(ctx context.Context, tx port.Tx) (*plan, error) {
		o, err := loadOrder(ctx, tx, req.OrderID)
		if err != nil {
			return nil, err
		}
		if !o.Active() {
			return nil, fail(domain.OrderNotActive, reasonOrderInactive)
		}
		base, quote, err := e.pair(ctx, o)
		if err != nil {
			return nil, err
		}
		p := e.newPlan(base, quote)
		p.put(o)

		if o.IsSell {
			if req.Amount.GreaterThan(o.QuoteRemaining) {
				return nil, fail(domain.InvalidParameters, reasonDealCapacity)
			}
			baseFill := splitBase(o, req.Amount)
			if baseFill.IsZero() {
				return nil, fail(domain.InvalidParameters, reasonDealDust)
			}
			if err := checkPayment(quote, req.Payment, req.Amount); err != nil {
				return nil, err
			}
			p.escrow(quote, req.Caller, req.Amount)
			p.reduceSell(o, baseFill, req.Amount)
			p.exchange(fill{
				sellOrder: o.ID,
				seller:    o.Owner,
				buyer:     req.Caller,
				base:      baseFill,
				quote:     req.Amount,
			})
		} else {
			if req.Amount.GreaterThan(o.BaseRemaining) {
				return nil, fail(domain.InvalidParameters, reasonDealCapacity)
			}
			quoteFill := Split(o, req.Amount)
			if quoteFill.IsZero() {
				return nil, fail(domain.InvalidParameters, reasonDealDust)
			}
			if err := checkPayment(base, req.Payment, req.Amount); err != nil {
				return nil, err
			}
			p.escrow(base, req.Caller, req.Amount)
			refund := p.reduceBuy(o, req.Amount, quoteFill)
			p.exchange(fill{
				buyOrder: o.ID,
				seller:   req.Caller,
				buyer:    o.Owner,
				base:     req.Amount,
				quote:    quoteFill,
				refund:   refund,
			})
		}
		p.record(domain.RecordUpdated, o)
		order = o
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	e.log.Infow("order_dealt", "order", order.ID, "caller", req.Caller.Hex(), "amount", req.Amount, "status", order.Status)
	return p.result(order), nil
}

// Merge matches an existing order against candidates. Any caller may
// reconcile crossed orders; no ownership is required.
func (e *Engine) Merge(ctx context.Context, caller common.Address, id uint64, candidates []uint64) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(candidates) == 0 {
		return nil, fail(domain.InvalidParameters, reasonEmptyCandidates)
	}

	var order *domain.Order
	p, err := e.execute(ctx, func(ctx context.Context, tx port.Tx) (*plan, error) {
		o, err := loadOrder(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		if !o.Active() {
			return nil, fail(domain.OrderNotActive, reasonOrderInactive)
		}
		base, quote, err := e.pair(ctx, o)
		if err != nil {
			return nil, err
		}
		p := e.newPlan(base, quote)
		p.add(o)
		if err := p.load(ctx, tx, candidates); err != nil {
			return nil, err
		}
		if err := p.match(o, candidates); err != nil {
			return nil, err
		}
		order = o
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	e.log.Infow("order_merged", "order", id, "caller", caller.Hex(), "fills", len(p.trades), "status", order.Status)
	return p.result(order), nil
}

func (e *Engine) GetOrder(ctx context.Context, id uint64) (*domain.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.getOrLoadOrder(ctx, id)
}

func (e *Engine) GetTradesForOrder(ctx context.Context, id uint64) ([]*domain.Trade, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.getOrLoadOrder(ctx, id); err != nil {
		return nil, err
	}
	return e.repo.LoadTradesForOrder(ctx, id)
}

func (e *Engine) token(ctx context.Context, symbol string) (domain.Token, error) {
	t, err := e.registry.Token(ctx, symbol)
	if errors.Is(err, port.ErrNotFound) {
		return domain.Token{}, fail(domain.UnregisteredAsset, reasonUnknownAsset)
	}
	if err != nil {
		return domain.Token{}, fmt.Errorf("registry: %w", err)
	}
	return t, nil
}

func (e *Engine) pair(ctx context.Context, o *domain.Order) (domain.Token, domain.Token, error) {
	base, err := e.token(ctx, o.BaseSymbol)
	if err != nil {
		return domain.Token{}, domain.Token{}, err
	}
	quote, err := e.token(ctx, o.QuoteSymbol)
	if err != nil {
		return domain.Token{}, domain.Token{}, err
	}
	return base, quote, nil
}

func loadOrder(ctx context.Context, tx port.Tx, id uint64) (*domain.Order, error) {
	o, err := tx.GetOrder(ctx, id)
	if errors.Is(err, port.ErrNotFound) {
		return nil, fail(domain.OrderNotFound, reasonOrderMissing)
	}
	if err != nil {
		return nil, fmt.Errorf("load order %d: %w", id, err)
	}
	return o.Clone(), nil
}

func (p *plan) result(o *domain.Order) *Result {
	return &Result{Order: o.Clone(), Trades: p.trades, Records: p.records}
}
