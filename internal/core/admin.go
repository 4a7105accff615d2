package core

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/olyamironova/deferswap/internal/domain"
)

func (e *Engine) SetFeeRate(ctx context.Context, caller common.Address, rateBps int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkAdmin(caller); err != nil {
		return err
	}
	if rateBps < 0 || rateBps > domain.FeeDenominator {
		return fail(domain.InvalidParameters, reasonFeeRate)
	}
	e.cfg.Fee.RateBps = rateBps
	e.log.Infow("fee_rate_set", "rate_bps", rateBps)
	return nil
}

// SetFeeSink sets the fee recipient. The zero address turns fees off.
func (e *Engine) SetFeeSink(ctx context.Context, caller, sink common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkAdmin(caller); err != nil {
		return err
	}
	e.cfg.Fee.Sink = sink
	e.log.Infow("fee_sink_set", "sink", sink.Hex())
	return nil
}

func (e *Engine) RegisterToken(ctx context.Context, caller common.Address, t domain.Token) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkAdmin(caller); err != nil {
		return err
	}
	if t.Symbol == "" {
		return fail(domain.InvalidParameters, reasonBadToken)
	}
	if err := e.registry.Register(ctx, t); err != nil {
		return err
	}
	e.log.Infow("token_registered", "symbol", t.Symbol, "decimals", t.Decimals, "channel", t.Channel())
	return nil
}

func (e *Engine) SetHookEnabled(ctx context.Context, caller common.Address, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkAdmin(caller); err != nil {
		return err
	}
	e.cfg.HookEnabled = enabled
	e.log.Infow("hook_toggled", "enabled", enabled)
	return nil
}

// Settings returns a copy of the current configuration.
func (e *Engine) Settings() Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

func (e *Engine) checkAdmin(caller common.Address) error {
	if caller != e.cfg.Admin {
		return fail(domain.Unauthorized, reasonNotAdmin)
	}
	return nil
}
