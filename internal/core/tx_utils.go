package core

import (
	"context"
	"fmt"

	"github.com/olyamironova/deferswap/internal/domain"
	"github.com/olyamironova/deferswap/internal/port"
)

func withTx(ctx context.Context, repo port.Repository, fn func(port.Tx) error) error {
	tx, err := repo.BeginTx(ctx)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	committed = true
	return nil
}

// execute builds a plan inside a store transaction, stages its transfers
// on a bank transaction and commits both. Outbound notification happens
// only after both commits.
func (e *Engine) execute(ctx context.Context, build func(context.Context, port.Tx) (*plan, error)) (*plan, error) {
	btx, err := e.bank.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("bank: begin: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = btx.Rollback(ctx)
		}
	}()

	var p *plan
	err = withTx(ctx, e.repo, func(tx port.Tx) error {
		var err error
		if p, err = build(ctx, tx); err != nil {
			return err
		}
		for _, t := range p.transfers {
			if err := btx.Transfer(ctx, t); err != nil {
				return err
			}
		}
		return p.persist(ctx, tx)
	})
	if err != nil {
		return nil, err
	}
	if err := btx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("bank: commit: %w", err)
	}
	committed = true

	e.refreshCache(ctx, p.touched())
	e.publish(p)
	return p, nil
}

func (e *Engine) publish(p *plan) {
	if e.notifier == nil {
		return
	}
	b := domain.Batch{Records: p.records}
	if e.cfg.HookEnabled {
		b.Notices = p.notices()
	}
	if b.Empty() {
		return
	}
	e.notifier.Publish(b)
}
