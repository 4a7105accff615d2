package in_memory

import (
	"context"
	"sync"

	"github.com/olyamironova/deferswap/internal/domain"
	"github.com/olyamironova/deferswap/internal/port"
)

var _ port.Registry = (*Registry)(nil)

type Registry struct {
	mu     sync.RWMutex
	tokens map[string]domain.Token
}

func NewRegistry(tokens ...domain.Token) *Registry {
	r := &Registry{tokens: make(map[string]domain.Token)}
	for _, t := range tokens {
		r.tokens[t.Symbol] = t
	}
	return r
}

func (r *Registry) Token(ctx context.Context, symbol string) (domain.Token, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tokens[symbol]
	if !ok {
		return domain.Token{}, port.ErrNotFound
	}
	return t, nil
}

func (r *Registry) Register(ctx context.Context, t domain.Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[t.Symbol] = t
	return nil
}
