package notify

import (
	"context"

	"github.com/olyamironova/deferswap/internal/domain"
	"go.uber.org/zap"
)

// LogHook writes every trade notice to the log. It is the default hook
// when no external collector is configured.
type LogHook struct {
	log *zap.SugaredLogger
}

func NewLogHook(log *zap.SugaredLogger) *LogHook {
	return &LogHook{log: log}
}

func (h *LogHook) Notify(ctx context.Context, n domain.TradeNotice) error {
	h.log.Infow("trade",
		"trade", n.TradeID,
		"pair", n.BaseSymbol+"/"+n.StableSymbol,
		"stable_amount", n.StableAmount,
		"base_amount", n.BaseAmount,
		"buyer", n.Buyer.Hex(),
		"seller", n.Seller.Hex(),
	)
	return nil
}
