package port

import (
	"context"

	"github.com/olyamironova/deferswap/internal/domain"
)

// Notifier accepts committed batches for asynchronous delivery. Publish
// never blocks the caller and never reports delivery failures.
type Notifier interface {
	Publish(b domain.Batch)
}

// Hook is the external trade statistics collector.
type Hook interface {
	Notify(ctx context.Context, n domain.TradeNotice) error
}

// RecordSink receives order records, e.g. for live streaming.
type RecordSink interface {
	Deliver(ctx context.Context, records []domain.Record) error
}
