package notify

import (
	"context"
	"time"

	"github.com/olyamironova/deferswap/internal/domain"
	"github.com/olyamironova/deferswap/internal/port"
	"go.uber.org/zap"
	"gopkg.in/tomb.v2"
)

var _ port.Notifier = (*Dispatcher)(nil)

// Dispatcher delivers committed batches to hooks and record sinks on its
// own goroutine. Delivery failures are logged and dropped.
type Dispatcher struct {
	t       tomb.Tomb
	queue   chan domain.Batch
	hooks   []port.Hook
	sinks   []port.RecordSink
	timeout time.Duration
	log     *zap.SugaredLogger
}

func NewDispatcher(log *zap.SugaredLogger, queueSize int, timeout time.Duration) *Dispatcher {
	return &Dispatcher{
		queue:   make(chan domain.Batch, queueSize),
		timeout: timeout,
		log:     log,
	}
}

// AddHook and AddSink must be called before Start.
func (d *Dispatcher) AddHook(h port.Hook) {
	d.hooks = append(d.hooks, h)
}

func (d *Dispatcher) AddSink(s port.RecordSink) {
	d.sinks = append(d.sinks, s)
}

func (d *Dispatcher) Start() {
	d.t.Go(d.loop)
}

// Stop delivers whatever is already queued, then returns.
func (d *Dispatcher) Stop() error {
	d.t.Kill(nil)
	return d.t.Wait()
}

func (d *Dispatcher) Publish(b domain.Batch) {
	select {
	case d.queue <- b:
	default:
		d.log.Warnw("notify_queue_full", "records", len(b.Records), "notices", len(b.Notices))
	}
}

func (d *Dispatcher) loop() error {
	for {
		select {
		case <-d.t.Dying():
			for {
				select {
				case b := <-d.queue:
					d.deliver(b)
				default:
					return nil
				}
			}
		case b := <-d.queue:
			d.deliver(b)
		}
	}
}

func (d *Dispatcher) deliver(b domain.Batch) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if len(b.Records) > 0 {
		for _, s := range d.sinks {
			if err := s.Deliver(ctx, b.Records); err != nil {
				d.log.Warnw("record_delivery_failed", "records", len(b.Records), "err", err)
			}
		}
	}
	for _, n := range b.Notices {
		for _, h := range d.hooks {
			if err := h.Notify(ctx, n); err != nil {
				d.log.Warnw("hook_failed",
					"trade", n.TradeID,
					"stable_symbol", n.StableSymbol,
					"stable_amount", n.StableAmount,
					"err", err,
				)
			}
		}
	}
}
