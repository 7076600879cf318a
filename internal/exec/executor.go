package exec

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"pairs-bot/internal/exchange"
	"pairs-bot/internal/market"
	"pairs-bot/internal/metrics"
	"pairs-bot/internal/state"

	"go.uber.org/zap"
)

var ErrQueueFull = errors.New("command queue full")

type Sender interface {
	Send(ctx context.Context, cmd exchange.Command) error
}

// Executor implements strategy.Gateway. Commands are queued without blocking
// and sent in order by Run. Insert and hedge ids are sent at most once.
type Executor struct {
	sender  Sender
	store   state.Store
	metrics *metrics.Metrics
	log     *zap.Logger

	queue     chan exchange.Command
	onFailure func(id uint64, err error)

	backoff  time.Duration
	attempts int

	mu     sync.Mutex
	lastID uint64
}

func New(sender Sender, store state.Store, queueSize int, m *metrics.Metrics, log *zap.Logger) *Executor {
	if m == nil {
		m = metrics.NewNoop()
	}
	if log == nil {
		log = zap.NewNop()
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Executor{
		sender:   sender,
		store:    store,
		metrics:  m,
		log:      log,
		queue:    make(chan exchange.Command, queueSize),
		backoff:  200 * time.Millisecond,
		attempts: 5,
	}
}

// OnFailure registers the callback for insert and hedge commands that could
// not be delivered. It may be called from any goroutine. Set it before Run.
func (e *Executor) OnFailure(fn func(id uint64, err error)) {
	e.onFailure = fn
}

func (e *Executor) InsertOrder(id uint64, side market.Side, price, volume int64, lifespan market.Lifespan) {
	if !e.claim(id) {
		e.log.Warn("duplicate insert ignored", zap.Uint64("order_id", id))
		return
	}
	e.enqueue(exchange.InsertOrder{ClientOrderID: id, Side: side, Price: price, Volume: volume, Lifespan: lifespan})
}

func (e *Executor) CancelOrder(id uint64) {
	e.enqueue(exchange.CancelOrder{ClientOrderID: id})
}

func (e *Executor) HedgeOrder(id uint64, side market.Side, price, volume int64) {
	if !e.claim(id) {
		e.log.Warn("duplicate hedge ignored", zap.Uint64("order_id", id))
		return
	}
	e.enqueue(exchange.HedgeOrder{ClientOrderID: id, Side: side, Price: price, Volume: volume})
}

// Resume treats every id below next as already sent.
func (e *Executor) Resume(next uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if next > 0 && next-1 > e.lastID {
		e.lastID = next - 1
	}
}

// claim reports whether id is above every insert or hedge id seen so far.
func (e *Executor) claim(id uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if id <= e.lastID {
		return false
	}
	e.lastID = id
	return true
}

func (e *Executor) enqueue(cmd exchange.Command) {
	select {
	case e.queue <- cmd:
	default:
		e.metrics.SendFailures.Inc()
		e.log.Error("dropping command", zap.String("command", fmt.Sprintf("%T", cmd)), zap.Uint64("order_id", exchange.ClientOrderID(cmd)), zap.Error(ErrQueueFull))
		go e.fail(cmd, ErrQueueFull)
	}
}

// Run sends queued commands until ctx is done.
func (e *Executor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd := <-e.queue:
			e.dispatch(ctx, cmd)
		}
	}
}

func (e *Executor) dispatch(ctx context.Context, cmd exchange.Command) {
	err := e.retry(ctx, func() error {
		return e.sender.Send(ctx, cmd)
	})
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		e.metrics.SendFailures.Inc()
		e.log.Error("command send failed", zap.String("command", fmt.Sprintf("%T", cmd)), zap.Uint64("order_id", exchange.ClientOrderID(cmd)), zap.Error(err))
		e.fail(cmd, err)
		return
	}
	switch c := cmd.(type) {
	case exchange.InsertOrder:
		e.metrics.OrdersInserted.Inc()
		e.persistID(ctx, c.ClientOrderID)
	case exchange.HedgeOrder:
		e.metrics.HedgesSent.Inc()
		e.persistID(ctx, c.ClientOrderID)
	case exchange.CancelOrder:
		e.metrics.OrdersCancelled.Inc()
	}
}

// fail reports undelivered inserts and hedges. A cancel that never reached the
// exchange leaves the order live there, so it is only logged.
func (e *Executor) fail(cmd exchange.Command, err error) {
	if _, ok := cmd.(exchange.CancelOrder); ok {
		return
	}
	if e.onFailure != nil {
		e.onFailure(exchange.ClientOrderID(cmd), err)
	}
}

func (e *Executor) persistID(ctx context.Context, id uint64) {
	if e.store == nil {
		return
	}
	if err := state.SaveNextOrderID(ctx, e.store, id+1); err != nil {
		e.log.Warn("failed to persist order id", zap.Uint64("order_id", id), zap.Error(err))
	}
}

func (e *Executor) retry(ctx context.Context, fn func() error) error {
	backoff := e.backoff
	for attempt := 0; attempt < e.attempts; attempt++ {
		if err := fn(); err != nil {
			if attempt == e.attempts-1 {
				return fmt.Errorf("retry failed: %w", err)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
				backoff *= 2
			}
			continue
		}
		return nil
	}
	return nil
}
