package paper

import (
	"sort"

	"pairs-bot/internal/market"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Sink receives execution events, normally a strategy.Trader.
type Sink interface {
	OnOrderFilled(id uint64, price, volume int64)
	OnOrderStatus(id uint64, fillVolume, remainingVolume, fees int64)
	OnHedgeFilled(id uint64, price, volume int64)
	OnError(id uint64, message string)
}

type restingOrder struct {
	id     uint64
	side   market.Side
	price  int64
	volume int64
	filled int64
}

// Engine is an in-process stand-in for the exchange. It implements
// strategy.Gateway. Outcomes are queued and delivered by Drain so the trader
// is never re-entered from inside one of its own calls.
type Engine struct {
	log *zap.Logger

	resting map[uint64]*restingOrder
	etf     market.Quote
	future  market.Quote
	hasETF  bool
	hasFut  bool

	pending []func(Sink)

	etfPosition    int64
	futurePosition int64
	cash           int64

	inserts    int
	cancels    int
	hedges     int
	fills      int
	hedgeFills int
	rejects    int
}

func NewEngine(log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{log: log, resting: make(map[uint64]*restingOrder)}
}

func (e *Engine) InsertOrder(id uint64, side market.Side, price, volume int64, lifespan market.Lifespan) {
	e.inserts++
	if _, ok := e.resting[id]; ok || price <= 0 || volume <= 0 {
		e.rejects++
		e.log.Warn("paper insert rejected", zap.Uint64("order_id", id), zap.Int64("price", price), zap.Int64("volume", volume))
		e.pending = append(e.pending, func(s Sink) { s.OnOrderStatus(id, 0, 0, 0) })
		return
	}
	o := &restingOrder{id: id, side: side, price: price, volume: volume}
	if lifespan == market.FillAndKill {
		if e.hasETF {
			bidAvail, askAvail := e.etf.BidVolume, e.etf.AskVolume
			e.fill(o, &bidAvail, &askAvail)
		}
		if o.filled < o.volume {
			filled := o.filled
			e.pending = append(e.pending, func(s Sink) { s.OnOrderStatus(id, filled, 0, 0) })
		}
		return
	}
	e.resting[id] = o
}

func (e *Engine) CancelOrder(id uint64) {
	e.cancels++
	o, ok := e.resting[id]
	if !ok {
		return
	}
	delete(e.resting, id)
	filled := o.filled
	e.pending = append(e.pending, func(s Sink) { s.OnOrderStatus(id, filled, 0, 0) })
}

// HedgeOrder fills in full at the future touch, or at the limit price when no
// future book has been seen. A limit that does not reach the touch is
// rejected with an error.
func (e *Engine) HedgeOrder(id uint64, side market.Side, price, volume int64) {
	e.hedges++
	if price <= 0 || volume <= 0 {
		e.rejectHedge(id, price, volume, "invalid hedge")
		return
	}
	fillPrice := price
	if e.hasFut {
		if side == market.Buy && e.future.AskPrice > 0 {
			if price < e.future.AskPrice {
				e.rejectHedge(id, price, volume, "hedge price below future ask")
				return
			}
			fillPrice = e.future.AskPrice
		} else if side == market.Sell && e.future.BidPrice > 0 {
			if price > e.future.BidPrice {
				e.rejectHedge(id, price, volume, "hedge price above future bid")
				return
			}
			fillPrice = e.future.BidPrice
		}
	}
	if side == market.Buy {
		e.futurePosition += volume
		e.cash -= fillPrice * volume
	} else {
		e.futurePosition -= volume
		e.cash += fillPrice * volume
	}
	e.hedgeFills++
	e.pending = append(e.pending, func(s Sink) { s.OnHedgeFilled(id, fillPrice, volume) })
}

func (e *Engine) rejectHedge(id uint64, price, volume int64, reason string) {
	e.rejects++
	e.log.Warn("paper hedge rejected", zap.Uint64("hedge_id", id), zap.Int64("price", price), zap.Int64("volume", volume), zap.String("reason", reason))
	e.pending = append(e.pending, func(s Sink) { s.OnError(id, reason) })
}

// Book updates the engine's view of the market and fills resting ETF orders
// the new book crosses.
func (e *Engine) Book(q market.Quote) {
	switch q.Instrument {
	case market.ETF:
		e.etf = q
		e.hasETF = true
		e.match()
	case market.Future:
		e.future = q
		e.hasFut = true
	}
}

func (e *Engine) match() {
	if !e.hasETF || len(e.resting) == 0 {
		return
	}
	ids := make([]uint64, 0, len(e.resting))
	for id := range e.resting {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	bidAvail := e.etf.BidVolume
	askAvail := e.etf.AskVolume
	for _, id := range ids {
		o := e.resting[id]
		if e.fill(o, &bidAvail, &askAvail) {
			delete(e.resting, id)
		}
	}
}

// fill trades o against the ETF touch, consuming the available volume, and
// reports whether o is now complete.
func (e *Engine) fill(o *restingOrder, bidAvail, askAvail *int64) bool {
	var traded int64
	switch o.side {
	case market.Sell:
		if e.etf.BidPrice > 0 && e.etf.BidPrice >= o.price {
			traded = min(o.volume-o.filled, *bidAvail)
			*bidAvail -= traded
		}
	case market.Buy:
		if e.etf.AskPrice > 0 && e.etf.AskPrice <= o.price {
			traded = min(o.volume-o.filled, *askAvail)
			*askAvail -= traded
		}
	}
	if traded <= 0 {
		return false
	}
	o.filled += traded
	e.fills++
	if o.side == market.Sell {
		e.etfPosition -= traded
		e.cash += o.price * traded
	} else {
		e.etfPosition += traded
		e.cash -= o.price * traded
	}
	id, price, filled := o.id, o.price, o.filled
	remaining := o.volume - o.filled
	e.pending = append(e.pending, func(s Sink) {
		s.OnOrderFilled(id, price, traded)
		s.OnOrderStatus(id, filled, remaining, 0)
	})
	return remaining == 0
}

// Drain delivers queued outcomes, including any queued while delivering.
func (e *Engine) Drain(s Sink) {
	for i := 0; i < len(e.pending); i++ {
		e.pending[i](s)
	}
	e.pending = e.pending[:0]
}

func (e *Engine) Resting() int {
	return len(e.resting)
}

// Report summarises the session. Money is in dollars.
type Report struct {
	Inserts        int
	Cancels        int
	Hedges         int
	Fills          int
	HedgeFills     int
	Rejects        int
	ETFPosition    int64
	FuturePosition int64
	Cash           decimal.Decimal
	PnL            decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// Report marks open positions to each instrument's mid price.
func (e *Engine) Report() Report {
	cash := decimal.NewFromInt(e.cash).Div(hundred)
	pnl := cash
	if e.hasETF {
		pnl = pnl.Add(markToMid(e.etfPosition, e.etf))
	}
	if e.hasFut {
		pnl = pnl.Add(markToMid(e.futurePosition, e.future))
	}
	return Report{
		Inserts:        e.inserts,
		Cancels:        e.cancels,
		Hedges:         e.hedges,
		Fills:          e.fills,
		HedgeFills:     e.hedgeFills,
		Rejects:        e.rejects,
		ETFPosition:    e.etfPosition,
		FuturePosition: e.futurePosition,
		Cash:           cash,
		PnL:            pnl,
	}
}

func markToMid(position int64, q market.Quote) decimal.Decimal {
	if position == 0 {
		return decimal.Zero
	}
	mid := decimal.NewFromInt(q.Mid2()).Div(decimal.NewFromInt(2))
	return mid.Mul(decimal.NewFromInt(position)).Div(hundred)
}
