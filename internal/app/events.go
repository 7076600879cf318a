package app

import (
	"context"
	"fmt"
	"math"
	"time"

	"pairs-bot/internal/exchange"
	"pairs-bot/internal/market"
	"pairs-bot/internal/state"
	"pairs-bot/internal/strategy"

	"go.uber.org/zap"
)

func (a *App) handle(ctx context.Context, ev exchange.Event) {
	switch e := ev.(type) {
	case exchange.OrderBook:
		before := a.trader.Spread().Stats().Count
		a.trader.OnOrderBook(e.Instrument, e.Sequence, e.AskPrices, e.AskVolumes, e.BidPrices, e.BidVolumes)
		if a.trader.Spread().Stats().Count != before {
			a.recordSample(e.Instrument, e.Sequence)
		}
	case exchange.TradeTicks:
		a.trader.OnTradeTicks(e.Instrument, e.Sequence, e.AskPrices, e.AskVolumes, e.BidPrices, e.BidVolumes)
	case exchange.OrderFilled:
		side, ok := a.trader.Orders().SideOf(e.ClientOrderID)
		a.trader.OnOrderFilled(e.ClientOrderID, e.Price, e.Volume)
		if ok {
			a.metrics.Fills.Inc()
			a.recordFill(e.ClientOrderID, side, e.Price, e.Volume, false)
		}
	case exchange.OrderStatus:
		a.trader.OnOrderStatus(e.ClientOrderID, e.FillVolume, e.RemainingVolume, e.Fees)
	case exchange.HedgeFilled:
		a.trader.OnHedgeFilled(e.ClientOrderID, e.AveragePrice, e.Volume)
		if side, ok := a.gateway.hedgeSide(e.ClientOrderID); ok {
			a.recordFill(e.ClientOrderID, side, e.AveragePrice, e.Volume, true)
		}
	case exchange.OrderError:
		a.metrics.OrderErrors.Inc()
		a.trader.OnError(e.ClientOrderID, e.Message)
		if e.ClientOrderID != 0 {
			a.alerts.Notify(ctx, fmt.Sprintf("order %d error: %s", e.ClientOrderID, e.Message))
		} else {
			a.alerts.Notify(ctx, "exchange error: "+e.Message)
		}
	case exchange.Disconnect:
		a.metrics.Disconnects.Inc()
		a.trader.OnDisconnect()
		msg := "execution connection lost"
		if e.Err != nil {
			msg += ": " + e.Err.Error()
		}
		a.alerts.Notify(ctx, msg)
	default:
		a.log.Warn("unhandled event", zap.String("type", fmt.Sprintf("%T", ev)))
		return
	}
	a.metrics.PositionLots.Set(float64(a.trader.Position()))
	if z, ok := a.trader.Spread().ZScore(); ok && !math.IsNaN(z) && !math.IsInf(z, 0) {
		a.metrics.ZScore.Set(z)
	}
}

func (a *App) snapshot() state.TraderSnapshot {
	snap := a.trader.Snapshot()
	out := state.TraderSnapshot{
		SessionID:       a.sessionID,
		Position:        snap.Position,
		Mean:            snap.Stats.Mean,
		SampleCount:     snap.Stats.Count,
		AskID:           snap.Ask.ID,
		AskPrice:        snap.Ask.Price,
		BidID:           snap.Bid.ID,
		BidPrice:        snap.Bid.Price,
		OutstandingAsks: snap.OutstandingAsks,
		OutstandingBids: snap.OutstandingBids,
		NextOrderID:     snap.NextOrderID,
		MaxSequence:     snap.MaxSequence,
		UpdatedAtMS:     time.Now().UnixMilli(),
	}
	if snap.HasZScore && strategy.SignalUsable(snap.ZScore) {
		z := snap.ZScore
		out.ZScore = &z
	}
	if snap.SpreadHistoryLen > 0 {
		spread := snap.Spread
		out.Spread = &spread
	}
	return out
}

func (a *App) saveSnapshot(ctx context.Context) {
	if err := state.SaveTraderSnapshot(ctx, a.store, a.snapshot()); err != nil {
		a.log.Warn("failed to save trader snapshot", zap.Error(err))
	}
}

// gateway forwards trader commands to the executor and remembers hedge sides
// so hedge fills can be recorded. It is only used on the loop goroutine.
type gateway struct {
	next   strategy.Gateway
	hedges map[uint64]market.Side
}

func newGateway(next strategy.Gateway) *gateway {
	return &gateway{next: next, hedges: make(map[uint64]market.Side)}
}

func (g *gateway) InsertOrder(id uint64, side market.Side, price, volume int64, lifespan market.Lifespan) {
	g.next.InsertOrder(id, side, price, volume, lifespan)
}

func (g *gateway) CancelOrder(id uint64) {
	g.next.CancelOrder(id)
}

func (g *gateway) HedgeOrder(id uint64, side market.Side, price, volume int64) {
	g.hedges[id] = side
	g.next.HedgeOrder(id, side, price, volume)
}

// hedgeSide returns and forgets the side of a hedge.
func (g *gateway) hedgeSide(id uint64) (market.Side, bool) {
	side, ok := g.hedges[id]
	delete(g.hedges, id)
	return side, ok
}
