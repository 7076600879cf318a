package strategy

import (
	"errors"

	"pairs-bot/internal/config"
	"pairs-bot/internal/market"

	"go.uber.org/zap"
)

// Trader is the per-session strategy context. It is not safe for concurrent
// use: every On* handler must be called from the same goroutine, one event at
// a time, and each handler runs to completion without blocking.
type Trader struct {
	cfg     config.StrategyConfig
	gateway Gateway
	log     *zap.Logger

	history  *market.History
	spread   *SpreadEstimator
	orders   *OrderTracker
	position int64

	hedgeBuyPrice  int64
	hedgeSellPrice int64
}

func NewTrader(cfg config.StrategyConfig, gateway Gateway, log *zap.Logger) *Trader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Trader{
		cfg:            cfg,
		gateway:        gateway,
		log:            log,
		history:        market.NewHistory(cfg.HistoryMax, cfg.HistoryKeep),
		spread:         NewSpreadEstimator(cfg.HedgeRatio, cfg.HistoryMax, cfg.HistoryKeep),
		orders:         NewOrderTracker(),
		hedgeBuyPrice:  MaxAskNearestTick(cfg),
		hedgeSellPrice: MinBidNearestTick(cfg),
	}
}

// SeedOrderID starts id allocation at or above id. Call before the first event.
func (t *Trader) SeedOrderID(id uint64) {
	t.orders.SeedNextID(id)
}

func (t *Trader) OnOrderBook(inst market.Instrument, seq uint64, askPrices, askVolumes, bidPrices, bidVolumes []int64) {
	quote := market.TopOfBook(inst, seq, askPrices, askVolumes, bidPrices, bidVolumes)
	t.log.Debug("order book received",
		zap.Stringer("instrument", inst),
		zap.Uint64("sequence", seq),
		zap.Int64("ask_price", quote.AskPrice),
		zap.Int64("ask_volume", quote.AskVolume),
		zap.Int64("bid_price", quote.BidPrice),
		zap.Int64("bid_volume", quote.BidVolume),
	)
	if !inst.Valid() {
		t.log.Warn("order book for unknown instrument", zap.Uint8("instrument", uint8(inst)))
		return
	}
	if seq < t.spread.LastSequence(inst) {
		t.log.Debug("sequence went backwards", zap.Stringer("instrument", inst), zap.Uint64("sequence", seq), zap.Uint64("last", t.spread.LastSequence(inst)))
	}

	fresh := t.spread.Observe(inst, seq)
	if fresh {
		t.history.Record(quote)
	}
	t.spread.Update(t.history, fresh)
	t.requote()
}

func (t *Trader) requote() {
	adjustment := PriceAdjustment(t.cfg, t.position)
	var askPrice, bidPrice int64
	if etf, ok := t.history.Latest(market.ETF); ok {
		if etf.AskPrice != 0 {
			askPrice = etf.AskPrice + adjustment
		}
		if etf.BidPrice != 0 {
			bidPrice = etf.BidPrice + adjustment
		}
	}

	t.cancelIfRepriced(market.Sell, askPrice)
	t.cancelIfRepriced(market.Buy, bidPrice)

	z, ok := t.spread.ZScore()
	if !ok {
		return
	}
	t.place(market.Sell, askPrice, z)
	t.place(market.Buy, bidPrice, z)
}

func (t *Trader) cancelIfRepriced(side market.Side, price int64) {
	resting := t.orders.Resting(side)
	if resting.Empty() || price == 0 || price == resting.Price {
		return
	}
	t.log.Debug("cancelling repriced order",
		zap.Uint64("order_id", resting.ID),
		zap.Stringer("side", side),
		zap.Int64("old_price", resting.Price),
		zap.Int64("new_price", price),
	)
	t.gateway.CancelOrder(resting.ID)
	t.orders.Vacate(side)
}

func (t *Trader) place(side market.Side, price int64, z float64) {
	err := CheckAdmission(t.cfg, Quote{
		Side:     side,
		Price:    price,
		Position: t.position,
		ZScore:   z,
		Resting:  t.orders.Resting(side),
	})
	if err != nil {
		if errors.Is(err, ErrPositionLimit) {
			t.log.Debug("quote suppressed", zap.Stringer("side", side), zap.Error(err))
		}
		return
	}
	id := t.orders.Allocate()
	if !t.orders.Place(side, id, price) {
		t.log.Error("order tracker refused new order", zap.Uint64("order_id", id), zap.Stringer("side", side))
		return
	}
	t.log.Info("inserting order",
		zap.Uint64("order_id", id),
		zap.Stringer("side", side),
		zap.Int64("price", price),
		zap.Int64("volume", t.cfg.QuoteVolume),
		zap.Float64("zscore", z),
	)
	t.gateway.InsertOrder(id, side, price, t.cfg.QuoteVolume, market.GoodForDay)
}

func (t *Trader) OnTradeTicks(inst market.Instrument, seq uint64, askPrices, askVolumes, bidPrices, bidVolumes []int64) {
	quote := market.TopOfBook(inst, seq, askPrices, askVolumes, bidPrices, bidVolumes)
	t.log.Debug("trade ticks received",
		zap.Stringer("instrument", inst),
		zap.Uint64("sequence", seq),
		zap.Int64("ask_price", quote.AskPrice),
		zap.Int64("ask_volume", quote.AskVolume),
		zap.Int64("bid_price", quote.BidPrice),
		zap.Int64("bid_volume", quote.BidVolume),
	)
}

// OnOrderFilled books a fill on a quoted order and hedges it in the future
// at a marketable price.
func (t *Trader) OnOrderFilled(id uint64, price, volume int64) {
	t.log.Info("order filled", zap.Uint64("order_id", id), zap.Int64("price", price), zap.Int64("volume", volume))
	side, ok := t.orders.SideOf(id)
	if !ok {
		t.log.Warn("fill for untracked order", zap.Uint64("order_id", id))
		return
	}
	hedgeID := t.orders.Allocate()
	hedgeSide := side.Opposite()
	hedgePrice := t.hedgeSellPrice
	if side == market.Sell {
		t.position -= volume
		hedgePrice = t.hedgeBuyPrice
	} else {
		t.position += volume
	}
	t.log.Info("hedging fill",
		zap.Uint64("hedge_id", hedgeID),
		zap.Stringer("side", hedgeSide),
		zap.Int64("price", hedgePrice),
		zap.Int64("volume", volume),
		zap.Int64("position", t.position),
	)
	t.gateway.HedgeOrder(hedgeID, hedgeSide, hedgePrice, volume)
}

func (t *Trader) OnOrderStatus(id uint64, fillVolume, remainingVolume, fees int64) {
	t.log.Debug("order status",
		zap.Uint64("order_id", id),
		zap.Int64("fill_volume", fillVolume),
		zap.Int64("remaining_volume", remainingVolume),
		zap.Int64("fees", fees),
	)
	if remainingVolume != 0 {
		return
	}
	if state := t.orders.Complete(id); state != OrderTerminal {
		t.log.Debug("terminal status for unknown order", zap.Uint64("order_id", id), zap.String("state", string(state)))
	}
}

func (t *Trader) OnHedgeFilled(id uint64, price, volume int64) {
	t.log.Info("hedge filled", zap.Uint64("hedge_id", id), zap.Int64("price", price), zap.Int64("volume", volume))
}

// OnError forces a rejected outstanding order to terminal so the next book
// event can quote again.
func (t *Trader) OnError(id uint64, message string) {
	t.log.Warn("order error", zap.Uint64("order_id", id), zap.String("message", message))
	if id != 0 && t.orders.Outstanding(id) {
		t.OnOrderStatus(id, 0, 0, 0)
	}
}

func (t *Trader) OnDisconnect() {
	t.log.Warn("execution connection lost")
}

func (t *Trader) Position() int64 {
	return t.position
}

func (t *Trader) Orders() *OrderTracker {
	return t.orders
}

func (t *Trader) Spread() *SpreadEstimator {
	return t.spread
}

func (t *Trader) History() *market.History {
	return t.history
}

func (t *Trader) Snapshot() Snapshot {
	z, hasZ := t.spread.ZScore()
	sample, _ := t.spread.LastSample()
	return Snapshot{
		Position:         t.position,
		ZScore:           z,
		HasZScore:        hasZ,
		Spread:           sample,
		Stats:            t.spread.Stats(),
		Ask:              t.orders.Resting(market.Sell),
		Bid:              t.orders.Resting(market.Buy),
		OutstandingAsks:  t.orders.OutstandingCount(market.Sell),
		OutstandingBids:  t.orders.OutstandingCount(market.Buy),
		NextOrderID:      t.orders.NextID(),
		MaxSequence:      t.spread.MaxSequence(),
		ETFSequence:      t.spread.LastSequence(market.ETF),
		FutureSequence:   t.spread.LastSequence(market.Future),
		SpreadHistoryLen: t.spread.Samples().Len(),
		ZScoreHistoryLen: t.spread.ZScores().Len(),
	}
}
