package strategy

import (
	"errors"
	"fmt"

	"pairs-bot/internal/config"
	"pairs-bot/internal/market"
)

var (
	ErrSlotBusy      = errors.New("order already resting on side")
	ErrNoPrice       = errors.New("no candidate price")
	ErrPositionLimit = errors.New("position limit reached")
	ErrNoSignal      = errors.New("z-score unavailable")
	ErrOutsideBand   = errors.New("z-score outside trading band")
)

// Quote is a candidate order for one side.
type Quote struct {
	Side     market.Side
	Price    int64
	Position int64
	ZScore   float64
	Resting  RestingOrder
}

// CheckAdmission decides whether a new order may be placed for the quote.
// Asks need position > -limit and z <= lower; bids need position < +limit
// and z >= upper.
func CheckAdmission(cfg config.StrategyConfig, q Quote) error {
	if !q.Resting.Empty() {
		return ErrSlotBusy
	}
	if q.Price <= 0 {
		return ErrNoPrice
	}
	if !SignalUsable(q.ZScore) {
		return ErrNoSignal
	}
	switch q.Side {
	case market.Sell:
		if q.Position <= -cfg.PositionLimit {
			return fmt.Errorf("position %d at or below -%d: %w", q.Position, cfg.PositionLimit, ErrPositionLimit)
		}
		if q.ZScore > cfg.ZScoreLower {
			return fmt.Errorf("z-score %.4f above %.4f: %w", q.ZScore, cfg.ZScoreLower, ErrOutsideBand)
		}
	case market.Buy:
		if q.Position >= cfg.PositionLimit {
			return fmt.Errorf("position %d at or above %d: %w", q.Position, cfg.PositionLimit, ErrPositionLimit)
		}
		if q.ZScore < cfg.ZScoreUpper {
			return fmt.Errorf("z-score %.4f below %.4f: %w", q.ZScore, cfg.ZScoreUpper, ErrOutsideBand)
		}
	default:
		return fmt.Errorf("unknown side %d", q.Side)
	}
	return nil
}

// PriceAdjustment skews quotes against inventory by one tick per whole lot.
func PriceAdjustment(cfg config.StrategyConfig, position int64) int64 {
	return -(position / cfg.LotSize) * cfg.TickSize
}

// MinBidNearestTick is the lowest tick-aligned price strictly above the
// minimum bid.
func MinBidNearestTick(cfg config.StrategyConfig) int64 {
	return (cfg.MinBidPrice + cfg.TickSize) / cfg.TickSize * cfg.TickSize
}

// MaxAskNearestTick is the highest tick-aligned price not above the maximum ask.
func MaxAskNearestTick(cfg config.StrategyConfig) int64 {
	return cfg.MaxAskPrice / cfg.TickSize * cfg.TickSize
}
