package app

import (
	"time"

	"pairs-bot/internal/market"
	"pairs-bot/internal/timescale"
)

func (a *App) recordSample(inst market.Instrument, seq uint64) {
	sample, ok := a.trader.Spread().LastSample()
	if !ok {
		return
	}
	z, _ := a.trader.Spread().ZScore()
	a.timescale.EnqueueSample(timescale.SpreadSample{
		Time:       time.Now().UTC(),
		SessionID:  a.sessionID,
		Sequence:   seq,
		Instrument: inst.String(),
		Sample:     sample,
		Mean:       a.trader.Spread().Stats().Mean,
		ZScore:     z,
		Position:   a.trader.Position(),
	})
}

func (a *App) recordFill(id uint64, side market.Side, price, volume int64, hedge bool) {
	a.timescale.EnqueueFill(timescale.Fill{
		Time:      time.Now().UTC(),
		SessionID: a.sessionID,
		OrderID:   id,
		Side:      side.String(),
		Price:     price,
		Volume:    volume,
		Hedge:     hedge,
	})
}
