package strategy

import "pairs-bot/internal/market"

// Gateway receives the trader's commands. Implementations must not block and
// must not call back into the Trader synchronously; outcomes come back later
// as events.
type Gateway interface {
	InsertOrder(id uint64, side market.Side, price, volume int64, lifespan market.Lifespan)
	CancelOrder(id uint64)
	HedgeOrder(id uint64, side market.Side, price, volume int64)
}

// Snapshot is a read-only view of the trader for reporting.
type Snapshot struct {
	Position         int64
	ZScore           float64
	HasZScore        bool
	Spread           float64
	Stats            Stats
	Ask              RestingOrder
	Bid              RestingOrder
	OutstandingAsks  int
	OutstandingBids  int
	NextOrderID      uint64
	MaxSequence      uint64
	ETFSequence      uint64
	FutureSequence   uint64
	SpreadHistoryLen int
	ZScoreHistoryLen int
}
