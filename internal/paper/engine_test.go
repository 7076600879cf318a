package paper

import (
	"testing"

	"pairs-bot/internal/market"

	"github.com/shopspring/decimal"
)

type fillEvent struct {
	id     uint64
	price  int64
	volume int64
}

type statusEvent struct {
	id        uint64
	filled    int64
	remaining int64
}

type errorEvent struct {
	id      uint64
	message string
}

type recordingSink struct {
	fills    []fillEvent
	statuses []statusEvent
	hedges   []fillEvent
	errors   []errorEvent
}

func (r *recordingSink) OnOrderFilled(id uint64, price, volume int64) {
	r.fills = append(r.fills, fillEvent{id, price, volume})
}

func (r *recordingSink) OnOrderStatus(id uint64, fillVolume, remainingVolume, fees int64) {
	r.statuses = append(r.statuses, statusEvent{id, fillVolume, remainingVolume})
}

func (r *recordingSink) OnHedgeFilled(id uint64, price, volume int64) {
	r.hedges = append(r.hedges, fillEvent{id, price, volume})
}

func (r *recordingSink) OnError(id uint64, message string) {
	r.errors = append(r.errors, errorEvent{id, message})
}

func TestEngineFillsCrossingSell(t *testing.T) {
	e := NewEngine(nil)
	sink := &recordingSink{}
	e.InsertOrder(1, market.Sell, 10000, 15, market.GoodForDay)
	e.Book(market.Quote{Instrument: market.ETF, BidPrice: 9900, BidVolume: 50, AskPrice: 10000, AskVolume: 50})
	e.Drain(sink)
	if len(sink.fills) != 0 {
		t.Fatalf("expected no fill below the ask price")
	}

	e.Book(market.Quote{Instrument: market.ETF, BidPrice: 10000, BidVolume: 10, AskPrice: 10100, AskVolume: 50})
	e.Drain(sink)
	if len(sink.fills) != 1 || sink.fills[0] != (fillEvent{1, 10000, 10}) {
		t.Fatalf("expected partial fill of 10, got %+v", sink.fills)
	}
	if sink.statuses[0] != (statusEvent{1, 10, 5}) {
		t.Fatalf("unexpected status %+v", sink.statuses[0])
	}

	e.Book(market.Quote{Instrument: market.ETF, BidPrice: 10100, BidVolume: 10, AskPrice: 10200, AskVolume: 50})
	e.Drain(sink)
	if len(sink.fills) != 2 || sink.fills[1].volume != 5 {
		t.Fatalf("expected remaining 5 filled, got %+v", sink.fills)
	}
	if last := sink.statuses[len(sink.statuses)-1]; last != (statusEvent{1, 15, 0}) {
		t.Fatalf("expected terminal status, got %+v", last)
	}
	if e.Resting() != 0 {
		t.Fatalf("expected no resting orders")
	}
	r := e.Report()
	if r.ETFPosition != -15 || !r.Cash.Equal(decimal.NewFromInt(1500)) {
		t.Fatalf("unexpected report %+v", r)
	}
}

func TestEngineSharesTouchVolume(t *testing.T) {
	e := NewEngine(nil)
	sink := &recordingSink{}
	e.InsertOrder(1, market.Buy, 10000, 15, market.GoodForDay)
	e.InsertOrder(2, market.Buy, 10000, 15, market.GoodForDay)
	e.Book(market.Quote{Instrument: market.ETF, BidPrice: 9900, BidVolume: 5, AskPrice: 10000, AskVolume: 20})
	e.Drain(sink)
	if len(sink.fills) != 2 || sink.fills[0].volume != 15 || sink.fills[1].volume != 5 {
		t.Fatalf("expected 15 then 5, got %+v", sink.fills)
	}
}

func TestEngineCancel(t *testing.T) {
	e := NewEngine(nil)
	sink := &recordingSink{}
	e.InsertOrder(1, market.Buy, 9900, 15, market.GoodForDay)
	e.CancelOrder(1)
	e.CancelOrder(1)
	e.Drain(sink)
	if len(sink.statuses) != 1 || sink.statuses[0] != (statusEvent{1, 0, 0}) {
		t.Fatalf("expected one terminal status, got %+v", sink.statuses)
	}
}

func TestEngineHedgeAtFutureTouch(t *testing.T) {
	e := NewEngine(nil)
	sink := &recordingSink{}
	e.HedgeOrder(1, market.Sell, 100, 10)
	e.Book(market.Quote{Instrument: market.Future, BidPrice: 10000, BidVolume: 5, AskPrice: 10100, AskVolume: 5})
	e.HedgeOrder(2, market.Buy, 2147483600, 10)
	e.Drain(sink)
	if len(sink.hedges) != 2 {
		t.Fatalf("expected two hedge fills, got %+v", sink.hedges)
	}
	if sink.hedges[0].price != 100 {
		t.Fatalf("expected limit price without a book, got %d", sink.hedges[0].price)
	}
	if sink.hedges[1].price != 10100 {
		t.Fatalf("expected future ask, got %d", sink.hedges[1].price)
	}
	if r := e.Report(); r.FuturePosition != 0 || r.HedgeFills != 2 {
		t.Fatalf("unexpected report %+v", r)
	}
}

func TestEngineFillAndKill(t *testing.T) {
	e := NewEngine(nil)
	sink := &recordingSink{}
	e.Book(market.Quote{Instrument: market.ETF, BidPrice: 9900, BidVolume: 5, AskPrice: 10000, AskVolume: 5})
	e.InsertOrder(1, market.Buy, 10000, 15, market.FillAndKill)
	e.Drain(sink)
	if len(sink.fills) != 1 || sink.fills[0].volume != 5 {
		t.Fatalf("expected immediate fill of 5, got %+v", sink.fills)
	}
	if last := sink.statuses[len(sink.statuses)-1]; last != (statusEvent{1, 5, 0}) {
		t.Fatalf("expected remainder killed, got %+v", last)
	}
	if e.Resting() != 0 {
		t.Fatalf("fill-and-kill orders must not rest")
	}
}

func TestEngineRejectsInvalidInsert(t *testing.T) {
	e := NewEngine(nil)
	sink := &recordingSink{}
	e.InsertOrder(1, market.Sell, 0, 15, market.GoodForDay)
	e.Drain(sink)
	if len(sink.statuses) != 1 || e.Report().Rejects != 1 {
		t.Fatalf("expected rejection status")
	}
}

func TestEngineRejectsNonMarketableHedge(t *testing.T) {
	e := NewEngine(nil)
	sink := &recordingSink{}
	e.Book(market.Quote{Instrument: market.Future, BidPrice: 10000, BidVolume: 5, AskPrice: 10100, AskVolume: 5})
	e.HedgeOrder(1, market.Buy, 10000, 10)
	e.HedgeOrder(2, market.Sell, 10100, 10)
	e.HedgeOrder(3, market.Sell, 10000, 10)
	e.Drain(sink)
	if len(sink.errors) != 2 || sink.errors[0].id != 1 || sink.errors[1].id != 2 {
		t.Fatalf("expected hedges 1 and 2 rejected, got %+v", sink.errors)
	}
	if len(sink.hedges) != 1 || sink.hedges[0] != (fillEvent{3, 10000, 10}) {
		t.Fatalf("expected hedge 3 filled at the bid, got %+v", sink.hedges)
	}
	r := e.Report()
	if r.Rejects != 2 || r.HedgeFills != 1 || r.FuturePosition != -10 {
		t.Fatalf("unexpected report %+v", r)
	}
}
