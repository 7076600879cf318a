package exchange

import (
	"errors"
	"testing"

	"pairs-bot/internal/market"

	"github.com/vmihailenco/msgpack/v5"
)

func frame(t *testing.T, typ string, payload map[string]any) []byte {
	t.Helper()
	data, err := msgpack.Marshal(map[string]any{"t": typ, "p": payload})
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}
	return data
}

func TestDecodeOrderBookPadsLevels(t *testing.T) {
	data := frame(t, TypeOrderBook, map[string]any{
		"instrument":  1,
		"sequence":    7,
		"ask_prices":  []int64{10100, 10200},
		"ask_volumes": []int64{5, 6},
		"bid_prices":  []int64{10000, 9900, 9800, 9700, 9600, 9500},
		"bid_volumes": []int64{1},
	})
	ev, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	book, ok := ev.(OrderBook)
	if !ok {
		t.Fatalf("expected OrderBook, got %T", ev)
	}
	if book.Instrument != market.Future || book.Sequence != 7 {
		t.Fatalf("unexpected header %+v", book)
	}
	if len(book.AskPrices) != market.TopLevelCount || book.AskPrices[1] != 10200 || book.AskPrices[2] != 0 {
		t.Fatalf("unexpected ask prices %v", book.AskPrices)
	}
	if len(book.BidPrices) != market.TopLevelCount || book.BidPrices[4] != 9600 {
		t.Fatalf("unexpected bid prices %v", book.BidPrices)
	}
}

func TestDecodeTradeTicks(t *testing.T) {
	data := frame(t, TypeTradeTicks, map[string]any{"instrument": 0, "sequence": 3})
	ev, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	ticks, ok := ev.(TradeTicks)
	if !ok {
		t.Fatalf("expected TradeTicks, got %T", ev)
	}
	if ticks.Instrument != market.ETF || len(ticks.AskPrices) != market.TopLevelCount {
		t.Fatalf("unexpected ticks %+v", ticks)
	}
}

func TestDecodeOrderBookRequiresSequence(t *testing.T) {
	data := frame(t, TypeOrderBook, map[string]any{"instrument": 0})
	if _, err := DecodeEvent(data); err == nil {
		t.Fatalf("expected missing sequence error")
	}
	data = frame(t, TypeOrderBook, map[string]any{"instrument": 9, "sequence": 1})
	if _, err := DecodeEvent(data); err == nil {
		t.Fatalf("expected unknown instrument error")
	}
}

func TestDecodeFillsAndStatus(t *testing.T) {
	ev, err := DecodeEvent(frame(t, TypeOrderFilled, map[string]any{"client_order_id": 4, "price": 10000, "volume": 5}))
	if err != nil {
		t.Fatalf("decode fill: %v", err)
	}
	if fill, ok := ev.(OrderFilled); !ok || fill != (OrderFilled{ClientOrderID: 4, Price: 10000, Volume: 5}) {
		t.Fatalf("unexpected fill %#v", ev)
	}

	ev, err = DecodeEvent(frame(t, TypeHedgeFilled, map[string]any{"client_order_id": 5, "price": 10050, "volume": 5}))
	if err != nil {
		t.Fatalf("decode hedge: %v", err)
	}
	if hedge, ok := ev.(HedgeFilled); !ok || hedge.AveragePrice != 10050 {
		t.Fatalf("unexpected hedge %#v", ev)
	}

	ev, err = DecodeEvent(frame(t, TypeOrderStatus, map[string]any{"client_order_id": 4, "fill_volume": 5, "remaining_volume": 0}))
	if err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status, ok := ev.(OrderStatus); !ok || status.RemainingVolume != 0 || status.Fees != 0 {
		t.Fatalf("unexpected status %#v", ev)
	}

	if _, err := DecodeEvent(frame(t, TypeOrderFilled, map[string]any{"client_order_id": 4})); err == nil {
		t.Fatalf("expected missing price error")
	}
}

func TestDecodeError(t *testing.T) {
	ev, err := DecodeEvent(frame(t, TypeError, map[string]any{"message": "bad login"}))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if e, ok := ev.(OrderError); !ok || e.ClientOrderID != 0 || e.Message != "bad login" {
		t.Fatalf("unexpected error event %#v", ev)
	}
}

func TestDecodeUnknownType(t *testing.T) {
	_, err := DecodeEvent(frame(t, "nope", map[string]any{}))
	if !errors.Is(err, ErrUnknownType) {
		t.Fatalf("expected unknown type error, got %v", err)
	}
	if _, err := DecodeEvent([]byte{0xc1}); err == nil {
		t.Fatalf("expected decode error for garbage")
	}
}
