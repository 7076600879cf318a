package exchange

import (
	"errors"
	"fmt"

	"pairs-bot/internal/market"

	"github.com/vmihailenco/msgpack/v5"
)

// Frame type tags carried in the envelope's "t" field.
const (
	TypeOrderBook   = "order_book"
	TypeTradeTicks  = "trade_ticks"
	TypeOrderFilled = "order_filled"
	TypeOrderStatus = "order_status"
	TypeHedgeFilled = "hedge_filled"
	TypeError       = "error"

	TypeLogin       = "login"
	TypeInsertOrder = "insert_order"
	TypeCancelOrder = "cancel_order"
	TypeHedgeOrder  = "hedge_order"
)

var ErrUnknownType = errors.New("unknown message type")

// Envelope is one binary frame: a type tag and a msgpack payload.
type Envelope struct {
	Type    string             `msgpack:"t"`
	Payload msgpack.RawMessage `msgpack:"p"`
}

// Event is anything the exchange pushes to the trader.
type Event interface {
	eventType() string
}

type OrderBook struct {
	Instrument market.Instrument
	Sequence   uint64
	AskPrices  []int64
	AskVolumes []int64
	BidPrices  []int64
	BidVolumes []int64
}

// TradeTicks has the same shape as OrderBook but reports traded levels.
type TradeTicks OrderBook

type OrderFilled struct {
	ClientOrderID uint64
	Price         int64
	Volume        int64
}

type OrderStatus struct {
	ClientOrderID   uint64
	FillVolume      int64
	RemainingVolume int64
	Fees            int64
}

type HedgeFilled struct {
	ClientOrderID uint64
	AveragePrice  int64
	Volume        int64
}

// OrderError is an exchange rejection. ClientOrderID 0 means the error is not
// tied to an order.
type OrderError struct {
	ClientOrderID uint64
	Message       string
}

// Disconnect is produced locally when the transport loses its connection.
type Disconnect struct {
	Err error
}

func (OrderBook) eventType() string   { return TypeOrderBook }
func (TradeTicks) eventType() string  { return TypeTradeTicks }
func (OrderFilled) eventType() string { return TypeOrderFilled }
func (OrderStatus) eventType() string { return TypeOrderStatus }
func (HedgeFilled) eventType() string { return TypeHedgeFilled }
func (OrderError) eventType() string  { return TypeError }
func (Disconnect) eventType() string  { return "disconnect" }

type bookWire struct {
	Instrument *uint8  `msgpack:"instrument"`
	Sequence   *uint64 `msgpack:"sequence"`
	AskPrices  []int64 `msgpack:"ask_prices"`
	AskVolumes []int64 `msgpack:"ask_volumes"`
	BidPrices  []int64 `msgpack:"bid_prices"`
	BidVolumes []int64 `msgpack:"bid_volumes"`
}

type fillWire struct {
	ClientOrderID *uint64 `msgpack:"client_order_id"`
	Price         *int64  `msgpack:"price"`
	Volume        *int64  `msgpack:"volume"`
}

type statusWire struct {
	ClientOrderID   *uint64 `msgpack:"client_order_id"`
	FillVolume      *int64  `msgpack:"fill_volume"`
	RemainingVolume *int64  `msgpack:"remaining_volume"`
	Fees            *int64  `msgpack:"fees"`
}

type errorWire struct {
	ClientOrderID uint64  `msgpack:"client_order_id"`
	Message       *string `msgpack:"message"`
}

// DecodeEvent parses one inbound frame.
func DecodeEvent(data []byte) (Event, error) {
	var env Envelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type == "" {
		return nil, errors.New("envelope type is required")
	}
	switch env.Type {
	case TypeOrderBook, TypeTradeTicks:
		book, err := decodeBook(env.Payload)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", env.Type, err)
		}
		if env.Type == TypeTradeTicks {
			return TradeTicks(book), nil
		}
		return book, nil
	case TypeOrderFilled, TypeHedgeFilled:
		var w fillWire
		if err := unmarshalPayload(env.Payload, &w); err != nil {
			return nil, fmt.Errorf("%s: %w", env.Type, err)
		}
		if err := required(w.ClientOrderID != nil, "client_order_id"); err != nil {
			return nil, fmt.Errorf("%s: %w", env.Type, err)
		}
		if err := required(w.Price != nil, "price"); err != nil {
			return nil, fmt.Errorf("%s: %w", env.Type, err)
		}
		if err := required(w.Volume != nil, "volume"); err != nil {
			return nil, fmt.Errorf("%s: %w", env.Type, err)
		}
		if env.Type == TypeHedgeFilled {
			return HedgeFilled{ClientOrderID: *w.ClientOrderID, AveragePrice: *w.Price, Volume: *w.Volume}, nil
		}
		return OrderFilled{ClientOrderID: *w.ClientOrderID, Price: *w.Price, Volume: *w.Volume}, nil
	case TypeOrderStatus:
		var w statusWire
		if err := unmarshalPayload(env.Payload, &w); err != nil {
			return nil, fmt.Errorf("%s: %w", env.Type, err)
		}
		if w.ClientOrderID == nil || w.FillVolume == nil || w.RemainingVolume == nil {
			return nil, fmt.Errorf("%s: client_order_id, fill_volume and remaining_volume are required", env.Type)
		}
		status := OrderStatus{
			ClientOrderID:   *w.ClientOrderID,
			FillVolume:      *w.FillVolume,
			RemainingVolume: *w.RemainingVolume,
		}
		if w.Fees != nil {
			status.Fees = *w.Fees
		}
		return status, nil
	case TypeError:
		var w errorWire
		if err := unmarshalPayload(env.Payload, &w); err != nil {
			return nil, fmt.Errorf("%s: %w", env.Type, err)
		}
		if err := required(w.Message != nil, "message"); err != nil {
			return nil, fmt.Errorf("%s: %w", env.Type, err)
		}
		return OrderError{ClientOrderID: w.ClientOrderID, Message: *w.Message}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}

func decodeBook(payload msgpack.RawMessage) (OrderBook, error) {
	var w bookWire
	if err := unmarshalPayload(payload, &w); err != nil {
		return OrderBook{}, err
	}
	if err := required(w.Instrument != nil, "instrument"); err != nil {
		return OrderBook{}, err
	}
	if err := required(w.Sequence != nil, "sequence"); err != nil {
		return OrderBook{}, err
	}
	inst := market.Instrument(*w.Instrument)
	if !inst.Valid() {
		return OrderBook{}, fmt.Errorf("unknown instrument %d", *w.Instrument)
	}
	return OrderBook{
		Instrument: inst,
		Sequence:   *w.Sequence,
		AskPrices:  levels(w.AskPrices),
		AskVolumes: levels(w.AskVolumes),
		BidPrices:  levels(w.BidPrices),
		BidVolumes: levels(w.BidVolumes),
	}, nil
}

func unmarshalPayload(payload msgpack.RawMessage, v any) error {
	if len(payload) == 0 {
		return errors.New("payload is required")
	}
	return msgpack.Unmarshal(payload, v)
}

func required(ok bool, field string) error {
	if ok {
		return nil
	}
	return fmt.Errorf("%s is required", field)
}

// levels pads or truncates a per-level array to market.TopLevelCount.
func levels(in []int64) []int64 {
	out := make([]int64, market.TopLevelCount)
	copy(out, in)
	return out
}
