package exchange

import (
	"bytes"
	"errors"
	"fmt"

	"pairs-bot/internal/market"

	"github.com/vmihailenco/msgpack/v5"
)

// Command is anything the trader sends to the exchange.
type Command interface {
	commandType() string
}

type Login struct {
	Team   string
	Secret string
}

type InsertOrder struct {
	ClientOrderID uint64
	Side          market.Side
	Price         int64
	Volume        int64
	Lifespan      market.Lifespan
}

type CancelOrder struct {
	ClientOrderID uint64
}

type HedgeOrder struct {
	ClientOrderID uint64
	Side          market.Side
	Price         int64
	Volume        int64
}

func (Login) commandType() string       { return TypeLogin }
func (InsertOrder) commandType() string { return TypeInsertOrder }
func (CancelOrder) commandType() string { return TypeCancelOrder }
func (HedgeOrder) commandType() string  { return TypeHedgeOrder }

// ClientOrderID returns the order id a command refers to, or 0.
func ClientOrderID(cmd Command) uint64 {
	switch c := cmd.(type) {
	case InsertOrder:
		return c.ClientOrderID
	case CancelOrder:
		return c.ClientOrderID
	case HedgeOrder:
		return c.ClientOrderID
	default:
		return 0
	}
}

// EncodeCommand writes the envelope with map keys in a fixed order so equal
// commands produce equal frames.
func EncodeCommand(cmd Command) ([]byte, error) {
	if cmd == nil {
		return nil, errors.New("command is required")
	}
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := enc.EncodeMapLen(2); err != nil {
		return nil, err
	}
	if err := enc.EncodeString("t"); err != nil {
		return nil, err
	}
	if err := enc.EncodeString(cmd.commandType()); err != nil {
		return nil, err
	}
	if err := enc.EncodeString("p"); err != nil {
		return nil, err
	}
	var err error
	switch c := cmd.(type) {
	case Login:
		err = encodeLogin(enc, c)
	case InsertOrder:
		err = encodeInsertOrder(enc, c)
	case CancelOrder:
		err = encodeCancelOrder(enc, c)
	case HedgeOrder:
		err = encodeHedgeOrder(enc, c)
	default:
		err = fmt.Errorf("unsupported command %T", cmd)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeLogin(enc *msgpack.Encoder, login Login) error {
	if login.Team == "" {
		return errors.New("login team is required")
	}
	if err := enc.EncodeMapLen(2); err != nil {
		return err
	}
	if err := enc.EncodeString("team"); err != nil {
		return err
	}
	if err := enc.EncodeString(login.Team); err != nil {
		return err
	}
	if err := enc.EncodeString("secret"); err != nil {
		return err
	}
	return enc.EncodeString(login.Secret)
}

func encodeInsertOrder(enc *msgpack.Encoder, order InsertOrder) error {
	if err := validateOrder(order.ClientOrderID, order.Side, order.Price, order.Volume); err != nil {
		return err
	}
	if err := enc.EncodeMapLen(5); err != nil {
		return err
	}
	if err := encodeOrderFields(enc, order.ClientOrderID, order.Side, order.Price, order.Volume); err != nil {
		return err
	}
	if err := enc.EncodeString("lifespan"); err != nil {
		return err
	}
	return enc.EncodeUint8(uint8(order.Lifespan))
}

func encodeHedgeOrder(enc *msgpack.Encoder, order HedgeOrder) error {
	if err := validateOrder(order.ClientOrderID, order.Side, order.Price, order.Volume); err != nil {
		return err
	}
	if err := enc.EncodeMapLen(4); err != nil {
		return err
	}
	return encodeOrderFields(enc, order.ClientOrderID, order.Side, order.Price, order.Volume)
}

func encodeCancelOrder(enc *msgpack.Encoder, cancel CancelOrder) error {
	if cancel.ClientOrderID == 0 {
		return errors.New("client order id is required")
	}
	if err := enc.EncodeMapLen(1); err != nil {
		return err
	}
	if err := enc.EncodeString("client_order_id"); err != nil {
		return err
	}
	return enc.EncodeUint(cancel.ClientOrderID)
}

func encodeOrderFields(enc *msgpack.Encoder, id uint64, side market.Side, price, volume int64) error {
	if err := enc.EncodeString("client_order_id"); err != nil {
		return err
	}
	if err := enc.EncodeUint(id); err != nil {
		return err
	}
	if err := enc.EncodeString("side"); err != nil {
		return err
	}
	if err := enc.EncodeUint8(uint8(side)); err != nil {
		return err
	}
	if err := enc.EncodeString("price"); err != nil {
		return err
	}
	if err := enc.EncodeInt(price); err != nil {
		return err
	}
	if err := enc.EncodeString("volume"); err != nil {
		return err
	}
	return enc.EncodeInt(volume)
}

func validateOrder(id uint64, side market.Side, price, volume int64) error {
	if id == 0 {
		return errors.New("client order id is required")
	}
	if !side.Valid() {
		return fmt.Errorf("invalid side %d", side)
	}
	if price <= 0 {
		return fmt.Errorf("price must be positive, got %d", price)
	}
	if volume <= 0 {
		return fmt.Errorf("volume must be positive, got %d", volume)
	}
	return nil
}
