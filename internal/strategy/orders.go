package strategy

import "pairs-bot/internal/market"

type OrderState string

type OrderEvent string

const (
	OrderUnplaced    OrderState = "UNPLACED"
	OrderOutstanding OrderState = "OUTSTANDING"
	OrderTerminal    OrderState = "TERMINAL"
)

const (
	OrderSubmitted OrderEvent = "SUBMITTED"
	OrderDone      OrderEvent = "DONE"
)

func nextOrderState(current OrderState, event OrderEvent) OrderState {
	switch current {
	case OrderUnplaced:
		if event == OrderSubmitted {
			return OrderOutstanding
		}
	case OrderOutstanding:
		if event == OrderDone {
			return OrderTerminal
		}
	}
	return current
}

// RestingOrder is a quoting slot. ID 0 means the slot is empty.
type RestingOrder struct {
	ID    uint64
	Price int64
}

func (r RestingOrder) Empty() bool {
	return r.ID == 0
}

// OrderTracker owns client order ids, the two resting slots and the sets of
// ids believed live at the exchange.
type OrderTracker struct {
	nextID  uint64
	pending uint64
	ask     RestingOrder
	bid     RestingOrder
	asks    map[uint64]struct{}
	bids    map[uint64]struct{}
}

func NewOrderTracker() *OrderTracker {
	return &OrderTracker{
		nextID: 1,
		asks:   make(map[uint64]struct{}),
		bids:   make(map[uint64]struct{}),
	}
}

// Allocate hands out the next client order id. The id stays unplaced until
// Place or the next Allocate.
func (o *OrderTracker) Allocate() uint64 {
	id := o.nextID
	o.nextID++
	o.pending = id
	return id
}

func (o *OrderTracker) NextID() uint64 {
	return o.nextID
}

// SeedNextID moves the allocator forward; it never moves it back.
func (o *OrderTracker) SeedNextID(id uint64) {
	if id > o.nextID {
		o.nextID = id
	}
}

// State derives an id's lifecycle state. An id superseded by a later
// Allocate without being placed, such as a hedge id, reads as terminal.
func (o *OrderTracker) State(id uint64) OrderState {
	if id == 0 || id >= o.nextID || id == o.pending {
		return OrderUnplaced
	}
	if _, ok := o.asks[id]; ok {
		return OrderOutstanding
	}
	if _, ok := o.bids[id]; ok {
		return OrderOutstanding
	}
	return OrderTerminal
}

// Place marks the most recently allocated id as resting on the given side.
// Any other id is refused.
func (o *OrderTracker) Place(side market.Side, id uint64, price int64) bool {
	if id == 0 || id != o.pending {
		return false
	}
	if nextOrderState(o.State(id), OrderSubmitted) != OrderOutstanding {
		return false
	}
	o.pending = 0
	order := RestingOrder{ID: id, Price: price}
	if side == market.Sell {
		o.ask = order
		o.asks[id] = struct{}{}
	} else {
		o.bid = order
		o.bids[id] = struct{}{}
	}
	return true
}

// Vacate empties a slot after a cancel was sent. The id stays outstanding
// until the exchange reports it done.
func (o *OrderTracker) Vacate(side market.Side) {
	if side == market.Sell {
		o.ask = RestingOrder{}
	} else {
		o.bid = RestingOrder{}
	}
}

// Complete moves an outstanding id to terminal: its slot is cleared and it
// leaves both sets. It returns the id's resulting state, so an id that was
// never placed comes back unplaced.
func (o *OrderTracker) Complete(id uint64) OrderState {
	state := nextOrderState(o.State(id), OrderDone)
	if o.ask.ID == id && id != 0 {
		o.ask = RestingOrder{}
	} else if o.bid.ID == id && id != 0 {
		o.bid = RestingOrder{}
	}
	delete(o.asks, id)
	delete(o.bids, id)
	return state
}

// SideOf classifies an id by outstanding set membership.
func (o *OrderTracker) SideOf(id uint64) (market.Side, bool) {
	if _, ok := o.asks[id]; ok {
		return market.Sell, true
	}
	if _, ok := o.bids[id]; ok {
		return market.Buy, true
	}
	return 0, false
}

func (o *OrderTracker) Outstanding(id uint64) bool {
	_, ok := o.SideOf(id)
	return ok
}

func (o *OrderTracker) Resting(side market.Side) RestingOrder {
	if side == market.Sell {
		return o.ask
	}
	return o.bid
}

func (o *OrderTracker) OutstandingCount(side market.Side) int {
	if side == market.Sell {
		return len(o.asks)
	}
	return len(o.bids)
}
