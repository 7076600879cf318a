package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"pairs-bot/internal/alerts"
	"pairs-bot/internal/config"
	"pairs-bot/internal/exchange"
	"pairs-bot/internal/market"
	"pairs-bot/internal/metrics"
	persist "pairs-bot/internal/state"

	"go.uber.org/zap"
)

type memoryStore struct {
	mu    sync.Mutex
	items map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{items: make(map[string]string)}
}

func (m *memoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.items[key]
	return val, ok, nil
}

func (m *memoryStore) Set(ctx context.Context, key, value string) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = value
	return nil
}

func (m *memoryStore) Delete(ctx context.Context, key string) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

func (m *memoryStore) Close() error { return nil }

type fakeSession struct {
	sinks chan func(exchange.Event)
	sent  chan exchange.Command
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		sinks: make(chan func(exchange.Event), 1),
		sent:  make(chan exchange.Command, 16),
	}
}

func (f *fakeSession) Run(ctx context.Context, sink func(exchange.Event)) error {
	f.sinks <- sink
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeSession) Send(ctx context.Context, cmd exchange.Command) error {
	_ = ctx
	f.sent <- cmd
	return nil
}

func (f *fakeSession) Close() error { return nil }

func newTestApp(t *testing.T, store persist.Store, session Session) *App {
	t.Helper()
	cfg := config.Default()
	telegram := alerts.NewTelegram(config.TelegramConfig{}, "", zap.NewNop())
	a, err := newApp(cfg, zap.NewNop(), "test-session", store, session, metrics.NewNoop(), nil, telegram)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return a
}

func book(inst market.Instrument, seq uint64, bid, ask int64) exchange.OrderBook {
	return exchange.OrderBook{
		Instrument: inst,
		Sequence:   seq,
		AskPrices:  []int64{ask, 0, 0, 0, 0},
		AskVolumes: []int64{20, 0, 0, 0, 0},
		BidPrices:  []int64{bid, 0, 0, 0, 0},
		BidVolumes: []int64{20, 0, 0, 0, 0},
	}
}

func waitSent(t *testing.T, session *fakeSession) exchange.Command {
	t.Helper()
	select {
	case cmd := <-session.sent:
		return cmd
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for command")
	}
	return nil
}

func TestAppQuotesHedgesAndSnapshots(t *testing.T) {
	store := newMemoryStore()
	session := newFakeSession()
	a := newTestApp(t, store, session)

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- a.Run(ctx) }()

	var sink func(exchange.Event)
	select {
	case sink = <-session.sinks:
	case <-time.After(2 * time.Second):
		t.Fatalf("session never started")
	}

	sink(book(market.ETF, 1, 10000, 10100))
	sink(book(market.Future, 1, 10000, 10100))
	sink(book(market.ETF, 2, 9900, 10000))

	insert, ok := waitSent(t, session).(exchange.InsertOrder)
	if !ok || insert.Side != market.Sell || insert.Price != 10000 || insert.Volume != 15 {
		t.Fatalf("unexpected insert %#v", insert)
	}

	sink(exchange.OrderFilled{ClientOrderID: insert.ClientOrderID, Price: 10000, Volume: 15})
	hedge, ok := waitSent(t, session).(exchange.HedgeOrder)
	if !ok || hedge.Side != market.Buy || hedge.Volume != 15 || hedge.Price != 2147483600 {
		t.Fatalf("unexpected hedge %#v", hedge)
	}
	sink(exchange.HedgeFilled{ClientOrderID: hedge.ClientOrderID, AveragePrice: 10100, Volume: 15})

	cancel()
	select {
	case err := <-runErr:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not stop")
	}

	snap, ok, err := persist.LoadTraderSnapshot(context.Background(), store)
	if err != nil || !ok {
		t.Fatalf("expected final snapshot, ok=%v err=%v", ok, err)
	}
	if snap.Position != -15 || snap.SessionID != "test-session" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if snap.ZScore == nil {
		t.Fatalf("expected z-score in snapshot")
	}
	deadline := time.Now().Add(time.Second)
	for {
		next, err := persist.LoadNextOrderID(context.Background(), store)
		if err != nil {
			t.Fatalf("load next id: %v", err)
		}
		if next == hedge.ClientOrderID+1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected persisted next id %d, got %d", hedge.ClientOrderID+1, next)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestAppSeedsOrderIDFromStore(t *testing.T) {
	store := newMemoryStore()
	if err := persist.SaveNextOrderID(context.Background(), store, 50); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	a := newTestApp(t, store, newFakeSession())
	if got := a.trader.Orders().NextID(); got != 50 {
		t.Fatalf("expected next id 50, got %d", got)
	}
}

func TestAppSendFailureClearsRestingOrder(t *testing.T) {
	a := newTestApp(t, newMemoryStore(), newFakeSession())
	ctx := context.Background()
	a.handle(ctx, book(market.ETF, 1, 10000, 10100))
	a.handle(ctx, book(market.Future, 1, 10000, 10100))
	a.handle(ctx, book(market.ETF, 2, 9900, 10000))
	ask := a.trader.Orders().Resting(market.Sell)
	if ask.Empty() {
		t.Fatalf("expected resting ask")
	}

	a.reportSendFailure(ask.ID, errors.New("boom"))
	ev := <-a.inbox
	a.handle(ctx, ev)
	if !a.trader.Orders().Resting(market.Sell).Empty() || a.trader.Orders().Outstanding(ask.ID) {
		t.Fatalf("expected failed insert to be cleared")
	}
}

func TestAppSnapshotWithoutSignal(t *testing.T) {
	a := newTestApp(t, newMemoryStore(), newFakeSession())
	ctx := context.Background()
	a.handle(ctx, book(market.ETF, 1, 10000, 10100))
	a.handle(ctx, book(market.Future, 1, 10000, 10100))
	snap := a.snapshot()
	if snap.ZScore != nil {
		t.Fatalf("expected no z-score with a single sample, got %v", *snap.ZScore)
	}
	if snap.Spread == nil || *snap.Spread != 0 || snap.SampleCount != 1 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestGatewayRemembersHedgeSide(t *testing.T) {
	g := newGateway(noopGateway{})
	g.HedgeOrder(7, market.Sell, 100, 10)
	side, ok := g.hedgeSide(7)
	if !ok || side != market.Sell {
		t.Fatalf("expected sell hedge, got %s %v", side, ok)
	}
	if _, ok := g.hedgeSide(7); ok {
		t.Fatalf("hedge side should be forgotten after lookup")
	}
}

type noopGateway struct{}

func (noopGateway) InsertOrder(uint64, market.Side, int64, int64, market.Lifespan) {}
func (noopGateway) CancelOrder(uint64)                                             {}
func (noopGateway) HedgeOrder(uint64, market.Side, int64, int64)                   {}
