package exchange

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pairs-bot/internal/config"
	"pairs-bot/internal/market"

	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

func TestSessionLogsInAndDeliversEvents(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	received := make(chan []byte, 4)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept ws: %v", err)
			return
		}
		defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		received <- data
		book, _ := msgpack.Marshal(map[string]any{
			"t": TypeOrderBook,
			"p": map[string]any{"instrument": 0, "sequence": 1, "ask_prices": []int64{10100}, "bid_prices": []int64{10000}},
		})
		if err := conn.Write(ctx, websocket.MessageBinary, book); err != nil {
			return
		}
		_, data, err = conn.Read(ctx)
		if err != nil {
			return
		}
		received <- data
	}))
	defer server.Close()

	cfg := config.ExchangeConfig{
		URL:            "ws" + strings.TrimPrefix(server.URL, "http"),
		Team:           "team",
		Secret:         "secret",
		ReconnectDelay: time.Second,
	}
	session, err := NewSession(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("new session: %v", err)
	}

	events := make(chan Event, 4)
	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()
	go func() {
		_ = session.Run(runCtx, func(ev Event) { events <- ev })
	}()

	select {
	case data := <-received:
		var login struct {
			Team string `msgpack:"team"`
		}
		if typ := decodeCommand(t, data, &login); typ != TypeLogin || login.Team != "team" {
			t.Fatalf("expected login first, got %s %+v", typ, login)
		}
	case <-ctx.Done():
		t.Fatalf("timed out waiting for login")
	}

	select {
	case ev := <-events:
		book, ok := ev.(OrderBook)
		if !ok || book.Instrument != market.ETF || book.AskPrices[0] != 10100 {
			t.Fatalf("unexpected event %#v", ev)
		}
	case <-ctx.Done():
		t.Fatalf("timed out waiting for book")
	}

	if err := session.Send(ctx, CancelOrder{ClientOrderID: 2}); err != nil {
		t.Fatalf("send: %v", err)
	}
	select {
	case data := <-received:
		var p orderPayload
		if typ := decodeCommand(t, data, &p); typ != TypeCancelOrder || p.ClientOrderID != 2 {
			t.Fatalf("unexpected command %s %+v", typ, p)
		}
	case <-ctx.Done():
		t.Fatalf("timed out waiting for cancel")
	}

	select {
	case ev := <-events:
		if _, ok := ev.(Disconnect); !ok {
			t.Fatalf("expected disconnect, got %#v", ev)
		}
	case <-ctx.Done():
		t.Fatalf("timed out waiting for disconnect")
	}
}

func TestClientWriteWithoutConnection(t *testing.T) {
	client := NewClient("ws://127.0.0.1:1", time.Millisecond, 0, nil)
	if err := client.Write(context.Background(), []byte{1}); err != ErrNotConnected {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestClientReconnectsAndGreets(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	greetings := make(chan []byte, 4)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept ws: %v", err)
			return
		}
		_, data, err := conn.Read(ctx)
		if err == nil {
			greetings <- data
		}
		_ = conn.Close(websocket.StatusGoingAway, "bye")
	}))
	defer server.Close()

	client := NewClient("ws"+strings.TrimPrefix(server.URL, "http"), 10*time.Millisecond, 20*time.Millisecond, zap.NewNop())
	client.OnConnect([]byte("hello"))
	drops := make(chan error, 4)
	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()
	go func() {
		_ = client.Run(runCtx, nil, func(err error) {
			select {
			case drops <- err:
			default:
			}
		})
	}()

	for i := 0; i < 2; i++ {
		select {
		case data := <-greetings:
			if string(data) != "hello" {
				t.Fatalf("expected greeting, got %q", data)
			}
		case <-ctx.Done():
			t.Fatalf("timed out waiting for connection %d", i+1)
		}
	}
	select {
	case <-drops:
	case <-ctx.Done():
		t.Fatalf("expected a drop notification")
	}
}
