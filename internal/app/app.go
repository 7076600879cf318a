package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"pairs-bot/internal/alerts"
	"pairs-bot/internal/config"
	"pairs-bot/internal/exchange"
	"pairs-bot/internal/exec"
	"pairs-bot/internal/metrics"
	"pairs-bot/internal/state"
	"pairs-bot/internal/state/sqlite"
	"pairs-bot/internal/strategy"
	"pairs-bot/internal/timescale"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

// Session is the exchange connection the app runs on.
type Session interface {
	Run(ctx context.Context, sink func(exchange.Event)) error
	Send(ctx context.Context, cmd exchange.Command) error
	Close() error
}

// App owns the event loop. Every event reaches the trader on the Run
// goroutine; transports and the executor only ever push into the inbox.
type App struct {
	cfg       *config.Config
	log       *zap.Logger
	sessionID string
	store     state.Store
	session   Session
	executor  *exec.Executor
	gateway   *gateway
	trader    *strategy.Trader
	metrics   *metrics.Metrics
	prom      *metrics.Prometheus
	timescale *timescale.Writer
	alerts    *alerts.Telegram

	inbox chan exchange.Event
	done  chan struct{}
}

func New(cfg *config.Config, log *zap.Logger) (*App, error) {
	sessionID := uuid.NewString()
	log = log.With(zap.String("session_id", sessionID))
	store, err := sqlite.New(cfg.State.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}
	session, err := exchange.NewSession(cfg.Exchange, log.Named("exchange"))
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	writer, err := timescale.New(cfg.Timescale, log.Named("timescale"))
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("timescale: %w", err)
	}
	var prom *metrics.Prometheus
	m := metrics.NewNoop()
	if cfg.Metrics.EnabledValue() {
		prom = metrics.NewPrometheus()
		m = prom.Metrics
	}
	telegram := alerts.NewTelegram(cfg.Telegram, cfg.Exchange.Team, log.Named("alerts"))
	a, err := newApp(cfg, log, sessionID, store, session, m, writer, telegram)
	if err != nil {
		_ = store.Close()
		_ = writer.Close()
		return nil, err
	}
	a.prom = prom
	return a, nil
}

func newApp(cfg *config.Config, log *zap.Logger, sessionID string, store state.Store, session Session, m *metrics.Metrics, writer *timescale.Writer, telegram *alerts.Telegram) (*App, error) {
	a := &App{
		cfg:       cfg,
		log:       log,
		sessionID: sessionID,
		store:     store,
		session:   session,
		metrics:   m,
		timescale: writer,
		alerts:    telegram,
		inbox:     make(chan exchange.Event, cfg.Exchange.InboxSize),
		done:      make(chan struct{}),
	}
	a.executor = exec.New(session, store, cfg.Exchange.SendQueue, m, log.Named("exec"))
	a.executor.OnFailure(a.reportSendFailure)
	a.gateway = newGateway(a.executor)
	a.trader = strategy.NewTrader(cfg.Strategy, a.gateway, log.Named("trader"))

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	next, err := state.LoadNextOrderID(ctx, store)
	if err != nil {
		return nil, fmt.Errorf("load next order id: %w", err)
	}
	if next > 0 {
		a.trader.SeedOrderID(next)
		a.executor.Resume(next)
		log.Info("resuming client order ids", zap.Uint64("next_order_id", next))
	}
	return a, nil
}

func (a *App) Run(ctx context.Context) error {
	defer a.shutdown()
	defer close(a.done)

	a.timescale.Start(ctx)
	a.startMetricsServer(ctx)
	go func() {
		if err := a.executor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.log.Warn("executor stopped", zap.Error(err))
		}
	}()
	go func() {
		if err := a.session.Run(ctx, a.push); err != nil && !errors.Is(err, context.Canceled) {
			a.log.Error("exchange session stopped", zap.Error(err))
		}
	}()

	ticker := time.NewTicker(a.cfg.State.SnapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-a.inbox:
			a.handle(ctx, ev)
		case <-ticker.C:
			a.saveSnapshot(ctx)
		}
	}
}

// push hands an event to the loop. It blocks while the inbox is full so no
// fill or status is ever dropped.
func (a *App) push(ev exchange.Event) {
	select {
	case a.inbox <- ev:
	case <-a.done:
	}
}

func (a *App) reportSendFailure(id uint64, err error) {
	a.push(exchange.OrderError{ClientOrderID: id, Message: "send failed: " + err.Error()})
}

func (a *App) startMetricsServer(ctx context.Context) {
	if a.prom == nil || a.cfg.Metrics.Address == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle(a.cfg.Metrics.Path, a.prom.Handler())
	server := &http.Server{Addr: a.cfg.Metrics.Address, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		a.log.Info("metrics server listening", zap.String("address", a.cfg.Metrics.Address), zap.String("path", a.cfg.Metrics.Path))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
}

func (a *App) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	a.saveSnapshot(ctx)
	a.alerts.Wait()
	if err := a.session.Close(); err != nil {
		a.log.Debug("session close", zap.Error(err))
	}
	if err := a.timescale.Close(); err != nil {
		a.log.Warn("timescale close failed", zap.Error(err))
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("state store close failed", zap.Error(err))
	}
	a.log.Info("shutdown complete", zap.Int64("position", a.trader.Position()))
}
