package timescale

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"pairs-bot/internal/config"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

const writeTimeout = 3 * time.Second

// SpreadSample is one spread estimator update.
type SpreadSample struct {
	Time       time.Time
	SessionID  string
	Sequence   uint64
	Instrument string
	Sample     float64
	Mean       float64
	ZScore     float64
	Position   int64
}

type Fill struct {
	Time      time.Time
	SessionID string
	OrderID   uint64
	Side      string
	Price     int64
	Volume    int64
	Hedge     bool
}

type Writer struct {
	db         *sql.DB
	log        *zap.Logger
	schema     string
	samples    chan SpreadSample
	fills      chan Fill
	started    atomic.Bool
	dropSample atomic.Uint64
	dropFill   atomic.Uint64
}

// New returns a nil writer when disabled; every method is safe on nil.
func New(cfg config.TimescaleConfig, log *zap.Logger) (*Writer, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("timescale dsn is required")
	}
	schema := strings.TrimSpace(cfg.Schema)
	if schema == "" {
		schema = "public"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}
	writer := &Writer{
		db:      db,
		log:     log,
		schema:  schema,
		samples: make(chan SpreadSample, queueSize),
		fills:   make(chan Fill, queueSize),
	}
	if err := writer.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return writer, nil
}

func (w *Writer) Start(ctx context.Context) {
	if w == nil {
		return
	}
	if !w.started.CompareAndSwap(false, true) {
		return
	}
	go w.run(ctx)
}

func (w *Writer) Close() error {
	if w == nil || w.db == nil {
		return nil
	}
	return w.db.Close()
}

func (w *Writer) EnqueueSample(sample SpreadSample) {
	if w == nil {
		return
	}
	select {
	case w.samples <- sample:
		return
	default:
		if w.dropSample.Add(1) == 1 && w.log != nil {
			w.log.Warn("timescale spread sample queue full")
		}
	}
}

func (w *Writer) EnqueueFill(fill Fill) {
	if w == nil {
		return
	}
	select {
	case w.fills <- fill:
		return
	default:
		if w.dropFill.Add(1) == 1 && w.log != nil {
			w.log.Warn("timescale fill queue full")
		}
	}
}

// Dropped reports how many samples and fills were discarded on a full queue.
func (w *Writer) Dropped() (samples, fills uint64) {
	if w == nil {
		return 0, 0
	}
	return w.dropSample.Load(), w.dropFill.Load()
}

func (w *Writer) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case sample := <-w.samples:
			w.writeSample(ctx, sample)
		case fill := <-w.fills:
			w.writeFill(ctx, fill)
		}
	}
}

func (w *Writer) ensureSchema(ctx context.Context) error {
	if w.db == nil {
		return errors.New("timescale db not initialized")
	}
	if w.schema != "public" {
		if err := w.exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", w.schema)); err != nil {
			return err
		}
	}
	if err := w.exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMPTZ NOT NULL,
		session_id TEXT NOT NULL,
		seq BIGINT NOT NULL,
		instrument TEXT NOT NULL,
		sample DOUBLE PRECISION NOT NULL,
		mean DOUBLE PRECISION NOT NULL,
		zscore DOUBLE PRECISION,
		position BIGINT NOT NULL
	)`, w.table("spread_samples"))); err != nil {
		return err
	}
	if err := w.exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMPTZ NOT NULL,
		session_id TEXT NOT NULL,
		order_id BIGINT NOT NULL,
		side TEXT NOT NULL,
		price BIGINT NOT NULL,
		volume BIGINT NOT NULL,
		hedge BOOLEAN NOT NULL
	)`, w.table("fills"))); err != nil {
		return err
	}
	if err := w.exec(ctx, "CREATE EXTENSION IF NOT EXISTS timescaledb"); err != nil {
		if w.log != nil {
			w.log.Warn("timescale extension ensure failed", zap.Error(err))
		}
		return nil
	}
	for _, name := range []string{"spread_samples", "fills"} {
		if err := w.exec(ctx, fmt.Sprintf("SELECT create_hypertable('%s', 'ts', if_not_exists => TRUE)", w.table(name))); err != nil && w.log != nil {
			w.log.Warn("timescale hypertable create failed", zap.String("table", name), zap.Error(err))
		}
	}
	return nil
}

func (w *Writer) writeSample(ctx context.Context, sample SpreadSample) {
	if w.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	query := fmt.Sprintf(`INSERT INTO %s (
		ts, session_id, seq, instrument, sample, mean, zscore, position
	) VALUES (
		$1,$2,$3,$4,$5,$6,$7,$8
	)`, w.table("spread_samples"))
	if _, err := w.db.ExecContext(ctx, query,
		sample.Time,
		sample.SessionID,
		int64(sample.Sequence),
		sample.Instrument,
		sample.Sample,
		sample.Mean,
		finiteOrNull(sample.ZScore),
		sample.Position,
	); err != nil && w.log != nil {
		w.log.Warn("timescale spread sample insert failed", zap.Error(err))
	}
}

func (w *Writer) writeFill(ctx context.Context, fill Fill) {
	if w.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	query := fmt.Sprintf(`INSERT INTO %s (
		ts, session_id, order_id, side, price, volume, hedge
	) VALUES (
		$1,$2,$3,$4,$5,$6,$7
	)`, w.table("fills"))
	if _, err := w.db.ExecContext(ctx, query,
		fill.Time,
		fill.SessionID,
		int64(fill.OrderID),
		fill.Side,
		fill.Price,
		fill.Volume,
		fill.Hedge,
	); err != nil && w.log != nil {
		w.log.Warn("timescale fill insert failed", zap.Error(err))
	}
}

func (w *Writer) exec(ctx context.Context, query string) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_, err := w.db.ExecContext(ctx, query)
	return err
}

func (w *Writer) table(name string) string {
	return w.schema + "." + name
}

// finiteOrNull maps NaN and infinities, which a z-score can be, to NULL.
func finiteOrNull(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}
