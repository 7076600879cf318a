package state

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const (
	TraderSnapshotKey = "trader:last_snapshot"
	NextOrderIDKey    = "trader:next_order_id"
)

// TraderSnapshot is written for operators to inspect. It is never loaded back
// into a running trader.
type TraderSnapshot struct {
	SessionID       string   `json:"session_id"`
	Position        int64    `json:"position"`
	ZScore          *float64 `json:"zscore,omitempty"`
	Spread          *float64 `json:"spread,omitempty"`
	Mean            float64  `json:"mean"`
	SampleCount     int64    `json:"sample_count"`
	AskID           uint64   `json:"ask_id,omitempty"`
	AskPrice        int64    `json:"ask_price,omitempty"`
	BidID           uint64   `json:"bid_id,omitempty"`
	BidPrice        int64    `json:"bid_price,omitempty"`
	OutstandingAsks int      `json:"outstanding_asks"`
	OutstandingBids int      `json:"outstanding_bids"`
	NextOrderID     uint64   `json:"next_order_id"`
	MaxSequence     uint64   `json:"max_sequence"`
	UpdatedAtMS     int64    `json:"updated_at_ms"`
}

func LoadTraderSnapshot(ctx context.Context, store Store) (TraderSnapshot, bool, error) {
	if store == nil {
		return TraderSnapshot{}, false, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	raw, ok, err := store.Get(ctx, TraderSnapshotKey)
	if err != nil {
		return TraderSnapshot{}, false, err
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return TraderSnapshot{}, false, nil
	}
	var snapshot TraderSnapshot
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		return TraderSnapshot{}, false, err
	}
	return snapshot, true, nil
}

func SaveTraderSnapshot(ctx context.Context, store Store, snapshot TraderSnapshot) error {
	if store == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return store.Set(ctx, TraderSnapshotKey, string(payload))
}

// LoadNextOrderID returns the client order id high-water mark left by an
// earlier process, or 0.
func LoadNextOrderID(ctx context.Context, store Store) (uint64, error) {
	if store == nil {
		return 0, nil
	}
	raw, ok, err := store.Get(ctx, NextOrderIDKey)
	if err != nil {
		return 0, err
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return 0, nil
	}
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", NextOrderIDKey, err)
	}
	return id, nil
}

func SaveNextOrderID(ctx context.Context, store Store, id uint64) error {
	if store == nil {
		return nil
	}
	return store.Set(ctx, NextOrderIDKey, strconv.FormatUint(id, 10))
}
