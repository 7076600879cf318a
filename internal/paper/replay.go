package paper

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"pairs-bot/internal/market"
	"pairs-bot/internal/strategy"
)

// ReadBooks parses rows of sequence,instrument,bid_price,bid_volume,
// ask_price,ask_volume. A leading header row is skipped. The instrument is
// ETF, FUTURE, 0 or 1.
func ReadBooks(r io.Reader) ([]market.Quote, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 6
	reader.TrimLeadingSpace = true
	reader.Comment = '#'
	var books []market.Quote
	for line := 1; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return books, nil
		}
		if err != nil {
			return nil, err
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(record[0]), "sequence") {
			continue
		}
		q, err := parseBook(record)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		books = append(books, q)
	}
}

func parseBook(record []string) (market.Quote, error) {
	seq, err := strconv.ParseUint(strings.TrimSpace(record[0]), 10, 64)
	if err != nil {
		return market.Quote{}, fmt.Errorf("sequence: %w", err)
	}
	inst, err := parseInstrument(record[1])
	if err != nil {
		return market.Quote{}, err
	}
	var nums [4]int64
	for i := range nums {
		v, err := strconv.ParseInt(strings.TrimSpace(record[i+2]), 10, 64)
		if err != nil {
			return market.Quote{}, fmt.Errorf("column %d: %w", i+3, err)
		}
		if v < 0 {
			return market.Quote{}, fmt.Errorf("column %d: negative value %d", i+3, v)
		}
		nums[i] = v
	}
	return market.Quote{
		Instrument: inst,
		Sequence:   seq,
		BidPrice:   nums[0],
		BidVolume:  nums[1],
		AskPrice:   nums[2],
		AskVolume:  nums[3],
	}, nil
}

func parseInstrument(raw string) (market.Instrument, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "ETF", "0":
		return market.ETF, nil
	case "FUTURE", "1":
		return market.Future, nil
	default:
		return 0, fmt.Errorf("unknown instrument %q", raw)
	}
}

// Replay feeds books through the engine and trader in order. Each book first
// matches resting orders, then reaches the trader.
func Replay(books []market.Quote, trader *strategy.Trader, engine *Engine) Report {
	for _, q := range books {
		engine.Book(q)
		engine.Drain(trader)
		trader.OnOrderBook(q.Instrument, q.Sequence,
			[]int64{q.AskPrice}, []int64{q.AskVolume},
			[]int64{q.BidPrice}, []int64{q.BidVolume},
		)
		engine.Drain(trader)
	}
	return engine.Report()
}
