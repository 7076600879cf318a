package strategy

import (
	"math"

	"pairs-bot/internal/market"
)

// Stats is a running mean and sum of squared deviations (Welford).
type Stats struct {
	Count int64
	Mean  float64
	SumSq float64
}

func (s *Stats) Add(x float64) {
	s.Count++
	delta := x - s.Mean
	newMean := s.Mean + delta/float64(s.Count)
	s.SumSq += (x - s.Mean) * (x - newMean)
	s.Mean = newMean
}

// Variance is the population variance of everything added so far.
func (s Stats) Variance() float64 {
	if s.Count == 0 {
		return math.NaN()
	}
	return s.SumSq / float64(s.Count)
}

// ZScore is NaN while the variance is zero and the sample sits on the mean.
func (s Stats) ZScore(x float64) float64 {
	return (x - s.Mean) / math.Sqrt(s.Variance())
}

// SpreadEstimator turns paired quotes into a z-score of the ETF/future spread.
//
// Freshness uses one sequence high-water mark shared by both instruments: an
// event is fresh when its sequence number equals the highest seen on either
// instrument, so equal sequence numbers on ETF and future are both fresh.
// The per-instrument marks are kept only for reporting.
type SpreadEstimator struct {
	hedgeRatio float64
	samples    *market.Series[float64]
	zscores    *market.Series[float64]
	stats      Stats

	maxSeq  uint64
	lastSeq [2]uint64
}

func NewSpreadEstimator(hedgeRatio float64, historyMax, historyKeep int) *SpreadEstimator {
	return &SpreadEstimator{
		hedgeRatio: hedgeRatio,
		samples:    market.NewSeries[float64](historyMax, historyKeep),
		zscores:    market.NewSeries[float64](historyMax, historyKeep),
	}
}

// Observe registers a book event's sequence number and reports whether the
// event represents the newest observed market state.
func (e *SpreadEstimator) Observe(inst market.Instrument, seq uint64) bool {
	if seq > e.maxSeq {
		e.maxSeq = seq
	}
	if inst.Valid() && seq > e.lastSeq[inst] {
		e.lastSeq[inst] = seq
	}
	return seq == e.maxSeq
}

// Sample computes the symmetric spread from the latest ETF and future quotes.
func (e *SpreadEstimator) Sample(etf, future market.Quote) float64 {
	etfFuture := float64(etf.BidPrice) - e.hedgeRatio*float64(future.AskPrice)
	futureEtf := float64(future.BidPrice) - e.hedgeRatio*float64(etf.AskPrice)
	return (etfFuture - futureEtf) / 2
}

// Update folds the current market state into the statistics. It returns false
// when either instrument has no quote yet. A stale event reuses the last
// stored sample instead of adding a new one.
func (e *SpreadEstimator) Update(history *market.History, fresh bool) (float64, bool) {
	etf, ok := history.Latest(market.ETF)
	if !ok {
		return 0, false
	}
	future, ok := history.Latest(market.Future)
	if !ok {
		return 0, false
	}
	sample := e.Sample(etf, future)
	if fresh {
		e.samples.Push(sample)
	}
	if last, ok := e.samples.Last(); ok {
		sample = last
	}
	e.stats.Add(sample)
	z := e.stats.ZScore(sample)
	e.zscores.Push(z)
	return z, true
}

// ZScore returns the newest z-score, which may be NaN or infinite.
func (e *SpreadEstimator) ZScore() (float64, bool) {
	return e.zscores.Last()
}

func (e *SpreadEstimator) LastSample() (float64, bool) {
	return e.samples.Last()
}

func (e *SpreadEstimator) Stats() Stats {
	return e.stats
}

func (e *SpreadEstimator) Samples() *market.Series[float64] {
	return e.samples
}

func (e *SpreadEstimator) ZScores() *market.Series[float64] {
	return e.zscores
}

func (e *SpreadEstimator) MaxSequence() uint64 {
	return e.maxSeq
}

func (e *SpreadEstimator) LastSequence(inst market.Instrument) uint64 {
	if !inst.Valid() {
		return 0
	}
	return e.lastSeq[inst]
}

// SignalUsable reports whether a z-score may drive quoting.
func SignalUsable(z float64) bool {
	return z != 0 && !math.IsNaN(z) && !math.IsInf(z, 0)
}
