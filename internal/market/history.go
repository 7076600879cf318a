package market

// Field names one of the four tracked series of an instrument.
type Field uint8

const (
	BidPrice Field = iota
	AskPrice
	BidVolume
	AskVolume
	fieldCount
)

func (f Field) String() string {
	switch f {
	case BidPrice:
		return "bid_price"
	case AskPrice:
		return "ask_price"
	case BidVolume:
		return "bid_volume"
	case AskVolume:
		return "ask_volume"
	default:
		return "unknown"
	}
}

// History keeps bounded top-of-book series for both instruments.
type History struct {
	series [2][fieldCount]*Series[int64]
}

func NewHistory(max, keep int) *History {
	h := &History{}
	for inst := range h.series {
		for f := range h.series[inst] {
			h.series[inst][f] = NewSeries[int64](max, keep)
		}
	}
	return h
}

// Record appends the quote's best levels to its instrument's series.
// Zero prices are kept as-is.
func (h *History) Record(q Quote) {
	if !q.Instrument.Valid() {
		return
	}
	s := &h.series[q.Instrument]
	s[BidPrice].Push(q.BidPrice)
	s[AskPrice].Push(q.AskPrice)
	s[BidVolume].Push(q.BidVolume)
	s[AskVolume].Push(q.AskVolume)
}

// Latest returns the newest recorded top of book for the instrument.
func (h *History) Latest(inst Instrument) (Quote, bool) {
	if !inst.Valid() {
		return Quote{}, false
	}
	s := &h.series[inst]
	bid, ok := s[BidPrice].Last()
	if !ok {
		return Quote{}, false
	}
	ask, _ := s[AskPrice].Last()
	bidVol, _ := s[BidVolume].Last()
	askVol, _ := s[AskVolume].Last()
	return Quote{
		Instrument: inst,
		BidPrice:   bid,
		AskPrice:   ask,
		BidVolume:  bidVol,
		AskVolume:  askVol,
	}, true
}

func (h *History) Series(inst Instrument, field Field) *Series[int64] {
	if !inst.Valid() || field >= fieldCount {
		return nil
	}
	return h.series[inst][field]
}
