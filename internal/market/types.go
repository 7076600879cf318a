package market

// TopLevelCount is the number of price levels the exchange publishes per side.
const TopLevelCount = 5

type Instrument uint8

const (
	ETF Instrument = iota
	Future
)

func (i Instrument) String() string {
	switch i {
	case ETF:
		return "ETF"
	case Future:
		return "FUTURE"
	default:
		return "UNKNOWN"
	}
}

func (i Instrument) Valid() bool {
	return i == ETF || i == Future
}

// Other returns the paired instrument.
func (i Instrument) Other() Instrument {
	if i == ETF {
		return Future
	}
	return ETF
}

type Side uint8

const (
	Sell Side = iota
	Buy
)

func (s Side) String() string {
	switch s {
	case Sell:
		return "SELL"
	case Buy:
		return "BUY"
	default:
		return "UNKNOWN"
	}
}

func (s Side) Valid() bool {
	return s == Sell || s == Buy
}

func (s Side) Opposite() Side {
	if s == Sell {
		return Buy
	}
	return Sell
}

type Lifespan uint8

const (
	FillAndKill Lifespan = iota
	GoodForDay
)

func (l Lifespan) String() string {
	switch l {
	case FillAndKill:
		return "FILL_AND_KILL"
	case GoodForDay:
		return "GOOD_FOR_DAY"
	default:
		return "UNKNOWN"
	}
}

// Quote is the top of book for one instrument. Prices are in cents.
type Quote struct {
	Instrument Instrument
	Sequence   uint64
	BidPrice   int64
	BidVolume  int64
	AskPrice   int64
	AskVolume  int64
}

// TopOfBook extracts the best level from per-level arrays. Missing levels
// read as zero.
func TopOfBook(instrument Instrument, sequence uint64, askPrices, askVolumes, bidPrices, bidVolumes []int64) Quote {
	return Quote{
		Instrument: instrument,
		Sequence:   sequence,
		BidPrice:   first(bidPrices),
		BidVolume:  first(bidVolumes),
		AskPrice:   first(askPrices),
		AskVolume:  first(askVolumes),
	}
}

func first(levels []int64) int64 {
	if len(levels) == 0 {
		return 0
	}
	return levels[0]
}

// Mid2 returns twice the mid price so callers stay in integer cents.
func (q Quote) Mid2() int64 {
	return q.BidPrice + q.AskPrice
}
