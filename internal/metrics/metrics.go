package metrics

type Counter interface {
	Inc()
}

type Gauge interface {
	Set(float64)
}

type Metrics struct {
	OrdersInserted  Counter
	OrdersCancelled Counter
	HedgesSent      Counter
	Fills           Counter
	OrderErrors     Counter
	Disconnects     Counter
	SendFailures    Counter

	PositionLots Gauge
	ZScore       Gauge
}

type noopCounter struct{}

func (noopCounter) Inc() {}

type noopGauge struct{}

func (noopGauge) Set(float64) {}

func NewNoop() *Metrics {
	n := noopCounter{}
	g := noopGauge{}
	return &Metrics{
		OrdersInserted:  n,
		OrdersCancelled: n,
		HedgesSent:      n,
		Fills:           n,
		OrderErrors:     n,
		Disconnects:     n,
		SendFailures:    n,
		PositionLots:    g,
		ZScore:          g,
	}
}
