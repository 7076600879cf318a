package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const promNamespace = "pairs_bot"

type promCounter struct {
	counter prometheus.Counter
}

func (p promCounter) Inc() {
	p.counter.Inc()
}

type promGauge struct {
	gauge prometheus.Gauge
}

func (p promGauge) Set(v float64) {
	p.gauge.Set(v)
}

type Prometheus struct {
	Metrics *Metrics

	registry        *prometheus.Registry
	ordersInserted  prometheus.Counter
	ordersCancelled prometheus.Counter
	hedgesSent      prometheus.Counter
	fills           prometheus.Counter
	orderErrors     prometheus.Counter
	disconnects     prometheus.Counter
	sendFailures    prometheus.Counter
	positionLots    prometheus.Gauge
	zscore          prometheus.Gauge
}

func newCounter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      name,
		Help:      help,
	})
}

func newGauge(name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: promNamespace,
		Name:      name,
		Help:      help,
	})
}

func NewPrometheus() *Prometheus {
	registry := prometheus.NewRegistry()
	ordersInserted := newCounter("orders_inserted_total", "Total number of insert-order commands sent.")
	ordersCancelled := newCounter("orders_cancelled_total", "Total number of cancel-order commands sent.")
	hedgesSent := newCounter("hedges_sent_total", "Total number of hedge orders sent.")
	fills := newCounter("fills_total", "Total number of fills on quoted orders.")
	orderErrors := newCounter("order_errors_total", "Total number of order errors reported by the exchange or the dispatcher.")
	disconnects := newCounter("disconnects_total", "Total number of execution connection drops.")
	sendFailures := newCounter("send_failures_total", "Total number of commands that could not be delivered.")
	positionLots := newGauge("position_lots", "Current ETF position in lots.")
	zscore := newGauge("zscore", "Latest spread z-score.")

	registry.MustRegister(ordersInserted, ordersCancelled, hedgesSent, fills, orderErrors, disconnects, sendFailures, positionLots, zscore)

	m := &Metrics{
		OrdersInserted:  promCounter{ordersInserted},
		OrdersCancelled: promCounter{ordersCancelled},
		HedgesSent:      promCounter{hedgesSent},
		Fills:           promCounter{fills},
		OrderErrors:     promCounter{orderErrors},
		Disconnects:     promCounter{disconnects},
		SendFailures:    promCounter{sendFailures},
		PositionLots:    promGauge{positionLots},
		ZScore:          promGauge{zscore},
	}

	return &Prometheus{
		Metrics:         m,
		registry:        registry,
		ordersInserted:  ordersInserted,
		ordersCancelled: ordersCancelled,
		hedgesSent:      hedgesSent,
		fills:           fills,
		orderErrors:     orderErrors,
		disconnects:     disconnects,
		sendFailures:    sendFailures,
		positionLots:    positionLots,
		zscore:          zscore,
	}
}

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
