package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	engineTime   *prometheus.CounterVec
	offerCounter *prometheus.CounterVec
	offerGauge   *prometheus.GaugeVec
	walkCounter  *prometheus.CounterVec
)

// Start registers the instruments and serves the prometheus scrape
// endpoint on the given address.
func Start(addr string) error {
	if err := setupMetrics(); err != nil {
		return err
	}
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		_ = http.ListenAndServe(addr, nil)
	}()
	return nil
}

// Register only registers the instruments, used by tests and by setups
// that serve the scrape endpoint themselves.
func Register() error {
	return setupMetrics()
}

func setupMetrics() error {
	est := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tidebook",
			Name:      "engine_seconds_total",
			Help:      "Total time spent per engine function",
		},
		[]string{"pair", "engine", "fn"},
	)
	if err := prometheus.Register(est); err != nil {
		return err
	}
	engineTime = est

	oc := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tidebook",
			Name:      "offers_total",
			Help:      "Number of offer operations processed",
		},
		[]string{"pair", "valid"},
	)
	if err := prometheus.Register(oc); err != nil {
		return err
	}
	offerCounter = oc

	og := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "tidebook",
			Name:      "offers",
			Help:      "Number of offers currently live on the book",
		},
		[]string{"pair", "side"},
	)
	if err := prometheus.Register(og); err != nil {
		return err
	}
	offerGauge = og

	wc := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tidebook",
			Name:      "walks_total",
			Help:      "Number of matching walks executed",
		},
		[]string{"pair", "partial"},
	)
	if err := prometheus.Register(wc); err != nil {
		return err
	}
	walkCounter = wc

	return nil
}

// OfferCounterInc increments the offer operation counter.
func OfferCounterInc(labelValues ...string) {
	if offerCounter == nil {
		return
	}
	offerCounter.WithLabelValues(labelValues...).Inc()
}

// OfferGaugeAdd increments the live offer gauge.
func OfferGaugeAdd(n int, labelValues ...string) {
	if offerGauge == nil {
		return
	}
	offerGauge.WithLabelValues(labelValues...).Add(float64(n))
}

// WalkCounterInc increments the matching walk counter.
func WalkCounterInc(labelValues ...string) {
	if walkCounter == nil {
		return
	}
	walkCounter.WithLabelValues(labelValues...).Inc()
}
