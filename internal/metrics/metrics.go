package metrics

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"loyaltyDex/internal/model"
)

const namespace = "dex"

// Metrics owns the process registry and the pool engine counters.
type Metrics struct {
	registry   *prometheus.Registry
	events     *prometheus.CounterVec
	requests   *prometheus.CounterVec
	swapVolume *prometheus.CounterVec
}

func New() (*Metrics, error) {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "number of committed pool events",
		}, []string{"event"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "number of api requests by route and result code",
		}, []string{"route", "code"}),
		swapVolume: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "swap_volume_total",
			Help:      "approximate swap input volume by token",
		}, []string{"token"}),
	}
	err := errors.Join(
		m.registry.Register(m.events),
		m.registry.Register(m.requests),
		m.registry.Register(m.swapVolume),
		m.registry.Register(collectors.NewGoCollector()),
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Registry exposes the registry for gathering in tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest counts one api request.
func (m *Metrics) ObserveRequest(route string, code int) {
	m.requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// Sink counts published events. It implements the pool service event sink.
type Sink struct {
	metrics *Metrics
}

func NewSink(m *Metrics) *Sink {
	return &Sink{metrics: m}
}

func (s *Sink) Publish(_ context.Context, event model.Event) error {
	s.metrics.events.WithLabelValues(event.Name).Inc()

	swap, ok := event.Data.(model.SwapEventData)
	if !ok {
		return nil
	}
	amount, ok := new(big.Float).SetString(swap.AmountIn)
	if !ok {
		return errors.New("metrics: invalid swap amount " + swap.AmountIn)
	}
	volume, _ := amount.Float64()
	s.metrics.swapVolume.WithLabelValues(swap.FromToken).Add(volume)
	return nil
}
