// internal/metrics/metrics.go
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tamzrod/gsmlink/internal/command"
	"github.com/tamzrod/gsmlink/internal/link"
)

// Collector bundles the link metrics. It is both the machine's Recorder
// and one of its state Observers.
type Collector struct {
	gatherer prometheus.Gatherer

	State         *prometheus.GaugeVec
	SignalQuality prometheus.Gauge
	Calls         *prometheus.CounterVec
	CallDurations *prometheus.HistogramVec
	Ticks         *prometheus.CounterVec
	Directives    *prometheus.CounterVec
}

// New registers the link metrics against reg, defaulting to the global
// registry when nil.
func New(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	state, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gsmlink_state",
		Help: "Link state flags, 1 when set.",
	}, []string{"flag"}), "gsmlink_state")
	if err != nil {
		return nil, err
	}

	quality, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gsmlink_signal_quality",
		Help: "Last sampled CSQ rssi (0-31, 99 unknown).",
	}), "gsmlink_signal_quality")
	if err != nil {
		return nil, err
	}

	calls, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gsmlink_capability_calls_total",
		Help: "Capability calls by operation and result.",
	}, []string{"op", "result"}), "gsmlink_capability_calls_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gsmlink_capability_duration_seconds",
		Help:    "Capability call latency in seconds.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"op"}), "gsmlink_capability_duration_seconds")
	if err != nil {
		return nil, err
	}

	ticks, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gsmlink_ticks_total",
		Help: "Calendar trigger firings.",
	}, []string{"trigger"}), "gsmlink_ticks_total")
	if err != nil {
		return nil, err
	}

	directives, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gsmlink_directives_total",
		Help: "Start/stop directives acted on.",
	}, []string{"directive"}), "gsmlink_directives_total")
	if err != nil {
		return nil, err
	}

	c := &Collector{
		gatherer:      gatherer,
		State:         state,
		SignalQuality: quality,
		Calls:         calls,
		CallDurations: durations,
		Ticks:         ticks,
		Directives:    directives,
	}
	c.ObserveState(link.State{})
	return c, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func (c *Collector) ObserveState(s link.State) {
	if c == nil {
		return
	}
	c.State.WithLabelValues("device_open").Set(b2f(s.DeviceOpen))
	c.State.WithLabelValues("modem_initialized").Set(b2f(s.ModemInitialized))
	c.State.WithLabelValues("link_up").Set(b2f(s.LinkUp))
	c.State.WithLabelValues("route_added").Set(b2f(s.RouteAdded))
	c.State.WithLabelValues("uplink_synced").Set(b2f(s.UplinkSynced))

	q := 99.0
	if s.LastSignal != nil {
		q = float64(s.LastSignal.Quality)
	}
	c.SignalQuality.Set(q)
}

func (c *Collector) RecordTick(t link.Trigger) {
	if c == nil {
		return
	}
	c.Ticks.WithLabelValues(t.String()).Inc()
}

func (c *Collector) RecordCall(op link.Op, took time.Duration, err error) {
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.Calls.WithLabelValues(op.String(), result).Inc()
	c.CallDurations.WithLabelValues(op.String()).Observe(took.Seconds())
}

func (c *Collector) RecordDirective(d command.Directive) {
	if c == nil {
		return
	}
	c.Directives.WithLabelValues(d.String()).Inc()
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
