package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/san-kum/simbridge/internal/wire"
)

const namespaceBridge = "simbridge"

// BridgeCollector exports controller events to prometheus.
type BridgeCollector struct {
	ticks       *prometheus.CounterVec
	resets      *prometheus.CounterVec
	flushSteps  prometheus.Histogram
	dropped     *prometheus.CounterVec
	tickLatency prometheus.Histogram
	lastSimTime prometheus.Gauge
}

// NewBridgeCollector registers the bridge metrics with reg.
func NewBridgeCollector(reg prometheus.Registerer) *BridgeCollector {
	factory := promauto.With(reg)
	return &BridgeCollector{
		ticks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceBridge,
			Name:      "ticks_total",
			Help:      "count of executed STEP actions by reply status",
		}, []string{"status"}),

		resets: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceBridge,
			Name:      "resets_total",
			Help:      "count of executed RESET actions by reply status",
		}, []string{"status"}),

		flushSteps: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespaceBridge,
			Name:      "flush_steps",
			Help:      "simulation steps taken by the reset convergence loop",
			Buckets:   []float64{2, 3, 5, 10, 20, 50, 100},
		}),

		dropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceBridge,
			Name:      "dropped_datagrams_total",
			Help:      "count of datagrams dropped by reason",
		}, []string{"reason"}),

		tickLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespaceBridge,
			Name:      "tick_duration_seconds",
			Help:      "time from receiving a STEP action to replying",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),

		lastSimTime: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespaceBridge,
			Name:      "sim_time_seconds",
			Help:      "simulation time of the last reply",
		}),
	}
}

func (bc *BridgeCollector) TickCompleted(latency time.Duration, status wire.StatusCode) {
	bc.ticks.WithLabelValues(status.String()).Inc()
	bc.tickLatency.Observe(latency.Seconds())
}

func (bc *BridgeCollector) ResetCompleted(steps int, _ time.Duration, status wire.StatusCode) {
	bc.resets.WithLabelValues(status.String()).Inc()
	bc.flushSteps.Observe(float64(steps))
}

func (bc *BridgeCollector) DatagramDropped(reason string) {
	bc.dropped.WithLabelValues(reason).Inc()
}

// SimTime records the simulation time of the latest State.
func (bc *BridgeCollector) SimTime(t float64) {
	bc.lastSimTime.Set(t)
}

// OnReset and OnTick let the collector observe replies directly.
func (bc *BridgeCollector) OnReset(s wire.State) { bc.SimTime(s.SimTime) }

func (bc *BridgeCollector) OnTick(_ wire.Action, s wire.State) { bc.SimTime(s.SimTime) }
