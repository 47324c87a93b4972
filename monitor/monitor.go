// monitor/monitor.go
package monitor

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	OnlinePlayers    prometheus.Gauge
	ActiveAnimals    prometheus.Gauge
	RoundsStarted    prometheus.Counter
	RoundsFinished   *prometheus.CounterVec
	AnimalsCaptured  prometheus.Counter
	PitPenalties     prometheus.Counter
	HerdImpulses     prometheus.Counter
	MessagesReceived prometheus.Counter
	TickDuration     prometheus.Histogram
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		OnlinePlayers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_players",
			Help:      "Number of connected players",
		}),
		ActiveAnimals: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_animals",
			Help:      "Number of animals in the arena",
		}),
		RoundsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_started_total",
			Help:      "Total number of rounds started",
		}),
		RoundsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_finished_total",
			Help:      "Total number of rounds finished, by outcome",
		}, []string{"outcome"}),
		AnimalsCaptured: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "animals_captured_total",
			Help:      "Total number of animals herded into a pit",
		}),
		PitPenalties: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pit_penalties_total",
			Help:      "Total number of players penalized for falling into a pit",
		}),
		HerdImpulses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "herd_impulses_total",
			Help:      "Total number of herd kicks applied to animals",
		}),
		MessagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Total number of messages received",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Simulation tick processing time",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
	}
}

type Monitor struct {
	metrics      *Metrics
	gatherer     prometheus.Gatherer
	startTime    time.Time
	requestCount atomic.Int64
}

// NewMonitor registers the metrics on reg. A *prometheus.Registry serves both roles; pass
// prometheus.DefaultRegisterer and DefaultGatherer for the process-wide registry.
func NewMonitor(namespace string, reg prometheus.Registerer, gatherer prometheus.Gatherer) *Monitor {
	m := &Monitor{
		metrics:   NewMetrics(namespace),
		gatherer:  gatherer,
		startTime: time.Now(),
	}
	uptime := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "uptime_seconds",
		Help:      "Seconds since the server started",
	}, func() float64 {
		return time.Since(m.startTime).Seconds()
	})
	reg.MustRegister(
		m.metrics.OnlinePlayers,
		m.metrics.ActiveAnimals,
		m.metrics.RoundsStarted,
		m.metrics.RoundsFinished,
		m.metrics.AnimalsCaptured,
		m.metrics.PitPenalties,
		m.metrics.HerdImpulses,
		m.metrics.MessagesReceived,
		m.metrics.TickDuration,
		uptime,
	)
	return m
}

func (m *Monitor) Metrics() *Metrics { return m.metrics }

// Handler serves the gathered metrics in the Prometheus text format.
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Monitor) SetOnlinePlayers(n int) {
	m.metrics.OnlinePlayers.Set(float64(n))
}

func (m *Monitor) SetActiveAnimals(n int) {
	m.metrics.ActiveAnimals.Set(float64(n))
}

func (m *Monitor) IncRoundsStarted() {
	m.metrics.RoundsStarted.Inc()
}

func (m *Monitor) IncRoundsFinished(won bool) {
	outcome := "lost"
	if won {
		outcome = "won"
	}
	m.metrics.RoundsFinished.WithLabelValues(outcome).Inc()
}

func (m *Monitor) IncAnimalsCaptured() {
	m.metrics.AnimalsCaptured.Inc()
}

func (m *Monitor) IncPitPenalties() {
	m.metrics.PitPenalties.Inc()
}

func (m *Monitor) IncHerdImpulses() {
	m.metrics.HerdImpulses.Inc()
}

func (m *Monitor) IncMessagesReceived() {
	m.metrics.MessagesReceived.Inc()
	m.requestCount.Add(1)
}

// RequestCount is the number of messages received since start.
func (m *Monitor) RequestCount() int64 {
	return m.requestCount.Load()
}

func (m *Monitor) ObserveTick(d time.Duration) {
	m.metrics.TickDuration.Observe(d.Seconds())
}

func (m *Monitor) Uptime() time.Duration {
	return time.Since(m.startTime)
}
