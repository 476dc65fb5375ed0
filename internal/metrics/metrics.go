// Package metrics provides Prometheus instrumentation for the turn
// lifecycle.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mmynk/roundtable/internal/models"
)

// Metrics holds the Prometheus collectors for turn activity. A nil
// *Metrics is safe to use and records nothing, so tests and callers that
// do not care about instrumentation can pass nil.
type Metrics struct {
	turnsStarted    prometheus.Counter
	turnsEnded      *prometheus.CounterVec
	turnDuration    prometheus.Histogram
	expirySweeps    prometheus.Counter
	strategyPicks   *prometheus.CounterVec
	activeTurnRaces prometheus.Counter
}

// New creates and registers the collectors. Pass nil to use the default
// registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		turnsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "roundtable",
			Subsystem: "turns",
			Name:      "started_total",
			Help:      "Total turns started.",
		}),
		turnsEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roundtable",
			Subsystem: "turns",
			Name:      "ended_total",
			Help:      "Total terminal turn transitions by outcome (completed, skipped, expired).",
		}, []string{"status"}),
		turnDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "roundtable",
			Subsystem: "turns",
			Name:      "duration_seconds",
			Help:      "Duration of completed turns in seconds.",
			Buckets:   prometheus.ExponentialBuckets(30, 2, 12), // 30s .. ~34h
		}),
		expirySweeps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "roundtable",
			Subsystem: "turns",
			Name:      "expiry_sweeps_total",
			Help:      "Total background sweeps that expired stale turns.",
		}),
		strategyPicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roundtable",
			Subsystem: "strategy",
			Name:      "picks_total",
			Help:      "Total next-user computations by strategy name.",
		}, []string{"strategy"}),
		activeTurnRaces: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "roundtable",
			Subsystem: "turns",
			Name:      "start_conflicts_total",
			Help:      "Turn starts rejected because the group already had an active turn.",
		}),
	}

	reg.MustRegister(
		m.turnsStarted,
		m.turnsEnded,
		m.turnDuration,
		m.expirySweeps,
		m.strategyPicks,
		m.activeTurnRaces,
	)
	return m
}

// TurnStarted records a successful turn start.
func (m *Metrics) TurnStarted() {
	if m == nil {
		return
	}
	m.turnsStarted.Inc()
}

// TurnEnded records a terminal transition with its outcome and, for
// completed turns, the observed duration.
func (m *Metrics) TurnEnded(turn *models.Turn) {
	if m == nil {
		return
	}
	m.turnsEnded.WithLabelValues(turn.Status).Inc()
	if turn.Status == models.TurnStatusCompleted {
		m.turnDuration.Observe(float64(turn.DurationSeconds))
	}
}

// ExpirySweep records one background expiry pass.
func (m *Metrics) ExpirySweep() {
	if m == nil {
		return
	}
	m.expirySweeps.Inc()
}

// StrategyPick records a next-user computation by the named strategy.
func (m *Metrics) StrategyPick(strategy string) {
	if m == nil {
		return
	}
	m.strategyPicks.WithLabelValues(strategy).Inc()
}

// StartConflict records a turn start lost to the one-active-turn race.
func (m *Metrics) StartConflict() {
	if m == nil {
		return
	}
	m.activeTurnRaces.Inc()
}
