// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package metrics exposes Prometheus instrumentation for the consensus
// engine: DAG growth, CF lifecycle latency, quorum round progress,
// reservation pressure, and attestation outcomes.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every gauge/counter/histogram the engine updates.
type Metrics struct {
	dagEvents       prometheus.Gauge
	dagTips         prometheus.Gauge
	dagMaxDepth     prometheus.Gauge

	cfProposed      prometheus.Counter
	cfFinalized     prometheus.Counter
	cfBelowMinimum  prometheus.Counter
	cfFinalizeTime  prometheus.Histogram

	quorumRound     prometheus.Gauge
	leaderChanges   prometheus.Counter

	reservationsActive  prometheus.Gauge
	reservationsExpired prometheus.Counter

	attestationsAccepted prometheus.Counter
	attestationsRejected prometheus.Counter

	startedCF map[string]time.Time
}

// New builds and registers every metric with registerer.
func New(registerer prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		dagEvents: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "anchor_dag_events",
			Help: "Number of events currently held in the DAG",
		}),
		dagTips: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "anchor_dag_tips",
			Help: "Number of current DAG tips",
		}),
		dagMaxDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "anchor_dag_max_depth",
			Help: "Maximum depth observed in the DAG",
		}),
		cfProposed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "anchor_cf_proposed_total",
			Help: "Number of consensus frames proposed",
		}),
		cfFinalized: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "anchor_cf_finalized_total",
			Help: "Number of consensus frames finalized",
		}),
		cfBelowMinimum: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "anchor_cf_below_minimum_total",
			Help: "Number of fold attempts rejected for too few events",
		}),
		cfFinalizeTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "anchor_cf_finalize_seconds",
			Help:    "Wall-clock time from CF proposal to finalization",
			Buckets: prometheus.DefBuckets,
		}),
		quorumRound: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "anchor_quorum_round",
			Help: "Current consensus round number",
		}),
		leaderChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "anchor_leader_changes_total",
			Help: "Number of proposer elections that changed the leader",
		}),
		reservationsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "anchor_reservations_active",
			Help: "Number of objects currently reserved for in-flight tasks",
		}),
		reservationsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "anchor_reservations_expired_total",
			Help: "Number of reservations the sweeper has expired",
		}),
		attestationsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "anchor_attestations_accepted_total",
			Help: "Number of TEE attestations accepted",
		}),
		attestationsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "anchor_attestations_rejected_total",
			Help: "Number of TEE attestations rejected",
		}),
		startedCF: make(map[string]time.Time),
	}

	collectors := []prometheus.Collector{
		m.dagEvents, m.dagTips, m.dagMaxDepth,
		m.cfProposed, m.cfFinalized, m.cfBelowMinimum, m.cfFinalizeTime,
		m.quorumRound, m.leaderChanges,
		m.reservationsActive, m.reservationsExpired,
		m.attestationsAccepted, m.attestationsRejected,
	}
	for _, c := range collectors {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// DagObserved records the DAG's current size, tip count, and max depth.
func (m *Metrics) DagObserved(events, tips int, maxDepth uint64) {
	m.dagEvents.Set(float64(events))
	m.dagTips.Set(float64(tips))
	m.dagMaxDepth.Set(float64(maxDepth))
}

// CFProposed marks cfID as proposed now, starting its finalize-latency timer.
func (m *Metrics) CFProposed(cfID string) {
	m.cfProposed.Inc()
	m.startedCF[cfID] = time.Now()
}

// CFFinalized records cfID's finalization, observing its proposal-to-finalize
// latency if CFProposed was called for it.
func (m *Metrics) CFFinalized(cfID string) {
	m.cfFinalized.Inc()
	if start, ok := m.startedCF[cfID]; ok {
		m.cfFinalizeTime.Observe(time.Since(start).Seconds())
		delete(m.startedCF, cfID)
	}
}

// CFBelowMinimum records a fold rejected for too few events.
func (m *Metrics) CFBelowMinimum() {
	m.cfBelowMinimum.Inc()
}

// RoundAdvanced records the new round number and whether the leader changed.
func (m *Metrics) RoundAdvanced(round uint64, leaderChanged bool) {
	m.quorumRound.Set(float64(round))
	if leaderChanged {
		m.leaderChanges.Inc()
	}
}

// ReservationsObserved records the current count of active reservations.
func (m *Metrics) ReservationsObserved(active int) {
	m.reservationsActive.Set(float64(active))
}

// ReservationExpired records one reservation expiring via the sweeper.
func (m *Metrics) ReservationExpired() {
	m.reservationsExpired.Inc()
}

// AttestationVerified records the outcome of a TEE attestation check.
func (m *Metrics) AttestationVerified(accepted bool) {
	if accepted {
		m.attestationsAccepted.Inc()
		return
	}
	m.attestationsRejected.Inc()
}
