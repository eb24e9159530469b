// Copyright (C) 2025, Parami Foundation Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package metric

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds all metrics for parami-core on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	// Market metrics
	PowersBought *prometheus.CounterVec
	PowersSold   *prometheus.CounterVec
	FeesAccrued  prometheus.Counter

	// Auction metrics
	PreBids       prometheus.Counter
	BidsCommitted prometheus.Counter
	BidsRefunded  prometheus.Counter

	// Gateway and bridge metrics
	Withdrawals    *prometheus.CounterVec
	Deposits       prometheus.Counter
	NoncesConsumed prometheus.Counter

	// API metrics
	RequestsProcessed *prometheus.CounterVec

	// Performance metrics
	TradeDuration  prometheus.Histogram
	CommitDuration prometheus.Histogram
}

func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()
	m := &Metrics{registry: registry}

	m.PowersBought = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "parami",
		Name:      "market_powers_bought_total",
		Help:      "Total buy trades executed per persona",
	}, []string{"persona"})

	m.PowersSold = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "parami",
		Name:      "market_powers_sold_total",
		Help:      "Total sell trades executed per persona",
	}, []string{"persona"})

	m.FeesAccrued = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "parami",
		Name:      "market_fees_accrued_total",
		Help:      "Total protocol fee events accrued to the treasury",
	})

	m.PreBids = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "parami",
		Name:      "auction_prebids_total",
		Help:      "Total pre-bids escrowed",
	})

	m.BidsCommitted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "parami",
		Name:      "auction_bids_committed_total",
		Help:      "Total bids committed",
	})

	m.BidsRefunded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "parami",
		Name:      "auction_bids_refunded_total",
		Help:      "Total pre-bid deposits refunded after timeout",
	})

	m.Withdrawals = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "parami",
		Name:      "gateway_withdrawals_total",
		Help:      "Total signed withdrawals processed by outcome",
	}, []string{"status"})

	m.Deposits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "parami",
		Name:      "bridge_deposits_total",
		Help:      "Total bridge deposits locked",
	})

	m.NoncesConsumed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "parami",
		Name:      "nonces_consumed_total",
		Help:      "Total replay nonces marked used",
	})

	m.RequestsProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "parami",
		Name:      "api_requests_processed_total",
		Help:      "Total API requests processed",
	}, []string{"method", "status"})

	m.TradeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "parami",
		Name:      "market_trade_duration_seconds",
		Help:      "Time to execute a power trade",
		Buckets:   prometheus.DefBuckets,
	})

	m.CommitDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "parami",
		Name:      "auction_commit_duration_seconds",
		Help:      "Time to commit a bid",
		Buckets:   prometheus.DefBuckets,
	})

	for _, c := range []prometheus.Collector{
		m.PowersBought, m.PowersSold, m.FeesAccrued,
		m.PreBids, m.BidsCommitted, m.BidsRefunded,
		m.Withdrawals, m.Deposits, m.NoncesConsumed,
		m.RequestsProcessed,
		m.TradeDuration, m.CommitDuration,
	} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// GetGatherer returns the prometheus gatherer for metrics export.
func (m *Metrics) GetGatherer() prometheus.Gatherer {
	return m.registry
}

// GetRegisterer returns the prometheus registerer.
func (m *Metrics) GetRegisterer() prometheus.Registerer {
	return m.registry
}
