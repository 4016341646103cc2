// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

// Package metrics provides Prometheus collectors for phixiv.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "phixiv"

// Cache lookup results.
const (
	CacheHit  = "hit"
	CacheMiss = "miss"
)

// Upstream request outcomes.
const (
	OutcomeOK        = "ok"
	OutcomeTransport = "transport"
	OutcomeStatus    = "status"
	OutcomeSchema    = "schema"
)

var (
	// CacheLookups counts listing cache lookups by result.
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listing_cache_lookups_total",
			Help:      "Total number of listing cache lookups",
		},
		[]string{"result"},
	)

	// CacheEvictions counts listings pushed out of the cache by capacity.
	CacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listing_cache_evictions_total",
			Help:      "Total number of listings evicted from the cache",
		},
	)

	// UpstreamRequests counts requests made to pixiv by outcome.
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Total number of requests made to pixiv",
		},
		[]string{"outcome"},
	)

	// UpstreamDuration measures pixiv response times.
	UpstreamDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Duration of requests made to pixiv in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// RateLimited counts requests rejected by the client rate limiter.
	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_requests_total",
			Help:      "Total number of requests rejected by the rate limiter",
		},
	)
)

// RecordCacheLookup records a listing cache hit or miss.
func RecordCacheLookup(hit bool) {
	if hit {
		CacheLookups.WithLabelValues(CacheHit).Inc()
	} else {
		CacheLookups.WithLabelValues(CacheMiss).Inc()
	}
}

// RecordUpstream records one pixiv request.
func RecordUpstream(outcome string, seconds float64) {
	UpstreamRequests.WithLabelValues(outcome).Inc()
	UpstreamDuration.Observe(seconds)
}
