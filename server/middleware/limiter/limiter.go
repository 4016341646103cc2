// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package limiter

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"codeberg.org/phixiv/phixiv/config"
	"codeberg.org/phixiv/phixiv/core/metrics"
)

// Rate limiting header names.
//
// ref: https://www.ietf.org/archive/id/draft-polli-ratelimit-headers-02.html
const (
	HeaderRateLimitLimit     = "RateLimit-Limit"
	HeaderRateLimitRemaining = "RateLimit-Remaining"
	HeaderRateLimitReset     = "RateLimit-Reset"
)

const (
	limiterExpiryDuration = time.Hour       // how long an idle network keeps its bucket
	cleanupInterval       = 5 * time.Minute // minimum time between cleanup runs
)

// Limiter hands out one token bucket per client network.
type Limiter struct {
	limit      rate.Limit
	burst      int
	ipv4Prefix int
	ipv6Prefix int

	// excluded paths are never limited
	excluded []string

	limiters sync.Map // network string -> *networkLimiter

	cleanupMu     sync.Mutex
	lastCleanupAt time.Time

	timeNow func() time.Time
}

// networkLimiter is the bucket of one IP network.
type networkLimiter struct {
	limiter *rate.Limiter

	mu         sync.Mutex
	lastAccess time.Time
}

// New returns a Limiter configured from cfg.Limiter.
func New(cfg *config.ServerConfig) *Limiter {
	l := &Limiter{
		limit:      rate.Limit(float64(cfg.Limiter.RatePerMinute) / float64(time.Minute/time.Second)),
		burst:      max(cfg.Limiter.Burst, 1),
		ipv4Prefix: cfg.Limiter.IPv4Prefix,
		ipv6Prefix: cfg.Limiter.IPv6Prefix,
		timeNow:    time.Now,
	}

	if cfg.Metrics.Enabled {
		l.excluded = append(l.excluded, cfg.Metrics.Path)
	}

	return l
}

// Evaluate is the limiter middleware. Requests over the limit of their
// network are answered with 429 Too Many Requests.
func (l *Limiter) Evaluate(w http.ResponseWriter, r *http.Request, next http.Handler) {
	for _, path := range l.excluded {
		if r.URL.Path == path {
			next.ServeHTTP(w, r)

			return
		}
	}

	now := l.timeNow()
	defer l.cleanup(now)

	ip := net.ParseIP(getClientIP(r))
	if ip == nil {
		log.Warn().Str("remote_addr", r.RemoteAddr).Msg("Could not determine client IP")
		http.Error(w, "could not determine client address", http.StatusBadRequest)

		return
	}

	network := getNetwork(ip, l.ipv4Prefix, l.ipv6Prefix).String()
	bucket := l.getOrCreate(network, now)

	allowed := bucket.limiter.AllowN(now, 1)

	l.addRateLimitHeaders(w, bucket, now)

	if !allowed {
		metrics.RateLimited.Inc()
		log.Warn().
			Str("ip", ip.String()).
			Str("network", network).
			Msg("Request blocked, exceeded rate limit")

		http.Error(w, "too many requests", http.StatusTooManyRequests)

		return
	}

	next.ServeHTTP(w, r)
}

func (l *Limiter) getOrCreate(network string, now time.Time) *networkLimiter {
	value, _ := l.limiters.LoadOrStore(network, &networkLimiter{
		limiter: rate.NewLimiter(l.limit, l.burst),
	})

	bucket := value.(*networkLimiter) //nolint:forcetypeassert // only *networkLimiter is stored

	bucket.mu.Lock()
	bucket.lastAccess = now
	bucket.mu.Unlock()

	return bucket
}

// addRateLimitHeaders reports the bucket state to the client.
func (l *Limiter) addRateLimitHeaders(w http.ResponseWriter, bucket *networkLimiter, now time.Time) {
	tokens := bucket.limiter.TokensAt(now)
	remaining := max(int(math.Min(float64(l.burst), tokens)), 0)

	var reset int64
	if deficit := float64(l.burst) - tokens; deficit > 0 && l.limit > 0 {
		reset = int64(math.Ceil(deficit / float64(l.limit)))
	}

	resetStr := strconv.FormatInt(reset, 10)

	w.Header().Set(HeaderRateLimitLimit, strconv.Itoa(l.burst))
	w.Header().Set(HeaderRateLimitRemaining, strconv.Itoa(remaining))
	w.Header().Set(HeaderRateLimitReset, resetStr)

	if remaining == 0 {
		w.Header().Set("Retry-After", resetStr)
	}
}

// cleanup forgets networks that have been idle for limiterExpiryDuration.
// It does nothing if it ran less than cleanupInterval ago.
func (l *Limiter) cleanup(now time.Time) {
	l.cleanupMu.Lock()
	defer l.cleanupMu.Unlock()

	if l.lastCleanupAt.IsZero() {
		l.lastCleanupAt = now

		return
	}

	if now.Sub(l.lastCleanupAt) < cleanupInterval {
		return
	}

	l.lastCleanupAt = now

	removed := 0

	l.limiters.Range(func(key, value any) bool {
		bucket := value.(*networkLimiter) //nolint:forcetypeassert // only *networkLimiter is stored

		bucket.mu.Lock()
		expired := now.Sub(bucket.lastAccess) > limiterExpiryDuration
		bucket.mu.Unlock()

		if expired {
			l.limiters.Delete(key)

			removed++
		}

		return true
	})

	if removed > 0 {
		log.Debug().Int("removed", removed).Msg("Limiter cleanup")
	}
}

// Len returns the number of networks currently tracked.
func (l *Limiter) Len() int {
	n := 0

	l.limiters.Range(func(_, _ any) bool {
		n++

		return true
	})

	return n
}
