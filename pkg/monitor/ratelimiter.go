package monitor

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const rateLimiterStaleThreshold = time.Hour

type limiterEntry struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// DomainRateLimiter bounds how often probes may target any single domain,
// protecting remote servers from being hammered when many checks target the
// same host. golang.org/x/time/rate implements a token bucket, the dual of
// the GCRA the source engine uses via governor: both admit a request iff a
// token is currently available.
type DomainRateLimiter struct {
	mu             sync.Mutex
	limiters       map[string]*limiterEntry
	burst          int
	period         time.Duration
	staleThreshold time.Duration
}

// NewDomainRateLimiter builds a limiter allowing requestsPerPeriod requests
// per period, per domain.
func NewDomainRateLimiter(requestsPerPeriod int, period time.Duration) *DomainRateLimiter {
	return &DomainRateLimiter{
		limiters:       make(map[string]*limiterEntry),
		burst:          requestsPerPeriod,
		period:         period,
		staleThreshold: rateLimiterStaleThreshold,
	}
}

// DefaultDomainRateLimiter matches the source engine's default of one
// request per five seconds per domain.
func DefaultDomainRateLimiter() *DomainRateLimiter {
	return NewDomainRateLimiter(1, 5*time.Second)
}

// Allow reports whether a probe against domain may proceed now, consuming a
// token if so.
func (d *DomainRateLimiter) Allow(domain string) bool {
	key := strings.ToLower(domain)
	now := time.Now()

	d.mu.Lock()
	entry, ok := d.limiters[key]
	if !ok {
		perSecond := rate.Every(d.period / time.Duration(d.burst))
		entry = &limiterEntry{limiter: rate.NewLimiter(perSecond, d.burst)}
		d.limiters[key] = entry
	}
	entry.lastUsed = now
	limiter := entry.limiter
	d.mu.Unlock()

	return limiter.AllowN(now, 1)
}

// PruneStale drops limiter state for domains untouched for longer than the
// stale threshold, bounding memory for checks that get removed or renamed.
func (d *DomainRateLimiter) PruneStale() {
	cutoff := time.Now().Add(-d.staleThreshold)
	d.mu.Lock()
	defer d.mu.Unlock()
	for domain, entry := range d.limiters {
		if entry.lastUsed.Before(cutoff) {
			delete(d.limiters, domain)
		}
	}
}
