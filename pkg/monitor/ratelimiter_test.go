package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDomainRateLimiterAllowsBurstThenBlocks(t *testing.T) {
	limiter := NewDomainRateLimiter(1, 5*time.Second)

	assert.True(t, limiter.Allow("example.com"))
	assert.False(t, limiter.Allow("example.com"))
}

func TestDomainRateLimiterIsCaseInsensitive(t *testing.T) {
	limiter := NewDomainRateLimiter(1, 5*time.Second)

	assert.True(t, limiter.Allow("Example.com"))
	assert.False(t, limiter.Allow("EXAMPLE.COM"))
}

func TestDomainRateLimiterTracksDomainsIndependently(t *testing.T) {
	limiter := NewDomainRateLimiter(1, 5*time.Second)

	assert.True(t, limiter.Allow("a.example.com"))
	assert.True(t, limiter.Allow("b.example.com"))
}

func TestDefaultDomainRateLimiterOneRequestPerFiveSeconds(t *testing.T) {
	limiter := DefaultDomainRateLimiter()

	assert.True(t, limiter.Allow("example.com"))
	assert.False(t, limiter.Allow("example.com"))
}

func TestDomainRateLimiterPruneStaleDropsOldEntries(t *testing.T) {
	limiter := NewDomainRateLimiter(1, 5*time.Second)
	limiter.staleThreshold = 0
	limiter.Allow("example.com")

	limiter.PruneStale()

	assert.Empty(t, limiter.limiters)
}
