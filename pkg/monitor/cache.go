package monitor

import (
	"context"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// CheckDataSource loads checks for the cache's full and incremental
// refreshes. CheckRepository is the production implementation; tests supply
// fakes.
type CheckDataSource interface {
	LoadAll() (map[string]*Check, error)
	LoadUpdatedSince(watermark time.Time) (map[string]*Check, error)
}

// RefreshConfig tunes the cache's background refresh cadence.
type RefreshConfig struct {
	PartialRefreshInterval time.Duration
	FullRefreshInterval    time.Duration
	StaleAfter             time.Duration
}

// DefaultRefreshConfig matches the source engine's tuning.
func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		PartialRefreshInterval: 30 * time.Second,
		FullRefreshInterval:    180 * time.Second,
		StaleAfter:             300 * time.Second,
	}
}

const cacheHealthCheckInterval = 30 * time.Second

// MonitorCache holds the hot, lock-free view of every active check. Reads
// never block on refreshes: Snapshot loads a single atomic pointer.
type MonitorCache struct {
	checks atomic.Pointer[map[string]*Check]

	dataSource CheckDataSource
	cfg        RefreshConfig

	mu                   sync.Mutex
	lastFullRefreshAt    time.Time
	lastSeenUpdatedAt    time.Time
	lastRefreshSuccessAt time.Time

	healthy atomic.Bool
}

// NewMonitorCache performs the initial full load and returns the cache. The
// caller must call Run to start the background refresh loops.
func NewMonitorCache(dataSource CheckDataSource, cfg RefreshConfig) (*MonitorCache, error) {
	log.Printf("🗄️  initializing monitor cache (partial=%s full=%s stale_after=%s)",
		cfg.PartialRefreshInterval, cfg.FullRefreshInterval, cfg.StaleAfter)

	c := &MonitorCache{dataSource: dataSource, cfg: cfg}
	empty := make(map[string]*Check)
	c.checks.Store(&empty)

	if err := c.performFullRefresh(); err != nil {
		return nil, err
	}
	return c, nil
}

// Snapshot returns every check currently in the cache. The returned slice is
// a point-in-time copy; mutating it does not affect the cache.
func (c *MonitorCache) Snapshot() []*Check {
	m := *c.checks.Load()
	out := make([]*Check, 0, len(m))
	for _, check := range m {
		out = append(out, check)
	}
	return out
}

// Get returns a single check by id, if present.
func (c *MonitorCache) Get(id string) (*Check, bool) {
	m := *c.checks.Load()
	check, ok := m[id]
	return check, ok
}

// Healthy reports whether the most recent refresh succeeded within
// StaleAfter of now.
func (c *MonitorCache) Healthy() bool {
	return c.healthy.Load()
}

// Count returns the number of checks currently in the cache.
func (c *MonitorCache) Count() int {
	return len(*c.checks.Load())
}

// Refresh forces an immediate full reload, bypassing the background
// refresh ticker. Used by the control API's manual refresh endpoint.
func (c *MonitorCache) Refresh() error {
	return c.performFullRefresh()
}

// Run spawns the cache's three supervised background loops: partial refresh,
// full refresh, and health monitoring. It returns once ctx is cancelled.
func (c *MonitorCache) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		c.spawnSupervised(ctx, "partial_refresh", func(ctx context.Context) {
			c.partialRefreshLoop(ctx)
		})
	}()
	go func() {
		defer wg.Done()
		c.spawnSupervised(ctx, "full_refresh", func(ctx context.Context) {
			c.fullRefreshLoop(ctx)
		})
	}()
	go func() {
		defer wg.Done()
		c.spawnSupervised(ctx, "health_monitor", func(ctx context.Context) {
			c.healthMonitorLoop(ctx)
		})
	}()

	wg.Wait()
}

// spawnSupervised restarts task with exponential backoff (capped at 60s) if
// it ever returns before ctx is done; a normal loop only returns when ctx is
// cancelled, so any return here is treated as an unexpected crash.
func (c *MonitorCache) spawnSupervised(ctx context.Context, name string, task func(context.Context)) {
	var restartCount uint32
	const maxBackoff = 60 * time.Second
	const baseBackoff = time.Second

	for {
		if ctx.Err() != nil {
			return
		}

		log.Printf("🔁 starting monitor cache task %q (restart_count=%d)", name, restartCount)
		task(ctx)

		if ctx.Err() != nil {
			return
		}

		restartCount++
		shift := restartCount
		if shift > 6 {
			shift = 6
		}
		backoff := baseBackoff << shift
		if backoff > maxBackoff {
			backoff = maxBackoff
		}

		log.Printf("⚠️  monitor cache task %q exited unexpectedly, restarting in %s (restart_count=%d)", name, backoff, restartCount)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
	}
}

func (c *MonitorCache) partialRefreshLoop(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.PartialRefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.performPartialRefresh(); err != nil {
				c.handleRefreshError("partial", err)
			}
		}
	}
}

func (c *MonitorCache) fullRefreshLoop(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.FullRefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.performFullRefresh(); err != nil {
				c.handleRefreshError("full", err)
			}
		}
	}
}

func (c *MonitorCache) healthMonitorLoop(ctx context.Context) {
	ticker := time.NewTicker(cacheHealthCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.evaluateHealth()
		}
	}
}

func (c *MonitorCache) performFullRefresh() error {
	records, err := c.dataSource.LoadAll()
	if err != nil {
		return err
	}

	c.checks.Store(&records)

	c.mu.Lock()
	c.lastFullRefreshAt = time.Now()
	c.updateLastSeenLocked(maxUpdatedAt(records))
	c.mu.Unlock()

	c.markRefreshSuccess(len(records))
	c.logCacheState(records)

	if len(records) == 0 {
		log.Println("⚠️  monitor cache full refresh loaded zero checks")
	}
	log.Printf("✅ monitor cache fully refreshed (count=%d)", len(records))
	return nil
}

func (c *MonitorCache) performPartialRefresh() error {
	c.mu.Lock()
	since := c.lastSeenUpdatedAt
	c.mu.Unlock()
	if since.IsZero() {
		since = time.Unix(0, 0).UTC()
	}

	updates, err := c.dataSource.LoadUpdatedSince(since)
	if err != nil {
		return err
	}

	if len(updates) == 0 {
		c.markRefreshSuccess(len(*c.checks.Load()))
		return nil
	}

	for {
		old := c.checks.Load()
		merged := make(map[string]*Check, len(*old)+len(updates))
		for id, check := range *old {
			merged[id] = check
		}
		for id, check := range updates {
			merged[id] = check
		}
		if c.checks.CompareAndSwap(old, &merged) {
			break
		}
	}

	c.mu.Lock()
	c.updateLastSeenLocked(maxUpdatedAt(updates))
	c.mu.Unlock()

	total := len(*c.checks.Load())
	c.markRefreshSuccess(total)
	c.logCacheState(*c.checks.Load())
	log.Printf("✅ monitor cache partially refreshed (updated=%d total=%d)", len(updates), total)
	return nil
}

func (c *MonitorCache) updateLastSeenLocked(candidate time.Time) {
	if candidate.IsZero() {
		return
	}
	if candidate.After(c.lastSeenUpdatedAt) {
		c.lastSeenUpdatedAt = candidate
	}
}

func (c *MonitorCache) markRefreshSuccess(count int) {
	c.mu.Lock()
	c.lastRefreshSuccessAt = time.Now()
	c.mu.Unlock()
	c.healthy.Store(true)
	_ = count
}

func (c *MonitorCache) handleRefreshError(stage string, err error) {
	log.Printf("⚠️  monitor cache %s refresh failed: %v", stage, err)
	c.healthy.Store(false)
}

func (c *MonitorCache) evaluateHealth() {
	if c.cfg.StaleAfter <= 0 {
		return
	}
	c.mu.Lock()
	last := c.lastRefreshSuccessAt
	c.mu.Unlock()

	healthy := !last.IsZero() && time.Since(last) <= c.cfg.StaleAfter
	c.healthy.Store(healthy)

	if !healthy {
		log.Printf("⚠️  monitor cache data is older than the allowed threshold (%s)", c.cfg.StaleAfter)
	}
}

func (c *MonitorCache) logCacheState(m map[string]*Check) {
	const maxIDs = 10
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if len(ids) > maxIDs {
		ids = ids[:maxIDs]
	}
	log.Printf("📋 monitor cache state: total=%d preview=%v", len(m), ids)
}

func maxUpdatedAt(m map[string]*Check) time.Time {
	var max time.Time
	for _, check := range m {
		if check.UpdatedAt.After(max) {
			max = check.UpdatedAt
		}
	}
	return max
}
