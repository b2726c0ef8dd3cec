package monitor

import (
	"context"
	"log"
	"net/url"
	"sync"
	"time"
)

const (
	HTTPSchedulerTick    = time.Second
	HTTPMaxConcurrency   = 200
	TLSSchedulerTick     = 60 * time.Second
	TLSMaxConcurrency    = 20
	TLSProbeInterval     = 6 * time.Hour
	pruneEveryTicks      = 3600 // ~60 minutes at a 1s HTTP scheduler tick
	tlsPruneEveryTicks   = 60   // ~60 minutes at a 60s TLS scheduler tick
)

// ResultSink receives every completed probe outcome, for incident
// evaluation and notification dispatch. HTTP probes drive the incident
// lifecycle (down/recovery alerts); TLS probes only drive SSL expiry
// alerts, independent of the incident state machine.
type ResultSink interface {
	EvaluateHTTP(check *Check, outcome Outcome, consecutiveFailures uint16)
	EvaluateTLS(check *Check, outcome Outcome)
}

// HTTPRunner schedules guarded HTTP/TLS-warning probes for every check in
// the cache, honoring each check's own interval and backoff state.
type HTTPRunner struct {
	cache       *MonitorCache
	probe       *HTTPProbe
	writer      *BatchedWriter
	backoff     *BackoffController
	rateLimiter *DomainRateLimiter
	sink        ResultSink

	tick           time.Duration
	maxConcurrency int
}

// NewHTTPRunner builds an HTTPRunner with the production scheduling
// parameters.
func NewHTTPRunner(cache *MonitorCache, probe *HTTPProbe, writer *BatchedWriter, backoff *BackoffController, rateLimiter *DomainRateLimiter, sink ResultSink) *HTTPRunner {
	return &HTTPRunner{
		cache:          cache,
		probe:          probe,
		writer:         writer,
		backoff:        backoff,
		rateLimiter:    rateLimiter,
		sink:           sink,
		tick:           HTTPSchedulerTick,
		maxConcurrency: HTTPMaxConcurrency,
	}
}

// Run drives the scheduler loop until ctx is cancelled.
func (r *HTTPRunner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()

	sem := make(chan struct{}, r.maxConcurrency)
	lastRun := make(map[string]time.Time)
	nextWait := make(map[string]time.Duration)
	var pruneCounter uint64

	log.Printf("🚦 http monitor runner started (tick=%s max_concurrency=%d)", r.tick, r.maxConcurrency)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		pruneCounter++
		snapshot := r.cache.Snapshot()
		if len(snapshot) == 0 {
			continue
		}

		activeIDs := make(map[string]struct{}, len(snapshot))
		for _, check := range snapshot {
			activeIDs[check.ID] = struct{}{}
		}
		if pruneCounter%pruneEveryTicks == 0 {
			r.backoff.Prune(activeIDs)
			r.rateLimiter.PruneStale()
			pruneMap(lastRun, activeIDs)
			pruneMap2(nextWait, activeIDs)
		}

		now := time.Now()
		var mu sync.Mutex
		var wg sync.WaitGroup
		var rows []interface{}

		for _, check := range snapshot {
			backoffSnapshot := r.backoff.Snapshot(check.ID, check.Interval())
			wait, ok := nextWait[check.ID]
			if !ok {
				wait = Jitter(backoffSnapshot.EffectiveInterval, BackoffJitterFraction)
				nextWait[check.ID] = wait
			}

			last, seen := lastRun[check.ID]
			if seen && now.Sub(last) < wait {
				continue
			}

			check := check
			wg.Add(1)
			go func() {
				defer wg.Done()
				select {
				case sem <- struct{}{}:
				case <-ctx.Done():
					return
				}
				defer func() { <-sem }()

				if domain := checkDomain(check.URL); domain != "" && !r.rateLimiter.Allow(domain) {
					return
				}

				outcome := r.probe.Run(ctx, check)
				finishedAt := time.Now()

				// Backoff state updates first: it owns the real,
				// monotonically-accumulating consecutive-failure count,
				// which the incident evaluator needs to gate opening a new
				// incident. The evaluator's own snapshot can't supply that
				// count — it isn't Ongoing until the incident has already
				// opened.
				var snap BackoffSnapshot
				if outcome.Success {
					snap = r.backoff.OnSuccess(check.ID, check.Interval())
				} else {
					snap = r.backoff.OnFailure(check.ID, check.Interval())
				}

				r.sink.EvaluateHTTP(check, outcome, snap.ConsecutiveFailures)

				mu.Lock()
				lastRun[check.ID] = finishedAt
				nextWait[check.ID] = Jitter(snap.EffectiveInterval, BackoffJitterFraction)
				rows = append(rows, monitorResultRowFromHTTP(check, outcome, snap))
				mu.Unlock()
			}()
		}

		wg.Wait()

		if len(rows) > 0 {
			log.Printf("📦 http monitor batch ready for insert (rows=%d)", len(rows))
			if err := r.writer.EnqueueRows(rows); err != nil {
				log.Printf("⚠️  failed to enqueue http monitor rows: %v", err)
			}
		}
	}
}

// TLSRunner schedules guarded TLS expiry probes, independent of each
// check's HTTP interval: every https check is probed at most once per
// TLSProbeInterval.
type TLSRunner struct {
	cache       *MonitorCache
	probe       *TLSProbe
	writer      *BatchedWriter
	rateLimiter *DomainRateLimiter
	sink        ResultSink

	tick           time.Duration
	maxConcurrency int
	probeInterval  time.Duration
	warnDays       int
}

// NewTLSRunner builds a TLSRunner with the production scheduling
// parameters.
func NewTLSRunner(cache *MonitorCache, probe *TLSProbe, writer *BatchedWriter, rateLimiter *DomainRateLimiter, sink ResultSink, warnDays int) *TLSRunner {
	return &TLSRunner{
		cache:          cache,
		probe:          probe,
		writer:         writer,
		rateLimiter:    rateLimiter,
		sink:           sink,
		tick:           TLSSchedulerTick,
		maxConcurrency: TLSMaxConcurrency,
		probeInterval:  TLSProbeInterval,
		warnDays:       warnDays,
	}
}

// Run drives the scheduler loop until ctx is cancelled.
func (r *TLSRunner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()

	sem := make(chan struct{}, r.maxConcurrency)
	lastRun := make(map[string]time.Time)
	var pruneCounter uint64

	log.Printf("🔒 tls monitor runner started (tick=%s max_concurrency=%d probe_interval=%s)", r.tick, r.maxConcurrency, r.probeInterval)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		pruneCounter++
		snapshot := r.cache.Snapshot()
		if len(snapshot) == 0 {
			continue
		}

		if pruneCounter%tlsPruneEveryTicks == 0 {
			activeIDs := make(map[string]struct{}, len(snapshot))
			for _, check := range snapshot {
				activeIDs[check.ID] = struct{}{}
			}
			r.rateLimiter.PruneStale()
			pruneMap(lastRun, activeIDs)
		}

		now := time.Now()
		var mu sync.Mutex
		var wg sync.WaitGroup
		var rows []interface{}

		for _, check := range snapshot {
			if !check.CheckSSLErrors || !isHTTPS(check.URL) {
				continue
			}
			if last, ok := lastRun[check.ID]; ok && now.Sub(last) < r.probeInterval {
				continue
			}

			check := check
			wg.Add(1)
			go func() {
				defer wg.Done()
				select {
				case sem <- struct{}{}:
				case <-ctx.Done():
					return
				}
				defer func() { <-sem }()

				if domain := checkDomain(check.URL); domain != "" && !r.rateLimiter.Allow(domain) {
					return
				}

				outcome := r.probe.Run(ctx, check, r.warnDays)
				finishedAt := time.Now()

				r.sink.EvaluateTLS(check, outcome)

				mu.Lock()
				lastRun[check.ID] = finishedAt
				rows = append(rows, monitorResultRowFromTLS(check, outcome))
				mu.Unlock()

				log.Printf("🔏 tls probe completed check=%s status=%s reason=%s days_left=%d", check.ID, outcome.Status, outcome.ReasonCode, outcome.TLSDaysLeft)
			}()
		}

		wg.Wait()

		if len(rows) > 0 {
			log.Printf("📦 tls monitor batch ready for insert (rows=%d)", len(rows))
			if err := r.writer.EnqueueRows(rows); err != nil {
				log.Printf("⚠️  failed to enqueue tls monitor rows: %v", err)
			}
		}
	}
}

func isHTTPS(rawURL string) bool {
	u, err := url.Parse(rawURL)
	return err == nil && u.Scheme == "https"
}

func checkDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func pruneMap(m map[string]time.Time, active map[string]struct{}) {
	for id := range m {
		if _, ok := active[id]; !ok {
			delete(m, id)
		}
	}
}

func pruneMap2(m map[string]time.Duration, active map[string]struct{}) {
	for id := range m {
		if _, ok := active[id]; !ok {
			delete(m, id)
		}
	}
}

func monitorResultRowFromHTTP(check *Check, outcome Outcome, snap BackoffSnapshot) MonitorResultRow {
	return MonitorResultRow{
		Ts:                   time.Now(),
		CheckID:              check.ID,
		SiteID:               check.SiteID,
		Kind:                 "http",
		Status:               outcome.Status,
		ReasonCode:           outcome.ReasonCode,
		LatencyMillis:        outcome.Latency.Milliseconds(),
		StatusCode:           outcome.StatusCode,
		HTTPMethod:           check.HTTPMethod,
		ResolvedIP:           outcome.ResolvedIP,
		EffectiveIntervalSec: int(snap.EffectiveInterval.Seconds()),
		BackoffLevel:         snap.BackoffLevel,
		ConsecutiveFailures:  snap.ConsecutiveFailures,
		ConsecutiveSuccesses: snap.ConsecutiveSuccesses,
		BackoffReason:        snap.Reason,
		RedirectHops:         outcome.RedirectHops,
		FinalURL:             outcome.FinalURL,
	}
}

func monitorResultRowFromTLS(check *Check, outcome Outcome) MonitorResultRow {
	return MonitorResultRow{
		Ts:            time.Now(),
		CheckID:       check.ID,
		SiteID:        check.SiteID,
		Kind:          "tls",
		Status:        outcome.Status,
		ReasonCode:    outcome.ReasonCode,
		LatencyMillis: outcome.Latency.Milliseconds(),
		ResolvedIP:    outcome.ResolvedIP,
		Port:          443,
		TLSNotAfter:   outcome.TLSNotAfter,
		TLSDaysLeft:   outcome.TLSDaysLeft,
	}
}
