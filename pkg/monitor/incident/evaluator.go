// Package incident implements the per-check incident state machine: it
// turns a stream of probe outcomes into Opened/Updated/Resolved events,
// gated by a failure threshold on the way in and a fixed recovery streak on
// the way out.
package incident

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/last-emo-boy/uptime-monitor/pkg/monitor"
)

const recoverySuccessThreshold = 2

const shardCount = 32

// Event is emitted by Evaluator whenever a check's incident lifecycle
// transitions.
type Event struct {
	Kind              EventKind
	IncidentID        string
	DowntimeDuration  time.Duration
	HasDowntime       bool
}

// EventKind identifies the lifecycle transition an Event represents.
type EventKind int

const (
	EventOpened EventKind = iota
	EventUpdated
	EventResolved
)

type checkState struct {
	incidentID   string
	state        monitor.IncidentLifecycleState
	severity     monitor.IncidentSeverity
	startedAt    time.Time
	lastEventAt  time.Time
	resolvedAt   time.Time

	isDown    bool
	downSince time.Time

	lastStatus           monitor.Status
	lastReasonCode       monitor.ReasonCode
	lastStatusCode       int
	consecutiveFailures  uint16
	consecutiveSuccesses uint16
	failureCount         uint16
}

func newCheckState() *checkState {
	return &checkState{state: monitor.IncidentResolved, severity: monitor.SeverityCritical}
}

func (s *checkState) markOngoing(now time.Time, consecutiveFailures uint16) {
	s.state = monitor.IncidentOngoing
	s.isDown = true
	if s.downSince.IsZero() {
		s.downSince = now
	}
	if s.startedAt.IsZero() {
		s.startedAt = now
	}
	s.lastEventAt = now
	s.failureCount++
	s.consecutiveFailures = consecutiveFailures
	s.consecutiveSuccesses = 0
}

func (s *checkState) resolve(now time.Time) {
	s.state = monitor.IncidentResolved
	s.isDown = false
	s.downSince = time.Time{}
	s.resolvedAt = now
	s.lastEventAt = now
	s.failureCount = 0
	s.consecutiveFailures = 0
}

// Seed reconstructs a checkState from a previously persisted incident row,
// used to warm the evaluator at startup so an ongoing incident survives a
// process restart without reopening.
type Seed struct {
	CheckID      string
	IncidentID   string
	State        monitor.IncidentLifecycleState
	Severity     monitor.IncidentSeverity
	StartedAt    time.Time
	LastEventAt  time.Time
	ResolvedAt   time.Time
	FailureCount uint16
	LastStatus   monitor.Status
	ReasonCode   monitor.ReasonCode
	StatusCode   int
}

func stateFromSeed(seed Seed) *checkState {
	return &checkState{
		incidentID:           seed.IncidentID,
		state:                seed.State,
		severity:             seed.Severity,
		startedAt:            seed.StartedAt,
		lastEventAt:          seed.LastEventAt,
		resolvedAt:           seed.ResolvedAt,
		failureCount:         seed.FailureCount,
		lastStatus:           seed.LastStatus,
		lastReasonCode:       seed.ReasonCode,
		lastStatusCode:       seed.StatusCode,
		isDown:               seed.State == monitor.IncidentOngoing,
		downSince:            seed.StartedAt,
		consecutiveFailures:  seed.FailureCount,
		consecutiveSuccesses: 0,
	}
}

// Snapshot is the current lifecycle state for one check, suitable for
// persisting to the columnar store.
type Snapshot struct {
	IncidentID     string
	State          monitor.IncidentLifecycleState
	Severity       monitor.IncidentSeverity
	StartedAt      time.Time
	LastEventAt    time.Time
	ResolvedAt     time.Time
	FailureCount   uint16
	LastStatus     monitor.Status
	ReasonCode     monitor.ReasonCode
	StatusCode     int
}

func (s *checkState) toSnapshot() Snapshot {
	return Snapshot{
		IncidentID:   s.incidentID,
		State:        s.state,
		Severity:     s.severity,
		StartedAt:    s.startedAt,
		LastEventAt:  s.lastEventAt,
		ResolvedAt:   s.resolvedAt,
		FailureCount: s.failureCount,
		LastStatus:   s.lastStatus,
		ReasonCode:   s.lastReasonCode,
		StatusCode:   s.lastStatusCode,
	}
}

type shard struct {
	mu     sync.Mutex
	states map[string]*checkState
}

// Evaluator is the sharded, per-check incident state machine. Each check id
// hashes to one of a fixed number of shards, so unrelated checks never
// contend on the same lock.
type Evaluator struct {
	shards [shardCount]*shard
}

// NewEvaluator builds an empty Evaluator.
func NewEvaluator() *Evaluator {
	e := &Evaluator{}
	for i := range e.shards {
		e.shards[i] = &shard{states: make(map[string]*checkState)}
	}
	return e
}

func (e *Evaluator) shardFor(checkID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(checkID))
	return e.shards[h.Sum32()%shardCount]
}

func (e *Evaluator) stateFor(sh *shard, checkID string) *checkState {
	st, ok := sh.states[checkID]
	if !ok {
		st = newCheckState()
		sh.states[checkID] = st
	}
	return st
}

// EvaluateFailure records a failed probe outcome. It returns an Event only
// when the failure threshold is met for a new incident, or an incident is
// already open (every further failure updates it).
func (e *Evaluator) EvaluateFailure(checkID string, status monitor.Status, consecutiveFailures uint16, failureThreshold uint16, reasonCode monitor.ReasonCode, statusCode int) *Event {
	sh := e.shardFor(checkID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	st := e.stateFor(sh, checkID)
	now := time.Now()

	st.lastStatus = status
	st.lastReasonCode = reasonCode
	st.lastStatusCode = statusCode

	alreadyOpen := st.state == monitor.IncidentOngoing && st.incidentID != ""

	if !alreadyOpen && consecutiveFailures < failureThreshold {
		st.consecutiveFailures = consecutiveFailures
		return nil
	}

	wasOpen := st.state == monitor.IncidentOngoing
	wasResolved := st.state == monitor.IncidentResolved

	if wasResolved || st.incidentID == "" {
		st.incidentID = uuid.New().String()
		st.startedAt = time.Time{}
		st.resolvedAt = time.Time{}
		st.failureCount = 0
	}

	st.markOngoing(now, consecutiveFailures)

	if wasOpen {
		return &Event{Kind: EventUpdated, IncidentID: st.incidentID}
	}
	return &Event{Kind: EventOpened, IncidentID: st.incidentID}
}

// EvaluateRecovery records a successful probe outcome. It returns a
// Resolved event only once the recovery success streak reaches the fixed
// threshold while an incident is open; otherwise it keeps the incident open
// and returns nil.
func (e *Evaluator) EvaluateRecovery(checkID string, status monitor.Status) *Event {
	sh := e.shardFor(checkID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	st := e.stateFor(sh, checkID)
	now := time.Now()
	st.lastStatus = status

	hasOpenIncident := st.state == monitor.IncidentOngoing && st.isDown
	if !hasOpenIncident {
		return nil
	}

	st.consecutiveSuccesses++
	if st.consecutiveSuccesses < recoverySuccessThreshold {
		return nil
	}

	if st.incidentID == "" {
		return nil
	}

	var downtime time.Duration
	hasDowntime := !st.downSince.IsZero()
	if hasDowntime {
		downtime = now.Sub(st.downSince)
	}

	incidentID := st.incidentID
	st.resolve(now)

	return &Event{Kind: EventResolved, IncidentID: incidentID, DowntimeDuration: downtime, HasDowntime: hasDowntime}
}

// PruneInactive drops state for check ids no longer present in activeIDs.
func (e *Evaluator) PruneInactive(activeIDs map[string]struct{}) {
	for _, sh := range e.shards {
		sh.mu.Lock()
		for id := range sh.states {
			if _, ok := activeIDs[id]; !ok {
				delete(sh.states, id)
			}
		}
		sh.mu.Unlock()
	}
}

// WarmFromIncidents seeds the evaluator with previously persisted ongoing
// incidents. Must run to completion before any runner starts probing, or an
// ongoing incident could be reopened with a new incident id.
func (e *Evaluator) WarmFromIncidents(seeds []Seed) {
	for _, seed := range seeds {
		sh := e.shardFor(seed.CheckID)
		sh.mu.Lock()
		sh.states[seed.CheckID] = stateFromSeed(seed)
		sh.mu.Unlock()
	}
}

// Snapshot returns the current incident lifecycle snapshot for checkID, if
// any state has been recorded for it yet.
func (e *Evaluator) Snapshot(checkID string) (Snapshot, bool) {
	sh := e.shardFor(checkID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	st, ok := sh.states[checkID]
	if !ok {
		return Snapshot{}, false
	}
	return st.toSnapshot(), true
}
