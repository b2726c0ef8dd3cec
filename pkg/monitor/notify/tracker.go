// Package notify dispatches incident notifications (email, push) and
// deduplicates them so a flapping or persistently-down check does not spam
// its recipients on every probe tick.
package notify

import (
	"sync"
	"time"
)

// sslMilestones are the days-left values that trigger an expiring-soon
// notification, each firing at most once per check.
var sslMilestones = [...]int{30, 14, 7, 3, 1}

type timestamps struct {
	lastDownIncident     string
	lastRecoveryIncident string
	lastSSLExpiredFor     time.Time
	lastSSLMilestone      int
	hasSSLMilestone       bool
}

// Tracker deduplicates notifications per check: a down alert fires once per
// incident id, a recovery alert fires once per incident id, an SSL-expired
// alert fires once per distinct expiry date, and an SSL-expiring alert fires
// once per milestone day.
type Tracker struct {
	mu    sync.Mutex
	state map[string]*timestamps
}

// NewTracker builds an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{state: make(map[string]*timestamps)}
}

func (t *Tracker) entry(checkID string) *timestamps {
	ts, ok := t.state[checkID]
	if !ok {
		ts = &timestamps{}
		t.state[checkID] = ts
	}
	return ts
}

// ShouldNotifyDown reports whether a down alert should be sent for this
// incident id (one per lifecycle of the incident).
func (t *Tracker) ShouldNotifyDown(checkID, incidentID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.entry(checkID).lastDownIncident != incidentID
}

// MarkNotifiedDown records that a down alert was sent for incidentID.
func (t *Tracker) MarkNotifiedDown(checkID, incidentID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entry(checkID).lastDownIncident = incidentID
}

// MarkNotifiedRecovery records that a recovery alert was sent for
// incidentID.
func (t *Tracker) MarkNotifiedRecovery(checkID, incidentID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entry(checkID).lastRecoveryIncident = incidentID
}

// ShouldNotifySSL reports whether an SSL notification should fire: expired
// certs notify once per distinct expiry timestamp, expiring certs notify
// once per milestone day at or below threshold.
func (t *Tracker) ShouldNotifySSL(checkID string, daysLeft, threshold int, expired bool, expiryDate time.Time) bool {
	if daysLeft > threshold {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	entry := t.entry(checkID)

	if expired {
		if entry.lastSSLExpiredFor.IsZero() {
			return !expiryDate.IsZero()
		}
		return !expiryDate.IsZero() && !entry.lastSSLExpiredFor.Equal(expiryDate)
	}

	isMilestone := false
	for _, m := range sslMilestones {
		if daysLeft == m && m <= threshold {
			isMilestone = true
			break
		}
	}
	if !isMilestone {
		return false
	}

	return !entry.hasSSLMilestone || entry.lastSSLMilestone != daysLeft
}

// MarkNotifiedSSL records that an SSL notification was sent.
func (t *Tracker) MarkNotifiedSSL(checkID string, expired bool, expiryDate time.Time, daysLeft int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry := t.entry(checkID)
	if expired {
		entry.lastSSLExpiredFor = expiryDate
	} else {
		entry.lastSSLMilestone = daysLeft
		entry.hasSSLMilestone = true
	}
}

// PruneInactive drops tracker state for check ids no longer present in
// activeIDs.
func (t *Tracker) PruneInactive(activeIDs map[string]struct{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id := range t.state {
		if _, ok := activeIDs[id]; !ok {
			delete(t.state, id)
		}
	}
}

// Seed reseeds tracker state for a check from a previously persisted
// incident row, so a notification already sent before a restart is not
// re-sent.
type Seed struct {
	CheckID               string
	IncidentID            string
	NotifiedDownAt        time.Time
	NotifiedResolveAt     time.Time
	LastSSLMilestone      int
	HasLastSSLMilestone   bool
}

// WarmFromIncidents seeds the tracker with previously persisted notification
// state.
func (t *Tracker) WarmFromIncidents(seeds []Seed) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, seed := range seeds {
		entry := t.entry(seed.CheckID)
		if !seed.NotifiedDownAt.IsZero() {
			entry.lastDownIncident = seed.IncidentID
		}
		if !seed.NotifiedResolveAt.IsZero() {
			entry.lastRecoveryIncident = seed.IncidentID
		}
		if seed.HasLastSSLMilestone {
			entry.lastSSLMilestone = seed.LastSSLMilestone
			entry.hasSSLMilestone = true
		}
	}
}
