package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShouldNotifyDownFiresOncePerIncident(t *testing.T) {
	tr := NewTracker()

	assert.True(t, tr.ShouldNotifyDown("check-1", "inc-1"))
	tr.MarkNotifiedDown("check-1", "inc-1")
	assert.False(t, tr.ShouldNotifyDown("check-1", "inc-1"))

	// A new incident id should notify again.
	assert.True(t, tr.ShouldNotifyDown("check-1", "inc-2"))
}

func TestShouldNotifySSLRespectsThreshold(t *testing.T) {
	tr := NewTracker()

	// 14 days left but threshold is 7: not yet within window.
	assert.False(t, tr.ShouldNotifySSL("check-1", 14, 7, false, time.Time{}))
}

func TestShouldNotifySSLOnlyFiresOnMilestoneDays(t *testing.T) {
	tr := NewTracker()

	// 10 is not a milestone (30,14,7,3,1).
	assert.False(t, tr.ShouldNotifySSL("check-1", 10, 14, false, time.Time{}))

	// 7 is a milestone and within threshold.
	assert.True(t, tr.ShouldNotifySSL("check-1", 7, 14, false, time.Time{}))
}

func TestShouldNotifySSLDedupsSameMilestone(t *testing.T) {
	tr := NewTracker()

	assert.True(t, tr.ShouldNotifySSL("check-1", 7, 14, false, time.Time{}))
	tr.MarkNotifiedSSL("check-1", false, time.Time{}, 7)
	assert.False(t, tr.ShouldNotifySSL("check-1", 7, 14, false, time.Time{}))

	// A later milestone (3) should notify again.
	assert.True(t, tr.ShouldNotifySSL("check-1", 3, 14, false, time.Time{}))
}

func TestShouldNotifySSLExpiredDedupsByExpiryDate(t *testing.T) {
	tr := NewTracker()
	expiry := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.True(t, tr.ShouldNotifySSL("check-1", 0, 14, true, expiry))
	tr.MarkNotifiedSSL("check-1", true, expiry, 0)
	assert.False(t, tr.ShouldNotifySSL("check-1", 0, 14, true, expiry))

	// A renewed cert with a different expiry date should notify again once
	// it too expires.
	laterExpiry := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	assert.True(t, tr.ShouldNotifySSL("check-1", 0, 14, true, laterExpiry))
}

func TestPruneInactiveDropsTrackerState(t *testing.T) {
	tr := NewTracker()
	tr.MarkNotifiedDown("check-1", "inc-1")

	tr.PruneInactive(map[string]struct{}{})
	assert.True(t, tr.ShouldNotifyDown("check-1", "inc-1"))
}

func TestWarmFromIncidentsSeedsDedupState(t *testing.T) {
	tr := NewTracker()
	now := time.Now()

	tr.WarmFromIncidents([]Seed{
		{
			CheckID:             "check-1",
			IncidentID:          "inc-1",
			NotifiedDownAt:      now,
			HasLastSSLMilestone: true,
			LastSSLMilestone:    7,
		},
	})

	assert.False(t, tr.ShouldNotifyDown("check-1", "inc-1"))
	assert.True(t, tr.ShouldNotifyDown("check-1", "inc-2"))
	assert.False(t, tr.ShouldNotifySSL("check-1", 7, 14, false, time.Time{}))
	assert.True(t, tr.ShouldNotifySSL("check-1", 3, 14, false, time.Time{}))
}
