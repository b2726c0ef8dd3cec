package notify

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/last-emo-boy/uptime-monitor/pkg/monitor"
)

func TestBuildDownAlertEmail(t *testing.T) {
	msg := BuildDownAlertEmail([]string{"ops@example.com"}, "My Site", "https://example.com",
		monitor.ReasonHTTPTimeout, 0, "https://console.example.com", "dash-1", "check-1")

	assert.Equal(t, []string{"ops@example.com"}, msg.To)
	assert.Contains(t, msg.Subject, "My Site")
	assert.Contains(t, msg.HTML, "https://console.example.com/dashboard/dash-1/monitoring/check-1")
	assert.Contains(t, msg.HTML, "request timed out")
	assert.Contains(t, msg.Text, "MONITOR ALERT - DOWN")
	assert.NotContains(t, msg.Text, "Status Code:")
}

func TestBuildDownAlertEmailIncludesStatusCodeWhenPresent(t *testing.T) {
	msg := BuildDownAlertEmail([]string{"ops@example.com"}, "My Site", "https://example.com",
		monitor.ReasonHTTP5xx, 503, "https://console.example.com", "dash-1", "check-1")

	assert.Contains(t, msg.HTML, "Status Code:</strong> 503")
	assert.Contains(t, msg.Text, "Status Code: 503")
}

func TestBuildRecoveryAlertEmail(t *testing.T) {
	msg := BuildRecoveryAlertEmail([]string{"ops@example.com"}, "My Site", "https://example.com",
		90*time.Minute, true, "https://console.example.com", "dash-1", "check-1")

	assert.Contains(t, msg.Subject, "Back Online")
	assert.Contains(t, msg.HTML, "1 hr 30 min")
	assert.Contains(t, msg.Text, "Downtime Duration: 1 hr 30 min")
}

func TestBuildRecoveryAlertEmailOmitsDowntimeWhenUnknown(t *testing.T) {
	msg := BuildRecoveryAlertEmail([]string{"ops@example.com"}, "My Site", "https://example.com",
		0, false, "https://console.example.com", "dash-1", "check-1")

	assert.NotContains(t, msg.HTML, "Downtime Duration")
	assert.NotContains(t, msg.Text, "Downtime Duration")
}

func TestBuildSSLAlertEmailExpiring(t *testing.T) {
	expiry := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)
	msg := BuildSSLAlertEmail([]string{"ops@example.com"}, "My Site", "https://example.com",
		7, expiry, true, false, "https://console.example.com", "dash-1", "check-1")

	assert.Contains(t, msg.Subject, "Expiring Soon")
	assert.Contains(t, msg.HTML, "7 days remaining")
	assert.Contains(t, msg.Text, "2026-08-15")
}

func TestBuildSSLAlertEmailExpired(t *testing.T) {
	msg := BuildSSLAlertEmail([]string{"ops@example.com"}, "My Site", "https://example.com",
		0, time.Time{}, false, true, "https://console.example.com", "dash-1", "check-1")

	assert.Contains(t, msg.Subject, "Expired")
	assert.Contains(t, msg.HTML, "Certificate has expired!")
}

func TestSanitizeForEmailStripsControlCharsAndTruncates(t *testing.T) {
	dirty := "hello\x00\x07world" + strings.Repeat("x", 200)
	out := sanitizeForEmail(dirty, 20)

	assert.LessOrEqual(t, len([]rune(out)), 20)
	assert.NotContains(t, out, "\x00")
	assert.NotContains(t, out, "\x07")
}

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{30 * time.Second, "30 seconds"},
		{1 * time.Minute, "1 minute"},
		{2 * time.Minute, "2 minutes"},
		{90 * time.Second, "1 min 30 sec"},
		{1 * time.Hour, "1 hour"},
		{25 * time.Hour, "1 day 1 hr"},
		{48 * time.Hour, "2 days"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, formatDuration(c.d))
	}
}

func TestFormatSSLDaysLeft(t *testing.T) {
	assert.Equal(t, "Certificate has expired!", formatSSLDaysLeft(0))
	assert.Equal(t, "Certificate has expired!", formatSSLDaysLeft(-3))
	assert.Equal(t, "1 day remaining", formatSSLDaysLeft(1))
	assert.Equal(t, "14 days remaining", formatSSLDaysLeft(14))
}

func TestReasonMessageForKnownAndUnknownCodes(t *testing.T) {
	assert.Equal(t, "request timed out", reasonMessageFor(monitor.ReasonHTTPTimeout))
	assert.Equal(t, "unheard_of_reason", reasonMessageFor(monitor.ReasonCode("unheard_of_reason")))
}
