package notify

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/last-emo-boy/uptime-monitor/pkg/monitor"
)

const (
	subjectNameMaxLen = 60
	textNameMaxLen    = 120
	textURLMaxLen     = 200
)

// EmailMessage is a rendered email ready for SMTP delivery.
type EmailMessage struct {
	To      []string
	Subject string
	HTML    string
	Text    string
}

func sanitizeForEmail(s string, maxLen int) string {
	var b strings.Builder
	count := 0
	for _, r := range s {
		if count >= maxLen {
			break
		}
		if r < 0x20 || r == 0x7f {
			continue
		}
		b.WriteRune(r)
		count++
	}
	return b.String()
}

func buildMonitorURL(publicBaseURL, dashboardID, checkID string) string {
	return fmt.Sprintf("%s/dashboard/%s/monitoring/%s", strings.TrimRight(publicBaseURL, "/"), dashboardID, checkID)
}

// BuildDownAlertEmail renders the "site is down" notification.
func BuildDownAlertEmail(recipients []string, monitorName, url string, reasonCode monitor.ReasonCode, statusCode int, publicBaseURL, dashboardID, checkID string) EmailMessage {
	safeName := sanitizeForEmail(monitorName, subjectNameMaxLen)
	subject := fmt.Sprintf("🚨 Uptime Alert: Site Is Down: %s", safeName)
	monitorURL := buildMonitorURL(publicBaseURL, dashboardID, checkID)
	reasonMessage := reasonMessageFor(reasonCode)

	return EmailMessage{
		To:      recipients,
		Subject: subject,
		HTML:    buildDownAlertHTML(monitorName, url, reasonMessage, statusCode, monitorURL),
		Text:    buildDownAlertText(monitorName, url, reasonMessage, statusCode, monitorURL),
	}
}

// BuildRecoveryAlertEmail renders the "back online" notification.
func BuildRecoveryAlertEmail(recipients []string, monitorName, url string, downtime time.Duration, hasDowntime bool, publicBaseURL, dashboardID, checkID string) EmailMessage {
	safeName := sanitizeForEmail(monitorName, subjectNameMaxLen)
	subject := fmt.Sprintf("✅ Resolved: Site Is Back Online: %s", safeName)
	monitorURL := buildMonitorURL(publicBaseURL, dashboardID, checkID)

	return EmailMessage{
		To:      recipients,
		Subject: subject,
		HTML:    buildRecoveryAlertHTML(monitorName, url, downtime, hasDowntime, monitorURL),
		Text:    buildRecoveryAlertText(monitorName, url, downtime, hasDowntime, monitorURL),
	}
}

// BuildSSLAlertEmail renders the expiring/expired SSL certificate
// notification.
func BuildSSLAlertEmail(recipients []string, monitorName, url string, daysLeft int, expiryDate time.Time, hasExpiry, expired bool, publicBaseURL, dashboardID, checkID string) EmailMessage {
	safeName := sanitizeForEmail(monitorName, subjectNameMaxLen)
	var subject string
	if expired {
		subject = fmt.Sprintf("🚨 SSL Certificate Expired: %s", safeName)
	} else {
		subject = fmt.Sprintf("⚠️ SSL Certificate Expiring Soon: %s", safeName)
	}
	monitorURL := buildMonitorURL(publicBaseURL, dashboardID, checkID)

	return EmailMessage{
		To:      recipients,
		Subject: subject,
		HTML:    buildSSLAlertHTML(monitorName, url, daysLeft, expiryDate, hasExpiry, monitorURL, expired),
		Text:    buildSSLAlertText(monitorName, url, daysLeft, expiryDate, hasExpiry, monitorURL, expired),
	}
}

func buildDownAlertHTML(monitorName, url, reasonMessage string, statusCode int, monitorURL string) string {
	reasonSection := fmt.Sprintf(`<p style="margin: 8px 0;"><strong>Reason:</strong> %s</p>`, html.EscapeString(reasonMessage))

	statusSection := ""
	if statusCode != 0 {
		statusSection = fmt.Sprintf(`<p style="margin: 8px 0;"><strong>Status Code:</strong> %d</p>`, statusCode)
	}

	content := fmt.Sprintf(`<h1>Monitor Alert</h1>
            <div class="alert-box">
                <h3 style="margin: 0 0 10px 0; color: #dc2626; font-size: 18px;">🚨 Monitor Down</h3>
                <p style="margin: 0;"><strong>%s</strong> is currently unreachable.</p>
            </div>

            <div class="content-section">
                <p style="margin: 8px 0;"><strong>URL:</strong> <a href="%s" style="color: #2563eb;">%s</a></p>
                <p style="margin: 8px 0;"><strong>Time:</strong> %s</p>
                %s
                %s
            </div>

            <div class="center">
                <a href="%s" class="button">View Monitor Details</a>
            </div>

            <p style="color: #6b7280; font-size: 14px; margin-top: 24px;">
                We'll notify you again when the monitor recovers.
            </p>`,
		html.EscapeString(monitorName), html.EscapeString(url), html.EscapeString(url),
		time.Now().UTC().Format("2006-01-02 15:04:05 UTC"), statusSection, reasonSection, monitorURL)

	return wrapHTML(content)
}

func buildDownAlertText(monitorName, url, reasonMessage string, statusCode int, monitorURL string) string {
	safeName := sanitizeForEmail(monitorName, textNameMaxLen)
	safeURL := sanitizeForEmail(url, textURLMaxLen)

	var b strings.Builder
	fmt.Fprintf(&b, "MONITOR ALERT - DOWN\n\nMonitor: %s\nURL: %s\nTime: %s\nReason: %s\n",
		safeName, safeURL, time.Now().UTC().Format("2006-01-02 15:04:05 UTC"), reasonMessage)
	if statusCode != 0 {
		fmt.Fprintf(&b, "Status Code: %d\n", statusCode)
	}
	fmt.Fprintf(&b, "\nView monitor details: %s\n\nWe'll notify you again when the monitor recovers.", monitorURL)

	return wrapText(b.String())
}

func buildRecoveryAlertHTML(monitorName, url string, downtime time.Duration, hasDowntime bool, monitorURL string) string {
	downtimeSection := ""
	if hasDowntime {
		downtimeSection = fmt.Sprintf(`<p style="margin: 8px 0;"><strong>Downtime Duration:</strong> %s</p>`, formatDuration(downtime))
	}

	content := fmt.Sprintf(`<h1>Monitor Recovered</h1>
            <div class="success-box">
                <h3 style="margin: 0 0 10px 0; color: #059669; font-size: 18px;">✅ Back Online</h3>
                <p style="margin: 0;"><strong>%s</strong> is now responding normally.</p>
            </div>

            <div class="content-section">
                <p style="margin: 8px 0;"><strong>URL:</strong> <a href="%s" style="color: #2563eb;">%s</a></p>
                <p style="margin: 8px 0;"><strong>Recovered At:</strong> %s</p>
                %s
            </div>

            <div class="center">
                <a href="%s" class="button button-success">View Monitor Details</a>
            </div>`,
		html.EscapeString(monitorName), html.EscapeString(url), html.EscapeString(url),
		time.Now().UTC().Format("2006-01-02 15:04:05 UTC"), downtimeSection, monitorURL)

	return wrapHTML(content)
}

func buildRecoveryAlertText(monitorName, url string, downtime time.Duration, hasDowntime bool, monitorURL string) string {
	safeName := sanitizeForEmail(monitorName, textNameMaxLen)
	safeURL := sanitizeForEmail(url, textURLMaxLen)

	var b strings.Builder
	fmt.Fprintf(&b, "MONITOR RECOVERED\n\nMonitor: %s\nURL: %s\nRecovered At: %s\n",
		safeName, safeURL, time.Now().UTC().Format("2006-01-02 15:04:05 UTC"))
	if hasDowntime {
		fmt.Fprintf(&b, "Downtime Duration: %s\n", formatDuration(downtime))
	}
	fmt.Fprintf(&b, "\nView monitor details: %s", monitorURL)

	return wrapText(b.String())
}

func buildSSLAlertHTML(monitorName, url string, daysLeft int, expiryDate time.Time, hasExpiry bool, monitorURL string, expired bool) string {
	boxClass, headingStyle, icon, title := "warning-box", "margin: 0 0 10px 0; color: #f59e0b; font-size: 18px;", "⚠️", "SSL Certificate Expiring Soon"
	if expired {
		boxClass, headingStyle, icon, title = "alert-box", "margin: 0 0 10px 0; color: #dc2626; font-size: 18px;", "🚨", "SSL Certificate Expired"
	}

	expirySection := ""
	if hasExpiry {
		expirySection = fmt.Sprintf(`<p style="margin: 8px 0;"><strong>Expiry Date:</strong> %s</p>`, expiryDate.UTC().Format("2006-01-02 15:04:05 UTC"))
	}

	daysText := formatSSLDaysLeft(daysLeft)

	content := fmt.Sprintf(`<h1>SSL Certificate Alert</h1>
            <div class="%s">
                <h3 style="%s">%s %s</h3>
                <p style="margin: 0;">The SSL certificate for <strong>%s</strong> requires attention.</p>
            </div>

            <div class="content-section">
                <p style="margin: 8px 0;"><strong>URL:</strong> <a href="%s" style="color: #2563eb;">%s</a></p>
                <p style="margin: 8px 0;"><strong>Status:</strong> %s</p>
                %s
            </div>

            <p style="color: #4b5563; margin: 20px 0;">
                Please renew your SSL certificate to avoid service disruption.
            </p>

            <div class="center">
                <a href="%s" class="button">View Monitor Details</a>
            </div>`,
		boxClass, headingStyle, icon, title, html.EscapeString(monitorName),
		html.EscapeString(url), html.EscapeString(url), daysText, expirySection, monitorURL)

	return wrapHTML(content)
}

func buildSSLAlertText(monitorName, url string, daysLeft int, expiryDate time.Time, hasExpiry bool, monitorURL string, expired bool) string {
	title := "SSL CERTIFICATE EXPIRING SOON"
	if expired {
		title = "SSL CERTIFICATE EXPIRED"
	}
	daysText := formatSSLDaysLeft(daysLeft)

	safeName := sanitizeForEmail(monitorName, textNameMaxLen)
	safeURL := sanitizeForEmail(url, textURLMaxLen)

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\nMonitor: %s\nURL: %s\nStatus: %s\n", title, safeName, safeURL, daysText)
	if hasExpiry {
		fmt.Fprintf(&b, "Expiry Date: %s\n", expiryDate.UTC().Format("2006-01-02 15:04:05 UTC"))
	}
	fmt.Fprintf(&b, "\nPlease renew your SSL certificate to avoid service disruption.\n\nView monitor details: %s", monitorURL)

	return wrapText(b.String())
}

// formatDuration renders a duration the way a human reads it, at
// seconds/minutes/hours/days resolution.
func formatDuration(d time.Duration) string {
	total := int64(d.Seconds())

	switch {
	case total < 60:
		return fmt.Sprintf("%d seconds", total)
	case total < 3600:
		minutes, seconds := total/60, total%60
		if seconds == 0 {
			return fmt.Sprintf("%d minute%s", minutes, plural(minutes))
		}
		return fmt.Sprintf("%d min %d sec", minutes, seconds)
	case total < 86400:
		hours, minutes := total/3600, (total%3600)/60
		if minutes == 0 {
			return fmt.Sprintf("%d hour%s", hours, plural(hours))
		}
		return fmt.Sprintf("%d hr %d min", hours, minutes)
	default:
		days, hours := total/86400, (total%86400)/3600
		if hours == 0 {
			return fmt.Sprintf("%d day%s", days, plural(days))
		}
		return fmt.Sprintf("%d day%s %d hr", days, plural(days), hours)
	}
}

func plural(n int64) string {
	if n == 1 {
		return ""
	}
	return "s"
}

func formatSSLDaysLeft(days int) string {
	switch {
	case days <= 0:
		return "Certificate has expired!"
	case days == 1:
		return "1 day remaining"
	default:
		return fmt.Sprintf("%d days remaining", days)
	}
}

func reasonMessageFor(code monitor.ReasonCode) string {
	if msg, ok := reasonMessages[code]; ok {
		return msg
	}
	return string(code)
}

var reasonMessages = map[monitor.ReasonCode]string{
	monitor.ReasonTLSHandshakeFailed: "TLS handshake failed",
	monitor.ReasonTLSMissingCert:     "no certificate presented",
	monitor.ReasonTLSExpired:         "TLS certificate expired",
	monitor.ReasonTLSExpiringSoon:    "TLS certificate expiring soon",
	monitor.ReasonTLSParseError:      "failed to parse TLS certificate",
	monitor.ReasonHTTP4xx:            "server returned a 4xx response",
	monitor.ReasonHTTP5xx:            "server returned a 5xx response",
	monitor.ReasonHTTPOther:          "server returned an unexpected status",
	monitor.ReasonHTTPTimeout:        "request timed out",
	monitor.ReasonHTTPConnectError:   "connection failed",
	monitor.ReasonHTTPBodyError:      "failed to read response body",
	monitor.ReasonHTTPRequestError:   "failed to build request",
	monitor.ReasonHTTPError:          "request failed",
	monitor.ReasonTooManyRedirects:   "too many redirects",
	monitor.ReasonRedirectJoinFailed: "failed to resolve redirect location",
	monitor.ReasonSchemeBlocked:      "URL scheme not allowed",
	monitor.ReasonPortBlocked:        "destination port not allowed",
	monitor.ReasonInvalidHost:        "invalid host",
	monitor.ReasonBlockedIPLiteral:   "destination IP address not allowed",
	monitor.ReasonDNSBlocked:         "resolved address not allowed",
	monitor.ReasonDNSError:           "DNS resolution failed",
	monitor.ReasonResponseTooLarge:   "response exceeded size limit",
}
