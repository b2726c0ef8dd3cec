package notify

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const pushoverAPIURL = "https://api.pushover.net/1/messages.json"

// PushMessage is a rendered Pushover notification.
type PushMessage struct {
	Title    string
	Body     string
	URL      string
	URLTitle string
	Priority int
}

func truncateRunes(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen == 0 {
		return ""
	}
	return string(runes[:maxLen-1]) + "…"
}

// BuildDownPushMessage renders a down-alert push notification.
func BuildDownPushMessage(monitorName, url string, reasonMessage string, statusCode int, dashboardID, checkID, baseURL string) PushMessage {
	title := fmt.Sprintf("Site Down: %s", truncateRunes(monitorName, 50))
	body := fmt.Sprintf("<b>%s</b> is unreachable.\n\nURL: %s\nReason: %s",
		html.EscapeString(monitorName), html.EscapeString(url), html.EscapeString(reasonMessage))
	if statusCode != 0 {
		body += fmt.Sprintf("\nStatus: %d", statusCode)
	}
	return PushMessage{
		Title: title, Body: body, Priority: 1,
		URL: buildMonitorURL(baseURL, dashboardID, checkID), URLTitle: "View Monitor",
	}
}

// BuildRecoveryPushMessage renders a recovery push notification.
func BuildRecoveryPushMessage(monitorName, url string, downtime time.Duration, hasDowntime bool, dashboardID, checkID, baseURL string) PushMessage {
	title := fmt.Sprintf("Recovered: %s", truncateRunes(monitorName, 50))
	body := fmt.Sprintf("<b>%s</b> is back online.", html.EscapeString(monitorName))
	if hasDowntime {
		body += fmt.Sprintf("\nDowntime: %s", formatDuration(downtime))
	}
	return PushMessage{
		Title: title, Body: body, Priority: 0,
		URL: buildMonitorURL(baseURL, dashboardID, checkID), URLTitle: "View Monitor",
	}
}

// BuildSSLPushMessage renders an SSL expiring/expired push notification.
func BuildSSLPushMessage(monitorName string, daysLeft int, expiryDate time.Time, hasExpiry, expired bool, dashboardID, checkID, baseURL string) PushMessage {
	monitorURL := buildMonitorURL(baseURL, dashboardID, checkID)

	if expired {
		return PushMessage{
			Title:    fmt.Sprintf("SSL Expired: %s", truncateRunes(monitorName, 50)),
			Body:     fmt.Sprintf("SSL certificate for <b>%s</b> has expired!", html.EscapeString(monitorName)),
			Priority: 1,
			URL:      monitorURL, URLTitle: "View Monitor",
		}
	}

	suffix := "s"
	if daysLeft == 1 {
		suffix = ""
	}
	body := fmt.Sprintf("SSL certificate for <b>%s</b> expires in %d day%s.", html.EscapeString(monitorName), daysLeft, suffix)
	if hasExpiry {
		body += fmt.Sprintf("\nExpiry: %s", expiryDate.UTC().Format("2006-01-02"))
	}
	return PushMessage{
		Title:    fmt.Sprintf("SSL Expiring: %s", truncateRunes(monitorName, 50)),
		Body:     body,
		Priority: 0,
		URL:      monitorURL, URLTitle: "View Monitor",
	}
}

// PushClient delivers PushMessages through the Pushover HTTP API.
type PushClient struct {
	client   *http.Client
	apiToken string
	apiURL   string
}

// NewPushClient builds a PushClient. apiURL defaults to the production
// Pushover endpoint when empty.
func NewPushClient(apiURL, apiToken string) *PushClient {
	if apiURL == "" {
		apiURL = pushoverAPIURL
	}
	return &PushClient{
		client:   &http.Client{Timeout: 15 * time.Second},
		apiToken: apiToken,
		apiURL:   apiURL,
	}
}

// Send delivers msg to userKey.
func (c *PushClient) Send(ctx context.Context, userKey string, msg PushMessage) error {
	form := url.Values{}
	form.Set("token", c.apiToken)
	form.Set("user", userKey)
	form.Set("title", msg.Title)
	form.Set("message", msg.Body)
	form.Set("url", msg.URL)
	form.Set("url_title", msg.URLTitle)
	form.Set("priority", strconv.Itoa(msg.Priority))
	form.Set("timestamp", strconv.FormatInt(time.Now().Unix(), 10))
	form.Set("html", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build pushover request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("pushover request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("pushover API returned HTTP %d", resp.StatusCode)
	}
	return nil
}
