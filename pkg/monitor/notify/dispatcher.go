// Package notify renders and delivers incident/SSL notifications over
// email and push, deduplicating them through Tracker and recording every
// successful delivery to the alert history store.
package notify

import (
	"context"
	"log"
	"time"

	"github.com/last-emo-boy/uptime-monitor/pkg/monitor"
)

// AlertKind identifies which notification template an Alert renders.
type AlertKind int

const (
	AlertDown AlertKind = iota
	AlertRecovery
	AlertSSLExpiring
	AlertSSLExpired
)

func (k AlertKind) String() string {
	switch k {
	case AlertDown:
		return "down"
	case AlertRecovery:
		return "recovery"
	case AlertSSLExpiring:
		return "ssl_expiring"
	case AlertSSLExpired:
		return "ssl_expired"
	default:
		return "unknown"
	}
}

// Alert is the payload for one notification, independent of delivery
// channel.
type Alert struct {
	Kind AlertKind

	ReasonCode monitor.ReasonCode
	StatusCode int

	DowntimeDuration time.Duration
	HasDowntime      bool

	DaysLeft   int
	ExpiryDate time.Time
	HasExpiry  bool
}

// AlertContext carries the check identity and delivery targets for one
// dispatch.
type AlertContext struct {
	CheckID     string
	SiteID      string
	DashboardID string
	MonitorName string
	URL         string
	Recipients  []string
	PushUserKey string
}

func (a Alert) buildEmail(ctx AlertContext, baseURL string) EmailMessage {
	switch a.Kind {
	case AlertDown:
		return BuildDownAlertEmail(ctx.Recipients, ctx.MonitorName, ctx.URL, a.ReasonCode, a.StatusCode, baseURL, ctx.DashboardID, ctx.CheckID)
	case AlertRecovery:
		return BuildRecoveryAlertEmail(ctx.Recipients, ctx.MonitorName, ctx.URL, a.DowntimeDuration, a.HasDowntime, baseURL, ctx.DashboardID, ctx.CheckID)
	case AlertSSLExpiring:
		return BuildSSLAlertEmail(ctx.Recipients, ctx.MonitorName, ctx.URL, a.DaysLeft, a.ExpiryDate, a.HasExpiry, false, baseURL, ctx.DashboardID, ctx.CheckID)
	case AlertSSLExpired:
		return BuildSSLAlertEmail(ctx.Recipients, ctx.MonitorName, ctx.URL, a.DaysLeft, a.ExpiryDate, a.HasExpiry, true, baseURL, ctx.DashboardID, ctx.CheckID)
	default:
		return EmailMessage{}
	}
}

func (a Alert) buildPush(ctx AlertContext, baseURL string) PushMessage {
	switch a.Kind {
	case AlertDown:
		return BuildDownPushMessage(ctx.MonitorName, ctx.URL, reasonMessageFor(a.ReasonCode), a.StatusCode, ctx.DashboardID, ctx.CheckID, baseURL)
	case AlertRecovery:
		return BuildRecoveryPushMessage(ctx.MonitorName, ctx.URL, a.DowntimeDuration, a.HasDowntime, ctx.DashboardID, ctx.CheckID, baseURL)
	case AlertSSLExpiring:
		return BuildSSLPushMessage(ctx.MonitorName, a.DaysLeft, a.ExpiryDate, a.HasExpiry, false, ctx.DashboardID, ctx.CheckID, baseURL)
	case AlertSSLExpired:
		return BuildSSLPushMessage(ctx.MonitorName, a.DaysLeft, a.ExpiryDate, a.HasExpiry, true, ctx.DashboardID, ctx.CheckID, baseURL)
	default:
		return PushMessage{}
	}
}

func (a Alert) historyRow(ctx AlertContext, sentTo []string, err error) monitor.AlertHistoryRow {
	row := monitor.AlertHistoryRow{
		MonitorCheckID: ctx.CheckID,
		AlertType:      a.Kind.String(),
		SentTo:         sentTo,
		SentAt:         time.Now(),
		StatusCode:     a.StatusCode,
		SSLDaysLeft:    a.DaysLeft,
	}
	if err != nil {
		row.ErrorMessage = err.Error()
	}
	return row
}

// HistoryWriter persists alert history rows; satisfied by
// *monitor.BatchedWriter.
type HistoryWriter interface {
	EnqueueRows(rows []interface{}) error
}

// Dispatcher renders and delivers alerts over every configured channel and
// records a history row for each successful delivery.
type Dispatcher struct {
	email         *EmailService
	push          *PushClient
	historyWriter HistoryWriter
	publicBaseURL string
}

// NewDispatcher builds a Dispatcher. email and push may be nil to disable
// that channel entirely (e.g. no SMTP/Pushover credentials configured).
func NewDispatcher(email *EmailService, push *PushClient, historyWriter HistoryWriter, publicBaseURL string) *Dispatcher {
	return &Dispatcher{email: email, push: push, historyWriter: historyWriter, publicBaseURL: publicBaseURL}
}

// HasEmail reports whether an email channel is configured.
func (d *Dispatcher) HasEmail() bool { return d.email != nil }

// HasPush reports whether a push channel is configured.
func (d *Dispatcher) HasPush() bool { return d.push != nil }

// Dispatch renders and sends alert to every applicable channel in ctx,
// returning true if at least one channel delivered it.
func (d *Dispatcher) Dispatch(ctx context.Context, alertCtx AlertContext, alert Alert) bool {
	anySent := false

	if d.email != nil && len(alertCtx.Recipients) > 0 {
		msg := alert.buildEmail(alertCtx, d.publicBaseURL)
		if err := d.email.Send(msg); err != nil {
			log.Printf("⚠️  failed to send %s email alert check=%s: %v", alert.Kind, alertCtx.CheckID, err)
		} else {
			anySent = true
			d.recordHistory(alert, alertCtx, alertCtx.Recipients, nil)
		}
	}

	if d.push != nil && alertCtx.PushUserKey != "" {
		msg := alert.buildPush(alertCtx, d.publicBaseURL)
		if err := d.push.Send(ctx, alertCtx.PushUserKey, msg); err != nil {
			log.Printf("⚠️  failed to send %s push alert check=%s: %v", alert.Kind, alertCtx.CheckID, err)
		} else {
			anySent = true
			d.recordHistory(alert, alertCtx, []string{"pushover:" + alertCtx.PushUserKey}, nil)
		}
	}

	return anySent
}

func (d *Dispatcher) recordHistory(alert Alert, ctx AlertContext, sentTo []string, sendErr error) {
	if d.historyWriter == nil {
		return
	}
	row := alert.historyRow(ctx, sentTo, sendErr)
	if err := d.historyWriter.EnqueueRows([]interface{}{row}); err != nil {
		log.Printf("⚠️  failed to record alert history check=%s: %v", ctx.CheckID, err)
	}
}
