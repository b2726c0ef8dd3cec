// Package orchestrator wires the incident evaluator, the notification
// tracker, and the alert dispatcher into a single monitor.ResultSink: it
// turns probe outcomes into incident lifecycle transitions and, where a
// check's alert policy allows it, deduplicated down/recovery/SSL alerts.
package orchestrator

import (
	"context"
	"log"
	"net/url"
	"time"

	"github.com/last-emo-boy/uptime-monitor/pkg/monitor"
	"github.com/last-emo-boy/uptime-monitor/pkg/monitor/incident"
	"github.com/last-emo-boy/uptime-monitor/pkg/monitor/notify"
)

// IncidentStore persists and reloads incident lifecycle snapshots.
type IncidentStore interface {
	LoadActiveIncidents(ctx context.Context) ([]incident.Seed, error)
	PersistSnapshot(row monitor.IncidentSnapshotRow) error
}

// Dispatcher renders and delivers alerts over every configured channel.
type Dispatcher interface {
	Dispatch(ctx context.Context, alertCtx notify.AlertContext, alert notify.Alert) bool
}

// Orchestrator is the monitor.ResultSink that turns probe outcomes into
// incident lifecycle transitions and, where the check's alert policy
// allows it, deduplicated notifications. It must finish warming from the
// incident store before any runner starts probing, or an ongoing incident
// could be reopened under a new incident id.
type Orchestrator struct {
	evaluator  *incident.Evaluator
	tracker    *notify.Tracker
	dispatcher Dispatcher
	store      IncidentStore
}

// New builds an Orchestrator with empty evaluator and tracker state. Call
// WarmFromStore before starting any runner.
func New(dispatcher Dispatcher, store IncidentStore) *Orchestrator {
	return &Orchestrator{
		evaluator:  incident.NewEvaluator(),
		tracker:    notify.NewTracker(),
		dispatcher: dispatcher,
		store:      store,
	}
}

// WarmFromStore loads every still-ongoing incident from the store and
// seeds both the evaluator and the notification tracker, so a process
// restart resumes an incident's lifecycle and notification history
// instead of reopening it.
func (o *Orchestrator) WarmFromStore(ctx context.Context) error {
	seeds, err := o.store.LoadActiveIncidents(ctx)
	if err != nil {
		return err
	}

	trackerSeeds := make([]notify.Seed, len(seeds))
	for i, s := range seeds {
		trackerSeeds[i] = notify.Seed{
			CheckID:           s.CheckID,
			IncidentID:        s.IncidentID,
			NotifiedDownAt:    zeroIfResolved(s),
			NotifiedResolveAt: time.Time{},
		}
	}

	o.evaluator.WarmFromIncidents(seeds)
	o.tracker.WarmFromIncidents(trackerSeeds)

	log.Printf("🔥 incident orchestrator warmed from store (ongoing=%d)", len(seeds))
	return nil
}

func zeroIfResolved(s incident.Seed) time.Time {
	if s.State == monitor.IncidentOngoing {
		return s.LastEventAt
	}
	return time.Time{}
}

// PruneInactive drops evaluator/tracker state for check ids no longer
// present in activeIDs.
func (o *Orchestrator) PruneInactive(activeIDs map[string]struct{}) {
	o.evaluator.PruneInactive(activeIDs)
	o.tracker.PruneInactive(activeIDs)
}

// Snapshot returns the current incident lifecycle state for a check, for
// read-only control-plane endpoints.
func (o *Orchestrator) Snapshot(checkID string) (incident.Snapshot, bool) {
	return o.evaluator.Snapshot(checkID)
}

// EvaluateHTTP implements monitor.ResultSink for HTTP probe outcomes: it
// drives the incident lifecycle and dispatches down/recovery alerts.
// consecutiveFailures is the runner's backoff-tracked streak, already
// updated for this outcome before the call — it is the source of truth for
// the failure-threshold gate, since the evaluator's own state isn't
// Ongoing until after an incident has opened.
func (o *Orchestrator) EvaluateHTTP(check *monitor.Check, outcome monitor.Outcome, consecutiveFailures uint16) {
	switch outcome.Status {
	case monitor.StatusFailed:
		o.handleFailure(check, outcome, consecutiveFailures)
	case monitor.StatusOk:
		o.handleSuccess(check, outcome)
	case monitor.StatusWarn:
		// Slow-but-successful responses don't open or close incidents.
	}
}

// EvaluateTLS implements monitor.ResultSink for TLS probe outcomes: it
// only drives SSL expiry alerts, independent of the incident state
// machine.
func (o *Orchestrator) EvaluateTLS(check *monitor.Check, outcome monitor.Outcome) {
	if !outcome.HasTLSInfo {
		return
	}
	daysLeft := int(time.Until(outcome.TLSNotAfter).Hours() / 24)
	o.sendSSLAlert(check, daysLeft, outcome.TLSNotAfter)
}

func (o *Orchestrator) handleFailure(check *monitor.Check, outcome monitor.Outcome, consecutiveFailures uint16) {
	alert := check.Alert

	event := o.evaluator.EvaluateFailure(check.ID, outcome.Status, consecutiveFailures, alert.FailureThreshold, outcome.ReasonCode, outcome.StatusCode)
	if event == nil {
		return
	}

	snap, _ := o.evaluator.Snapshot(check.ID)
	if err := o.store.PersistSnapshot(toSnapshotRow(check, snap)); err != nil {
		log.Printf("⚠️  failed to persist incident snapshot check=%s: %v", check.ID, err)
	}

	o.sendDownAlert(check, event.IncidentID, outcome)
}

func (o *Orchestrator) sendDownAlert(check *monitor.Check, incidentID string, outcome monitor.Outcome) {
	alert := check.Alert
	if !alert.Enabled || !alert.OnDown {
		return
	}
	if !o.tracker.ShouldNotifyDown(check.ID, incidentID) {
		return
	}

	hasPush := alert.PushUserKey != ""
	if len(alert.Recipients) == 0 && !hasPush {
		return
	}

	a := notify.Alert{Kind: notify.AlertDown, ReasonCode: outcome.ReasonCode, StatusCode: outcome.StatusCode}
	sent := o.dispatcher.Dispatch(context.Background(), alertContextFor(check), a)
	if sent {
		o.tracker.MarkNotifiedDown(check.ID, incidentID)
	}
}

func (o *Orchestrator) handleSuccess(check *monitor.Check, outcome monitor.Outcome) {
	event := o.evaluator.EvaluateRecovery(check.ID, outcome.Status)
	if event == nil {
		return
	}

	snap, _ := o.evaluator.Snapshot(check.ID)
	if err := o.store.PersistSnapshot(toSnapshotRow(check, snap)); err != nil {
		log.Printf("⚠️  failed to persist incident snapshot check=%s: %v", check.ID, err)
	}

	o.sendRecoveryAlert(check, event.IncidentID, event.DowntimeDuration, event.HasDowntime)
}

func (o *Orchestrator) sendRecoveryAlert(check *monitor.Check, incidentID string, downtime time.Duration, hasDowntime bool) {
	alert := check.Alert
	if !alert.Enabled || !alert.OnRecovery {
		return
	}

	hasPush := alert.PushUserKey != ""
	if len(alert.Recipients) == 0 && !hasPush {
		return
	}

	a := notify.Alert{Kind: notify.AlertRecovery, DowntimeDuration: downtime, HasDowntime: hasDowntime}
	sent := o.dispatcher.Dispatch(context.Background(), alertContextFor(check), a)
	if sent {
		o.tracker.MarkNotifiedRecovery(check.ID, incidentID)
	}
}

func (o *Orchestrator) sendSSLAlert(check *monitor.Check, daysLeft int, notAfter time.Time) {
	alert := check.Alert
	if !alert.Enabled || !alert.OnSSLExpiry {
		return
	}

	expired := !notAfter.IsZero() && notAfter.Before(time.Now())
	if !o.tracker.ShouldNotifySSL(check.ID, daysLeft, alert.SSLExpiryDays, expired, notAfter) {
		return
	}

	hasPush := alert.PushUserKey != ""
	if len(alert.Recipients) == 0 && !hasPush {
		return
	}

	kind := notify.AlertSSLExpiring
	if expired {
		kind = notify.AlertSSLExpired
	}
	a := notify.Alert{Kind: kind, DaysLeft: daysLeft, ExpiryDate: notAfter, HasExpiry: !notAfter.IsZero()}

	sent := o.dispatcher.Dispatch(context.Background(), alertContextFor(check), a)
	if sent {
		o.tracker.MarkNotifiedSSL(check.ID, expired, notAfter, daysLeft)
	}
}

func alertContextFor(check *monitor.Check) notify.AlertContext {
	return notify.AlertContext{
		CheckID:     check.ID,
		SiteID:      check.SiteID,
		DashboardID: check.DashboardID,
		MonitorName: check.Name,
		URL:         check.URL,
		Recipients:  check.Alert.Recipients,
		PushUserKey: check.Alert.PushUserKey,
	}
}

func toSnapshotRow(check *monitor.Check, snap incident.Snapshot) monitor.IncidentSnapshotRow {
	kind := "http"
	if isHTTPS(check.URL) {
		kind = "https"
	}
	return monitor.IncidentSnapshotRow{
		IncidentID:   snap.IncidentID,
		CheckID:      check.ID,
		SiteID:       check.SiteID,
		State:        snap.State,
		Severity:     snap.Severity,
		StartedAt:    snap.StartedAt,
		LastEventAt:  snap.LastEventAt,
		ResolvedAt:   snap.ResolvedAt,
		ReasonCode:   snap.ReasonCode,
		FailureCount: snap.FailureCount,
		LastStatus:   snap.LastStatus,
		StatusCode:   snap.StatusCode,
		Kind:         kind,
	}
}

func isHTTPS(rawURL string) bool {
	u, err := url.Parse(rawURL)
	return err == nil && u.Scheme == "https"
}
