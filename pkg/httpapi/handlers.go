package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/last-emo-boy/uptime-monitor/pkg/monitor"
	"github.com/last-emo-boy/uptime-monitor/pkg/monitor/orchestrator"
)

type handler struct {
	cache     *monitor.MonitorCache
	orch      *orchestrator.Orchestrator
	startedAt time.Time
}

// healthz reports process liveness independent of the monitor cache's own
// staleness window: a 200 here only means the HTTP server is up.
func (h *handler) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(h.startedAt).String(),
	})
}

// status reports the monitor cache's health and size, the signal the
// cache's own StaleAfter window is built to detect.
func (h *handler) status(c *gin.Context) {
	healthy := h.cache.Healthy()
	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"healthy":   healthy,
		"checks":    h.cache.Count(),
		"uptime":    time.Since(h.startedAt).String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// incidents lists every check currently in the Ongoing incident state.
func (h *handler) incidents(c *gin.Context) {
	checks := h.cache.Snapshot()
	out := make([]gin.H, 0, len(checks))

	for _, check := range checks {
		snap, ok := h.orch.Snapshot(check.ID)
		if !ok || snap.State != monitor.IncidentOngoing {
			continue
		}
		out = append(out, gin.H{
			"check_id":      check.ID,
			"site_id":       check.SiteID,
			"name":          check.Name,
			"url":           check.URL,
			"incident_id":   snap.IncidentID,
			"severity":      snap.Severity,
			"started_at":    snap.StartedAt.UTC().Format(time.RFC3339),
			"last_event_at": snap.LastEventAt.UTC().Format(time.RFC3339),
			"failure_count": snap.FailureCount,
			"reason_code":   snap.ReasonCode,
			"status_code":   snap.StatusCode,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"incidents": out,
		"total":     len(out),
	})
}

// triggerRefresh forces an immediate full cache reload, for operators who
// don't want to wait out the background refresh interval after editing
// checks directly in the database.
func (h *handler) triggerRefresh(c *gin.Context) {
	if err := h.cache.Refresh(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "refresh failed: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "refreshed",
		"checks": h.cache.Count(),
	})
}
