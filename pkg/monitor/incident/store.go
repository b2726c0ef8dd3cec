package incident

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/last-emo-boy/uptime-monitor/pkg/monitor"
)

// EnqueueRows is the subset of *monitor.BatchedWriter used by Store.
type EnqueueRows interface {
	EnqueueRows(rows []interface{}) error
}

// Store persists incident snapshots to the columnar store and reloads
// still-ongoing incidents at startup, so a process restart resumes an
// incident's lifecycle instead of reopening it with a new id.
type Store struct {
	queryURL string
	table    string
	client   *http.Client
	writer   EnqueueRows
}

// NewStore builds a Store. baseURL is the ClickHouse HTTP endpoint (e.g.
// "http://localhost:8123"); writer is the BatchedWriter for table.
func NewStore(baseURL, table string, writer EnqueueRows) *Store {
	return &Store{
		queryURL: baseURL,
		table:    table,
		client:   &http.Client{Timeout: 15 * time.Second},
		writer:   writer,
	}
}

type seedRow struct {
	IncidentID        string `json:"incident_id"`
	CheckID           string `json:"check_id"`
	State             string `json:"state"`
	Severity          string `json:"severity"`
	StartedAt         string `json:"started_at"`
	LastEventAt       string `json:"last_event_at"`
	ResolvedAt        string `json:"resolved_at"`
	FailureCount      uint16 `json:"failure_count"`
	LastStatus        string `json:"last_status"`
	ReasonCode        string `json:"reason_code"`
	StatusCode        int    `json:"status_code"`
	NotifiedDownAt    string `json:"notified_down_at"`
	NotifiedResolveAt string `json:"notified_resolve_at"`
}

type queryResult struct {
	Data []seedRow `json:"data"`
}

// LoadActiveIncidents queries the columnar store for the latest snapshot of
// every incident still in the Ongoing state, one row per (check_id,
// incident_id). Must complete before any runner starts probing.
func (s *Store) LoadActiveIncidents(ctx context.Context) ([]Seed, error) {
	query := fmt.Sprintf(`
		SELECT incident_id, check_id, state, severity, started_at, last_event_at,
		       resolved_at, failure_count, last_status, reason_code, status_code,
		       notified_down_at, notified_resolve_at
		FROM %s
		FINAL
		WHERE state = 'ongoing'
		ORDER BY check_id, incident_id, last_event_at DESC
		LIMIT 1 BY check_id, incident_id
		FORMAT JSON
	`, s.table)

	reqURL := fmt.Sprintf("%s/?query=%s", s.queryURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build incident seed query: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query active incidents: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("query active incidents: clickhouse returned status %d", resp.StatusCode)
	}

	var result queryResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode active incidents: %w", err)
	}

	seeds := make([]Seed, 0, len(result.Data))
	for _, row := range result.Data {
		seeds = append(seeds, row.toSeed())
	}
	return seeds, nil
}

func (r seedRow) toSeed() Seed {
	return Seed{
		CheckID:      r.CheckID,
		IncidentID:   r.IncidentID,
		State:        monitor.IncidentLifecycleState(r.State),
		Severity:     monitor.IncidentSeverity(r.Severity),
		StartedAt:    parseClickHouseTime(r.StartedAt),
		LastEventAt:  parseClickHouseTime(r.LastEventAt),
		ResolvedAt:   parseClickHouseTime(r.ResolvedAt),
		FailureCount: r.FailureCount,
		LastStatus:   monitor.Status(r.LastStatus),
		ReasonCode:   monitor.ReasonCode(r.ReasonCode),
		StatusCode:   r.StatusCode,
	}
}

func parseClickHouseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	if t, err := time.Parse("2006-01-02 15:04:05.999", raw); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t
	}
	return time.Time{}
}

// PersistSnapshot enqueues one incident lifecycle snapshot for insertion.
func (s *Store) PersistSnapshot(row monitor.IncidentSnapshotRow) error {
	return s.writer.EnqueueRows([]interface{}{row})
}
