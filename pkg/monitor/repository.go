package monitor

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/last-emo-boy/uptime-monitor/pkg/database"
)

// checkRow is the sqlx scan target for the checks table; JSON-array columns
// are decoded into their Check equivalents after the query returns.
type checkRow struct {
	ID                  string    `db:"id"`
	SiteID              string    `db:"site_id"`
	DashboardID         string    `db:"dashboard_id"`
	Name                string    `db:"name"`
	URL                 string    `db:"url"`
	IntervalSeconds     int       `db:"interval_seconds"`
	TimeoutMillis       int       `db:"timeout_millis"`
	HTTPMethod          string    `db:"http_method"`
	RequestHeaders      string    `db:"request_headers"`
	AcceptedStatusCodes string    `db:"accepted_status_codes"`
	CheckSSLErrors      bool      `db:"check_ssl_errors"`
	AlertEnabled        bool      `db:"alert_enabled"`
	AlertOnDown         bool      `db:"alert_on_down"`
	AlertOnRecovery     bool      `db:"alert_on_recovery"`
	AlertOnSSLExpiry    bool      `db:"alert_on_ssl_expiry"`
	SSLExpiryDays       int       `db:"ssl_expiry_days"`
	FailureThreshold    int       `db:"failure_threshold"`
	AlertRecipients     string    `db:"alert_recipients"`
	PushUserKey         string    `db:"push_user_key"`
	UpdatedAt           time.Time `db:"updated_at"`
}

func (r checkRow) toCheck() (*Check, error) {
	var headers []RequestHeader
	if r.RequestHeaders != "" {
		if err := json.Unmarshal([]byte(r.RequestHeaders), &headers); err != nil {
			return nil, fmt.Errorf("decode request_headers for check %s: %w", r.ID, err)
		}
	}

	var rawCodes []interface{}
	if r.AcceptedStatusCodes != "" {
		if err := json.Unmarshal([]byte(r.AcceptedStatusCodes), &rawCodes); err != nil {
			return nil, fmt.Errorf("decode accepted_status_codes for check %s: %w", r.ID, err)
		}
	}
	codes := make([]StatusCodeValue, 0, len(rawCodes))
	for _, raw := range rawCodes {
		if parsed, ok := ParseStatusCodeValue(raw); ok {
			codes = append(codes, parsed)
		}
	}

	var recipients []string
	if r.AlertRecipients != "" {
		if err := json.Unmarshal([]byte(r.AlertRecipients), &recipients); err != nil {
			return nil, fmt.Errorf("decode alert_recipients for check %s: %w", r.ID, err)
		}
	}

	return &Check{
		ID:                  r.ID,
		SiteID:              r.SiteID,
		DashboardID:         r.DashboardID,
		Name:                r.Name,
		URL:                 r.URL,
		IntervalSeconds:     r.IntervalSeconds,
		TimeoutMillis:       r.TimeoutMillis,
		UpdatedAt:           r.UpdatedAt,
		HTTPMethod:          ParseHTTPMethod(r.HTTPMethod),
		RequestHeaders:      headers,
		AcceptedStatusCodes: codes,
		CheckSSLErrors:      r.CheckSSLErrors,
		Alert: AlertConfig{
			Enabled:          r.AlertEnabled,
			OnDown:           r.AlertOnDown,
			OnRecovery:       r.AlertOnRecovery,
			OnSSLExpiry:      r.AlertOnSSLExpiry,
			SSLExpiryDays:    r.SSLExpiryDays,
			FailureThreshold: uint16(r.FailureThreshold),
			Recipients:       recipients,
			PushUserKey:      r.PushUserKey,
		},
	}, nil
}

// CheckRepository loads monitor checks from the control-plane database. It
// mirrors the shape of the teacher's other database/*Repository types: a
// thin sqlx wrapper returning domain structs, not rows.
type CheckRepository struct {
	db *database.DB
}

// NewCheckRepository builds a CheckRepository bound to db.
func NewCheckRepository(db *database.DB) *CheckRepository {
	return &CheckRepository{db: db}
}

const checkColumns = `
	id, site_id, dashboard_id, name, url, interval_seconds, timeout_millis,
	http_method, request_headers, accepted_status_codes, check_ssl_errors,
	alert_enabled, alert_on_down, alert_on_recovery, alert_on_ssl_expiry,
	ssl_expiry_days, failure_threshold, alert_recipients, push_user_key, updated_at
`

// LoadAll returns every check row, used for the cache's full refresh.
func (r *CheckRepository) LoadAll() (map[string]*Check, error) {
	var rows []checkRow
	query := "SELECT " + checkColumns + " FROM checks"
	if err := r.db.Select(&rows, query); err != nil {
		return nil, fmt.Errorf("load all checks: %w", err)
	}
	return rowsToMap(rows)
}

// LoadUpdatedSince returns only rows whose updated_at is at or after
// watermark, used for the cache's incremental refresh.
func (r *CheckRepository) LoadUpdatedSince(watermark time.Time) (map[string]*Check, error) {
	var rows []checkRow
	query := "SELECT " + checkColumns + " FROM checks WHERE updated_at >= ?"
	if err := r.db.Select(&rows, query, watermark); err != nil {
		return nil, fmt.Errorf("load checks updated since %s: %w", watermark, err)
	}
	return rowsToMap(rows)
}

func rowsToMap(rows []checkRow) (map[string]*Check, error) {
	out := make(map[string]*Check, len(rows))
	for _, row := range rows {
		check, err := row.toCheck()
		if err != nil {
			return nil, err
		}
		out[check.ID] = check
	}
	return out, nil
}
