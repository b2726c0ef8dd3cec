package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/last-emo-boy/uptime-monitor/pkg/auth"
	"github.com/last-emo-boy/uptime-monitor/pkg/config"
	"github.com/last-emo-boy/uptime-monitor/pkg/monitor"
	"github.com/last-emo-boy/uptime-monitor/pkg/monitor/incident"
	"github.com/last-emo-boy/uptime-monitor/pkg/monitor/notify"
	"github.com/last-emo-boy/uptime-monitor/pkg/monitor/orchestrator"
)

type fakeDataSource struct {
	all map[string]*monitor.Check
}

func (f *fakeDataSource) LoadAll() (map[string]*monitor.Check, error) {
	return f.all, nil
}

func (f *fakeDataSource) LoadUpdatedSince(time.Time) (map[string]*monitor.Check, error) {
	return map[string]*monitor.Check{}, nil
}

type fakeIncidentStore struct{}

func (fakeIncidentStore) LoadActiveIncidents(context.Context) ([]incident.Seed, error) {
	return nil, nil
}

func (fakeIncidentStore) PersistSnapshot(monitor.IncidentSnapshotRow) error { return nil }

type fakeDispatcher struct{}

func (fakeDispatcher) Dispatch(context.Context, notify.AlertContext, notify.Alert) bool { return false }

func newTestServer(t *testing.T) (*Server, *fakeDataSource) {
	t.Helper()

	ds := &fakeDataSource{all: map[string]*monitor.Check{
		"c1": {ID: "c1", SiteID: "s1", Name: "example", URL: "https://example.com"},
	}}
	cache, err := monitor.NewMonitorCache(ds, monitor.DefaultRefreshConfig())
	require.NoError(t, err)

	orch := orchestrator.New(fakeDispatcher{}, fakeIncidentStore{})
	require.NoError(t, orch.WarmFromStore(context.Background()))

	authSvc, err := auth.NewAuth(&config.ConsoleConfig{Auth: config.AuthConfig{JWT: config.JWTConfig{Secret: "test-secret", ExpiresHours: 1}}})
	require.NoError(t, err)

	srv := NewServer(Deps{
		Cache:        cache,
		Orchestrator: orch,
		Auth:         authSvc,
		Port:         0,
		StartedAt:    time.Now(),
	})
	return srv, ds
}

func (s *Server) router() http.Handler {
	return s.httpServer.Handler
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestStatus(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	rec := httptest.NewRecorder()
	srv.router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["healthy"])
	assert.EqualValues(t, 1, body["checks"])
}

func TestIncidentsEmptyWhenNoneOngoing(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/incidents", nil)
	rec := httptest.NewRecorder()
	srv.router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, 0, body["total"])
}

func TestControlRefreshRequiresAuth(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/control/refresh", nil)
	rec := httptest.NewRecorder()
	srv.router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestControlRefreshWithValidToken(t *testing.T) {
	srv, ds := newTestServer(t)

	authSvc, err := auth.NewAuth(&config.ConsoleConfig{Auth: config.AuthConfig{JWT: config.JWTConfig{Secret: "test-secret", ExpiresHours: 1}}})
	require.NoError(t, err)
	token, _, err := authSvc.GenerateToken(1, "admin", "admin")
	require.NoError(t, err)

	ds.all["c2"] = &monitor.Check{ID: "c2", SiteID: "s1", Name: "second", URL: "https://second.example.com"}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/control/refresh", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	srv.router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, 2, body["checks"])
}

func TestControlRefreshRejectsNonAdminRole(t *testing.T) {
	srv, _ := newTestServer(t)

	authSvc, err := auth.NewAuth(&config.ConsoleConfig{Auth: config.AuthConfig{JWT: config.JWTConfig{Secret: "test-secret", ExpiresHours: 1}}})
	require.NoError(t, err)
	token, _, err := authSvc.GenerateToken(2, "operator", "user")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/control/refresh", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	srv.router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
