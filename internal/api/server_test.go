package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JCampos05/BackendSolargy/internal/storage"
)

func newTestServer(t *testing.T) (*Server, *storage.Database) {
	t.Helper()

	db, err := storage.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, db.SeedTimezones())
	t.Cleanup(func() { db.Close() })

	return NewServer(ServerConfig{Database: db}), db
}

func doRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestDeviceStatsEndpoint(t *testing.T) {
	server, db := newTestServer(t)
	require.NoError(t, db.CreateDevice(&storage.Device{
		ID: "dev1", Name: "Roof Panel", TimezoneID: storage.TimezoneUTC, Active: true,
	}))

	now := time.Now().UTC()
	samples := []struct {
		age        time.Duration
		power      float64
		voltage    float64
		irradiance float64
		energy     float64
	}{
		{3 * time.Hour, 100, 4.5, 400, 2.0},
		{2 * time.Hour, 300, 5.0, 800, 2.3},
		{1 * time.Hour, 200, 4.8, 600, 2.5},
	}
	for _, s := range samples {
		ts := now.Add(-s.age)
		require.NoError(t, db.CreateReading(&storage.Reading{
			DeviceID:          "dev1",
			DeviceMillis:      ts.UnixMilli(),
			TimestampUTC:      ts,
			Voltage:           s.voltage,
			Power:             s.power,
			Irradiance:        s.irradiance,
			EnergyAccumulated: s.energy,
		}))
	}
	// Outside the default 7-day period, must not contribute.
	old := now.AddDate(0, 0, -10)
	require.NoError(t, db.CreateReading(&storage.Reading{
		DeviceID: "dev1", DeviceMillis: old.UnixMilli(), TimestampUTC: old, Power: 9999,
	}))

	w := doRequest(t, server, http.MethodGet, "/api/v1/devices/dev1/stats", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Stats struct {
			Period struct {
				Days          int `json:"days"`
				TotalReadings int `json:"total_readings"`
			} `json:"period"`
			Power      measurementStats `json:"power"`
			Voltage    measurementStats `json:"voltage"`
			Irradiance measurementStats `json:"irradiance"`
			Energy     struct {
				Accumulated float64 `json:"accumulated"`
				Unit        string  `json:"unit"`
			} `json:"energy"`
		} `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Equal(t, 7, resp.Stats.Period.Days)
	assert.Equal(t, 3, resp.Stats.Period.TotalReadings)

	assert.InDelta(t, 300, resp.Stats.Power.Max, 1e-9)
	assert.InDelta(t, 100, resp.Stats.Power.Min, 1e-9)
	assert.InDelta(t, 200, resp.Stats.Power.Avg, 1e-9)
	assert.InDelta(t, 200, resp.Stats.Power.Current, 1e-9)

	assert.InDelta(t, 5.0, resp.Stats.Voltage.Max, 1e-9)
	assert.InDelta(t, 4.5, resp.Stats.Voltage.Min, 1e-9)
	assert.InDelta(t, 4.8, resp.Stats.Voltage.Current, 1e-9)

	assert.InDelta(t, 800, resp.Stats.Irradiance.Max, 1e-9)
	assert.InDelta(t, 600, resp.Stats.Irradiance.Current, 1e-9)

	assert.InDelta(t, 2.5, resp.Stats.Energy.Accumulated, 1e-9)
	assert.Equal(t, "Wh", resp.Stats.Energy.Unit)
}

func TestDeviceStatsUnknownDevice(t *testing.T) {
	server, _ := newTestServer(t)

	w := doRequest(t, server, http.MethodGet, "/api/v1/devices/ghost/stats", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeviceStatsNoReadings(t *testing.T) {
	server, db := newTestServer(t)
	require.NoError(t, db.CreateDevice(&storage.Device{
		ID: "dev1", Name: "Roof Panel", TimezoneID: storage.TimezoneUTC, Active: true,
	}))

	w := doRequest(t, server, http.MethodGet, "/api/v1/devices/dev1/stats", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Nil(t, resp["stats"])
	assert.NotEmpty(t, resp["message"])
}

func TestCreateAndGetEvent(t *testing.T) {
	server, _ := newTestServer(t)

	body := `{"device_id":"dev1","type":"MAINTENANCE","title":"Panel cleaned"}`
	w := doRequest(t, server, http.MethodPost, "/api/v1/events", body)
	require.Equal(t, http.StatusCreated, w.Code)

	var created storage.Event
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.NotZero(t, created.ID)
	assert.Equal(t, storage.SeverityInfo, created.Severity) // default

	w = doRequest(t, server, http.MethodGet, fmt.Sprintf("/api/v1/events/%d", created.ID), "")
	require.Equal(t, http.StatusOK, w.Code)

	var fetched storage.Event
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fetched))
	assert.Equal(t, created.ID, fetched.ID)
	assert.Equal(t, "Panel cleaned", fetched.Title)

	w = doRequest(t, server, http.MethodGet, "/api/v1/events/99999", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateEventRejectsBadInput(t *testing.T) {
	server, _ := newTestServer(t)

	// Missing required title.
	w := doRequest(t, server, http.MethodPost, "/api/v1/events", `{"type":"MAINTENANCE"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Unknown severity.
	w = doRequest(t, server, http.MethodPost, "/api/v1/events",
		`{"type":"MAINTENANCE","title":"x","severity":"FATAL"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEventsSummaryEndpoint(t *testing.T) {
	server, db := newTestServer(t)

	seed := []storage.Event{
		{DeviceID: "dev1", Type: "A", Severity: storage.SeverityInfo, Title: "a"},
		{DeviceID: "dev1", Type: "B", Severity: storage.SeverityWarning, Title: "b"},
		{DeviceID: "dev2", Type: "C", Severity: storage.SeverityCritical, Title: "c"},
	}
	for i := range seed {
		require.NoError(t, db.CreateEvent(&seed[i]))
	}
	_, err := db.ResolveEvent(seed[0].ID)
	require.NoError(t, err)

	w := doRequest(t, server, http.MethodGet, "/api/v1/events/summary", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Summary struct {
			Total      int            `json:"total"`
			BySeverity map[string]int `json:"by_severity"`
			Resolved   int            `json:"resolved"`
			Unresolved int            `json:"unresolved"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Equal(t, 3, resp.Summary.Total)
	assert.Equal(t, 1, resp.Summary.BySeverity[storage.SeverityInfo])
	assert.Equal(t, 1, resp.Summary.BySeverity[storage.SeverityWarning])
	assert.Equal(t, 1, resp.Summary.BySeverity[storage.SeverityCritical])
	assert.Equal(t, 1, resp.Summary.Resolved)
	assert.Equal(t, 2, resp.Summary.Unresolved)

	// Device filter narrows the count.
	w = doRequest(t, server, http.MethodGet, "/api/v1/events/summary?deviceId=dev2", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Summary.Total)
}

func TestCriticalEventsEndpoint(t *testing.T) {
	server, db := newTestServer(t)

	critical := storage.Event{DeviceID: "dev1", Type: "FAULT", Severity: storage.SeverityCritical, Title: "inverter fault"}
	resolved := storage.Event{DeviceID: "dev1", Type: "FAULT", Severity: storage.SeverityCritical, Title: "old fault"}
	warning := storage.Event{DeviceID: "dev1", Type: "X", Severity: storage.SeverityWarning, Title: "warn"}
	for _, e := range []*storage.Event{&critical, &resolved, &warning} {
		require.NoError(t, db.CreateEvent(e))
	}
	_, err := db.ResolveEvent(resolved.ID)
	require.NoError(t, err)

	w := doRequest(t, server, http.MethodGet, "/api/v1/events/critical", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Count  int             `json:"count"`
		Events []storage.Event `json:"events"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, critical.ID, resp.Events[0].ID)
	assert.Equal(t, storage.SeverityCritical, resp.Events[0].Severity)
}
