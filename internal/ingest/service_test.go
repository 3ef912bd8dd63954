package ingest

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JCampos05/BackendSolargy/internal/stats"
	"github.com/JCampos05/BackendSolargy/internal/storage"
)

func newTestDB(t *testing.T) *storage.Database {
	t.Helper()

	db, err := storage.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, db.SeedTimezones())
	t.Cleanup(func() { db.Close() })

	return db
}

func validPayload(deviceID string, at time.Time) *Payload {
	return &Payload{
		DeviceID:          deviceID,
		Timestamp:         at.UnixMilli(),
		Voltage:           4.8,
		Current:           45.0,
		Power:             216.0,
		SolarRadiation:    52000,
		Irradiance:        430,
		EnergyAccumulated: 2.4,
		UptimeSeconds:     7322,
	}
}

func TestProcessAutoRegistersDevice(t *testing.T) {
	db := newTestDB(t)
	service := NewService(db, stats.NewEngine(db, stats.Config{}), nil)

	at := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	ack, err := service.Process(validPayload("solar-007", at))
	require.NoError(t, err)

	assert.Equal(t, "solar-007", ack.DeviceID)
	assert.Equal(t, at.UnixMilli(), ack.DeviceMillis)
	assert.Equal(t, "2h 2m 2s", ack.UptimeFormatted)
	assert.InDelta(t, 0.216, ack.PowerWatts, 1e-9)
	assert.InDelta(t, 0.045, ack.CurrentAmps, 1e-9)

	device, err := db.DeviceByID("solar-007")
	require.NoError(t, err)
	assert.Equal(t, storage.TimezoneUTC, device.TimezoneID)
	assert.InDelta(t, 5.0, device.PanelNominalVoltage, 1e-9)
	assert.InDelta(t, 800.0, device.PanelNominalPower, 1e-9)
	assert.True(t, device.Active)

	events, err := db.Events(storage.EventFilter{
		DeviceID: "solar-007",
		Type:     storage.EventDeviceRegistered,
	})
	require.NoError(t, err)
	assert.Len(t, events, 1)
	assert.Equal(t, storage.SeverityInfo, events[0].Severity)
}

func TestProcessSecondReadingNoReRegistration(t *testing.T) {
	db := newTestDB(t)
	service := NewService(db, stats.NewEngine(db, stats.Config{}), nil)

	at := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	_, err := service.Process(validPayload("solar-007", at))
	require.NoError(t, err)
	_, err = service.Process(validPayload("solar-007", at.Add(time.Minute)))
	require.NoError(t, err)

	events, err := db.Events(storage.EventFilter{
		DeviceID: "solar-007",
		Type:     storage.EventDeviceRegistered,
	})
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestProcessUpdatesDailyRollup(t *testing.T) {
	db := newTestDB(t)
	service := NewService(db, stats.NewEngine(db, stats.Config{}), nil)

	at := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	_, err := service.Process(validPayload("solar-007", at))
	require.NoError(t, err)

	stat, err := db.DailyStatistic("solar-007", "2024-01-15")
	require.NoError(t, err)
	assert.Equal(t, uint(1), stat.ReadingCount)
	assert.InDelta(t, 216.0, stat.PeakPower, 1e-9)
}

// failingAggregator stands in for a broken stats engine.
type failingAggregator struct{}

func (failingAggregator) UpdateForReading(string, *storage.Reading) (*storage.DailyStatistic, error) {
	return nil, errors.New("aggregation exploded")
}

// panickingAggregator goes one step further.
type panickingAggregator struct{}

func (panickingAggregator) UpdateForReading(string, *storage.Reading) (*storage.DailyStatistic, error) {
	panic("aggregation panicked")
}

func TestProcessSurvivesAggregatorFailure(t *testing.T) {
	db := newTestDB(t)
	service := NewService(db, failingAggregator{}, nil)

	at := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	ack, err := service.Process(validPayload("solar-007", at))
	require.NoError(t, err)
	require.NotNil(t, ack.Reading)
	assert.NotZero(t, ack.Reading.ID)

	// The raw reading is durable even though aggregation failed.
	latest, err := db.LatestReading("solar-007")
	require.NoError(t, err)
	assert.Equal(t, at.UnixMilli(), latest.DeviceMillis)

	// No rollup row was written.
	_, err = db.DailyStatistic("solar-007", "2024-01-15")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestProcessSurvivesAggregatorPanic(t *testing.T) {
	db := newTestDB(t)
	service := NewService(db, panickingAggregator{}, nil)

	at := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	_, err := service.Process(validPayload("solar-007", at))
	require.NoError(t, err)

	latest, err := db.LatestReading("solar-007")
	require.NoError(t, err)
	assert.Equal(t, "solar-007", latest.DeviceID)
}

func TestProcessRejectsInvalidPayloads(t *testing.T) {
	db := newTestDB(t)
	service := NewService(db, stats.NewEngine(db, stats.Config{}), nil)

	cases := []struct {
		name   string
		mutate func(*Payload)
	}{
		{"missing device id", func(p *Payload) { p.DeviceID = "" }},
		{"zero timestamp", func(p *Payload) { p.Timestamp = 0 }},
		{"negative timestamp", func(p *Payload) { p.Timestamp = -5 }},
		{"negative power", func(p *Payload) { p.Power = -1 }},
		{"negative irradiance", func(p *Payload) { p.Irradiance = -0.5 }},
		{"negative energy", func(p *Payload) { p.EnergyAccumulated = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := validPayload("solar-007", time.Now())
			tc.mutate(p)
			_, err := service.Process(p)
			assert.Error(t, err)
		})
	}

	// Nothing was stored.
	_, err := db.LatestReading("solar-007")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestProcessRecordsReconnectEvent(t *testing.T) {
	db := newTestDB(t)
	service := NewService(db, stats.NewEngine(db, stats.Config{}), nil)

	longAgo := time.Now().Add(-30 * time.Minute)
	require.NoError(t, db.CreateDevice(&storage.Device{
		ID:            "solar-007",
		Name:          "Roof Panel",
		TimezoneID:    storage.TimezoneUTC,
		Active:        true,
		LastReadingAt: &longAgo,
	}))

	_, err := service.Process(validPayload("solar-007", time.Now()))
	require.NoError(t, err)

	events, err := db.Events(storage.EventFilter{
		DeviceID: "solar-007",
		Type:     storage.EventDeviceOnline,
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, storage.SeverityInfo, events[0].Severity)
}

func TestProcessNoReconnectEventWithinGap(t *testing.T) {
	db := newTestDB(t)
	service := NewService(db, stats.NewEngine(db, stats.Config{}), nil)

	recently := time.Now().Add(-time.Minute)
	require.NoError(t, db.CreateDevice(&storage.Device{
		ID:            "solar-007",
		TimezoneID:    storage.TimezoneUTC,
		Active:        true,
		LastReadingAt: &recently,
	}))

	_, err := service.Process(validPayload("solar-007", time.Now()))
	require.NoError(t, err)

	events, err := db.Events(storage.EventFilter{
		DeviceID: "solar-007",
		Type:     storage.EventDeviceOnline,
	})
	require.NoError(t, err)
	assert.Empty(t, events)
}
