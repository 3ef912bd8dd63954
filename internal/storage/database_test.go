package storage

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()

	db, err := NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return db
}

func TestSeedTimezonesIdempotent(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, db.SeedTimezones())
	require.NoError(t, db.SeedTimezones())

	zones, err := db.Timezones()
	require.NoError(t, err)
	assert.Len(t, zones, 25)

	utc, err := db.TimezoneByID(TimezoneUTC)
	require.NoError(t, err)
	assert.Equal(t, "UTC", utc.Name)
	assert.Zero(t, utc.OffsetUTC)
}

func TestDetectTimezoneID(t *testing.T) {
	cases := []struct {
		longitude float64
		want      uint8
	}{
		{0, 13},        // Greenwich
		{-99.1, 6},     // Mexico City → UTC-7 by pure longitude math
		{-90, 7},       // UTC-6
		{139.7, 22},    // Tokyo
		{7.5, 14},      // rounds up to UTC+1
		{7.4, 13},      // rounds down to UTC
		{-179.99, 1},  // UTC-12, edge of the seeded range
		{200, 7},      // out of range falls back
		{-10000.0, 7}, // nonsense falls back
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, DetectTimezoneID(tc.longitude), "longitude %v", tc.longitude)
	}
}

func TestSaveDailyStatisticUpsert(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.SeedTimezones())
	require.NoError(t, db.CreateDevice(&Device{ID: "dev1", TimezoneID: TimezoneUTC, Active: true}))

	first := &DailyStatistic{
		DeviceID:     "dev1",
		Date:         "2024-01-14",
		TotalEnergy:  1.5,
		PeakPower:    300,
		ReadingCount: 10,
	}
	created, err := db.SaveDailyStatistic(first)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotZero(t, first.ID)

	// Second save for the same (device, date) replaces in place.
	second := &DailyStatistic{
		DeviceID:     "dev1",
		Date:         "2024-01-14",
		TotalEnergy:  2.0,
		PeakPower:    450,
		ReadingCount: 20,
	}
	created, err = db.SaveDailyStatistic(second)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	rows, err := db.DailyStatistics("dev1", "", "")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.InDelta(t, 2.0, rows[0].TotalEnergy, 1e-9)
	assert.Equal(t, uint(20), rows[0].ReadingCount)

	// A different date gets its own row.
	created, err = db.SaveDailyStatistic(&DailyStatistic{DeviceID: "dev1", Date: "2024-01-15"})
	require.NoError(t, err)
	assert.True(t, created)
}

func TestSaveDailyStatisticConcurrentFirstWrite(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.SeedTimezones())
	require.NoError(t, db.CreateDevice(&Device{ID: "dev1", TimezoneID: TimezoneUTC, Active: true}))

	// All writers target the same fresh (device, date). The single-statement
	// upsert means none of them may fail on the unique index.
	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = db.SaveDailyStatistic(&DailyStatistic{
				DeviceID:     "dev1",
				Date:         "2024-01-14",
				TotalEnergy:  float64(i),
				ReadingCount: uint(i),
			})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "writer %d", i)
	}

	rows, err := db.DailyStatistics("dev1", "", "")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestReadingsSince(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.SeedTimezones())
	require.NoError(t, db.CreateDevice(&Device{ID: "dev1", TimezoneID: TimezoneUTC, Active: true}))

	now := time.Now().UTC()
	for _, age := range []time.Duration{48 * time.Hour, 2 * time.Hour, time.Hour} {
		ts := now.Add(-age)
		require.NoError(t, db.CreateReading(&Reading{
			DeviceID: "dev1", DeviceMillis: ts.UnixMilli(), TimestampUTC: ts,
		}))
	}

	readings, err := db.ReadingsSince("dev1", now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, readings, 2)
	assert.True(t, readings[0].TimestampUTC.Before(readings[1].TimestampUTC))
}

func TestReadingsInRangeBounds(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.SeedTimezones())
	require.NoError(t, db.CreateDevice(&Device{ID: "dev1", TimezoneID: TimezoneUTC, Active: true}))

	times := []time.Time{
		time.Date(2024, 1, 14, 5, 59, 59, 999000000, time.UTC),
		time.Date(2024, 1, 14, 6, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 15, 5, 59, 59, 999000000, time.UTC),
		time.Date(2024, 1, 15, 6, 0, 0, 0, time.UTC),
	}
	for i, ts := range times {
		require.NoError(t, db.CreateReading(&Reading{
			DeviceID:     "dev1",
			DeviceMillis: ts.UnixMilli(),
			TimestampUTC: ts,
			Power:        float64(100 * (i + 1)),
		}))
	}

	from := time.Date(2024, 1, 14, 6, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 15, 5, 59, 59, 999000000, time.UTC)
	readings, err := db.ReadingsInRange("dev1", from, to)
	require.NoError(t, err)
	require.Len(t, readings, 2)

	// Both endpoints included, ascending order.
	assert.InDelta(t, 200, readings[0].Power, 1e-9)
	assert.InDelta(t, 300, readings[1].Power, 1e-9)
}

func TestTouchDeviceBookkeeping(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.SeedTimezones())
	require.NoError(t, db.CreateDevice(&Device{ID: "dev1", TimezoneID: TimezoneUTC, Active: true}))

	now := time.Now().UTC()
	require.NoError(t, db.TouchDevice("dev1", now))
	require.NoError(t, db.TouchDevice("dev1", now.Add(time.Minute)))

	device, err := db.DeviceByID("dev1")
	require.NoError(t, err)
	assert.Equal(t, uint(2), device.TotalReadings)
	require.NotNil(t, device.LastReadingAt)
	assert.WithinDuration(t, now.Add(time.Minute), *device.LastReadingAt, time.Second)
}
