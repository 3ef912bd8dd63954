package storage

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// ErrNotFound is returned by point lookups when no row matches.
var ErrNotFound = errors.New("record not found")

type Database struct {
	db *gorm.DB
}

func NewDatabase(path string) (*Database, error) {
	// Concurrent writers wait for the file lock instead of failing with
	// SQLITE_BUSY.
	db, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&Timezone{}, &Device{}, &Reading{}, &DailyStatistic{}, &Event{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Database{db: db}, nil
}

// ---- Devices ----

// DeviceByID loads a device with its timezone record. Returns ErrNotFound
// for unknown ids.
func (d *Database) DeviceByID(id string) (*Device, error) {
	var device Device
	result := d.db.Preload("Timezone").First(&device, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, result.Error
	}
	return &device, nil
}

func (d *Database) CreateDevice(device *Device) error {
	if err := d.db.Create(device).Error; err != nil {
		return err
	}
	// Reload so the timezone association is populated for callers.
	return d.db.Preload("Timezone").First(device, "id = ?", device.ID).Error
}

func (d *Database) UpdateDevice(device *Device) error {
	return d.db.Save(device).Error
}

func (d *Database) DeleteDevice(id string) error {
	result := d.db.Delete(&Device{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (d *Database) Devices(activeOnly bool) ([]Device, error) {
	var devices []Device
	q := d.db.Preload("Timezone").Order("created_at desc")
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	if err := q.Find(&devices).Error; err != nil {
		return nil, err
	}
	return devices, nil
}

// ActiveDevices lists every device with the active flag set, timezone
// preloaded, in stable id order for batch regeneration.
func (d *Database) ActiveDevices() ([]Device, error) {
	var devices []Device
	result := d.db.Preload("Timezone").Where("active = ?", true).Order("id asc").Find(&devices)
	if result.Error != nil {
		return nil, result.Error
	}
	return devices, nil
}

// OfflineDevices lists active devices whose last reading is older than the
// threshold (devices that never reported are skipped).
func (d *Database) OfflineDevices(olderThan time.Duration) ([]Device, error) {
	cutoff := time.Now().Add(-olderThan)
	var devices []Device
	result := d.db.Where("active = ? AND last_reading_at IS NOT NULL AND last_reading_at < ?", true, cutoff).
		Find(&devices)
	if result.Error != nil {
		return nil, result.Error
	}
	return devices, nil
}

// TouchDevice records a successful reading on the device's bookkeeping.
func (d *Database) TouchDevice(id string, at time.Time) error {
	return d.db.Model(&Device{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_reading_at": at,
			"total_readings":  gorm.Expr("total_readings + 1"),
		}).Error
}

// ---- Readings ----

func (d *Database) CreateReading(reading *Reading) error {
	return d.db.Create(reading).Error
}

func (d *Database) LatestReading(deviceID string) (*Reading, error) {
	var reading Reading
	q := d.db.Order("timestamp_utc desc")
	if deviceID != "" {
		q = q.Where("device_id = ?", deviceID)
	}
	result := q.First(&reading)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, result.Error
	}
	return &reading, nil
}

func (d *Database) ReadingsWithLimit(deviceID string, limit int) ([]Reading, error) {
	var readings []Reading
	q := d.db.Order("timestamp_utc desc").Limit(limit)
	if deviceID != "" {
		q = q.Where("device_id = ?", deviceID)
	}
	if err := q.Find(&readings).Error; err != nil {
		return nil, err
	}
	return readings, nil
}

// ReadingsInRange returns a device's readings with from <= timestamp <= to,
// ascending. Both bounds are inclusive, which keeps the local-day window's
// .999 millisecond endpoint inside the day it labels.
func (d *Database) ReadingsInRange(deviceID string, from, to time.Time) ([]Reading, error) {
	var readings []Reading
	result := d.db.Where("device_id = ? AND timestamp_utc BETWEEN ? AND ?", deviceID, from, to).
		Order("timestamp_utc asc").
		Find(&readings)
	if result.Error != nil {
		return nil, result.Error
	}
	return readings, nil
}

// ReadingsSince returns a device's readings from the cutoff onward,
// ascending, for trailing-period summaries.
func (d *Database) ReadingsSince(deviceID string, since time.Time) ([]Reading, error) {
	var readings []Reading
	result := d.db.Where("device_id = ? AND timestamp_utc >= ?", deviceID, since).
		Order("timestamp_utc asc").
		Find(&readings)
	if result.Error != nil {
		return nil, result.Error
	}
	return readings, nil
}

// ---- Daily statistics ----

// SaveDailyStatistic upserts the rollup for (DeviceID, Date): it creates
// the row when absent and otherwise replaces every computed field in
// place. The write is a single ON CONFLICT statement on the unique index,
// so concurrent recomputes of the same day are last-write-wins rather than
// a race between find and create. Returns whether a new row was created.
func (d *Database) SaveDailyStatistic(stat *DailyStatistic) (bool, error) {
	var count int64
	if err := d.db.Model(&DailyStatistic{}).
		Where("device_id = ? AND date = ?", stat.DeviceID, stat.Date).
		Count(&count).Error; err != nil {
		return false, err
	}

	err := d.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "device_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"total_energy", "peak_power", "peak_power_time", "avg_power",
			"peak_radiation", "avg_radiation", "peak_irradiance", "avg_irradiance",
			"useful_light_minutes", "panel_efficiency", "capacity_factor",
			"reading_count", "updated_at",
		}),
	}).Create(stat).Error
	if err != nil {
		return false, err
	}

	// LastInsertId is not reliable on the conflict path; reload the row's
	// identity so callers see the real ID and original CreatedAt.
	var saved DailyStatistic
	if err := d.db.Where("device_id = ? AND date = ?", stat.DeviceID, stat.Date).First(&saved).Error; err != nil {
		return false, err
	}
	stat.ID = saved.ID
	stat.CreatedAt = saved.CreatedAt

	return count == 0, nil
}

func (d *Database) DailyStatistic(deviceID, date string) (*DailyStatistic, error) {
	var stat DailyStatistic
	result := d.db.Where("device_id = ? AND date = ?", deviceID, date).First(&stat)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, result.Error
	}
	return &stat, nil
}

// DailyStatistics returns a device's rollups, newest first, optionally
// bounded by start/end dates (YYYY-MM-DD, inclusive).
func (d *Database) DailyStatistics(deviceID, startDate, endDate string) ([]DailyStatistic, error) {
	q := d.db.Where("device_id = ?", deviceID)
	if startDate != "" && endDate != "" {
		q = q.Where("date BETWEEN ? AND ?", startDate, endDate)
	} else if startDate != "" {
		q = q.Where("date >= ?", startDate)
	}

	var stats []DailyStatistic
	if err := q.Order("date desc").Find(&stats).Error; err != nil {
		return nil, err
	}
	return stats, nil
}

// DailyStatisticsForDate returns every device's rollup for one local date,
// highest daily energy first.
func (d *Database) DailyStatisticsForDate(date string) ([]DailyStatistic, error) {
	var stats []DailyStatistic
	result := d.db.Where("date = ?", date).Order("total_energy desc").Find(&stats)
	if result.Error != nil {
		return nil, result.Error
	}
	return stats, nil
}

// ---- Timezones ----

func (d *Database) Timezones() ([]Timezone, error) {
	var zones []Timezone
	if err := d.db.Order("offset_utc asc").Find(&zones).Error; err != nil {
		return nil, err
	}
	return zones, nil
}

func (d *Database) TimezoneByID(id uint8) (*Timezone, error) {
	var zone Timezone
	result := d.db.First(&zone, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, result.Error
	}
	return &zone, nil
}

// ---- Events ----

func (d *Database) CreateEvent(event *Event) error {
	return d.db.Create(event).Error
}

type EventFilter struct {
	DeviceID string
	Type     string
	Severity string
	Resolved *bool
	Limit    int
}

func (d *Database) Events(filter EventFilter) ([]Event, error) {
	q := d.db.Order("created_at desc")
	if filter.DeviceID != "" {
		q = q.Where("device_id = ?", filter.DeviceID)
	}
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	if filter.Severity != "" {
		q = q.Where("severity = ?", filter.Severity)
	}
	if filter.Resolved != nil {
		q = q.Where("resolved = ?", *filter.Resolved)
	}
	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	var events []Event
	if err := q.Limit(limit).Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (d *Database) EventByID(id uint64) (*Event, error) {
	var event Event
	if err := d.db.First(&event, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &event, nil
}

// EventsSince returns events created at or after the cutoff, optionally
// for one device, for trailing-period summaries.
func (d *Database) EventsSince(deviceID string, since time.Time) ([]Event, error) {
	q := d.db.Where("created_at >= ?", since).Order("created_at desc")
	if deviceID != "" {
		q = q.Where("device_id = ?", deviceID)
	}

	var events []Event
	if err := q.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// CriticalEvents returns unresolved critical events created at or after
// the cutoff, newest first.
func (d *Database) CriticalEvents(since time.Time) ([]Event, error) {
	var events []Event
	result := d.db.Where("severity = ? AND resolved = ? AND created_at >= ?",
		SeverityCritical, false, since).
		Order("created_at desc").
		Find(&events)
	if result.Error != nil {
		return nil, result.Error
	}
	return events, nil
}

func (d *Database) ResolveEvent(id uint64) (*Event, error) {
	var event Event
	if err := d.db.First(&event, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if event.Resolved {
		return &event, nil
	}

	now := time.Now()
	event.Resolved = true
	event.ResolvedAt = &now
	if err := d.db.Save(&event).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
