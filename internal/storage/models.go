package storage

import "time"

// Timezone is a fixed UTC offset a device is pinned to. It is a value
// object (offset plus display names), not a tzdata zone: DST is not modeled.
type Timezone struct {
	ID          uint8   `gorm:"primaryKey" json:"id"`
	Name        string  `gorm:"size:50;uniqueIndex" json:"name"`
	OffsetUTC   float64 `json:"offset_utc"`
	DisplayName string  `gorm:"size:100" json:"display_name"`
}

type Device struct {
	ID       string `gorm:"primaryKey;size:50" json:"id"`
	Name     string `gorm:"size:100" json:"name"`
	Location string `gorm:"size:255" json:"location"`

	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`

	TimezoneID uint8     `gorm:"index" json:"timezone_id"`
	Timezone   *Timezone `gorm:"foreignKey:TimezoneID" json:"timezone,omitempty"`

	// Panel ratings
	PanelNominalVoltage float64 `json:"panel_nominal_voltage_v"`
	PanelMaxCurrent     float64 `json:"panel_max_current_ma"`
	PanelNominalPower   float64 `json:"panel_nominal_power_mw"`

	Active        bool       `gorm:"index" json:"active"`
	LastReadingAt *time.Time `gorm:"index" json:"last_reading_at"`
	TotalReadings uint       `json:"total_readings"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UTCOffset returns the device's fixed UTC offset in hours, 0 when no
// timezone record is attached.
func (d *Device) UTCOffset() float64 {
	if d.Timezone == nil {
		return 0
	}
	return d.Timezone.OffsetUTC
}

// Reading is one telemetry sample. Rows are immutable once created and
// ordered per device by TimestampUTC.
type Reading struct {
	ID       uint64 `gorm:"primaryKey" json:"id"`
	DeviceID string `gorm:"size:50;index:idx_device_timestamp" json:"device_id"`

	// DeviceMillis is the raw epoch-millisecond timestamp the device sent.
	DeviceMillis int64     `json:"device_millis"`
	TimestampUTC time.Time `gorm:"index:idx_device_timestamp;index" json:"timestamp_utc"`

	Voltage           float64 `json:"voltage_v"`
	Current           float64 `json:"current_ma"`
	Power             float64 `json:"power_mw"`
	SolarRadiation    float64 `json:"solar_radiation_lux"`
	Irradiance        float64 `json:"irradiance_wm2"`
	EnergyAccumulated float64 `json:"energy_accumulated_wh"`
	UptimeSeconds     uint    `json:"uptime_seconds"`

	Temperature    *float64 `json:"temperature_c"`
	Humidity       *float64 `json:"humidity_pct"`
	SignalStrength *int     `json:"signal_strength_dbm"`
	BatteryLevel   *float64 `json:"battery_level_pct"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// DailyStatistic is the rollup for one device on one local calendar day.
// The (DeviceID, Date) pair is unique; recomputation fully replaces the
// row's values from the day's reading window, it never merges.
type DailyStatistic struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	DeviceID string `gorm:"size:50;uniqueIndex:idx_device_date" json:"device_id"`
	// Date is the local calendar day, YYYY-MM-DD, no timezone attached.
	Date string `gorm:"size:10;uniqueIndex:idx_device_date;index" json:"date"`

	TotalEnergy   float64 `json:"total_energy_wh"`
	PeakPower     float64 `json:"peak_power_mw"`
	PeakPowerTime string  `gorm:"size:8" json:"peak_power_time"`
	AvgPower      float64 `json:"avg_power_mw"`

	PeakRadiation  float64 `json:"peak_radiation_lux"`
	AvgRadiation   float64 `json:"avg_radiation_lux"`
	PeakIrradiance float64 `json:"peak_irradiance_wm2"`
	AvgIrradiance  float64 `json:"avg_irradiance_wm2"`

	UsefulLightMinutes uint    `json:"useful_light_minutes"`
	PanelEfficiency    float64 `json:"panel_efficiency_pct"`
	CapacityFactor     float64 `json:"capacity_factor_pct"`
	ReadingCount       uint    `json:"reading_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Event types recorded by the system.
const (
	EventDeviceRegistered   = "DEVICE_REGISTERED"
	EventDeviceOnline       = "DEVICE_ONLINE"
	EventDeviceOffline      = "DEVICE_OFFLINE"
	EventEnergyCounterReset = "ENERGY_COUNTER_RESET"
)

// Event severities.
const (
	SeverityInfo     = "INFO"
	SeverityWarning  = "WARNING"
	SeverityError    = "ERROR"
	SeverityCritical = "CRITICAL"
)

type Event struct {
	ID       uint64 `gorm:"primaryKey" json:"id"`
	DeviceID string `gorm:"size:50;index" json:"device_id"`

	Type        string `gorm:"size:50;index" json:"type"`
	Severity    string `gorm:"size:20;index" json:"severity"`
	Title       string `gorm:"size:255" json:"title"`
	Description string `json:"description"`
	Metadata    string `json:"metadata"`

	Resolved   bool       `gorm:"index" json:"resolved"`
	ResolvedAt *time.Time `json:"resolved_at"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
}
