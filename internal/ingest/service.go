// Package ingest accepts telemetry samples from field devices, persists
// them, and triggers the daily rollup recompute.
package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/JCampos05/BackendSolargy/internal/mqtt"
	"github.com/JCampos05/BackendSolargy/internal/solar"
	"github.com/JCampos05/BackendSolargy/internal/storage"
	"github.com/JCampos05/BackendSolargy/internal/timezone"
)

// reconnectGap is the silence after which a device reporting again counts
// as coming back online.
const reconnectGap = 5 * time.Minute

// Aggregator is the slice of the stats engine the ingestion path uses.
type Aggregator interface {
	UpdateForReading(deviceID string, reading *storage.Reading) (*storage.DailyStatistic, error)
}

type Service struct {
	db        *storage.Database
	engine    Aggregator
	publisher *mqtt.Publisher
	panelArea float64
}

func NewService(db *storage.Database, engine Aggregator, publisher *mqtt.Publisher) *Service {
	return &Service{
		db:        db,
		engine:    engine,
		publisher: publisher,
		panelArea: solar.DefaultPanelAreaM2,
	}
}

// Payload is the sample a device POSTs. Field names match the firmware's
// JSON. Timestamp is epoch milliseconds, trusted verbatim as UTC.
type Payload struct {
	DeviceID          string   `json:"deviceId" binding:"required"`
	Timestamp         int64    `json:"timestamp" binding:"required"`
	Voltage           float64  `json:"voltage"`
	Current           float64  `json:"current"`
	Power             float64  `json:"power"`
	SolarRadiation    float64  `json:"solarRadiation"`
	Irradiance        float64  `json:"irradiance"`
	EnergyAccumulated float64  `json:"energyAccumulated"`
	UptimeSeconds     uint     `json:"uptimeSeconds"`
	Temperature       *float64 `json:"temperature"`
	Humidity          *float64 `json:"humidity"`
	SignalStrength    *int     `json:"signalStrength"`
	BatteryLevel      *float64 `json:"batteryLevel"`
}

func (p *Payload) Validate() error {
	if p.DeviceID == "" {
		return errors.New("deviceId is required")
	}
	if p.Timestamp <= 0 {
		return errors.New("timestamp must be a positive epoch-millisecond value")
	}
	if p.Voltage < 0 || p.Current < 0 || p.Power < 0 {
		return errors.New("voltage, current and power must not be negative")
	}
	if p.SolarRadiation < 0 || p.Irradiance < 0 {
		return errors.New("solarRadiation and irradiance must not be negative")
	}
	if p.EnergyAccumulated < 0 {
		return errors.New("energyAccumulated must not be negative")
	}
	return nil
}

// ProcessedReading is the acknowledgment returned to the device.
type ProcessedReading struct {
	ID           uint64    `json:"id"`
	DeviceID     string    `json:"device_id"`
	ReceivedAt   time.Time `json:"received_at"`
	DeviceMillis int64     `json:"device_millis"`
	TimestampUTC time.Time `json:"timestamp_utc"`

	Reading *storage.Reading `json:"reading"`

	UptimeFormatted string  `json:"uptime_formatted"`
	PowerWatts      float64 `json:"power_w"`
	CurrentAmps     float64 `json:"current_a"`
	Efficiency      float64 `json:"efficiency_pct"`
}

// Process validates and stores a sample, updates the owning device's
// bookkeeping, and recomputes the current local day's rollup. The rollup
// step runs in an isolated failure domain: whatever goes wrong there is
// logged and swallowed, because the raw reading is already durable and can
// be re-aggregated later through explicit regeneration.
func (s *Service) Process(p *Payload) (*ProcessedReading, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	device, err := s.getOrCreateDevice(p.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve device: %w", err)
	}

	s.checkReconnect(device)

	reading := &storage.Reading{
		DeviceID:          p.DeviceID,
		DeviceMillis:      p.Timestamp,
		TimestampUTC:      timezone.FromMillis(p.Timestamp),
		Voltage:           p.Voltage,
		Current:           p.Current,
		Power:             p.Power,
		SolarRadiation:    p.SolarRadiation,
		Irradiance:        p.Irradiance,
		EnergyAccumulated: p.EnergyAccumulated,
		UptimeSeconds:     p.UptimeSeconds,
		Temperature:       p.Temperature,
		Humidity:          p.Humidity,
		SignalStrength:    p.SignalStrength,
		BatteryLevel:      p.BatteryLevel,
	}
	if err := s.db.CreateReading(reading); err != nil {
		return nil, fmt.Errorf("failed to store reading: %w", err)
	}

	if err := s.db.TouchDevice(device.ID, time.Now()); err != nil {
		log.Printf("[ingest] failed to update device bookkeeping for %s: %v", device.ID, err)
	}

	if s.publisher != nil {
		if err := s.publisher.PublishReading(reading); err != nil {
			log.Printf("[ingest] MQTT publish failed for %s: %v", device.ID, err)
		}
	}

	s.updateDailyStats(device.ID, reading)

	return &ProcessedReading{
		ID:              reading.ID,
		DeviceID:        reading.DeviceID,
		ReceivedAt:      time.Now(),
		DeviceMillis:    reading.DeviceMillis,
		TimestampUTC:    reading.TimestampUTC,
		Reading:         reading,
		UptimeFormatted: solar.FormatUptime(reading.UptimeSeconds),
		PowerWatts:      solar.MilliwattsToWatts(reading.Power),
		CurrentAmps:     solar.MilliampsToAmps(reading.Current),
		Efficiency:      solar.Efficiency(reading.Power, reading.Irradiance, s.panelArea),
	}, nil
}

// updateDailyStats triggers the real-time rollup recompute. Errors and
// panics stop here; ingestion has already succeeded.
func (s *Service) updateDailyStats(deviceID string, reading *storage.Reading) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[ingest] daily stats update panicked for %s: %v", deviceID, r)
		}
	}()

	stat, err := s.engine.UpdateForReading(deviceID, reading)
	if err != nil {
		log.Printf("[ingest] daily stats update failed for %s (non-critical): %v", deviceID, err)
		return
	}

	if s.publisher != nil && stat != nil {
		if err := s.publisher.PublishDailyStatistic(stat); err != nil {
			log.Printf("[ingest] MQTT stats publish failed for %s: %v", deviceID, err)
		}
	}
}

// getOrCreateDevice auto-registers devices on their first reading with UTC
// timezone and the default small-panel ratings.
func (s *Service) getOrCreateDevice(deviceID string) (*storage.Device, error) {
	device, err := s.db.DeviceByID(deviceID)
	if err == nil {
		return device, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	device = &storage.Device{
		ID:                  deviceID,
		Name:                fmt.Sprintf("Solar Panel %s", deviceID),
		Location:            "Unspecified",
		TimezoneID:          storage.TimezoneUTC,
		PanelNominalVoltage: 5.0,
		PanelMaxCurrent:     160.0,
		PanelNominalPower:   solar.DefaultNominalPowerMW,
		Active:              true,
	}
	if err := s.db.CreateDevice(device); err != nil {
		return nil, err
	}

	meta, _ := json.Marshal(map[string]interface{}{"deviceId": deviceID, "registeredAt": time.Now()})
	if err := s.db.CreateEvent(&storage.Event{
		DeviceID:    deviceID,
		Type:        storage.EventDeviceRegistered,
		Severity:    storage.SeverityInfo,
		Title:       "New device registered",
		Description: fmt.Sprintf("Device %s registered itself automatically", deviceID),
		Metadata:    string(meta),
	}); err != nil {
		log.Printf("[ingest] failed to record registration event for %s: %v", deviceID, err)
	}

	log.Printf("[ingest] new device registered: %s", deviceID)
	return device, nil
}

// checkReconnect records an online event when a device reports again after
// more than reconnectGap of silence.
func (s *Service) checkReconnect(device *storage.Device) {
	if device.LastReadingAt == nil {
		return
	}

	silence := time.Since(*device.LastReadingAt)
	if silence <= reconnectGap {
		return
	}

	meta, _ := json.Marshal(map[string]interface{}{"minutesOffline": silence.Minutes()})
	if err := s.db.CreateEvent(&storage.Event{
		DeviceID:    device.ID,
		Type:        storage.EventDeviceOnline,
		Severity:    storage.SeverityInfo,
		Title:       "Device reconnected",
		Description: fmt.Sprintf("Device %s is sending data again after %d minutes", device.ID, int(silence.Minutes())),
		Metadata:    string(meta),
	}); err != nil {
		log.Printf("[ingest] failed to record reconnect event for %s: %v", device.ID, err)
	}
}
