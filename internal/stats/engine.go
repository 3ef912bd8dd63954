// Package stats maintains the per-device daily rollups.
//
// Every recompute derives the whole day again from the full reading
// window instead of merging into running sums. That keeps the math simple
// and makes the operation idempotent: re-running it with the same window
// always lands on the same numbers.
package stats

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/JCampos05/BackendSolargy/internal/solar"
	"github.com/JCampos05/BackendSolargy/internal/storage"
	"github.com/JCampos05/BackendSolargy/internal/timezone"
)

var (
	// ErrDeviceNotFound is returned when a rollup is requested for an
	// unknown device.
	ErrDeviceNotFound = errors.New("device not found")
	// ErrNoData signals an empty reading window. It is informational:
	// no rollup row is written and callers decide how to report it.
	ErrNoData = errors.New("no readings for date")
)

// Store is the slice of the persistence layer the engine needs.
// *storage.Database satisfies it.
type Store interface {
	DeviceByID(id string) (*storage.Device, error)
	ActiveDevices() ([]storage.Device, error)
	ReadingsInRange(deviceID string, from, to time.Time) ([]storage.Reading, error)
	SaveDailyStatistic(stat *storage.DailyStatistic) (bool, error)
	DailyStatistics(deviceID, startDate, endDate string) ([]storage.DailyStatistic, error)
	CreateEvent(event *storage.Event) error
}

// Config carries the aggregation assumptions that used to be hidden
// constants: the expected sample spacing and the panel parameters.
type Config struct {
	// SamplingInterval is the nominal spacing between readings. It drives
	// both the useful-light minute count and the real-time capacity-factor
	// hours (readings × interval). Actual spacing is not validated.
	SamplingInterval time.Duration
	PanelAreaM2      float64
	// UsefulLightThreshold is the irradiance (W/m²) at which a reading
	// counts as useful light.
	UsefulLightThreshold float64
	// DefaultNominalPower (mW) is used for devices without a panel rating.
	DefaultNominalPower float64
}

func (c Config) withDefaults() Config {
	if c.SamplingInterval <= 0 {
		c.SamplingInterval = time.Minute
	}
	if c.PanelAreaM2 <= 0 {
		c.PanelAreaM2 = solar.DefaultPanelAreaM2
	}
	if c.UsefulLightThreshold <= 0 {
		c.UsefulLightThreshold = solar.DefaultUsefulLightThreshold
	}
	if c.DefaultNominalPower <= 0 {
		c.DefaultNominalPower = solar.DefaultNominalPowerMW
	}
	return c
}

type Engine struct {
	store Store
	cfg   Config
}

func NewEngine(store Store, cfg Config) *Engine {
	return &Engine{store: store, cfg: cfg.withDefaults()}
}

// Result is the outcome of one rollup recompute.
type Result struct {
	Created   bool                    `json:"created"`
	Statistic *storage.DailyStatistic `json:"statistic"`
}

// UpdateForReading is the real-time path, invoked after a new reading is
// persisted. It resolves the reading's local calendar day for the owning
// device and recomputes that day's rollup from the full window. The
// capacity-factor hours are readings × sampling interval, since the day is
// still in progress.
func (e *Engine) UpdateForReading(deviceID string, reading *storage.Reading) (*storage.DailyStatistic, error) {
	device, err := e.store.DeviceByID(deviceID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, err
	}

	date := timezone.LocalDate(reading.TimestampUTC, device.UTCOffset())
	result, err := e.recompute(device, date, false)
	if err != nil {
		return nil, err
	}
	return result.Statistic, nil
}

// GenerateForDate is the explicit regeneration path for an arbitrary past
// date. It uses the fixed 24-hour capacity-factor convention, so the same
// readings yield a different capacity factor than the real-time path; the
// asymmetry is inherited behavior and kept on purpose.
func (e *Engine) GenerateForDate(deviceID, date string) (*Result, error) {
	device, err := e.store.DeviceByID(deviceID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, err
	}

	return e.recompute(device, date, true)
}

// Outcome reports one device's result within a batch regeneration.
type Outcome struct {
	DeviceID string `json:"device_id"`
	Success  bool   `json:"success"`
	Created  bool   `json:"created,omitempty"`
	NoData   bool   `json:"no_data,omitempty"`
	Error    string `json:"error,omitempty"`
}

// BatchReport is the aggregate result of GenerateAllForDate.
type BatchReport struct {
	Date         string    `json:"date"`
	TotalDevices int       `json:"total_devices"`
	Outcomes     []Outcome `json:"results"`
}

// GenerateAllForDate regenerates the rollup of every active device for one
// local date. One device's failure never blocks the rest; each outcome is
// reported individually.
func (e *Engine) GenerateAllForDate(date string) (*BatchReport, error) {
	devices, err := e.store.ActiveDevices()
	if err != nil {
		return nil, fmt.Errorf("failed to list active devices: %w", err)
	}

	report := &BatchReport{Date: date, TotalDevices: len(devices)}
	for i := range devices {
		device := &devices[i]
		outcome := Outcome{DeviceID: device.ID}

		result, err := e.recompute(device, date, true)
		switch {
		case errors.Is(err, ErrNoData):
			outcome.Success = true
			outcome.NoData = true
		case err != nil:
			outcome.Error = err.Error()
			log.Printf("[stats] regeneration failed for %s on %s: %v", device.ID, date, err)
		default:
			outcome.Success = true
			outcome.Created = result.Created
		}
		report.Outcomes = append(report.Outcomes, outcome)
	}

	return report, nil
}

// recompute derives the full aggregate set for (device, date) from the
// day's UTC window and upserts the rollup row, replacing all fields.
func (e *Engine) recompute(device *storage.Device, date string, backfill bool) (*Result, error) {
	offset := device.UTCOffset()
	from, to, err := timezone.DayWindow(date, offset)
	if err != nil {
		return nil, err
	}

	readings, err := e.store.ReadingsInRange(device.ID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	if len(readings) == 0 {
		return nil, ErrNoData
	}

	var (
		sumPower, sumRadiation, sumIrradiance float64
		peakPower, peakRadiation, peakIrr     float64
		peakAt                                time.Time
		usefulCount                           int
		sumEfficiency                         float64
		efficiencyCount                       int
	)

	for i, r := range readings {
		sumPower += r.Power
		sumRadiation += r.SolarRadiation
		sumIrradiance += r.Irradiance

		// Strictly-greater comparison: on ties the earliest reading wins.
		if i == 0 || r.Power > peakPower {
			peakPower = r.Power
			peakAt = r.TimestampUTC
		}
		if r.SolarRadiation > peakRadiation {
			peakRadiation = r.SolarRadiation
		}
		if r.Irradiance > peakIrr {
			peakIrr = r.Irradiance
		}

		if solar.HasUsefulLight(r.Irradiance, e.cfg.UsefulLightThreshold) {
			usefulCount++
		}
		if r.Irradiance > 0 {
			sumEfficiency += solar.Efficiency(r.Power, r.Irradiance, e.cfg.PanelAreaM2)
			efficiencyCount++
		}
	}

	count := float64(len(readings))
	totalEnergy, resets := e.totalEnergy(readings)
	if resets > 0 {
		e.recordCounterReset(device.ID, date, resets)
	}

	avgEfficiency := 0.0
	if efficiencyCount > 0 {
		avgEfficiency = sumEfficiency / float64(efficiencyCount)
	}

	nominal := device.PanelNominalPower
	if nominal <= 0 {
		nominal = e.cfg.DefaultNominalPower
	}
	hours := 24.0
	if !backfill {
		hours = count * e.cfg.SamplingInterval.Hours()
	}

	stat := &storage.DailyStatistic{
		DeviceID:           device.ID,
		Date:               date,
		TotalEnergy:        totalEnergy,
		PeakPower:          peakPower,
		PeakPowerTime:      timezone.LocalClock(peakAt, offset),
		AvgPower:           sumPower / count,
		PeakRadiation:      peakRadiation,
		AvgRadiation:       sumRadiation / count,
		PeakIrradiance:     peakIrr,
		AvgIrradiance:      sumIrradiance / count,
		UsefulLightMinutes: uint(float64(usefulCount) * e.cfg.SamplingInterval.Minutes()),
		PanelEfficiency:    avgEfficiency,
		CapacityFactor:     solar.CapacityFactor(totalEnergy, nominal, hours),
		ReadingCount:       uint(len(readings)),
	}

	created, err := e.store.SaveDailyStatistic(stat)
	if err != nil {
		return nil, fmt.Errorf("failed to save daily statistic: %w", err)
	}

	return &Result{Created: created, Statistic: stat}, nil
}

// totalEnergy sums the day's accumulated-energy gains. A decrease between
// consecutive readings means the device's counter reset (reboot); the
// window is split at each reset and the per-segment gains are summed, so
// the total never goes negative and pre-reset production is kept.
func (e *Engine) totalEnergy(readings []storage.Reading) (total float64, resets int) {
	segmentStart := readings[0].EnergyAccumulated
	prev := segmentStart
	for _, r := range readings[1:] {
		if r.EnergyAccumulated < prev {
			total += prev - segmentStart
			segmentStart = r.EnergyAccumulated
			resets++
		}
		prev = r.EnergyAccumulated
	}
	total += prev - segmentStart
	return total, resets
}

func (e *Engine) recordCounterReset(deviceID, date string, resets int) {
	meta, _ := json.Marshal(map[string]interface{}{"date": date, "resets": resets})
	err := e.store.CreateEvent(&storage.Event{
		DeviceID:    deviceID,
		Type:        storage.EventEnergyCounterReset,
		Severity:    storage.SeverityWarning,
		Title:       "Energy counter reset detected",
		Description: fmt.Sprintf("Accumulated energy decreased %d time(s) during %s; device likely rebooted", resets, date),
		Metadata:    string(meta),
	})
	if err != nil {
		log.Printf("[stats] failed to record counter reset event for %s: %v", deviceID, err)
	}
}
