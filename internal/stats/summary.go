package stats

import (
	"errors"
	"time"

	"github.com/JCampos05/BackendSolargy/internal/storage"
	"github.com/JCampos05/BackendSolargy/internal/timezone"
)

// SummaryReport rolls a device's stored daily rollups forward over a
// trailing period.
type SummaryReport struct {
	DeviceID      string                   `json:"device_id"`
	Period        string                   `json:"period"`
	TotalEnergy   float64                  `json:"total_energy_wh"`
	AvgPower      float64                  `json:"avg_power_mw"`
	AvgEfficiency float64                  `json:"avg_efficiency_pct"`
	MaxPower      float64                  `json:"max_power_mw"`
	DaysWithData  int                      `json:"days_with_data"`
	Daily         []storage.DailyStatistic `json:"daily_stats"`
}

// Summary aggregates the stored rollups of the trailing week, month, or
// year (default week). Days without a rollup simply do not contribute.
func (e *Engine) Summary(deviceID, period string) (*SummaryReport, error) {
	if _, err := e.store.DeviceByID(deviceID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, err
	}

	end := time.Now().UTC()
	var start time.Time
	switch period {
	case "month":
		start = end.AddDate(0, -1, 0)
	case "year":
		start = end.AddDate(-1, 0, 0)
	default:
		period = "week"
		start = end.AddDate(0, 0, -7)
	}

	daily, err := e.store.DailyStatistics(deviceID,
		start.Format(timezone.DateLayout), end.Format(timezone.DateLayout))
	if err != nil {
		return nil, err
	}

	report := &SummaryReport{DeviceID: deviceID, Period: period, Daily: daily, DaysWithData: len(daily)}
	if len(daily) == 0 {
		return report, nil
	}

	for _, s := range daily {
		report.TotalEnergy += s.TotalEnergy
		report.AvgPower += s.AvgPower
		report.AvgEfficiency += s.PanelEfficiency
		if s.PeakPower > report.MaxPower {
			report.MaxPower = s.PeakPower
		}
	}
	report.AvgPower /= float64(len(daily))
	report.AvgEfficiency /= float64(len(daily))

	return report, nil
}
