package solar

import "fmt"

// Defaults for the small 5V/160mA panels the field devices carry.
const (
	DefaultPanelAreaM2          = 0.01
	DefaultUsefulLightThreshold = 50.0
	DefaultNominalPowerMW       = 800.0
)

// Efficiency computes panel efficiency in percent from the generated power
// (mW) and the measured irradiance (W/m²) over the panel area (m²).
// Returns 0 for non-positive inputs and clamps the result to [0, 100]:
// instrument noise at very low irradiance can push the raw ratio past 100%.
func Efficiency(powerMW, irradianceWm2, panelAreaM2 float64) float64 {
	if irradianceWm2 <= 0 || powerMW <= 0 || panelAreaM2 <= 0 {
		return 0
	}

	incidentWatts := irradianceWm2 * panelAreaM2
	if incidentWatts <= 0 {
		return 0
	}

	generatedWatts := powerMW / 1000
	return clampPercent(generatedWatts / incidentWatts * 100)
}

// CapacityFactor computes the ratio of energy actually generated (Wh) to the
// theoretical maximum of a panel with the given nominal power (mW) running
// for the given number of hours, in percent, clamped to [0, 100].
func CapacityFactor(energyWh, nominalPowerMW, hours float64) float64 {
	if nominalPowerMW <= 0 || hours <= 0 {
		return 0
	}

	theoreticalWh := (nominalPowerMW / 1000) * hours
	if theoreticalWh <= 0 {
		return 0
	}

	return clampPercent(energyWh / theoreticalWh * 100)
}

// HasUsefulLight reports whether the irradiance (W/m²) is at or above the
// threshold where the panel produces usable output.
func HasUsefulLight(irradianceWm2, thresholdWm2 float64) bool {
	return irradianceWm2 >= thresholdWm2
}

func MilliwattsToWatts(milliwatts float64) float64 {
	return milliwatts / 1000
}

func MilliampsToAmps(milliamps float64) float64 {
	return milliamps / 1000
}

// FormatUptime renders device uptime seconds as "Hh Mm Ss".
func FormatUptime(seconds uint) string {
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	secs := seconds % 60

	return fmt.Sprintf("%dh %dm %ds", hours, minutes, secs)
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
