// Package timezone maps UTC instants to device-local calendar days.
//
// Devices carry a fixed UTC offset in hours (fractional offsets like +5.5
// are allowed). Offsets are static attributes, not tzdata lookups, so DST
// transitions are not modeled.
package timezone

import (
	"fmt"
	"time"
)

const (
	// DateLayout is the local calendar date key used for daily rollups.
	DateLayout  = "2006-01-02"
	clockLayout = "15:04:05"
)

// FromMillis converts a device-reported epoch-millisecond timestamp to a
// UTC instant. The value is trusted verbatim as UTC.
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func toLocal(t time.Time, offsetHours float64) time.Time {
	return t.UTC().Add(time.Duration(offsetHours * float64(time.Hour)))
}

// LocalDate returns the local calendar date (YYYY-MM-DD) of the UTC
// instant t for a device with the given UTC offset in hours.
func LocalDate(t time.Time, offsetHours float64) string {
	return toLocal(t, offsetHours).Format(DateLayout)
}

// LocalClock returns the local wall-clock time of day (HH:MM:SS) of the
// UTC instant t for a device with the given UTC offset in hours.
func LocalClock(t time.Time, offsetHours float64) string {
	return toLocal(t, offsetHours).Format(clockLayout)
}

// DayWindow returns the closed UTC interval covering the local calendar
// date for a device with the given UTC offset: local 00:00:00 through
// local 23:59:59.999, both shifted back to UTC. The end bound is inclusive
// at millisecond resolution; one millisecond past it belongs to the next
// local day. DayWindow is the exact inverse of LocalDate, so every reading
// selected by the window is labeled with the same date.
func DayWindow(date string, offsetHours float64) (start, end time.Time, err error) {
	day, err := time.ParseInLocation(DateLayout, date, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid date %q: %w", date, err)
	}

	offset := time.Duration(offsetHours * float64(time.Hour))
	start = day.Add(-offset)
	end = day.Add(24*time.Hour - time.Millisecond).Add(-offset)
	return start, end, nil
}
