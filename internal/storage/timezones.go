package storage

import "math"

// TimezoneUTC is the id of the UTC entry in the seeded timezone table.
// Ids run 1..25 for UTC-12 through UTC+12, so id = offset + 13.
const TimezoneUTC uint8 = 13

var seedTimezones = []Timezone{
	{ID: 1, Name: "Etc/GMT+12", OffsetUTC: -12, DisplayName: "UTC-12:00"},
	{ID: 2, Name: "Pacific/Pago_Pago", OffsetUTC: -11, DisplayName: "UTC-11:00 (Samoa)"},
	{ID: 3, Name: "Pacific/Honolulu", OffsetUTC: -10, DisplayName: "UTC-10:00 (Hawaii)"},
	{ID: 4, Name: "America/Anchorage", OffsetUTC: -9, DisplayName: "UTC-09:00 (Alaska)"},
	{ID: 5, Name: "America/Los_Angeles", OffsetUTC: -8, DisplayName: "UTC-08:00 (Pacific)"},
	{ID: 6, Name: "America/Denver", OffsetUTC: -7, DisplayName: "UTC-07:00 (Mountain)"},
	{ID: 7, Name: "America/Mexico_City", OffsetUTC: -6, DisplayName: "UTC-06:00 (Central)"},
	{ID: 8, Name: "America/Bogota", OffsetUTC: -5, DisplayName: "UTC-05:00 (Eastern)"},
	{ID: 9, Name: "America/Caracas", OffsetUTC: -4, DisplayName: "UTC-04:00 (Atlantic)"},
	{ID: 10, Name: "America/Sao_Paulo", OffsetUTC: -3, DisplayName: "UTC-03:00 (Brasilia)"},
	{ID: 11, Name: "Atlantic/South_Georgia", OffsetUTC: -2, DisplayName: "UTC-02:00"},
	{ID: 12, Name: "Atlantic/Azores", OffsetUTC: -1, DisplayName: "UTC-01:00 (Azores)"},
	{ID: 13, Name: "UTC", OffsetUTC: 0, DisplayName: "UTC+00:00"},
	{ID: 14, Name: "Europe/Paris", OffsetUTC: 1, DisplayName: "UTC+01:00 (Central Europe)"},
	{ID: 15, Name: "Europe/Athens", OffsetUTC: 2, DisplayName: "UTC+02:00 (Eastern Europe)"},
	{ID: 16, Name: "Europe/Moscow", OffsetUTC: 3, DisplayName: "UTC+03:00 (Moscow)"},
	{ID: 17, Name: "Asia/Dubai", OffsetUTC: 4, DisplayName: "UTC+04:00 (Gulf)"},
	{ID: 18, Name: "Asia/Karachi", OffsetUTC: 5, DisplayName: "UTC+05:00 (Pakistan)"},
	{ID: 19, Name: "Asia/Dhaka", OffsetUTC: 6, DisplayName: "UTC+06:00 (Bangladesh)"},
	{ID: 20, Name: "Asia/Bangkok", OffsetUTC: 7, DisplayName: "UTC+07:00 (Indochina)"},
	{ID: 21, Name: "Asia/Shanghai", OffsetUTC: 8, DisplayName: "UTC+08:00 (China)"},
	{ID: 22, Name: "Asia/Tokyo", OffsetUTC: 9, DisplayName: "UTC+09:00 (Japan)"},
	{ID: 23, Name: "Australia/Sydney", OffsetUTC: 10, DisplayName: "UTC+10:00 (Eastern Australia)"},
	{ID: 24, Name: "Pacific/Noumea", OffsetUTC: 11, DisplayName: "UTC+11:00"},
	{ID: 25, Name: "Pacific/Auckland", OffsetUTC: 12, DisplayName: "UTC+12:00 (New Zealand)"},
}

// SeedTimezones inserts the fixed-offset timezone table, skipping rows
// that already exist. Safe to call on every startup.
func (d *Database) SeedTimezones() error {
	for _, zone := range seedTimezones {
		var count int64
		if err := d.db.Model(&Timezone{}).Where("id = ?", zone.ID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		if err := d.db.Create(&zone).Error; err != nil {
			return err
		}
	}
	return nil
}

// DetectTimezoneID guesses a timezone id from a longitude: every 15
// degrees is one hour off UTC. Longitudes outside the seeded range fall
// back to UTC-6 (the deployment region's zone).
func DetectTimezoneID(longitude float64) uint8 {
	offset := int(math.Round(longitude / 15))
	id := offset + 13
	if id < 1 || id > 25 {
		return 7
	}
	return uint8(id)
}
