package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/JCampos05/BackendSolargy/internal/storage"

	"github.com/gin-gonic/gin"
)

// DeviceRequest carries device creation/update fields. Pointer fields are
// optional; omitted ones keep their current value on update.
type DeviceRequest struct {
	ID                  string   `json:"id"`
	Name                string   `json:"name"`
	Location            string   `json:"location"`
	Latitude            *float64 `json:"latitude"`
	Longitude           *float64 `json:"longitude"`
	TimezoneID          *uint8   `json:"timezone_id"`
	PanelNominalVoltage *float64 `json:"panel_nominal_voltage_v"`
	PanelMaxCurrent     *float64 `json:"panel_max_current_ma"`
	PanelNominalPower   *float64 `json:"panel_nominal_power_mw"`
	Active              *bool    `json:"active"`
}

func (s *Server) devicesHandler(c *gin.Context) {
	activeOnly := c.Query("active") == "true"
	devices, err := s.db.Devices(activeOnly)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(devices), "devices": devices})
}

func (s *Server) deviceHandler(c *gin.Context) {
	device, err := s.db.DeviceByID(c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Device not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, device)
}

func (s *Server) createDeviceHandler(c *gin.Context) {
	var req DeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.ID == "" || req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id and name are required"})
		return
	}

	device := &storage.Device{
		ID:         req.ID,
		Name:       req.Name,
		Location:   req.Location,
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
		TimezoneID: storage.TimezoneUTC,
		Active:     true,
	}
	if req.Longitude != nil && req.TimezoneID == nil {
		device.TimezoneID = storage.DetectTimezoneID(*req.Longitude)
	}
	applyDeviceRequest(device, &req)

	if err := s.db.CreateDevice(device); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, device)
}

func (s *Server) updateDeviceHandler(c *gin.Context) {
	device, err := s.db.DeviceByID(c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Device not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var req DeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Name != "" {
		device.Name = req.Name
	}
	if req.Location != "" {
		device.Location = req.Location
	}
	if req.Latitude != nil {
		device.Latitude = req.Latitude
	}
	if req.Longitude != nil {
		device.Longitude = req.Longitude
		// Coordinates without an explicit timezone pick the nearest
		// longitudinal zone.
		if req.TimezoneID == nil {
			device.TimezoneID = storage.DetectTimezoneID(*req.Longitude)
		}
	}
	applyDeviceRequest(device, &req)

	if err := s.db.UpdateDevice(device); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	device, err = s.db.DeviceByID(device.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, device)
}

func applyDeviceRequest(device *storage.Device, req *DeviceRequest) {
	if req.TimezoneID != nil {
		device.TimezoneID = *req.TimezoneID
	}
	if req.PanelNominalVoltage != nil {
		device.PanelNominalVoltage = *req.PanelNominalVoltage
	}
	if req.PanelMaxCurrent != nil {
		device.PanelMaxCurrent = *req.PanelMaxCurrent
	}
	if req.PanelNominalPower != nil {
		device.PanelNominalPower = *req.PanelNominalPower
	}
	if req.Active != nil {
		device.Active = *req.Active
	}
}

func (s *Server) updateDeviceTimezoneHandler(c *gin.Context) {
	var req struct {
		TimezoneID uint8 `json:"timezone_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := s.db.TimezoneByID(req.TimezoneID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown timezone id"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	device, err := s.db.DeviceByID(c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Device not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	device.TimezoneID = req.TimezoneID
	if err := s.db.UpdateDevice(device); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	device, err = s.db.DeviceByID(device.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, device)
}

func (s *Server) deleteDeviceHandler(c *gin.Context) {
	if err := s.db.DeleteDevice(c.Param("id")); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Device not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Device deleted"})
}

// measurementStats summarizes one measurement over a trailing period.
type measurementStats struct {
	Max     float64 `json:"max"`
	Min     float64 `json:"min"`
	Avg     float64 `json:"avg"`
	Current float64 `json:"current"`
}

func summarize(values []float64) measurementStats {
	stats := measurementStats{Max: values[0], Min: values[0], Current: values[len(values)-1]}
	sum := 0.0
	for _, v := range values {
		if v > stats.Max {
			stats.Max = v
		}
		if v < stats.Min {
			stats.Min = v
		}
		sum += v
	}
	stats.Avg = sum / float64(len(values))
	return stats
}

// deviceStatsHandler summarizes a device's raw readings over the trailing
// N days (default 7): min/max/avg/current for power, voltage and
// irradiance, plus the latest accumulated energy.
func (s *Server) deviceStatsHandler(c *gin.Context) {
	device, err := s.db.DeviceByID(c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Device not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	days, err := strconv.Atoi(c.DefaultQuery("days", "7"))
	if err != nil || days <= 0 {
		days = 7
	}

	now := time.Now().UTC()
	from := now.AddDate(0, 0, -days)
	readings, err := s.db.ReadingsSince(device.ID, from)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if len(readings) == 0 {
		c.JSON(http.StatusOK, gin.H{
			"device":  device,
			"stats":   nil,
			"message": "No readings in the requested period",
		})
		return
	}

	powers := make([]float64, len(readings))
	voltages := make([]float64, len(readings))
	irradiances := make([]float64, len(readings))
	for i, r := range readings {
		powers[i] = r.Power
		voltages[i] = r.Voltage
		irradiances[i] = r.Irradiance
	}

	c.JSON(http.StatusOK, gin.H{
		"device": device,
		"stats": gin.H{
			"period": gin.H{
				"days":           days,
				"from":           from,
				"to":             now,
				"total_readings": len(readings),
			},
			"power":      summarize(powers),
			"voltage":    summarize(voltages),
			"irradiance": summarize(irradiances),
			"energy": gin.H{
				"accumulated": readings[len(readings)-1].EnergyAccumulated,
				"unit":        "Wh",
			},
		},
	})
}

func (s *Server) checkOfflineHandler(c *gin.Context) {
	minutes, err := strconv.Atoi(c.DefaultQuery("minutes", "10"))
	if err != nil || minutes <= 0 {
		minutes = 10
	}

	devices, err := s.db.OfflineDevices(time.Duration(minutes) * time.Minute)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"threshold_minutes": minutes,
		"count":             len(devices),
		"devices":           devices,
	})
}

func (s *Server) timezonesHandler(c *gin.Context) {
	zones, err := s.db.Timezones()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, zones)
}

func (s *Server) timezoneHandler(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 8)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid timezone id"})
		return
	}

	zone, err := s.db.TimezoneByID(uint8(id))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Timezone not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, zone)
}
