package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/JCampos05/BackendSolargy/internal/stats"
	"github.com/JCampos05/BackendSolargy/internal/timezone"

	"github.com/gin-gonic/gin"
)

func validDate(date string) bool {
	_, err := time.Parse(timezone.DateLayout, date)
	return err == nil
}

func (s *Server) dailyStatsHandler(c *gin.Context) {
	deviceID := c.Param("deviceId")
	startDate := c.Query("startDate")
	endDate := c.Query("endDate")

	statistics, err := s.db.DailyStatistics(deviceID, startDate, endDate)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"device_id":  deviceID,
		"count":      len(statistics),
		"statistics": statistics,
	})
}

func (s *Server) allDevicesStatsHandler(c *gin.Context) {
	date := c.Query("date")
	if !validDate(date) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date query param required (YYYY-MM-DD)"})
		return
	}

	statistics, err := s.db.DailyStatisticsForDate(date)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"date":       date,
		"count":      len(statistics),
		"statistics": statistics,
	})
}

type generateRequest struct {
	Date string `json:"date" binding:"required"`
}

func (s *Server) generateStatsHandler(c *gin.Context) {
	deviceID := c.Param("deviceId")

	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil || !validDate(req.Date) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date is required (YYYY-MM-DD)"})
		return
	}

	result, err := s.engine.GenerateForDate(deviceID, req.Date)
	if err != nil {
		switch {
		case errors.Is(err, stats.ErrDeviceNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Device not found"})
		case errors.Is(err, stats.ErrNoData):
			c.JSON(http.StatusOK, gin.H{
				"message":   "No readings for this date",
				"device_id": deviceID,
				"date":      req.Date,
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	message := "Statistic updated"
	if result.Created {
		message = "Statistic created"
	}
	c.JSON(http.StatusOK, gin.H{
		"message":   message,
		"created":   result.Created,
		"statistic": result.Statistic,
	})
}

func (s *Server) generateAllStatsHandler(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil || !validDate(req.Date) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date is required (YYYY-MM-DD)"})
		return
	}

	report, err := s.engine.GenerateAllForDate(req.Date)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) statsSummaryHandler(c *gin.Context) {
	deviceID := c.Param("deviceId")
	period := c.DefaultQuery("period", "week")

	summary, err := s.engine.Summary(deviceID, period)
	if err != nil {
		if errors.Is(err, stats.ErrDeviceNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Device not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}
