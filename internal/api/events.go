package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/JCampos05/BackendSolargy/internal/storage"

	"github.com/gin-gonic/gin"
)

func (s *Server) eventsHandler(c *gin.Context) {
	filter := storage.EventFilter{
		DeviceID: c.Query("deviceId"),
		Type:     c.Query("type"),
		Severity: c.Query("severity"),
	}
	if v := c.Query("resolved"); v != "" {
		resolved := v == "true"
		filter.Resolved = &resolved
	}
	if v := c.Query("limit"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil {
			filter.Limit = limit
		}
	}

	events, err := s.db.Events(filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(events), "events": events})
}

func (s *Server) eventHandler(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid event id"})
		return
	}

	event, err := s.db.EventByID(id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Event not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, event)
}

// EventRequest carries a manually recorded event, e.g. from an operator
// noting a field intervention.
type EventRequest struct {
	DeviceID    string `json:"device_id"`
	Type        string `json:"type" binding:"required"`
	Severity    string `json:"severity"`
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Metadata    string `json:"metadata"`
}

func (s *Server) createEventHandler(c *gin.Context) {
	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	severity := req.Severity
	switch severity {
	case "":
		severity = storage.SeverityInfo
	case storage.SeverityInfo, storage.SeverityWarning, storage.SeverityError, storage.SeverityCritical:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown severity"})
		return
	}

	event := &storage.Event{
		DeviceID:    req.DeviceID,
		Type:        req.Type,
		Severity:    severity,
		Title:       req.Title,
		Description: req.Description,
		Metadata:    req.Metadata,
	}
	if err := s.db.CreateEvent(event); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, event)
}

// eventsSummaryHandler counts the trailing period's events by severity and
// resolution state, optionally for one device.
func (s *Server) eventsSummaryHandler(c *gin.Context) {
	deviceID := c.Query("deviceId")
	days, err := strconv.Atoi(c.DefaultQuery("days", "7"))
	if err != nil || days <= 0 {
		days = 7
	}

	now := time.Now().UTC()
	from := now.AddDate(0, 0, -days)
	events, err := s.db.EventsSince(deviceID, from)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	bySeverity := map[string]int{
		storage.SeverityInfo:     0,
		storage.SeverityWarning:  0,
		storage.SeverityError:    0,
		storage.SeverityCritical: 0,
	}
	resolved := 0
	for _, event := range events {
		bySeverity[event.Severity]++
		if event.Resolved {
			resolved++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"period": gin.H{"days": days, "from": from, "to": now},
		"device_id": deviceID,
		"summary": gin.H{
			"total":       len(events),
			"by_severity": bySeverity,
			"resolved":    resolved,
			"unresolved":  len(events) - resolved,
		},
	})
}

// criticalEventsHandler lists unresolved critical events from the trailing
// hours (default 24).
func (s *Server) criticalEventsHandler(c *gin.Context) {
	hours, err := strconv.Atoi(c.DefaultQuery("hours", "24"))
	if err != nil || hours <= 0 {
		hours = 24
	}

	events, err := s.db.CriticalEvents(time.Now().UTC().Add(-time.Duration(hours) * time.Hour))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"hours": hours, "count": len(events), "events": events})
}

func (s *Server) resolveEventHandler(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid event id"})
		return
	}

	event, err := s.db.ResolveEvent(id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Event not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, event)
}
