package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/JCampos05/BackendSolargy/internal/ingest"
	"github.com/JCampos05/BackendSolargy/internal/monitor"
	"github.com/JCampos05/BackendSolargy/internal/stats"
	"github.com/JCampos05/BackendSolargy/internal/storage"

	"github.com/gin-gonic/gin"
)

type Server struct {
	router  *gin.Engine
	server  *http.Server
	db      *storage.Database
	ingest  *ingest.Service
	engine  *stats.Engine
	monitor *monitor.Monitor
	port    int
}

type ServerConfig struct {
	Port     int
	Database *storage.Database
	Ingest   *ingest.Service
	Engine   *stats.Engine
	Monitor  *monitor.Monitor
}

func NewServer(cfg ServerConfig) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.Logger())

	s := &Server{
		router:  router,
		db:      cfg.Database,
		ingest:  cfg.Ingest,
		engine:  cfg.Engine,
		monitor: cfg.Monitor,
		port:    cfg.Port,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthHandler)

	api := s.router.Group("/api/v1")
	{
		readings := api.Group("/readings")
		{
			readings.POST("", s.receiveReadingHandler)
			readings.GET("", s.readingsHandler)
			readings.GET("/latest", s.latestReadingHandler)
			readings.GET("/range", s.readingsRangeHandler)
		}

		devices := api.Group("/devices")
		{
			devices.GET("", s.devicesHandler)
			devices.POST("", s.createDeviceHandler)
			devices.GET("/check-offline", s.checkOfflineHandler)
			devices.GET("/:id/stats", s.deviceStatsHandler)
			devices.GET("/:id", s.deviceHandler)
			devices.PUT("/:id", s.updateDeviceHandler)
			devices.PUT("/:id/timezone", s.updateDeviceTimezoneHandler)
			devices.DELETE("/:id", s.deleteDeviceHandler)
		}

		statistics := api.Group("/statistics")
		{
			statistics.GET("/all", s.allDevicesStatsHandler)
			statistics.POST("/generate-all", s.generateAllStatsHandler)
			statistics.GET("/:deviceId", s.dailyStatsHandler)
			statistics.POST("/:deviceId/generate", s.generateStatsHandler)
			statistics.GET("/:deviceId/summary", s.statsSummaryHandler)
		}

		timezones := api.Group("/timezones")
		{
			timezones.GET("", s.timezonesHandler)
			timezones.GET("/:id", s.timezoneHandler)
		}

		events := api.Group("/events")
		{
			events.GET("", s.eventsHandler)
			events.POST("", s.createEventHandler)
			events.GET("/summary", s.eventsSummaryHandler)
			events.GET("/critical", s.criticalEventsHandler)
			events.GET("/:id", s.eventHandler)
			events.PUT("/:id/resolve", s.resolveEventHandler)
		}
	}
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.router,
	}

	log.Printf("API server starting on port %d", s.port)
	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) healthHandler(c *gin.Context) {
	monitoring := false
	if s.monitor != nil {
		monitoring = s.monitor.IsRunning()
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "healthy",
		"monitoring": monitoring,
		"timestamp":  time.Now(),
	})
}
