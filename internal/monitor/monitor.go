// Package monitor watches device liveness in the background.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/JCampos05/BackendSolargy/internal/storage"
)

// Monitor periodically flags devices that stopped reporting and records a
// DEVICE_OFFLINE event once per outage. The matching DEVICE_ONLINE event is
// recorded by the ingestion path when the device reports again.
type Monitor struct {
	db           *storage.Database
	interval     time.Duration
	offlineAfter time.Duration
	enabled      bool

	mu        sync.RWMutex
	isRunning bool
	// flagged holds devices already reported offline in the current outage.
	flagged map[string]struct{}
}

type Config struct {
	Database     *storage.Database
	Interval     time.Duration
	OfflineAfter time.Duration
	Enabled      bool
}

func New(cfg Config) *Monitor {
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	offlineAfter := cfg.OfflineAfter
	if offlineAfter <= 0 {
		offlineAfter = 10 * time.Minute
	}

	return &Monitor{
		db:           cfg.Database,
		interval:     interval,
		offlineAfter: offlineAfter,
		enabled:      cfg.Enabled,
		flagged:      make(map[string]struct{}),
	}
}

func (m *Monitor) Start(ctx context.Context) error {
	if !m.enabled {
		log.Println("Offline monitor is disabled")
		return nil
	}

	m.mu.Lock()
	m.isRunning = true
	m.mu.Unlock()

	log.Printf("Starting offline monitor (interval %s, offline after %s)", m.interval, m.offlineAfter)

	m.check()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Offline monitor stopped")
			m.mu.Lock()
			m.isRunning = false
			m.mu.Unlock()
			return nil
		case <-ticker.C:
			m.check()
		}
	}
}

func (m *Monitor) check() {
	devices, err := m.db.OfflineDevices(m.offlineAfter)
	if err != nil {
		log.Printf("Error querying offline devices: %v", err)
		return
	}

	offline := make(map[string]struct{}, len(devices))
	for _, device := range devices {
		offline[device.ID] = struct{}{}

		m.mu.RLock()
		_, alreadyFlagged := m.flagged[device.ID]
		m.mu.RUnlock()
		if alreadyFlagged {
			continue
		}

		m.recordOffline(&device)
		m.mu.Lock()
		m.flagged[device.ID] = struct{}{}
		m.mu.Unlock()
	}

	// Devices that reported again get unflagged so a later outage is
	// reported anew.
	m.mu.Lock()
	for id := range m.flagged {
		if _, still := offline[id]; !still {
			delete(m.flagged, id)
		}
	}
	m.mu.Unlock()
}

func (m *Monitor) recordOffline(device *storage.Device) {
	silence := time.Duration(0)
	if device.LastReadingAt != nil {
		silence = time.Since(*device.LastReadingAt)
	}

	meta, _ := json.Marshal(map[string]interface{}{"minutesSilent": silence.Minutes()})
	err := m.db.CreateEvent(&storage.Event{
		DeviceID:    device.ID,
		Type:        storage.EventDeviceOffline,
		Severity:    storage.SeverityWarning,
		Title:       "Device offline",
		Description: fmt.Sprintf("Device %s has not reported for %d minutes", device.ID, int(silence.Minutes())),
		Metadata:    string(meta),
	})
	if err != nil {
		log.Printf("Failed to record offline event for %s: %v", device.ID, err)
		return
	}

	log.Printf("Device %s flagged offline (silent for %s)", device.ID, silence.Round(time.Second))
}

func (m *Monitor) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isRunning
}
