package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/JCampos05/BackendSolargy/config"
	"github.com/JCampos05/BackendSolargy/internal/api"
	"github.com/JCampos05/BackendSolargy/internal/ingest"
	"github.com/JCampos05/BackendSolargy/internal/monitor"
	"github.com/JCampos05/BackendSolargy/internal/mqtt"
	"github.com/JCampos05/BackendSolargy/internal/stats"
	"github.com/JCampos05/BackendSolargy/internal/storage"
	"github.com/JCampos05/BackendSolargy/internal/timezone"

	"github.com/spf13/cobra"
)

var configFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "solargy",
		Short: "Solargy telemetry backend",
		Long:  "Ingests telemetry from solar harvesting sensor nodes and maintains per-device daily statistics",
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(regenerateCmd())
	rootCmd.AddCommand(statsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openDatabase(cfg *config.Config) (*storage.Database, error) {
	db, err := storage.NewDatabase(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.SeedTimezones(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to seed timezones: %w", err)
	}
	return db, nil
}

func newEngine(db *storage.Database, cfg *config.Config) *stats.Engine {
	return stats.NewEngine(db, stats.Config{
		SamplingInterval:     cfg.Aggregation.SamplingInterval,
		PanelAreaM2:          cfg.Aggregation.PanelAreaM2,
		UsefulLightThreshold: cfg.Aggregation.UsefulLightThreshold,
		DefaultNominalPower:  cfg.Aggregation.DefaultNominalPower,
	})
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the backend service",
		Long:  "Start the ingestion API, offline monitor, and MQTT publisher",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			db, err := openDatabase(cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			log.Printf("Database opened at %s", cfg.Database.Path)

			publisher, err := mqtt.NewPublisher(mqtt.PublisherConfig{
				Broker:      cfg.MQTT.Broker,
				ClientID:    cfg.MQTT.ClientID,
				Username:    cfg.MQTT.Username,
				Password:    cfg.MQTT.Password,
				TopicPrefix: cfg.MQTT.TopicPrefix,
				Enabled:     cfg.MQTT.Enabled,
			})
			if err != nil {
				log.Printf("Warning: MQTT connection failed: %v", err)
			} else if cfg.MQTT.Enabled {
				log.Printf("MQTT connected to %s", cfg.MQTT.Broker)
			}
			defer func() {
				if publisher != nil {
					publisher.Close()
				}
			}()

			engine := newEngine(db, cfg)
			ingestSvc := ingest.NewService(db, engine, publisher)

			watchdog := monitor.New(monitor.Config{
				Database:     db,
				Interval:     cfg.Monitor.CheckInterval,
				OfflineAfter: cfg.Monitor.OfflineAfter,
				Enabled:      cfg.Monitor.Enabled,
			})

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

			go func() {
				if err := watchdog.Start(ctx); err != nil {
					log.Printf("Offline monitor error: %v", err)
				}
			}()

			var server *api.Server
			if cfg.Server.Enabled {
				server = api.NewServer(api.ServerConfig{
					Port:     cfg.Server.Port,
					Database: db,
					Ingest:   ingestSvc,
					Engine:   engine,
					Monitor:  watchdog,
				})

				go func() {
					if err := server.Start(); err != nil {
						log.Printf("API server error: %v", err)
					}
				}()
			}

			log.Println("Solargy backend started. Press Ctrl+C to stop.")

			<-sigChan
			log.Println("Shutting down...")
			cancel()

			if server != nil {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				if err := server.Stop(shutdownCtx); err != nil {
					log.Printf("API shutdown error: %v", err)
				}
			}

			return nil
		},
	}
}

func regenerateCmd() *cobra.Command {
	var date string
	var deviceID string

	cmd := &cobra.Command{
		Use:   "regenerate",
		Short: "Regenerate daily statistics for a date",
		Long:  "Recompute the daily rollup for one device or every active device, typically from cron",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			if date == "" {
				date = time.Now().UTC().AddDate(0, 0, -1).Format(timezone.DateLayout)
			}
			if _, err := time.Parse(timezone.DateLayout, date); err != nil {
				return fmt.Errorf("invalid date %q: expected YYYY-MM-DD", date)
			}

			db, err := openDatabase(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			engine := newEngine(db, cfg)

			if deviceID != "" {
				result, err := engine.GenerateForDate(deviceID, date)
				if errors.Is(err, stats.ErrNoData) {
					fmt.Printf("No readings for %s on %s\n", deviceID, date)
					return nil
				}
				if err != nil {
					return err
				}

				output, _ := json.MarshalIndent(result, "", "  ")
				fmt.Println(string(output))
				return nil
			}

			report, err := engine.GenerateAllForDate(date)
			if err != nil {
				return err
			}

			fmt.Printf("Regenerated statistics for %s (%d devices):\n", report.Date, report.TotalDevices)
			for _, outcome := range report.Outcomes {
				switch {
				case outcome.NoData:
					fmt.Printf("  %-20s no data\n", outcome.DeviceID)
				case outcome.Success && outcome.Created:
					fmt.Printf("  %-20s created\n", outcome.DeviceID)
				case outcome.Success:
					fmt.Printf("  %-20s updated\n", outcome.DeviceID)
				default:
					fmt.Printf("  %-20s FAILED: %s\n", outcome.DeviceID, outcome.Error)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&date, "date", "d", "", "local date YYYY-MM-DD (default: yesterday UTC)")
	cmd.Flags().StringVar(&deviceID, "device", "", "regenerate a single device")
	return cmd
}

func statsCmd() *cobra.Command {
	var date string
	var deviceID string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print a stored daily statistic",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if deviceID == "" {
				return errors.New("--device is required")
			}
			if date == "" {
				date = time.Now().UTC().Format(timezone.DateLayout)
			}

			db, err := openDatabase(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			stat, err := db.DailyStatistic(deviceID, date)
			if err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					fmt.Printf("No statistic stored for %s on %s\n", deviceID, date)
					return nil
				}
				return err
			}

			fmt.Printf("Daily statistics for %s on %s:\n", deviceID, date)
			fmt.Printf("  Total Energy:   %.4f Wh\n", stat.TotalEnergy)
			fmt.Printf("  Peak Power:     %.3f mW at %s\n", stat.PeakPower, stat.PeakPowerTime)
			fmt.Printf("  Avg Power:      %.3f mW\n", stat.AvgPower)
			fmt.Printf("  Peak Irradiance: %.2f W/m²\n", stat.PeakIrradiance)
			fmt.Printf("  Useful Light:   %d min\n", stat.UsefulLightMinutes)
			fmt.Printf("  Efficiency:     %.2f %%\n", stat.PanelEfficiency)
			fmt.Printf("  Capacity Factor: %.2f %%\n", stat.CapacityFactor)
			fmt.Printf("  Readings:       %d\n", stat.ReadingCount)
			return nil
		},
	}

	cmd.Flags().StringVarP(&date, "date", "d", "", "local date YYYY-MM-DD (default: today UTC)")
	cmd.Flags().StringVar(&deviceID, "device", "", "device id")
	return cmd
}
