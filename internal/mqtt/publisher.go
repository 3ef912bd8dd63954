package mqtt

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/JCampos05/BackendSolargy/internal/storage"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Publisher mirrors accepted readings and refreshed daily rollups to an
// MQTT broker so dashboards can subscribe instead of polling the API.
type Publisher struct {
	client      mqtt.Client
	topicPrefix string
	enabled     bool
}

type PublisherConfig struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	Enabled     bool
}

func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	if !cfg.Enabled {
		return &Publisher{enabled: false}, nil
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetConnectionLostHandler(func(c mqtt.Client, err error) {
			log.Printf("MQTT connection lost: %v", err)
		}).
		SetOnConnectHandler(func(c mqtt.Client) {
			log.Println("MQTT connected")
		})

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return &Publisher{
		client:      client,
		topicPrefix: cfg.TopicPrefix,
		enabled:     true,
	}, nil
}

// PublishReading publishes the key measurements on individual topics plus
// the full sample as retained JSON under <prefix>/<device>/reading.
func (p *Publisher) PublishReading(reading *storage.Reading) error {
	if !p.enabled {
		return nil
	}

	values := map[string]interface{}{
		"voltage":            reading.Voltage,
		"current":            reading.Current,
		"power":              reading.Power,
		"solar_radiation":    reading.SolarRadiation,
		"irradiance":         reading.Irradiance,
		"energy_accumulated": reading.EnergyAccumulated,
		"uptime_seconds":     reading.UptimeSeconds,
	}

	for name, value := range values {
		topic := fmt.Sprintf("%s/%s/%s", p.topicPrefix, reading.DeviceID, name)
		token := p.client.Publish(topic, 0, false, fmt.Sprintf("%v", value))
		token.Wait()
		if token.Error() != nil {
			log.Printf("Failed to publish to %s: %v", topic, token.Error())
		}
	}

	payload, err := json.Marshal(reading)
	if err != nil {
		return fmt.Errorf("failed to marshal reading: %w", err)
	}

	topic := fmt.Sprintf("%s/%s/reading", p.topicPrefix, reading.DeviceID)
	token := p.client.Publish(topic, 0, true, payload)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("failed to publish reading: %w", token.Error())
	}

	return nil
}

// PublishDailyStatistic publishes the recomputed rollup as retained JSON
// under <prefix>/<device>/stats/daily.
func (p *Publisher) PublishDailyStatistic(stat *storage.DailyStatistic) error {
	if !p.enabled {
		return nil
	}

	payload, err := json.Marshal(stat)
	if err != nil {
		return fmt.Errorf("failed to marshal daily statistic: %w", err)
	}

	topic := fmt.Sprintf("%s/%s/stats/daily", p.topicPrefix, stat.DeviceID)
	token := p.client.Publish(topic, 0, true, payload)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("failed to publish daily statistic: %w", token.Error())
	}

	return nil
}

func (p *Publisher) IsConnected() bool {
	if !p.enabled {
		return false
	}
	return p.client.IsConnected()
}

func (p *Publisher) Close() {
	if p.enabled && p.client != nil {
		p.client.Disconnect(1000)
	}
}
