package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	MQTT        MQTTConfig        `mapstructure:"mqtt"`
	Aggregation AggregationConfig `mapstructure:"aggregation"`
	Monitor     MonitorConfig     `mapstructure:"monitor"`
}

type ServerConfig struct {
	Port    int  `mapstructure:"port"`
	Enabled bool `mapstructure:"enabled"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type MQTTConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Broker      string `mapstructure:"broker"`
	TopicPrefix string `mapstructure:"topic_prefix"`
	ClientID    string `mapstructure:"client_id"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
}

type AggregationConfig struct {
	// SamplingInterval is the expected spacing between device readings.
	SamplingInterval     time.Duration `mapstructure:"sampling_interval"`
	PanelAreaM2          float64       `mapstructure:"panel_area_m2"`
	UsefulLightThreshold float64       `mapstructure:"useful_light_threshold_wm2"`
	DefaultNominalPower  float64       `mapstructure:"default_nominal_power_mw"`
}

type MonitorConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	CheckInterval time.Duration `mapstructure:"check_interval"`
	OfflineAfter  time.Duration `mapstructure:"offline_after"`
}

func Load(configPath string) (*Config, error) {
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/solargy")
	}

	// Set defaults
	viper.SetDefault("server.port", 3000)
	viper.SetDefault("server.enabled", true)
	viper.SetDefault("database.path", "./solargy.db")
	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt.topic_prefix", "solargy")
	viper.SetDefault("mqtt.client_id", "solargy-backend")
	viper.SetDefault("mqtt.username", "")
	viper.SetDefault("mqtt.password", "")
	viper.SetDefault("aggregation.sampling_interval", "1m")
	viper.SetDefault("aggregation.panel_area_m2", 0.01)
	viper.SetDefault("aggregation.useful_light_threshold_wm2", 50.0)
	viper.SetDefault("aggregation.default_nominal_power_mw", 800.0)
	viper.SetDefault("monitor.enabled", true)
	viper.SetDefault("monitor.check_interval", "1m")
	viper.SetDefault("monitor.offline_after", "10m")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
