package config

import (
	"fmt"
	"os"

	"transactive-agent/internal/models"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

type Config struct {
	MQTT   MQTTConfig               `mapstructure:"mqtt"`
	Agent  AgentConfig              `mapstructure:"agent"`
	Status StatusConfig             `mapstructure:"status"`
	Models []map[string]interface{} `mapstructure:"models"`
}

type MQTTConfig struct {
	Broker       string `mapstructure:"broker"`
	ClientID     string `mapstructure:"client_id"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	RecordPrefix string `mapstructure:"record_prefix"`
	Discovery    bool   `mapstructure:"discovery"`
}

type AgentConfig struct {
	PredictionInterval int       `mapstructure:"prediction_interval"`
	LogLevel           string    `mapstructure:"log_level"`
	Realtime           bool      `mapstructure:"realtime"`
	ZoneLoads          []float64 `mapstructure:"zone_loads"`
}

type StatusConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id", "transactive-agent")
	v.SetDefault("mqtt.record_prefix", "record/transactive")
	v.SetDefault("mqtt.discovery", false)
	v.SetDefault("agent.prediction_interval", 60)
	v.SetDefault("agent.log_level", "info")
	v.SetDefault("agent.realtime", false)
	v.SetDefault("status.port", 8080)
	v.SetDefault("status.host", "0.0.0.0")
}

// Load reads config.yaml from . or ./config, overlaid by the environment.
// The returned viper instance can be watched for changes.
func Load() (*Config, *viper.Viper, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	setDefaults(v)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			fmt.Println("Config file not found, using defaults")
		} else {
			return nil, nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg, err := Decode(v)
	if err != nil {
		return nil, nil, err
	}
	return cfg, v, nil
}

// Decode unmarshals the current viper state into a Config.
func Decode(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if config.MQTT.Broker == "" {
		config.MQTT.Broker = os.Getenv("MQTT_BROKER")
	}
	if config.MQTT.Username == "" {
		config.MQTT.Username = os.Getenv("MQTT_USERNAME")
	}
	if config.MQTT.Password == "" {
		config.MQTT.Password = os.Getenv("MQTT_PASSWORD")
	}

	return &config, nil
}

// ModelEntries turns the raw "models" list into configuration entries. A
// missing topic or model_type is left empty for the registry to reject.
func (c *Config) ModelEntries() []models.ModelConfigEntry {
	entries := make([]models.ModelConfigEntry, 0, len(c.Models))
	for _, raw := range c.Models {
		entries = append(entries, models.ModelConfigEntry{
			Topic:     cast.ToString(raw["topic"]),
			ModelType: cast.ToString(raw["model_type"]),
			Params:    raw,
		})
	}
	return entries
}
