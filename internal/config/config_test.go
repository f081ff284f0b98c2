package config

import (
	"bytes"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
mqtt:
  broker: tcp://broker:1883
  record_prefix: record/building
agent:
  prediction_interval: 30
  zone_loads: [500, 1000, 1500]
models:
  - topic: devices/campus/building/rtu1
    model_type: ahuchiller.ahuchiller
    equipment_configuration:
      has_economizer: true
      economizer_limit: 65.0
      supply_air_setpoint: 55.0
      nominal_zone_setpoint: 72.0
      building_chiller: true
    model_configuration:
      fan:
        coefficient_group_by: oad
        coefficients:
          20: {c0: 0.1308, c1: 0.0004, c2: -4.0e-8, c3: 5.0e-12}
          100: {c0: 0.1308, c1: 0.0004, c2: -4.0e-8, c3: 5.0e-12}
      coil:
        COP: 6.16
        cpAir: 0.0003148
  - model_type: thermostat.Thermostat
`

func loadFromString(t *testing.T, content string) *Config {
	t.Helper()
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)
	require.NoError(t, v.ReadConfig(bytes.NewBufferString(content)))

	cfg, err := Decode(v)
	require.NoError(t, err)
	return cfg
}

func TestDecode_Defaults(t *testing.T) {
	cfg := loadFromString(t, "agent:\n  realtime: true\n")

	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	assert.Equal(t, "transactive-agent", cfg.MQTT.ClientID)
	assert.Equal(t, 60, cfg.Agent.PredictionInterval)
	assert.Equal(t, "info", cfg.Agent.LogLevel)
	assert.True(t, cfg.Agent.Realtime)
	assert.Equal(t, 8080, cfg.Status.Port)
	assert.Empty(t, cfg.ModelEntries())
}

func TestDecode_ModelEntries(t *testing.T) {
	cfg := loadFromString(t, sampleConfig)

	assert.Equal(t, "tcp://broker:1883", cfg.MQTT.Broker)
	assert.Equal(t, "record/building", cfg.MQTT.RecordPrefix)
	assert.Equal(t, 30, cfg.Agent.PredictionInterval)
	assert.Equal(t, []float64{500, 1000, 1500}, cfg.Agent.ZoneLoads)

	entries := cfg.ModelEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, "devices/campus/building/rtu1", entries[0].Topic)
	assert.Equal(t, "ahuchiller.ahuchiller", entries[0].ModelType)
	assert.Contains(t, entries[0].Params, "equipment_configuration")

	assert.Empty(t, entries[1].Topic)
	assert.Equal(t, "thermostat.Thermostat", entries[1].ModelType)
}
