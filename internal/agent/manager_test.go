package agent

import (
	"errors"
	"testing"
	"time"

	"transactive-agent/internal/config"
	"transactive-agent/internal/demand"
	"transactive-agent/internal/metrics"
	"transactive-agent/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	records []models.PredictionRecord
	err     error
}

func (p *fakePublisher) PublishRecord(record models.PredictionRecord) error {
	p.records = append(p.records, record)
	return p.err
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func thermostatEntry(topic string) models.ModelConfigEntry {
	c1 := make([]float64, 24)
	c1[12] = 1
	return models.ModelConfigEntry{
		Topic:     topic,
		ModelType: "thermostat.Thermostat",
		Params: map[string]interface{}{
			"c1":                  c1,
			"c2":                  make([]float64, 24),
			"c3":                  make([]float64, 24),
			"c4":                  make([]float64, 24),
			"rated_power":         3.0,
			"demand_curve_points": 5,
		},
	}
}

func ahuEntry(topic string) models.ModelConfigEntry {
	return models.ModelConfigEntry{
		Topic:     topic,
		ModelType: "ahuchiller.ahuchiller",
		Params: map[string]interface{}{
			"equipment_configuration": map[string]interface{}{
				"has_economizer":        false,
				"supply_air_setpoint":   55.0,
				"nominal_zone_setpoint": 72.0,
				"building_chiller":      true,
				"minimum_oaf":           0.2,
			},
			"model_configuration": map[string]interface{}{
				"fan":  map[string]interface{}{"c0": 0.0, "c1": 0.0, "c2": 0.0, "c3": 0.0},
				"coil": map[string]interface{}{"cop": 5.5},
			},
		},
	}
}

func newTestManager(t *testing.T, cfg *config.Config, entries ...models.ModelConfigEntry) *Manager {
	t.Helper()
	registry, err := demand.NewRegistry(entries, testLogger())
	require.NoError(t, err)
	return NewManager(cfg, registry, metrics.New(), testLogger())
}

func TestManager_PredictionRound(t *testing.T) {
	cfg := &config.Config{Agent: config.AgentConfig{ZoneLoads: []float64{500, 1000}}}
	manager := newTestManager(t, cfg, thermostatEntry("devices/tstat"), ahuEntry("devices/rtu"))
	publisher := &fakePublisher{}
	manager.SetPublisher(publisher)

	var callbacks int
	manager.SetRecordCallback(func(models.PredictionRecord) { callbacks++ })

	noon := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	manager.HandleTelemetry("devices/tstat", map[string]float64{"OAT": 90, "CSP": 70, "TIN": 74}, noon)
	manager.HandleTelemetry("devices/rtu", map[string]float64{"OutdoorAirTemperature": 90}, noon)
	manager.HandleTelemetry("devices/unknown", map[string]float64{"OAT": 90}, noon)

	records := manager.RunPredictions(noon)
	require.Len(t, records, 2)
	assert.Len(t, publisher.records, 2)
	assert.Equal(t, 2, callbacks)

	rtu := records[0]
	assert.Equal(t, "devices/rtu", rtu.Topic)
	assert.Equal(t, "AhuChiller", rtu.Model)
	assert.True(t, rtu.Stale)
	require.Len(t, rtu.Curve, 2)
	assert.InDelta(t, 1000*0.0003148*(75.6-55)/5.5/0.9, rtu.Curve[1].Quantity, 1e-9)

	tstat := records[1]
	assert.Equal(t, "devices/tstat", tstat.Topic)
	assert.False(t, tstat.Stale)
	assert.Equal(t, []float64{68, 69, 70, 71, 72}, tstat.Curve.Quantities())
	assert.Equal(t, noon, tstat.Timestamp)

	stored, ok := manager.Records().Get("devices/tstat")
	assert.True(t, ok)
	assert.Equal(t, tstat, stored)
}

func TestManager_PublishErrorDoesNotStopRound(t *testing.T) {
	manager := newTestManager(t, &config.Config{}, thermostatEntry("devices/a"), thermostatEntry("devices/b"))
	publisher := &fakePublisher{err: errors.New("broker down")}
	manager.SetPublisher(publisher)

	records := manager.RunPredictions(time.Now())
	assert.Len(t, records, 2)
	assert.Len(t, publisher.records, 2)
}

func TestManager_PredictUnknownTopic(t *testing.T) {
	manager := newTestManager(t, &config.Config{}, thermostatEntry("devices/tstat"))
	assert.Equal(t, models.Prediction{}, manager.Predict("devices/unknown"))
	assert.True(t, manager.Predict("devices/tstat").IsCurve())
}

func TestManager_Reconfigure(t *testing.T) {
	manager := newTestManager(t, &config.Config{}, thermostatEntry("devices/tstat"))
	manager.RunPredictions(time.Now())

	var reloaded []string
	manager.SetReloadCallback(func(topics []string) { reloaded = topics })

	err := manager.Reconfigure([]models.ModelConfigEntry{thermostatEntry("devices/new"), {ModelType: "thermostat.Thermostat"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, demand.ErrConfiguration)
	assert.Equal(t, []string{"devices/tstat"}, manager.Topics())
	assert.Nil(t, reloaded)

	require.NoError(t, manager.Reconfigure([]models.ModelConfigEntry{thermostatEntry("devices/new"), ahuEntry("devices/rtu")}))
	assert.Equal(t, []string{"devices/new", "devices/rtu"}, manager.Topics())
	assert.Equal(t, []string{"devices/new", "devices/rtu"}, reloaded)
	assert.Empty(t, manager.Records().All())
}

func TestManager_GetStatus(t *testing.T) {
	manager := newTestManager(t, &config.Config{Agent: config.AgentConfig{PredictionInterval: 30}}, thermostatEntry("devices/tstat"))
	status := manager.GetStatus()

	assert.Equal(t, 1, status["device_count"])
	assert.Equal(t, 30, status["prediction_interval"])
	assert.Contains(t, status["devices"], "devices/tstat")
}
