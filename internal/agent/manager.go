package agent

import (
	"context"
	"sync"
	"time"

	"transactive-agent/internal/config"
	"transactive-agent/internal/demand"
	"transactive-agent/internal/metrics"
	"transactive-agent/internal/models"

	"github.com/sirupsen/logrus"
)

const defaultPredictionInterval = 60

// RecordPublisher sends prediction records to the outside world.
type RecordPublisher interface {
	PublishRecord(record models.PredictionRecord) error
}

// Manager owns the live registry. Telemetry, prediction rounds and
// reconfiguration are serialized so models never see overlapping calls.
type Manager struct {
	config  *config.Config
	logger  *logrus.Logger
	metrics *metrics.Metrics

	registry  *demand.Registry
	records   *models.RecordBuffer
	publisher RecordPublisher

	mutex sync.Mutex

	onRecord func(record models.PredictionRecord)
	onReload func(topics []string)
}

func NewManager(cfg *config.Config, registry *demand.Registry, m *metrics.Metrics, logger *logrus.Logger) *Manager {
	return &Manager{
		config:   cfg,
		logger:   logger,
		metrics:  m,
		registry: registry,
		records:  models.NewRecordBuffer(),
	}
}

func (m *Manager) SetPublisher(publisher RecordPublisher) {
	m.publisher = publisher
}

func (m *Manager) SetRecordCallback(callback func(models.PredictionRecord)) {
	m.onRecord = callback
}

func (m *Manager) SetReloadCallback(callback func(topics []string)) {
	m.onReload = callback
}

func (m *Manager) Records() *models.RecordBuffer {
	return m.records
}

// Topics lists the device topics of the live registry.
func (m *Manager) Topics() []string {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.registry.Topics()
}

// HandleTelemetry routes one decoded sample to the registry.
func (m *Manager) HandleTelemetry(topic string, data map[string]float64, timestamp time.Time) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, ok := m.registry.Model(topic); !ok {
		return
	}
	m.registry.UpdateData(topic, data, timestamp)
	m.metrics.TelemetryReceived.WithLabelValues(topic).Inc()
	m.logger.Debugf("Data received for %s (%d fields)", topic, len(data))
}

// HandleDropped counts telemetry that never reached a model.
func (m *Manager) HandleDropped(topic string) {
	m.metrics.TelemetryDropped.WithLabelValues(topic).Inc()
}

// Predict returns the current prediction for one topic.
func (m *Manager) Predict(topic string) models.Prediction {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.registry.Predict(topic, m.parameters())
}

func (m *Manager) parameters() *demand.Parameters {
	return &demand.Parameters{
		ZoneLoads: m.config.Agent.ZoneLoads,
		Realtime:  m.config.Agent.Realtime,
	}
}

// Reconfigure builds a registry from entries and swaps it in. On error the
// live registry is kept.
func (m *Manager) Reconfigure(entries []models.ModelConfigEntry) error {
	registry, err := demand.NewRegistry(entries, m.logger)
	if err != nil {
		m.metrics.Reloads.WithLabelValues("error").Inc()
		return err
	}

	m.mutex.Lock()
	m.registry = registry
	topics := registry.Topics()
	m.mutex.Unlock()

	m.records.Reset()
	m.metrics.PredictedQuantity.Reset()
	m.metrics.Reloads.WithLabelValues("success").Inc()
	m.logger.Infof("Model configuration reloaded: %d devices", len(topics))

	if m.onReload != nil {
		m.onReload(topics)
	}
	return nil
}

func (m *Manager) Start(ctx context.Context) {
	interval := m.config.Agent.PredictionInterval
	if interval <= 0 {
		interval = defaultPredictionInterval
	}
	ticker := time.NewTicker(time.Duration(interval) * time.Second)
	defer ticker.Stop()

	m.logger.Info("Starting prediction loop")

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Stopping prediction loop")
			return
		case <-ticker.C:
			m.RunPredictions(time.Now().UTC())
		}
	}
}

// RunPredictions computes one record per configured device and hands them
// to the publisher and record callback.
func (m *Manager) RunPredictions(now time.Time) []models.PredictionRecord {
	records := m.predictAll(now)

	for _, record := range records {
		m.records.Update(record)

		if m.publisher != nil {
			if err := m.publisher.PublishRecord(record); err != nil {
				m.logger.Errorf("Failed to publish record: %v", err)
			}
		}
		if m.onRecord != nil {
			m.onRecord(record)
		}
	}
	return records
}

func (m *Manager) predictAll(now time.Time) []models.PredictionRecord {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	params := m.parameters()
	topics := m.registry.Topics()
	records := make([]models.PredictionRecord, 0, len(topics))
	stale := 0

	for _, topic := range topics {
		model, _ := m.registry.Model(topic)
		prediction := m.registry.Predict(topic, params)
		if model.IsStale() {
			stale++
		}

		records = append(records, models.PredictionRecord{
			Topic:     topic,
			Model:     model.GetName(),
			Quantity:  prediction.Quantity,
			Curve:     prediction.Curve,
			Stale:     model.IsStale(),
			Timestamp: now,
		})
		m.metrics.Predictions.WithLabelValues(topic, model.GetName()).Inc()
		m.metrics.PredictedQuantity.WithLabelValues(topic).Set(prediction.Quantity)
	}
	m.metrics.StaleModels.Set(float64(stale))

	m.logger.Debugf("Prediction round: %d devices, %d stale", len(records), stale)
	return records
}

func (m *Manager) GetStatus() map[string]interface{} {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	return map[string]interface{}{
		"devices":             m.registry.GetStatus(),
		"device_count":        m.registry.Len(),
		"prediction_interval": m.config.Agent.PredictionInterval,
		"realtime":            m.config.Agent.Realtime,
		"records":             m.records.All(),
	}
}
