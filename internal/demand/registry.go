package demand

import (
	"time"

	"transactive-agent/internal/models"

	"github.com/sirupsen/logrus"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Registry indexes device models by telemetry topic. It is built once per
// configuration and never mutated afterwards; reconfiguration builds a new one.
type Registry struct {
	models map[string]DeviceModel
	logger *logrus.Logger
}

// NewRegistry builds a registry from the built-in model families.
func NewRegistry(entries []models.ModelConfigEntry, logger *logrus.Logger) (*Registry, error) {
	return BuildRegistry(entries, DefaultFactories(), logger)
}

// BuildRegistry instantiates one model per entry. Any failing entry aborts
// the build and no registry is returned.
func BuildRegistry(entries []models.ModelConfigEntry, factories FactoryTable, logger *logrus.Logger) (*Registry, error) {
	r := &Registry{
		models: make(map[string]DeviceModel),
		logger: logger,
	}

	built := make(map[string]DeviceModel, len(entries))
	for i, entry := range entries {
		if entry.Topic == "" {
			return nil, configError("", "entry %d: missing topic", i)
		}
		if entry.ModelType == "" {
			return nil, configError(entry.Topic, "missing model_type")
		}
		if _, exists := built[entry.Topic]; exists {
			return nil, configError(entry.Topic, "duplicate topic")
		}

		reg, err := factories.resolve(entry.Topic, entry.ModelType)
		if err != nil {
			return nil, err
		}

		model, err := reg.Factory(entry, r, logger)
		if err != nil {
			return nil, err
		}
		built[entry.Topic] = model
		logger.Debugf("Registry: created %s model for %s", model.GetName(), entry.Topic)
	}

	r.models = built
	logger.Infof("Registry: %d device models configured", len(built))
	return r, nil
}

// UpdateData forwards a telemetry sample to the model configured for topic.
// Samples for unknown topics are dropped.
func (r *Registry) UpdateData(topic string, data map[string]float64, timestamp time.Time) {
	model, ok := r.models[topic]
	if !ok {
		return
	}
	model.UpdateData(data, timestamp)
}

// Predict asks the model configured for topic for its demand estimate. An
// unconfigured topic yields the zero prediction.
func (r *Registry) Predict(topic string, params *Parameters) models.Prediction {
	model, ok := r.models[topic]
	if !ok {
		r.logger.Debugf("Registry: no model for %s, returning zero prediction", topic)
		return models.Prediction{}
	}
	return model.Predict(params)
}

// Model returns the model configured for topic.
func (r *Registry) Model(topic string) (DeviceModel, bool) {
	model, ok := r.models[topic]
	return model, ok
}

// Topics returns the configured topics in lexical order.
func (r *Registry) Topics() []string {
	topics := maps.Keys(r.models)
	slices.Sort(topics)
	return topics
}

func (r *Registry) Len() int {
	return len(r.models)
}

func (r *Registry) GetStatus() map[string]interface{} {
	status := make(map[string]interface{}, len(r.models))
	for topic, model := range r.models {
		status[topic] = model.GetStatus()
	}
	return status
}
