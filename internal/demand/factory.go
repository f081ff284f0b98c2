package demand

import (
	"fmt"
	"strings"

	"transactive-agent/internal/models"

	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
)

// ModelFamily is the implementation-family part of a model type.
type ModelFamily string

const (
	ThermostatFamily ModelFamily = "thermostat"
	AHUChillerFamily ModelFamily = "ahuchiller"
)

// Factory builds a device model from its configuration entry. The registry
// under construction is handed over so composite models can reach siblings.
type Factory func(entry models.ModelConfigEntry, registry *Registry, logger *logrus.Logger) (DeviceModel, error)

// Registration binds a family to the class it provides.
type Registration struct {
	ClassName string
	Factory   Factory
}

// FactoryTable maps a model family to its registration.
type FactoryTable map[ModelFamily]Registration

// DefaultFactories returns the table of built-in device models.
func DefaultFactories() FactoryTable {
	return FactoryTable{
		ThermostatFamily: {ClassName: "Thermostat", Factory: newThermostatModel},
		AHUChillerFamily: {ClassName: "ahuchiller", Factory: newAHUChillerModel},
	}
}

// Register adds or replaces a family in the table.
func (t FactoryTable) Register(family ModelFamily, className string, factory Factory) {
	t[family] = Registration{ClassName: className, Factory: factory}
}

// resolve splits "<family>.<className>" and looks the family up.
func (t FactoryTable) resolve(topic, modelType string) (Registration, error) {
	parts := strings.SplitN(modelType, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Registration{}, configError(topic, "malformed model_type %q, expected <family>.<class>", modelType)
	}

	family := ModelFamily(strings.ToLower(parts[0]))
	reg, ok := t[family]
	if !ok {
		return Registration{}, configError(topic, "unknown model family %q", parts[0])
	}
	if !strings.EqualFold(reg.ClassName, parts[1]) {
		return Registration{}, configError(topic, "model family %q has no class %q", parts[0], parts[1])
	}
	return reg, nil
}

// decodeParams decodes loosely typed configuration into a typed struct.
func decodeParams(input interface{}, output interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           output,
		TagName:          "mapstructure",
	})
	if err != nil {
		return fmt.Errorf("creating decoder: %w", err)
	}
	return decoder.Decode(input)
}
