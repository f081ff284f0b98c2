package demand

import (
	"math"
	"strconv"

	"github.com/sirupsen/logrus"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

const (
	defaultFanGroupKey      = 100.0 // Implicit key of a flat coefficient set
	defaultFanGroupFallback = 20.0
	defaultFanPowerUnit     = "kW"
)

// FanCoefficients of the cubic power-vs-airflow curve.
type FanCoefficients struct {
	C0 float64 `mapstructure:"c0"`
	C1 float64 `mapstructure:"c1"`
	C2 float64 `mapstructure:"c2"`
	C3 float64 `mapstructure:"c3"`
}

// FanConfig accepts either a coefficient table keyed by the grouping
// measurement or one flat coefficient set.
type FanConfig struct {
	PowerUnit               string                     `mapstructure:"power_unit"`
	CoefficientGroupBy      string                     `mapstructure:"coefficient_group_by"`
	CoefficientGroupDefault *float64                   `mapstructure:"coefficient_group_default"`
	Coefficients            map[string]FanCoefficients `mapstructure:"coefficients"`

	C0 *float64 `mapstructure:"c0"`
	C1 *float64 `mapstructure:"c1"`
	C2 *float64 `mapstructure:"c2"`
	C3 *float64 `mapstructure:"c3"`
}

// FanInputs reads the live values the fan depends on from its owner.
type FanInputs struct {
	Measurement func(name string) (float64, bool)
	Airflow     func() float64
}

// Fan models supply fan power as a cubic polynomial of airflow.
type Fan struct {
	powerUnit    string
	groupBy      string
	groupDefault float64
	table        map[float64]FanCoefficients
	keys         []float64 // ascending
	inputs       FanInputs
	logger       *logrus.Logger

	current    FanCoefficients
	currentKey float64
}

// NewFan builds the fan curve. Coefficients are mandatory: without a table
// or a complete flat set a ConfigurationError is returned.
func NewFan(topic string, config FanConfig, inputs FanInputs, logger *logrus.Logger) (*Fan, error) {
	f := &Fan{
		powerUnit:    config.PowerUnit,
		groupBy:      config.CoefficientGroupBy,
		groupDefault: defaultFanGroupFallback,
		table:        make(map[float64]FanCoefficients),
		inputs:       inputs,
		logger:       logger,
	}
	if f.powerUnit == "" {
		f.powerUnit = defaultFanPowerUnit
	}
	if config.CoefficientGroupDefault != nil {
		f.groupDefault = *config.CoefficientGroupDefault
	}

	if err := f.initModel(topic, config); err != nil {
		return nil, err
	}
	f.keys = maps.Keys(f.table)
	slices.Sort(f.keys)
	f.UpdateCurrentCoefficients()
	return f, nil
}

func (f *Fan) initModel(topic string, config FanConfig) error {
	if len(config.Coefficients) == 0 {
		if config.C0 == nil || config.C1 == nil || config.C2 == nil || config.C3 == nil {
			return configError(topic, "no fan model coefficients specified")
		}
		f.table[defaultFanGroupKey] = FanCoefficients{C0: *config.C0, C1: *config.C1, C2: *config.C2, C3: *config.C3}
		return nil
	}

	for raw, coeff := range config.Coefficients {
		key, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return &ConfigurationError{Topic: topic, Reason: "invalid fan coefficient group key " + strconv.Quote(raw), Err: err}
		}
		f.table[key] = coeff
	}
	return nil
}

// UpdateCurrentCoefficients selects the coefficient group whose key is
// nearest to the live grouping measurement. A single group is always used
// as is. Ties go to the smaller key.
func (f *Fan) UpdateCurrentCoefficients() {
	if len(f.keys) == 1 {
		f.currentKey = f.keys[0]
		f.current = f.table[f.currentKey]
		return
	}

	measurement := f.groupDefault
	if f.groupBy != "" && f.inputs.Measurement != nil {
		if v, ok := f.inputs.Measurement(f.groupBy); ok {
			measurement = v
		}
	}

	best := f.keys[0]
	for _, key := range f.keys[1:] {
		if math.Abs(key-measurement) < math.Abs(best-measurement) {
			best = key
		}
	}
	f.currentKey = best
	f.current = f.table[best]
}

// CalculatePower evaluates the fan curve at the owner's airflow. The result
// is not clamped.
func (f *Fan) CalculatePower() float64 {
	airflow := f.inputs.Airflow()
	c := f.current
	return c.C0 + c.C1*airflow + c.C2*airflow*airflow + c.C3*airflow*airflow*airflow
}

// bind returns a copy of the fan reading from other inputs.
func (f *Fan) bind(inputs FanInputs) *Fan {
	clone := *f
	clone.inputs = inputs
	return &clone
}

func (f *Fan) GetStatus() map[string]interface{} {
	return map[string]interface{}{
		"power_unit":   f.powerUnit,
		"group_by":     f.groupBy,
		"group_key":    f.currentKey,
		"groups":       len(f.keys),
		"coefficients": f.current,
	}
}
