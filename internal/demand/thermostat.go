package demand

import (
	"time"

	"transactive-agent/internal/models"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
)

// Thermostat measurement names
const (
	OutdoorAirTemperature = "OAT"
	CoolingSetpoint       = "CSP"
	HeatingSetpoint       = "HSP"
	IndoorTemperature     = "TIN"
)

const (
	hoursPerDay         = 24
	defaultCurvePoints  = 50
	setpointFlexibility = 2.0 // Sweep half-width around the cooling setpoint
	thermostatModelName = "Thermostat"
)

// ThermostatConfig holds the hourly regression coefficients.
type ThermostatConfig struct {
	C1                []float64 `mapstructure:"c1"` // Cooling setpoint coefficient
	C2                []float64 `mapstructure:"c2"` // Indoor temperature coefficient
	C3                []float64 `mapstructure:"c3"` // Outdoor temperature coefficient
	C4                []float64 `mapstructure:"c4"` // Intercept
	RatedPower        float64   `mapstructure:"rated_power"`
	DemandCurvePoints int       `mapstructure:"demand_curve_points"`
}

// Thermostat predicts zone demand with an hour-of-day linear regression.
type Thermostat struct {
	topic  string
	config ThermostatConfig
	logger *logrus.Logger

	oat         float64
	csp         float64
	roomTemp    float64
	currentTime time.Time
	stale       bool
}

func newThermostatModel(entry models.ModelConfigEntry, _ *Registry, logger *logrus.Logger) (DeviceModel, error) {
	var cfg ThermostatConfig
	if err := decodeParams(entry.Params, &cfg); err != nil {
		return nil, &ConfigurationError{Topic: entry.Topic, Reason: "invalid thermostat parameters", Err: err}
	}
	return NewThermostat(entry.Topic, cfg, logger)
}

// NewThermostat validates the coefficient vectors and builds the model.
func NewThermostat(topic string, config ThermostatConfig, logger *logrus.Logger) (*Thermostat, error) {
	for i, v := range [][]float64{config.C1, config.C2, config.C3, config.C4} {
		if len(v) != hoursPerDay {
			return nil, configError(topic, "thermostat coefficient c%d has %d entries, want %d", i+1, len(v), hoursPerDay)
		}
	}

	if config.DemandCurvePoints == 0 {
		config.DemandCurvePoints = defaultCurvePoints
	}
	if config.DemandCurvePoints < 2 {
		return nil, configError(topic, "demand_curve_points must be at least 2, got %d", config.DemandCurvePoints)
	}

	return &Thermostat{
		topic:  topic,
		config: config,
		logger: logger,
	}, nil
}

func (t *Thermostat) GetName() string {
	return thermostatModelName
}

// UpdateData requires outdoor temperature, cooling setpoint and indoor
// temperature together; an incomplete sample leaves every value untouched.
func (t *Thermostat) UpdateData(data map[string]float64, timestamp time.Time) {
	oat, okOAT := data[OutdoorAirTemperature]
	csp, okCSP := data[CoolingSetpoint]
	tin, okTIN := data[IndoorTemperature]
	if !okOAT || !okCSP || !okTIN {
		t.logger.Debugf("Error for %s input data on topic %s", t.GetName(), t.topic)
		t.stale = true
		return
	}

	t.oat = oat
	t.csp = csp
	t.roomTemp = tin
	t.currentTime = timestamp
	t.stale = false
}

// Predict sweeps the cooling setpoint around its current value and returns
// the regression output for each candidate.
func (t *Thermostat) Predict(_ *Parameters) models.Prediction {
	hour := t.currentTime.Hour()
	if t.currentTime.IsZero() {
		t.logger.Debugf("Thermostat %s: no telemetry yet, using hour 0 coefficients", t.topic)
	}

	sweep := floats.Span(make([]float64, t.config.DemandCurvePoints), t.csp-setpointFlexibility, t.csp+setpointFlexibility)
	curve := make(models.DemandCurve, len(sweep))
	for i, csp := range sweep {
		curve[i] = models.Point{
			Setpoint: csp,
			Quantity: t.getQ(t.oat, t.roomTemp, csp, hour),
		}
	}

	return models.Prediction{
		Quantity: t.getQ(t.oat, t.roomTemp, t.csp, hour),
		Curve:    curve,
	}
}

func (t *Thermostat) getQ(oat, temp, tempStpt float64, index int) float64 {
	return tempStpt*t.config.C1[index] + temp*t.config.C2[index] + oat*t.config.C3[index] + t.config.C4[index]
}

func (t *Thermostat) IsStale() bool {
	return t.stale
}

func (t *Thermostat) GetStatus() map[string]interface{} {
	return map[string]interface{}{
		"name":         t.GetName(),
		"stale":        t.stale,
		"last_update":  t.currentTime,
		"oat":          t.oat,
		"csp":          t.csp,
		"room_temp":    t.roomTemp,
		"rated_power":  t.config.RatedPower,
		"curve_points": t.config.DemandCurvePoints,
	}
}
