package demand

import (
	"math"

	"github.com/sirupsen/logrus"
)

const (
	defaultCpAir    = 0.0003148
	defaultCOP      = 5.5
	auxiliaryFactor = 0.9
)

// CoilConfig holds the cooling coil constants.
type CoilConfig struct {
	CpAir *float64 `mapstructure:"cpAir"`
	COP   *float64 `mapstructure:"cop"`
}

// CoilInputs reads the owner's live air-side values.
type CoilInputs struct {
	MixedAirTemp      func() (float64, bool)
	DischargeAirTemp  func() (float64, bool)
	Airflow           func() float64
	DischargeSetpoint func() float64
}

// CoolingCoil converts an air-side cooling load into chiller power.
type CoolingCoil struct {
	cpAir  float64
	cop    float64
	inputs CoilInputs
	logger *logrus.Logger

	hasEconomizer   bool
	economizerLimit float64
	minOAF          float64
	avgZoneSetpoint float64

	// refreshed from the owner on every calculation
	mat      float64
	matValid bool
	dat      float64
	datValid bool
	airflow  float64
	datSp    float64
}

// NewCoolingCoil copies the economizer settings of the owning equipment.
func NewCoolingCoil(topic string, config CoilConfig, equipment EquipmentConfiguration, inputs CoilInputs, logger *logrus.Logger) (*CoolingCoil, error) {
	c := &CoolingCoil{
		cpAir:           defaultCpAir,
		cop:             defaultCOP,
		inputs:          inputs,
		logger:          logger,
		hasEconomizer:   equipment.HasEconomizer,
		economizerLimit: equipment.EconomizerLimit,
		minOAF:          equipment.MinimumOAF,
		avgZoneSetpoint: equipment.NominalZoneSetpoint,
	}
	if config.CpAir != nil {
		c.cpAir = *config.CpAir
	}
	if config.COP != nil {
		c.cop = *config.COP
	}
	if c.cop <= 0 {
		return nil, configError(topic, "coil cop must be positive, got %v", c.cop)
	}
	return c, nil
}

func (c *CoolingCoil) updateData() {
	c.mat, c.matValid = c.inputs.MixedAirTemp()
	c.dat, c.datValid = c.inputs.DischargeAirTemp()
	c.airflow = c.inputs.Airflow()
	c.datSp = c.inputs.DischargeSetpoint()
}

// currentCoilLoad uses the measured discharge and mixed air temperatures.
func (c *CoolingCoil) currentCoilLoad() float64 {
	if !c.matValid || !c.datValid {
		c.logger.Debug("AHU for single market requires dat and mat measurements!")
		return 0
	}
	coilLoad := c.airflow * c.cpAir * (c.dat - c.mat)
	// positive load is heating
	return math.Min(0, coilLoad)
}

// calculateCoilLoad estimates the load from an outdoor temperature forecast.
func (c *CoolingCoil) calculateCoilLoad(oat *float64) float64 {
	if oat == nil {
		c.logger.Debug("No OAT measurement - Cannot calculate coil load!")
		return 0
	}

	var coilLoad float64
	switch {
	case !c.hasEconomizer:
		coilLoad = c.airflow * c.cpAir * (c.datSp - c.mixedAirTemp(*oat))
	case *oat < c.datSp:
		coilLoad = 0
	case *oat < c.economizerLimit:
		coilLoad = c.airflow * c.cpAir * (c.datSp - *oat)
	default:
		coilLoad = c.airflow * c.cpAir * (c.datSp - c.mixedAirTemp(*oat))
	}
	return math.Min(0, coilLoad)
}

// mixedAirTemp blends the nominal zone setpoint with the minimum outdoor air.
func (c *CoolingCoil) mixedAirTemp(oat float64) float64 {
	return c.avgZoneSetpoint*(1.0-c.minOAF) + c.minOAF*oat
}

// CalculateLoad returns the electric power needed to meet the coil load,
// always non-negative.
func (c *CoolingCoil) CalculateLoad(oat *float64, realtime bool) float64 {
	c.updateData()

	var coilLoad float64
	if realtime {
		coilLoad = c.currentCoilLoad()
	} else {
		coilLoad = c.calculateCoilLoad(oat)
	}
	return math.Abs(coilLoad) / c.cop / auxiliaryFactor
}

func (c *CoolingCoil) bind(inputs CoilInputs) *CoolingCoil {
	clone := *c
	clone.inputs = inputs
	return &clone
}

func (c *CoolingCoil) GetStatus() map[string]interface{} {
	return map[string]interface{}{
		"cp_air":           c.cpAir,
		"cop":              c.cop,
		"has_economizer":   c.hasEconomizer,
		"economizer_limit": c.economizerLimit,
		"minimum_oaf":      c.minOAF,
	}
}
