package demand

import (
	"math"
	"strings"
	"time"

	"transactive-agent/internal/models"

	"github.com/sirupsen/logrus"
)

// Short names of the AHU measurements, also accepted as coefficient_group_by.
const (
	PointSupplyFanStatus  = "sfs"
	PointMixedAirTemp     = "mat"
	PointDischargeAirTemp = "dat"
	PointSupplyAirFlow    = "saf"
	PointOutdoorAirTemp   = "oat"
	PointReturnAirTemp    = "rat"
	PointOutdoorDamper    = "oad"
)

const (
	ahuChillerModelName   = "AhuChiller"
	defaultMinimumOAF     = 0.15
	defaultVariableVolume = true
)

// DefaultPointNames maps each short name to the telemetry field it is read from.
var DefaultPointNames = map[string]string{
	PointSupplyFanStatus:  "SupplyFanStatus",
	PointMixedAirTemp:     "MixedAirTemperature",
	PointDischargeAirTemp: "DischargeAirTemperature",
	PointSupplyAirFlow:    "SupplyAirFlow",
	PointOutdoorAirTemp:   "OutdoorAirTemperature",
	PointReturnAirTemp:    "ReturnAirTemperature",
	PointOutdoorDamper:    "OutdoorDamperSignal",
}

var ahuPoints = []string{
	PointSupplyFanStatus,
	PointMixedAirTemp,
	PointDischargeAirTemp,
	PointSupplyAirFlow,
	PointOutdoorAirTemp,
	PointReturnAirTemp,
	PointOutdoorDamper,
}

// EquipmentConfiguration is fixed at construction.
type EquipmentConfiguration struct {
	HasEconomizer       bool
	EconomizerLimit     float64
	SupplyAirSetpoint   float64
	NominalZoneSetpoint float64
	BuildingChiller     bool
	MinimumOAF          float64
	VariableVolume      bool
}

// equipmentInput keeps optional fields as pointers to tell absent from zero.
type equipmentInput struct {
	HasEconomizer       *bool    `mapstructure:"has_economizer"`
	EconomizerLimit     *float64 `mapstructure:"economizer_limit"`
	SupplyAirSetpoint   *float64 `mapstructure:"supply_air_setpoint"`
	NominalZoneSetpoint *float64 `mapstructure:"nominal_zone_setpoint"`
	BuildingChiller     *bool    `mapstructure:"building_chiller"`
	MinimumOAF          *float64 `mapstructure:"minimum_oaf"`
	VariableVolume      *bool    `mapstructure:"variable_volume"`
}

type ahuChillerInput struct {
	Equipment  *equipmentInput        `mapstructure:"equipment_configuration"`
	Model      map[string]interface{} `mapstructure:"model_configuration"`
	PointNames map[string]string      `mapstructure:"point_names"`
}

// measurement is a last known good telemetry value.
type measurement struct {
	value float64
	valid bool
}

// airHandlerState is shared by the AHU with its fan and coil through accessors.
type airHandlerState struct {
	points   map[string]measurement
	mDotAir  float64 // Zone airflow
	tDis     float64 // Discharge air setpoint
	lastTime time.Time
}

func (s *airHandlerState) get(name string) (float64, bool) {
	m := s.points[strings.ToLower(name)]
	return m.value, m.valid
}

func (s *airHandlerState) copy() *airHandlerState {
	c := *s
	c.points = make(map[string]measurement, len(s.points))
	for k, v := range s.points {
		c.points[k] = v
	}
	return &c
}

// AHUChiller combines a supply fan and a chilled water coil.
type AHUChiller struct {
	topic      string
	equipment  EquipmentConfiguration
	pointNames map[string]string
	logger     *logrus.Logger

	state *airHandlerState
	fan   *Fan
	coil  *CoolingCoil
	stale bool
}

func newAHUChillerModel(entry models.ModelConfigEntry, _ *Registry, logger *logrus.Logger) (DeviceModel, error) {
	var in ahuChillerInput
	if err := decodeParams(entry.Params, &in); err != nil {
		return nil, &ConfigurationError{Topic: entry.Topic, Reason: "invalid ahuchiller parameters", Err: err}
	}

	equipment, err := parseEquipmentConfiguration(entry.Topic, in.Equipment)
	if err != nil {
		return nil, err
	}

	fanConf, coilConf, err := parseModelConfiguration(entry.Topic, in.Model)
	if err != nil {
		return nil, err
	}

	return NewAHUChiller(entry.Topic, equipment, fanConf, coilConf, in.PointNames, logger)
}

func parseEquipmentConfiguration(topic string, in *equipmentInput) (EquipmentConfiguration, error) {
	if in == nil {
		return EquipmentConfiguration{}, configError(topic, "missing equipment_configuration")
	}
	if in.SupplyAirSetpoint == nil {
		return EquipmentConfiguration{}, configError(topic, "missing supply_air_setpoint")
	}
	if in.NominalZoneSetpoint == nil {
		return EquipmentConfiguration{}, configError(topic, "missing nominal_zone_setpoint")
	}
	if in.HasEconomizer == nil {
		return EquipmentConfiguration{}, configError(topic, "missing has_economizer")
	}
	if in.BuildingChiller == nil {
		return EquipmentConfiguration{}, configError(topic, "missing building_chiller")
	}

	eq := EquipmentConfiguration{
		HasEconomizer:       *in.HasEconomizer,
		SupplyAirSetpoint:   *in.SupplyAirSetpoint,
		NominalZoneSetpoint: *in.NominalZoneSetpoint,
		BuildingChiller:     *in.BuildingChiller,
		MinimumOAF:          defaultMinimumOAF,
		VariableVolume:      defaultVariableVolume,
	}
	if eq.HasEconomizer {
		if in.EconomizerLimit == nil {
			return EquipmentConfiguration{}, configError(topic, "has_economizer requires economizer_limit")
		}
		eq.EconomizerLimit = *in.EconomizerLimit
	}
	if in.MinimumOAF != nil {
		eq.MinimumOAF = *in.MinimumOAF
	}
	if in.VariableVolume != nil {
		eq.VariableVolume = *in.VariableVolume
	}
	return eq, nil
}

// parseModelConfiguration reads the "fan" and "coil" sections, falling back
// to the model configuration itself when a section is absent.
func parseModelConfiguration(topic string, conf map[string]interface{}) (FanConfig, CoilConfig, error) {
	var fanConf FanConfig
	var coilConf CoilConfig

	fanSection := section(conf, "fan")
	if err := decodeParams(fanSection, &fanConf); err != nil {
		return fanConf, coilConf, &ConfigurationError{Topic: topic, Reason: "invalid fan configuration", Err: err}
	}
	coilSection := section(conf, "coil")
	if err := decodeParams(coilSection, &coilConf); err != nil {
		return fanConf, coilConf, &ConfigurationError{Topic: topic, Reason: "invalid coil configuration", Err: err}
	}
	return fanConf, coilConf, nil
}

func section(conf map[string]interface{}, name string) interface{} {
	for k, v := range conf {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return conf
}

// NewAHUChiller builds the composite model and its sub-models.
func NewAHUChiller(topic string, equipment EquipmentConfiguration, fanConf FanConfig, coilConf CoilConfig, pointNames map[string]string, logger *logrus.Logger) (*AHUChiller, error) {
	names := make(map[string]string, len(DefaultPointNames))
	for k, v := range DefaultPointNames {
		names[k] = v
	}
	for k, v := range pointNames {
		names[strings.ToLower(k)] = v
	}

	a := &AHUChiller{
		topic:      topic,
		equipment:  equipment,
		pointNames: names,
		logger:     logger,
		state: &airHandlerState{
			points: make(map[string]measurement, len(ahuPoints)),
			tDis:   equipment.SupplyAirSetpoint,
		},
	}

	fan, err := NewFan(topic, fanConf, fanInputs(a.state), logger)
	if err != nil {
		return nil, err
	}
	coil, err := NewCoolingCoil(topic, coilConf, equipment, coilInputs(a.state), logger)
	if err != nil {
		return nil, err
	}
	a.fan = fan
	a.coil = coil
	return a, nil
}

func fanInputs(st *airHandlerState) FanInputs {
	return FanInputs{
		Measurement: st.get,
		Airflow:     func() float64 { return st.mDotAir },
	}
}

func coilInputs(st *airHandlerState) CoilInputs {
	return CoilInputs{
		MixedAirTemp:      func() (float64, bool) { return st.get(PointMixedAirTemp) },
		DischargeAirTemp:  func() (float64, bool) { return st.get(PointDischargeAirTemp) },
		Airflow:           func() float64 { return st.mDotAir },
		DischargeSetpoint: func() float64 { return st.tDis },
	}
}

func (a *AHUChiller) GetName() string {
	return ahuChillerModelName
}

// UpdateData stores each of the seven AHU measurements present in the
// sample. Absent fields keep their previous value and mark the model stale.
func (a *AHUChiller) UpdateData(data map[string]float64, timestamp time.Time) {
	missing := 0
	for _, point := range ahuPoints {
		v, ok := data[a.pointNames[point]]
		if !ok {
			missing++
			continue
		}
		a.state.points[point] = measurement{value: v, valid: true}
	}

	a.stale = missing > 0
	if a.stale {
		a.logger.Debugf("AHU %s: %d measurements missing, keeping last known values", a.topic, missing)
	}
	a.state.lastTime = timestamp
	a.fan.UpdateCurrentCoefficients()
}

// InputZoneLoad applies a zone load: airflow for variable volume equipment,
// discharge air temperature for constant volume equipment.
func (a *AHUChiller) InputZoneLoad(load float64) {
	if a.equipment.VariableVolume {
		a.state.mDotAir = load
		return
	}
	a.state.tDis = load
	a.state.points[PointDischargeAirTemp] = measurement{value: load, valid: true}
}

// CalculateLoad applies the zone load and returns total equipment power.
func (a *AHUChiller) CalculateLoad(load float64, oat *float64, realtime bool) float64 {
	a.logger.Debugf("AHU model - load input: %v -- realtime market: %v", load, realtime)
	a.InputZoneLoad(load)
	return a.CalculateTotalPower(oat, realtime)
}

// CalculateTotalPower adds coil power to the fan power floored at zero. A nil
// oat falls back to the measured outdoor temperature.
func (a *AHUChiller) CalculateTotalPower(oat *float64, realtime bool) float64 {
	fanPower := a.fan.CalculatePower()
	if oat == nil {
		if v, ok := a.state.get(PointOutdoorAirTemp); ok {
			oat = floatPtr(v)
		}
	}

	coilPower := 0.0
	if a.equipment.BuildingChiller {
		coilPower = a.coil.CalculateLoad(oat, realtime)
	} else {
		a.logger.Debug("AHUChiller building does not have chiller!")
	}
	return coilPower + math.Max(fanPower, 0)
}

// clone returns an independent copy whose sub-models read the copied state.
func (a *AHUChiller) clone() *AHUChiller {
	c := *a
	c.state = a.state.copy()
	c.fan = a.fan.bind(fanInputs(c.state))
	c.coil = a.coil.bind(coilInputs(c.state))
	return &c
}

// Predict evaluates the equipment power on a copy of the current state. With
// ZoneLoads set the answer is a curve over those loads; otherwise ZoneLoad, or
// the current operating point, yields a scalar.
func (a *AHUChiller) Predict(params *Parameters) models.Prediction {
	if params == nil {
		params = &Parameters{}
	}

	var quantity float64
	if params.ZoneLoad != nil {
		quantity = a.clone().CalculateLoad(*params.ZoneLoad, params.OutdoorTemp, params.Realtime)
	} else {
		quantity = a.clone().CalculateTotalPower(params.OutdoorTemp, params.Realtime)
	}

	if len(params.ZoneLoads) == 0 {
		return models.Prediction{Quantity: quantity}
	}

	curve := make(models.DemandCurve, len(params.ZoneLoads))
	for i, load := range params.ZoneLoads {
		curve[i] = models.Point{
			Setpoint: load,
			Quantity: a.clone().CalculateLoad(load, params.OutdoorTemp, params.Realtime),
		}
	}
	return models.Prediction{Quantity: quantity, Curve: curve}
}

func (a *AHUChiller) IsStale() bool {
	return a.stale
}

func (a *AHUChiller) GetStatus() map[string]interface{} {
	points := make(map[string]interface{}, len(a.state.points))
	for name, m := range a.state.points {
		if m.valid {
			points[name] = m.value
		}
	}

	return map[string]interface{}{
		"name":               a.GetName(),
		"stale":              a.stale,
		"last_update":        a.state.lastTime,
		"variable_volume":    a.equipment.VariableVolume,
		"building_chiller":   a.equipment.BuildingChiller,
		"airflow":            a.state.mDotAir,
		"discharge_setpoint": a.state.tDis,
		"measurements":       points,
		"fan":                a.fan.GetStatus(),
		"coil":               a.coil.GetStatus(),
	}
}
