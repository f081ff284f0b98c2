package demand

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fanHarness struct {
	airflow  float64
	damper   float64
	hasValue bool
}

func (h *fanHarness) inputs() FanInputs {
	return FanInputs{
		Measurement: func(name string) (float64, bool) {
			if name != PointOutdoorDamper {
				return 0, false
			}
			return h.damper, h.hasValue
		},
		Airflow: func() float64 { return h.airflow },
	}
}

func fanTable() map[string]FanCoefficients {
	return map[string]FanCoefficients{
		"20":  {C0: 1, C1: 0.001},
		"60":  {C0: 2, C1: 0.002},
		"100": {C0: 3, C1: 0.003},
	}
}

func TestFan_SingleGroupAlwaysSelected(t *testing.T) {
	h := &fanHarness{}
	fan, err := NewFan("devices/rtu", FanConfig{
		CoefficientGroupBy: PointOutdoorDamper,
		Coefficients:       map[string]FanCoefficients{"60": {C0: 0.5, C1: 0.01}},
	}, h.inputs(), testLogger())
	require.NoError(t, err)

	for _, tc := range []struct {
		damper   float64
		hasValue bool
	}{{0, false}, {5, true}, {60, true}, {1000, true}} {
		h.damper, h.hasValue = tc.damper, tc.hasValue
		fan.UpdateCurrentCoefficients()
		assert.Equal(t, 60.0, fan.currentKey)
		assert.Equal(t, FanCoefficients{C0: 0.5, C1: 0.01}, fan.current)
	}
}

func TestFan_NearestGroupSelection(t *testing.T) {
	h := &fanHarness{hasValue: true}
	fan, err := NewFan("devices/rtu", FanConfig{
		CoefficientGroupBy: PointOutdoorDamper,
		Coefficients:       fanTable(),
	}, h.inputs(), testLogger())
	require.NoError(t, err)

	tests := []struct {
		damper   float64
		expected float64
	}{
		{0, 20},
		{35, 20},
		{45, 60},
		{79, 60},
		{95, 100},
		{40, 20}, // tie: smaller key wins
		{80, 60},
	}
	for _, tt := range tests {
		h.damper = tt.damper
		fan.UpdateCurrentCoefficients()
		assert.Equal(t, tt.expected, fan.currentKey, "damper %.0f", tt.damper)
	}
}

func TestFan_DefaultGroupWhenMeasurementAbsent(t *testing.T) {
	h := &fanHarness{}
	fan, err := NewFan("devices/rtu", FanConfig{
		CoefficientGroupBy:      PointOutdoorDamper,
		CoefficientGroupDefault: floatPtr(90),
		Coefficients:            fanTable(),
	}, h.inputs(), testLogger())
	require.NoError(t, err)
	assert.Equal(t, 100.0, fan.currentKey)

	fan, err = NewFan("devices/rtu", FanConfig{Coefficients: fanTable()}, h.inputs(), testLogger())
	require.NoError(t, err)
	assert.Equal(t, 20.0, fan.currentKey)
}

func TestFan_FlatCoefficients(t *testing.T) {
	h := &fanHarness{airflow: 10}
	fan, err := NewFan("devices/rtu", FanConfig{
		C0: floatPtr(1), C1: floatPtr(2), C2: floatPtr(3), C3: floatPtr(4),
	}, h.inputs(), testLogger())
	require.NoError(t, err)

	assert.Equal(t, defaultFanGroupKey, fan.currentKey)
	assert.Equal(t, "kW", fan.GetStatus()["power_unit"])
	assert.InDelta(t, 1+2*10+3*100+4*1000, fan.CalculatePower(), 1e-9)
}

func TestFan_CubicInAirflow(t *testing.T) {
	h := &fanHarness{}
	fan, err := NewFan("devices/rtu", FanConfig{
		C0: floatPtr(0.1308), C1: floatPtr(0.0004), C2: floatPtr(-4e-8), C3: floatPtr(5e-12),
	}, h.inputs(), testLogger())
	require.NoError(t, err)

	for _, airflow := range []float64{0, 500, 1000, 5000, 20000} {
		h.airflow = airflow
		expected := 0.1308 + 0.0004*airflow - 4e-8*airflow*airflow + 5e-12*airflow*airflow*airflow
		first := fan.CalculatePower()
		assert.InDelta(t, expected, first, 1e-9)
		assert.Equal(t, first, fan.CalculatePower())
	}
}

func TestFan_NegativePowerNotClamped(t *testing.T) {
	h := &fanHarness{airflow: 100}
	fan, err := NewFan("devices/rtu", FanConfig{
		C0: floatPtr(-5), C1: floatPtr(0), C2: floatPtr(0), C3: floatPtr(0),
	}, h.inputs(), testLogger())
	require.NoError(t, err)
	assert.Equal(t, -5.0, fan.CalculatePower())
}

func TestFan_MissingCoefficients(t *testing.T) {
	h := &fanHarness{}
	_, err := NewFan("devices/rtu", FanConfig{C0: floatPtr(1), C1: floatPtr(1)}, h.inputs(), testLogger())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = NewFan("devices/rtu", FanConfig{Coefficients: map[string]FanCoefficients{"open": {}}}, h.inputs(), testLogger())
	assert.ErrorIs(t, err, ErrConfiguration)
}
