package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDemandCurve_Accessors(t *testing.T) {
	curve := DemandCurve{{Setpoint: 70, Quantity: 2}, {Setpoint: 71, Quantity: 1.5}}

	assert.Equal(t, []float64{70, 71}, curve.Setpoints())
	assert.Equal(t, []float64{2, 1.5}, curve.Quantities())
	assert.True(t, Prediction{Curve: curve}.IsCurve())
	assert.False(t, Prediction{Quantity: 3}.IsCurve())
}

func TestTelemetrySample_Value(t *testing.T) {
	var empty TelemetrySample
	_, ok := empty.Value("OAT")
	assert.False(t, ok)

	sample := TelemetrySample{Data: map[string]float64{"OAT": 88}}
	v, ok := sample.Value("OAT")
	assert.True(t, ok)
	assert.Equal(t, 88.0, v)
}

func TestRecordBuffer(t *testing.T) {
	rb := NewRecordBuffer()
	rb.Update(PredictionRecord{Topic: "devices/a", Quantity: 1})
	rb.Update(PredictionRecord{Topic: "devices/a", Quantity: 2})
	rb.Update(PredictionRecord{Topic: "devices/b", Quantity: 3})

	record, ok := rb.Get("devices/a")
	assert.True(t, ok)
	assert.Equal(t, 2.0, record.Quantity)

	all := rb.All()
	assert.Len(t, all, 2)
	delete(all, "devices/b")
	_, ok = rb.Get("devices/b")
	assert.True(t, ok, "All must return a copy")

	rb.Reset()
	assert.Empty(t, rb.All())
}
