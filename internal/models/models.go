package models

import (
	"sync"
	"time"
)

// ModelConfigEntry is one element of the "models" configuration list.
// ModelType has the form "<family>.<className>", e.g. "ahuchiller.ahuchiller".
type ModelConfigEntry struct {
	Topic     string
	ModelType string
	Params    map[string]interface{}
}

// TelemetrySample is the latest set of measurements delivered for a device.
type TelemetrySample struct {
	Data      map[string]float64
	Timestamp time.Time
}

// Value returns the measurement stored under name.
func (s TelemetrySample) Value(name string) (float64, bool) {
	if s.Data == nil {
		return 0, false
	}
	v, ok := s.Data[name]
	return v, ok
}

// Point is a single (setpoint, quantity) pair of a demand curve.
type Point struct {
	Setpoint float64 `json:"setpoint"`
	Quantity float64 `json:"quantity"`
}

// DemandCurve is ordered by the swept control variable.
type DemandCurve []Point

// Quantities returns the curve's quantities in sweep order.
func (c DemandCurve) Quantities() []float64 {
	q := make([]float64, len(c))
	for i, p := range c {
		q[i] = p.Quantity
	}
	return q
}

// Setpoints returns the swept control values in order.
func (c DemandCurve) Setpoints() []float64 {
	s := make([]float64, len(c))
	for i, p := range c {
		s[i] = p.Setpoint
	}
	return s
}

// Prediction is either a scalar quantity or a demand curve. The zero value
// is the neutral answer handed out for unconfigured devices.
type Prediction struct {
	Quantity float64
	Curve    DemandCurve
}

func (p Prediction) IsCurve() bool {
	return p.Curve != nil
}

// PredictionRecord is what the agent publishes after each prediction round.
type PredictionRecord struct {
	Topic     string      `json:"topic"`
	Model     string      `json:"model"`
	Quantity  float64     `json:"quantity"`
	Curve     DemandCurve `json:"curve,omitempty"`
	Stale     bool        `json:"stale"`
	Timestamp time.Time   `json:"timestamp"`
}

// RecordBuffer keeps the most recent record per topic for status consumers.
type RecordBuffer struct {
	records map[string]PredictionRecord
	mutex   sync.RWMutex
}

func NewRecordBuffer() *RecordBuffer {
	return &RecordBuffer{
		records: make(map[string]PredictionRecord),
	}
}

func (rb *RecordBuffer) Update(record PredictionRecord) {
	rb.mutex.Lock()
	defer rb.mutex.Unlock()
	rb.records[record.Topic] = record
}

func (rb *RecordBuffer) Get(topic string) (PredictionRecord, bool) {
	rb.mutex.RLock()
	defer rb.mutex.RUnlock()
	r, ok := rb.records[topic]
	return r, ok
}

func (rb *RecordBuffer) All() map[string]PredictionRecord {
	rb.mutex.RLock()
	defer rb.mutex.RUnlock()

	result := make(map[string]PredictionRecord, len(rb.records))
	for k, v := range rb.records {
		result[k] = v
	}
	return result
}

// Reset drops every record, used when the model set is replaced.
func (rb *RecordBuffer) Reset() {
	rb.mutex.Lock()
	defer rb.mutex.Unlock()
	rb.records = make(map[string]PredictionRecord)
}
