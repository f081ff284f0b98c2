package demand

import (
	"time"

	"transactive-agent/internal/models"
)

// Parameters are the optional inputs of a prediction request.
type Parameters struct {
	ZoneLoad    *float64  // Zone load to evaluate (airflow for VAV, discharge temperature otherwise)
	ZoneLoads   []float64 // Sweep of zone loads; the answer becomes a demand curve
	OutdoorTemp *float64  // Forecast outdoor temperature, falls back to the measured value
	Realtime    bool      // Measured (true) or scheduled (false) load calculation
}

// DeviceModel is the contract shared by every device model held in a Registry.
type DeviceModel interface {
	// UpdateData ingests one telemetry sample. Missing fields never fail:
	// the model keeps its last known good values and reports itself stale.
	UpdateData(data map[string]float64, timestamp time.Time)

	// Predict computes a demand estimate from the current state without
	// modifying it.
	Predict(params *Parameters) models.Prediction

	// GetName returns the model family name
	GetName() string

	// IsStale reports whether the last sample was incomplete
	IsStale() bool

	// GetStatus returns the internal state for monitoring
	GetStatus() map[string]interface{}
}

func floatPtr(v float64) *float64 {
	return &v
}
