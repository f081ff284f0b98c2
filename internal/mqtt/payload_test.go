package mqtt

import (
	"testing"
	"time"

	"transactive-agent/internal/config"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeTelemetry(t *testing.T) {
	received := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		payload   string
		data      map[string]float64
		timestamp time.Time
	}{
		{
			name:      "device all publish",
			payload:   `[{"OAT": 91.5, "CSP": 72, "TIN": "73.5", "SupplyFanStatus": true}, {"OAT": {"units": "degF"}}]`,
			data:      map[string]float64{"OAT": 91.5, "CSP": 72, "TIN": 73.5, "SupplyFanStatus": 1},
			timestamp: received,
		},
		{
			name:      "envelope with timestamp",
			payload:   `{"timestamp": "2024-07-01T15:04:05Z", "data": {"MixedAirTemperature": 76}}`,
			data:      map[string]float64{"MixedAirTemperature": 76},
			timestamp: time.Date(2024, 7, 1, 15, 4, 5, 0, time.UTC),
		},
		{
			name:      "flat object",
			payload:   `{"OutdoorAirTemperature": 88, "TimeStamp": "2024-07-01T09:30:00Z", "label": "rtu", "missing": null}`,
			data:      map[string]float64{"OutdoorAirTemperature": 88},
			timestamp: time.Date(2024, 7, 1, 9, 30, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, ts, err := DecodeTelemetry([]byte(tt.payload), received)
			require.NoError(t, err)
			assert.Equal(t, tt.data, data)
			assert.True(t, tt.timestamp.Equal(ts), "timestamp %v", ts)
		})
	}
}

func TestDecodeTelemetry_Errors(t *testing.T) {
	received := time.Now()

	_, _, err := DecodeTelemetry(nil, received)
	assert.ErrorIs(t, err, ErrEmptyPayload)

	_, _, err = DecodeTelemetry([]byte(`[]`), received)
	assert.ErrorIs(t, err, ErrEmptyPayload)

	_, _, err = DecodeTelemetry([]byte(`72.5`), received)
	assert.Error(t, err)

	_, _, err = DecodeTelemetry([]byte(`{not json`), received)
	assert.Error(t, err)
}

func TestClient_ResolveTopic(t *testing.T) {
	c := &Client{
		logger: logrus.New(),
		topics: []string{"devices/campus/building", "devices/campus/building/rtu1"},
	}

	topic, ok := c.resolveTopic("devices/campus/building/rtu1/all")
	assert.True(t, ok)
	assert.Equal(t, "devices/campus/building/rtu1", topic)

	topic, ok = c.resolveTopic("devices/campus/building/tstat2")
	assert.True(t, ok)
	assert.Equal(t, "devices/campus/building", topic)

	_, ok = c.resolveTopic("devices/campus/buildingX")
	assert.False(t, ok)
}

func TestClient_RecordTopic(t *testing.T) {
	c := &Client{config: &config.Config{MQTT: config.MQTTConfig{RecordPrefix: "record/transactive/"}}}
	assert.Equal(t, "record/transactive/devices/rtu1", c.recordTopic("devices/rtu1"))
}
