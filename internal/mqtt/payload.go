package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/relvacode/iso8601"
	"github.com/spf13/cast"
)

var ErrEmptyPayload = errors.New("empty telemetry payload")

// DecodeTelemetry accepts the device driver "all" publish ([values, meta]),
// an envelope {"timestamp": ..., "data": {...}} or a flat object of values.
// Samples without a timestamp are stamped with receivedAt.
func DecodeTelemetry(payload []byte, receivedAt time.Time) (map[string]float64, time.Time, error) {
	if len(payload) == 0 {
		return nil, receivedAt, ErrEmptyPayload
	}

	var raw interface{}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, receivedAt, fmt.Errorf("invalid telemetry json: %w", err)
	}

	var values map[string]interface{}
	timestamp := receivedAt

	switch v := raw.(type) {
	case []interface{}:
		if len(v) == 0 {
			return nil, receivedAt, ErrEmptyPayload
		}
		obj, ok := v[0].(map[string]interface{})
		if !ok {
			return nil, receivedAt, fmt.Errorf("unexpected telemetry element %T", v[0])
		}
		values = obj
	case map[string]interface{}:
		if data, ok := v["data"].(map[string]interface{}); ok {
			values = data
			if ts, ok := parseTimestamp(v["timestamp"]); ok {
				timestamp = ts
			}
		} else {
			values = v
		}
	default:
		return nil, receivedAt, fmt.Errorf("unexpected telemetry payload %T", raw)
	}

	data := make(map[string]float64, len(values))
	for name, value := range values {
		if isTimestampKey(name) {
			if ts, ok := parseTimestamp(value); ok {
				timestamp = ts
			}
			continue
		}
		if value == nil {
			continue
		}
		f, err := cast.ToFloat64E(value)
		if err != nil {
			continue
		}
		data[name] = f
	}

	return data, timestamp, nil
}

func isTimestampKey(name string) bool {
	return strings.EqualFold(name, "timestamp")
}

func parseTimestamp(value interface{}) (time.Time, bool) {
	switch v := value.(type) {
	case string:
		ts, err := iso8601.ParseString(v)
		if err != nil {
			return time.Time{}, false
		}
		return ts, true
	case float64:
		return time.Unix(int64(v), 0).UTC(), true
	}
	return time.Time{}, false
}
