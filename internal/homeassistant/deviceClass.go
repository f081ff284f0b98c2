package homeassistant

import "encoding/json"

type DeviceClass int64

const (
	Power DeviceClass = iota
	Energy
	Temperature
	Current
	Voltage
)

func (s DeviceClass) String() string {
	switch s {
	case Power:
		return "power"
	case Energy:
		return "energy"
	case Temperature:
		return "temperature"
	case Current:
		return "current"
	case Voltage:
		return "voltage"
	}
	return "unknown"
}

func (s DeviceClass) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}
