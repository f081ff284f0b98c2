package homeassistant

import "encoding/json"

type Unit int64

const (
	None Unit = iota
	W
	KW
	KWh
	Fahrenheit
	Celsius
)

func (s Unit) String() string {
	switch s {
	case None:
		return "None"
	case W:
		return "W"
	case KW:
		return "kW"
	case KWh:
		return "kWh"
	case Fahrenheit:
		return "°F"
	case Celsius:
		return "°C"
	}
	return "unknown"
}

func (s Unit) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}
