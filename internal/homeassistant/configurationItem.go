package homeassistant

import "strings"

type Device struct {
	Identifiers []string `json:"identifiers"`
	Name        string   `json:"name"`
}

type ConfigurationItem struct {
	DeviceClass       DeviceClass `json:"device_class"`
	UnitOfMeasurement Unit        `json:"unit_of_measurement"`
	Device            Device      `json:"device"`
	StateClass        string      `json:"state_class,omitempty"`
	UniqueId          string      `json:"unique_id"`
	Name              string      `json:"name"`
	StateTopic        string      `json:"state_topic"`
	ValueTemplate     string      `json:"value_template,omitempty"`
}

// PredictedPowerItem describes the predicted power of one device model,
// read from the quantity field of its prediction record.
func PredictedPowerItem(agentName, deviceTopic, recordTopic string) ConfigurationItem {
	id := slug(agentName + "_" + deviceTopic)
	return ConfigurationItem{
		DeviceClass:       Power,
		UnitOfMeasurement: KW,
		Device: Device{
			Identifiers: []string{id},
			Name:        deviceTopic,
		},
		StateClass:    "measurement",
		UniqueId:      id + "_predicted_power",
		Name:          "Predicted power " + deviceTopic,
		StateTopic:    recordTopic,
		ValueTemplate: "{{ value_json.quantity }}",
	}
}

func slug(s string) string {
	return strings.NewReplacer("/", "_", " ", "_", ".", "_").Replace(strings.ToLower(s))
}
