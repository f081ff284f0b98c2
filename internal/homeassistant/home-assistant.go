package homeassistant

import (
	"encoding/json"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Publisher is the part of the MQTT client discovery needs.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// SendConfigurationToHa publishes one retained discovery config per item.
func SendConfigurationToHa(client Publisher, config []ConfigurationItem, globalName string) error {
	for _, configItem := range config {
		b, err := json.Marshal(configItem)
		if err != nil {
			return fmt.Errorf("encoding discovery item %s: %w", configItem.Name, err)
		}
		token := client.Publish(DiscoveryTopic(globalName, configItem), 0, true, b)
		if token.Wait() && token.Error() != nil {
			return fmt.Errorf("publishing discovery item %s: %w", configItem.Name, token.Error())
		}
	}
	return nil
}

func DiscoveryTopic(globalName string, item ConfigurationItem) string {
	return "homeassistant/sensor/" + slug(globalName) + "/" + item.UniqueId + "/config"
}
