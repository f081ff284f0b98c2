package main

import (
	"encoding/json"
	"strings"
	"time"

	"transactive-agent/internal/config"
	"transactive-agent/internal/demand"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

// Replays a warm afternoon against every configured device topic so the
// agent can be watched without real equipment.

type scenarioStep struct {
	Name string
	OAT  float64
	Zone float64
	Wait int
}

var scenario = []scenarioStep{
	{"Morning", 68, 71, 5},
	{"Economizer window", 62, 72, 5},
	{"Warming up", 80, 73, 5},
	{"Peak", 95, 75, 5},
	{"Evening", 78, 72, 5},
}

func main() {
	logger := logrus.New()

	cfg, _, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.MQTT.Broker)
	opts.SetClientID(cfg.MQTT.ClientID + "-simulator")
	opts.SetUsername(cfg.MQTT.Username)
	opts.SetPassword(cfg.MQTT.Password)
	opts.SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		logger.Fatalf("Failed to connect to MQTT broker %s: %v", cfg.MQTT.Broker, token.Error())
	}
	defer client.Disconnect(250)

	entries := cfg.ModelEntries()
	if len(entries) == 0 {
		logger.Warn("No models configured, nothing to simulate")
		return
	}

	for _, step := range scenario {
		logger.Infof("%s: OAT %.0fF, zone %.0fF", step.Name, step.OAT, step.Zone)
		for _, entry := range entries {
			family, _, _ := strings.Cut(entry.ModelType, ".")
			var sample map[string]interface{}
			switch demand.ModelFamily(strings.ToLower(family)) {
			case demand.ThermostatFamily:
				sample = thermostatSample(step)
			case demand.AHUChillerFamily:
				sample = ahuSample(step)
			default:
				logger.Warnf("Skipping %s: unknown model type %q", entry.Topic, entry.ModelType)
				continue
			}
			publishAll(client, logger, entry.Topic, sample)
		}
		time.Sleep(time.Duration(step.Wait) * time.Second)
	}

	logger.Info("Scenario finished")
}

func thermostatSample(step scenarioStep) map[string]interface{} {
	return map[string]interface{}{
		"OAT": step.OAT,
		"CSP": 72.0,
		"TIN": step.Zone,
	}
}

func ahuSample(step scenarioStep) map[string]interface{} {
	mat := 0.8*step.Zone + 0.2*step.OAT
	damper := 20.0
	if step.OAT < 65 {
		mat = step.OAT
		damper = 100.0
	}
	return map[string]interface{}{
		"SupplyFanStatus":         1,
		"MixedAirTemperature":     mat,
		"DischargeAirTemperature": 55.0,
		"SupplyAirFlow":           8000.0,
		"OutdoorAirTemperature":   step.OAT,
		"ReturnAirTemperature":    step.Zone,
		"OutdoorDamperSignal":     damper,
	}
}

// publishAll sends the sample the way a device driver does: values first,
// point metadata second.
func publishAll(client mqtt.Client, logger *logrus.Logger, topic string, sample map[string]interface{}) {
	meta := make(map[string]interface{}, len(sample))
	for name := range sample {
		meta[name] = map[string]string{"type": "float"}
	}

	payload, err := json.Marshal([]interface{}{sample, meta})
	if err != nil {
		logger.Errorf("Failed to encode sample for %s: %v", topic, err)
		return
	}

	token := client.Publish(strings.TrimSuffix(topic, "/")+"/all", 1, false, payload)
	if token.Wait() && token.Error() != nil {
		logger.Errorf("Failed to publish to %s: %v", topic, token.Error())
		return
	}
	logger.Debugf("Published %d points to %s/all", len(sample), topic)
}
