package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"transactive-agent/internal/config"
	"transactive-agent/internal/homeassistant"
	"transactive-agent/internal/models"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"
)

// TelemetryHandler receives decoded telemetry for a configured device topic.
type TelemetryHandler func(topic string, data map[string]float64, timestamp time.Time)

type Client struct {
	client mqtt.Client
	config *config.Config
	logger *logrus.Logger

	topics []string
	mutex  sync.RWMutex

	onTelemetry TelemetryHandler
	onDropped   func(topic string)
}

func NewClient(cfg *config.Config, logger *logrus.Logger) (*Client, error) {
	c := &Client{
		config: cfg,
		logger: logger,
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.MQTT.Broker)
	opts.SetClientID(cfg.MQTT.ClientID)
	opts.SetUsername(cfg.MQTT.Username)
	opts.SetPassword(cfg.MQTT.Password)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetKeepAlive(60 * time.Second)

	opts.SetConnectionLostHandler(c.onConnectionLost)
	opts.SetOnConnectHandler(c.onConnect)

	c.client = mqtt.NewClient(opts)

	return c, nil
}

func (c *Client) Connect() error {
	c.logger.Info("Connecting to MQTT broker...")

	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	c.logger.Info("Connected to MQTT broker")
	return nil
}

func (c *Client) Disconnect() {
	c.logger.Info("Disconnecting from MQTT broker...")
	c.client.Disconnect(250)
}

func (c *Client) SetCallbacks(onTelemetry TelemetryHandler, onDropped func(topic string)) {
	c.onTelemetry = onTelemetry
	c.onDropped = onDropped
}

// SetTopics replaces the device topics. Topics no longer configured are
// unsubscribed and new ones subscribed when connected.
func (c *Client) SetTopics(topics []string) {
	c.mutex.Lock()
	previous := c.topics
	c.topics = append([]string(nil), topics...)
	c.mutex.Unlock()

	if !c.client.IsConnectionOpen() {
		return
	}

	var removed []string
	for _, old := range previous {
		if !slices.Contains(topics, old) {
			removed = append(removed, old, old+"/#")
		}
	}
	if len(removed) > 0 {
		if token := c.client.Unsubscribe(removed...); token.Wait() && token.Error() != nil {
			c.logger.Errorf("Failed to unsubscribe from %v: %v", removed, token.Error())
		}
	}
	c.subscribeAll(c.client)
}

func (c *Client) onConnect(client mqtt.Client) {
	c.logger.Info("MQTT connected, subscribing to device topics...")
	c.subscribeAll(client)
}

func (c *Client) subscribeAll(client mqtt.Client) {
	c.mutex.RLock()
	topics := append([]string(nil), c.topics...)
	c.mutex.RUnlock()

	for _, topic := range topics {
		filters := map[string]byte{topic: 1, topic + "/#": 1}
		if token := client.SubscribeMultiple(filters, c.handleDeviceMessage); token.Wait() && token.Error() != nil {
			c.logger.Errorf("Failed to subscribe to device topic %s: %v", topic, token.Error())
		} else {
			c.logger.Infof("Subscribed to device topic: %s", topic)
		}
	}
}

func (c *Client) onConnectionLost(client mqtt.Client, err error) {
	c.logger.Errorf("MQTT connection lost: %v", err)
}

// resolveTopic maps an incoming topic to the longest configured device topic
// it equals or is nested under.
func (c *Client) resolveTopic(incoming string) (string, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	best := ""
	for _, topic := range c.topics {
		if incoming == topic || strings.HasPrefix(incoming, topic+"/") {
			if len(topic) > len(best) {
				best = topic
			}
		}
	}
	return best, best != ""
}

func (c *Client) handleDeviceMessage(client mqtt.Client, msg mqtt.Message) {
	c.logger.Debugf("Received device message on %s: %s", msg.Topic(), string(msg.Payload()))

	topic, ok := c.resolveTopic(msg.Topic())
	if !ok {
		return
	}

	data, timestamp, err := DecodeTelemetry(msg.Payload(), time.Now().UTC())
	if err != nil {
		c.logger.Errorf("Failed to decode telemetry for %s: %v", topic, err)
		if c.onDropped != nil {
			c.onDropped(topic)
		}
		return
	}

	if c.onTelemetry != nil {
		c.onTelemetry(topic, data, timestamp)
	}
}

func (c *Client) recordTopic(topic string) string {
	return strings.TrimSuffix(c.config.MQTT.RecordPrefix, "/") + "/" + strings.TrimPrefix(topic, "/")
}

// PublishRecord publishes a prediction record under the record prefix.
func (c *Client) PublishRecord(record models.PredictionRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode record for %s: %w", record.Topic, err)
	}

	token := c.client.Publish(c.recordTopic(record.Topic), 0, false, payload)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to publish record for %s: %w", record.Topic, token.Error())
	}
	return nil
}

// PublishDiscovery announces each device's predicted power to Home Assistant.
func (c *Client) PublishDiscovery(topics []string) {
	items := make([]homeassistant.ConfigurationItem, 0, len(topics))
	for _, topic := range topics {
		items = append(items, homeassistant.PredictedPowerItem(c.config.MQTT.ClientID, topic, c.recordTopic(topic)))
	}
	if err := homeassistant.SendConfigurationToHa(c.client, items, c.config.MQTT.ClientID); err != nil {
		c.logger.Errorf("Failed to publish Home Assistant discovery: %v", err)
	}
}
