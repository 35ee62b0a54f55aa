package sink

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTConfig configures the broker connection and topic layout, per
// the teacher's MQTTConfig.
type MQTTConfig struct {
	Broker       string
	Username     string
	Password     string
	TopicPrefix  string
	QoS          byte
	Retain       bool
	ConnectRetry time.Duration
}

func generateClientID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return "dfsensor_" + hex.EncodeToString(b)
}

// MQTTSink publishes DF and spectrum frames to an MQTT broker, ported
// from MQTTPublisher with the metric-category fan-out collapsed to
// two topics since this engine has one payload kind per frame type.
type MQTTSink struct {
	client mqtt.Client
	config MQTTConfig
}

// NewMQTTSink connects to the configured broker and returns a ready
// sink, per NewMQTTPublisher.
func NewMQTTSink(config MQTTConfig) (*MQTTSink, error) {
	if config.ConnectRetry == 0 {
		config.ConnectRetry = 10 * time.Second
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.Broker)
	opts.SetClientID(generateClientID())
	if config.Username != "" {
		opts.SetUsername(config.Username)
	}
	if config.Password != "" {
		opts.SetPassword(config.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(config.ConnectRetry)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.Println("sink: mqtt connected")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Printf("sink: mqtt connection lost: %v", err)
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("sink: mqtt connect: %w", token.Error())
	}
	log.Printf("sink: mqtt connected to %s", config.Broker)

	return &MQTTSink{client: client, config: config}, nil
}

func (m *MQTTSink) publish(topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("sink: marshal mqtt payload for %s: %w", topic, err)
	}
	token := m.client.Publish(topic, m.config.QoS, m.config.Retain, data)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("sink: publish to %s: %w", topic, token.Error())
	}
	return nil
}

// PublishDF publishes a DF result to "<prefix>/df", per publish.
func (m *MQTTSink) PublishDF(frame DFFrame) error {
	return m.publish(m.config.TopicPrefix+"/df", frame)
}

// PublishSpectrum publishes a spectrum frame to "<prefix>/spectrum".
func (m *MQTTSink) PublishSpectrum(frame SpectrumFrame) error {
	return m.publish(m.config.TopicPrefix+"/spectrum", frame)
}

// Close disconnects from the broker, per Disconnect.
func (m *MQTTSink) Close() error {
	if m.client != nil && m.client.IsConnected() {
		m.client.Disconnect(250)
	}
	return nil
}
