// Package mqtt mirrors light state and commands over an MQTT broker.
package mqtt

import (
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/iainlane/fiblight/internal/config"
)

const (
	defaultConnectTimeout    = 10 * time.Second
	defaultPublishTimeout    = 5 * time.Second
	defaultKeepAlive         = 60 * time.Second
	defaultDisconnectQuiesce = 1000 // milliseconds
)

// MessageHandler is called for each received message, on a paho goroutine.
type MessageHandler func(topic string, payload []byte) error

// Client wraps paho.mqtt.golang. Subscriptions are restored on reconnect.
type Client struct {
	client pahomqtt.Client
	cfg    config.MQTTConfig
	topics Topics

	subMu         sync.Mutex
	subscriptions map[string]MessageHandler
}

func buildClientOptions(cfg config.MQTTConfig, topics Topics) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)
	opts.SetWill(topics.Status(), "offline", cfg.QoS, true)
	return opts
}

// Connect establishes a connection to the broker and marks the bridge online.
func Connect(cfg config.MQTTConfig) (*Client, error) {
	c := &Client{
		cfg:           cfg,
		topics:        Topics{Prefix: cfg.TopicPrefix},
		subscriptions: make(map[string]MessageHandler),
	}

	opts := buildClientOptions(cfg, c.topics)
	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.handleConnect()
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		logrus.WithError(err).Warn("Lost connection to MQTT broker")
	})

	c.client = pahomqtt.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return c, nil
}

func (c *Client) handleConnect() {
	logrus.WithField("broker", c.cfg.Broker).Info("Connected to MQTT broker")

	c.client.Publish(c.topics.Status(), c.cfg.QoS, true, "online")

	c.subMu.Lock()
	defer c.subMu.Unlock()
	for topic, handler := range c.subscriptions {
		c.client.Subscribe(topic, c.cfg.QoS, wrapHandler(handler))
	}
}

func (c *Client) Topics() Topics {
	return c.topics
}

func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

// Publish sends payload to topic using the configured QoS.
func (c *Client) Publish(topic string, payload []byte, retained bool) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, c.cfg.QoS, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// Subscribe registers handler for topic, which may contain wildcards.
func (c *Client) Subscribe(topic string, handler MessageHandler) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.subMu.Lock()
	c.subscriptions[topic] = handler
	c.subMu.Unlock()

	token := c.client.Subscribe(topic, c.cfg.QoS, wrapHandler(handler))
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrSubscribeFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}
	return nil
}

func wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			logrus.WithError(err).WithField("topic", msg.Topic()).Warn("Failed to handle MQTT message")
		}
	}
}

// Close publishes the offline marker and disconnects.
func (c *Client) Close() {
	if c.IsConnected() {
		token := c.client.Publish(c.topics.Status(), c.cfg.QoS, true, "offline")
		token.WaitTimeout(defaultPublishTimeout)
	}
	c.client.Disconnect(defaultDisconnectQuiesce)
}
