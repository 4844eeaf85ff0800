package mqtt

import (
	"context"
	"fmt"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/technoelf/stomata/internal/infrastructure/config"
)

// Client wraps paho.mqtt.golang with connection state tracking,
// subscription restoration and service status publishing.
//
// All methods are safe for concurrent use.
type Client struct {
	client pahomqtt.Client
	cfg    config.MQTTConfig

	subscriptions map[string]subscription
	subMu         sync.RWMutex

	connected bool
	connMu    sync.RWMutex

	onConnect    func()
	onDisconnect func(err error)
	callbackMu   sync.RWMutex

	logger   Logger
	loggerMu sync.RWMutex
}

// Logger is the optional logger for handler errors and panics.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

type subscription struct {
	topic   string
	qos     byte
	handler MessageHandler
}

// MessageHandler is invoked for each received message, in a paho goroutine.
// A returned error is logged; it does not affect acknowledgement.
type MessageHandler func(topic string, payload []byte) error

// Connect connects to the broker described by cfg, with a retained last
// will on the system status topic so subscribers can see the service go
// offline.
func Connect(cfg config.MQTTConfig) (*Client, error) {
	opts := buildClientOptions(cfg)
	configureLWT(opts, cfg.Broker.ClientID)

	c := &Client{
		cfg:           cfg,
		subscriptions: make(map[string]subscription),
	}

	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.handleConnect()
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleDisconnect(err)
	})

	c.client = pahomqtt.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		c.client.Disconnect(0)
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The on-connect handler runs asynchronously; mark connected now so
	// callers can publish immediately.
	c.setConnected(true)

	return c, nil
}

func (c *Client) setConnected(v bool) {
	c.connMu.Lock()
	c.connected = v
	c.connMu.Unlock()
}

func (c *Client) handleConnect() {
	c.setConnected(true)
	c.restoreSubscriptions()

	c.client.Publish(Topics{}.SystemStatus(), byte(c.cfg.QoS), true,
		buildStatusPayload(c.cfg.Broker.ClientID, "online", ""))

	c.callbackMu.RLock()
	callback := c.onConnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback()
	}
}

func (c *Client) handleDisconnect(err error) {
	c.setConnected(false)

	c.callbackMu.RLock()
	callback := c.onDisconnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback(err)
	}
}

// restoreSubscriptions re-subscribes to all tracked topics after reconnect.
func (c *Client) restoreSubscriptions() {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	for _, sub := range c.subscriptions {
		c.client.Subscribe(sub.topic, sub.qos, c.wrapHandler(sub.handler))
	}
}

// Close publishes a graceful offline status and disconnects.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	if c.IsConnected() {
		token := c.client.Publish(Topics{}.SystemStatus(), byte(c.cfg.QoS), true,
			buildStatusPayload(c.cfg.Broker.ClientID, "offline", "graceful_shutdown"))
		token.WaitTimeout(defaultPublishTimeout)
	}

	c.client.Disconnect(defaultDisconnectQuiesce)
	c.setConnected(false)
	return nil
}

// HealthCheck reports ErrNotConnected while the broker is unreachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected returns the last known connection state.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected && c.client != nil && c.client.IsConnected()
}

// SetOnConnect sets a callback invoked on every (re)connect.
func (c *Client) SetOnConnect(callback func()) {
	c.callbackMu.Lock()
	c.onConnect = callback
	c.callbackMu.Unlock()
}

// SetOnDisconnect sets a callback invoked when the connection is lost.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.callbackMu.Lock()
	c.onDisconnect = callback
	c.callbackMu.Unlock()
}

// SetLogger sets a logger for handler errors and panics.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

// wrapHandler adapts a MessageHandler to paho, recovering panics.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		c.dispatch(handler, msg.Topic(), msg.Payload())
	}
}

func (c *Client) dispatch(handler MessageHandler, topic string, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			if logger := c.getLogger(); logger != nil {
				logger.Error("MQTT handler panic recovered", "topic", topic, "panic", r)
			}
		}
	}()

	if err := handler(topic, payload); err != nil {
		if logger := c.getLogger(); logger != nil {
			logger.Warn("MQTT handler returned error", "topic", topic, "error", err)
		}
	}
}
