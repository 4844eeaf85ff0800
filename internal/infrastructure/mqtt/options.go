package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/technoelf/stomata/internal/infrastructure/config"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is in milliseconds.
	defaultDisconnectQuiesce = 1000

	defaultKeepAlive = 60 * time.Second

	maxQoS = 2
)

// buildClientOptions maps the mqtt config section onto paho options.
func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port))
	opts.SetClientID(cfg.Broker.ClientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second)
	opts.SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second)
	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)

	return opts
}

// configureLWT registers the retained "offline" will published by the
// broker if the service disappears without Close.
func configureLWT(opts *pahomqtt.ClientOptions, clientID string) {
	opts.SetWill(Topics{}.SystemStatus(),
		string(buildStatusPayload(clientID, "offline", "unexpected_disconnect")), 1, true)
}

type statusPayload struct {
	Status    string `json:"status"`
	ClientID  string `json:"client_id"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

// buildStatusPayload renders the service status message.
func buildStatusPayload(clientID, status, reason string) []byte {
	b, _ := json.Marshal(statusPayload{ //nolint:errcheck // plain strings always marshal
		Status:    status,
		ClientID:  clientID,
		Reason:    reason,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	return b
}
