package mqtt

import "fmt"

// maxPayloadSize bounds outgoing messages (1MB).
const maxPayloadSize = 1 << 20

// Publish sends payload to topic and waits for the broker acknowledgement
// (QoS 1 and 2) or local completion (QoS 0).
//
//	err := client.Publish(mqtt.Topics{}.StationPresence(12), payload, 1, true)
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// PublishRetained publishes a retained message at the configured QoS.
func (c *Client) PublishRetained(topic string, payload []byte) error {
	return c.Publish(topic, payload, byte(c.cfg.QoS), true)
}
