package mqtt

import (
	"fmt"
)

// maxPayloadSize caps outbound payloads at 1MB, matching typical broker
// limits. Discovery configs and attribute payloads sit far below this.
const maxPayloadSize = 1 << 20

// Publish sends a message to an MQTT topic. Retained messages are stored by
// the broker and replayed to new subscribers; entity state and discovery
// topics use them, command and event topics must not.
//
// Example:
//
//	topic := client.Topics().State("device-abc", "switch")
//	err := client.Publish(topic, []byte("ON"), 1, true)
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

// PublishString publishes a string payload. Entity state values (ON, OFF,
// playback states) are plain strings on the wire.
func (c *Client) PublishString(topic string, payload string, qos byte, retained bool) error {
	return c.Publish(topic, []byte(payload), qos, retained)
}

// PublishRetained publishes a retained message at the configured default
// QoS. Used for discovery configs and attribute payloads, which new
// subscribers must receive immediately.
func (c *Client) PublishRetained(topic string, payload []byte) error {
	return c.Publish(topic, payload, byte(c.cfg.QoS), true)
}
