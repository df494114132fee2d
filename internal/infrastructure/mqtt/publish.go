package mqtt

import (
	"encoding/json"
	"fmt"
)

// maxPayloadSize caps publishes at 1MB, in line with common broker limits.
const maxPayloadSize = 1 << 20

// Publish sends a message to the given topic.
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
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, publishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// PublishJSON marshals v and publishes it with the configured default QoS.
func (c *Client) PublishJSON(topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: encoding payload: %w", ErrPublishFailed, err)
	}
	return c.Publish(topic, payload, byte(c.cfg.QoS), false)
}

// PublishIssues publishes analysis issues for one app package.
func (c *Client) PublishIssues(packageName string, issues any) error {
	return c.PublishJSON(Topics{}.Issues(packageName), issues)
}

// PublishSessionSummary publishes an end-of-session summary.
func (c *Client) PublishSessionSummary(summary any) error {
	return c.PublishJSON(Topics{}.SessionSummary(), summary)
}
