package nats

import (
	"encoding/json"
	"strings"
)

// EventMirror republishes hub events on "<prefix>.<topic>" subjects.
type EventMirror struct {
	client *Client
	prefix string
}

func (c *Client) EventMirror(prefix string) *EventMirror {
	return &EventMirror{client: c, prefix: strings.TrimSuffix(strings.TrimSpace(prefix), ".")}
}

func (m *EventMirror) Subject(topic string) string {
	if m.prefix == "" {
		return topic
	}
	return m.prefix + "." + topic
}

// Publish does not wait on the network; the NATS client buffers outgoing messages.
// Failures are dropped silently since logging them would re-enter the log topic.
func (m *EventMirror) Publish(topic string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	_ = m.client.conn.Publish(m.Subject(topic), data)
}
