package mqtt

import (
	"strings"
	"sync"
)

// Published is one recorded publish.
type Published struct {
	Topic   string
	QoS     byte
	Payload []byte
}

// FakeClient records publishes and lets tests deliver messages to subscribers.
type FakeClient struct {
	mu sync.Mutex

	// Published contains every message that was published.
	Published []Published

	// PublishError, if set, will be returned by Publish.
	PublishError error

	// SubscribeError, if set, will be returned by Subscribe.
	SubscribeError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool

	handlers map[string]Handler
}

// NewFakeClient creates a FakeClient for testing.
func NewFakeClient() *FakeClient {
	return &FakeClient{handlers: make(map[string]Handler)}
}

// Publish records the message.
func (f *FakeClient) Publish(topic string, qos byte, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Published = append(f.Published, Published{Topic: topic, QoS: qos, Payload: payload})
	return nil
}

// Subscribe records the handler for an exact topic or a pattern.
func (f *FakeClient) Subscribe(topic string, _ byte, h Handler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SubscribeError != nil {
		return f.SubscribeError
	}
	f.handlers[topic] = h
	return nil
}

// Deliver hands payload to every handler whose filter matches topic.
// It reports whether any handler received it.
func (f *FakeClient) Deliver(topic string, payload []byte) bool {
	f.mu.Lock()
	var matched []Handler
	for filter, h := range f.handlers {
		if topicMatches(filter, topic) {
			matched = append(matched, h)
		}
	}
	f.mu.Unlock()

	for _, h := range matched {
		h(topic, payload)
	}
	return len(matched) > 0
}

// OnTopic returns the payloads published to topic.
func (f *FakeClient) OnTopic(topic string) [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out [][]byte
	for _, p := range f.Published {
		if p.Topic == topic {
			out = append(out, p.Payload)
		}
	}
	return out
}

// Close marks the client as closed.
func (f *FakeClient) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake client is "connected".
func (f *FakeClient) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Connected
}

// topicMatches supports the single-level + and trailing # wildcards.
func topicMatches(filter, topic string) bool {
	fl := strings.Split(filter, "/")
	tl := strings.Split(topic, "/")
	for i, part := range fl {
		if part == "#" {
			return true
		}
		if i >= len(tl) {
			return false
		}
		if part != "+" && part != tl[i] {
			return false
		}
	}
	return len(fl) == len(tl)
}
