// Package mqtt carries household telemetry over MQTT, with an abstraction for testing.
package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ANIKETSHETTY47/household-energy-simulator/internal/domain"
)

// TopicPrefix is the root of every household topic.
const TopicPrefix = "energy/household"

// Topic kinds under energy/household/<id>/.
const (
	KindReadings  = "readings"
	KindAnomalies = "anomalies"
	KindMessages  = "messages"
	KindCommands  = "commands"
)

// TelemetryWildcard matches every household's telemetry topics.
const TelemetryWildcard = TopicPrefix + "/+/+"

// Handler receives a message delivered on a subscribed topic.
type Handler func(topic string, payload []byte)

// Client publishes and subscribes on a broker.
type Client interface {
	// Publish sends payload to topic. Failures are returned, never fatal.
	Publish(topic string, qos byte, payload []byte) error
	Subscribe(topic string, qos byte, h Handler) error
	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// Topic returns energy/household/<household>/<kind>.
func Topic(household, kind string) string {
	return TopicPrefix + "/" + household + "/" + kind
}

// ParseTopic splits a household topic into its id and kind.
func ParseTopic(topic string) (household, kind string, ok bool) {
	rest, found := strings.CutPrefix(topic, TopicPrefix+"/")
	if !found {
		return "", "", false
	}
	household, kind, found = strings.Cut(rest, "/")
	if !found || household == "" || kind == "" || strings.Contains(kind, "/") {
		return "", "", false
	}
	return household, kind, true
}

// ReadingPayload is the wire form of a live reading.
type ReadingPayload struct {
	Timestamp    string  `json:"timestamp"`
	CurrentUsage float64 `json:"current_usage_w"`
	Voltage      float64 `json:"voltage"`
	Frequency    float64 `json:"frequency"`
	PowerFactor  float64 `json:"power_factor"`
}

// AnomalyPayload is the wire form of an anomaly.
type AnomalyPayload struct {
	Timestamp string `json:"timestamp"`
	Text      string `json:"text"`
}

// MessagePayload is the wire form of a utility channel message.
type MessagePayload struct {
	ID          string `json:"id"`
	Timestamp   string `json:"timestamp"`
	Sender      string `json:"sender"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Incoming    bool   `json:"incoming"`
}

// CommandPayload is an inbound utility command.
type CommandPayload struct {
	Command     string `json:"command"`
	Description string `json:"description"`
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

// FormatReading creates the JSON payload for a reading.
func FormatReading(r domain.LiveReading) ([]byte, error) {
	return json.Marshal(ReadingPayload{
		Timestamp:    formatTime(r.Timestamp),
		CurrentUsage: r.CurrentUsage,
		Voltage:      r.Voltage,
		Frequency:    r.Frequency,
		PowerFactor:  r.PowerFactor,
	})
}

// FormatAnomaly creates the JSON payload for an anomaly raised at t.
func FormatAnomaly(text string, t time.Time) ([]byte, error) {
	return json.Marshal(AnomalyPayload{Timestamp: formatTime(t), Text: text})
}

// FormatMessage creates the JSON payload for a channel message.
func FormatMessage(m domain.Message) ([]byte, error) {
	return json.Marshal(MessagePayload{
		ID:          m.ID.String(),
		Timestamp:   formatTime(m.Timestamp),
		Sender:      m.Sender,
		Command:     m.Command,
		Description: m.Description,
		Incoming:    m.IsIncoming,
	})
}

// DecodeReading parses a reading payload.
func DecodeReading(payload []byte) (domain.LiveReading, error) {
	var p ReadingPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return domain.LiveReading{}, fmt.Errorf("decode reading: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, p.Timestamp)
	if err != nil {
		return domain.LiveReading{}, fmt.Errorf("reading timestamp: %w", err)
	}
	return domain.LiveReading{
		CurrentUsage: p.CurrentUsage,
		Voltage:      p.Voltage,
		Frequency:    p.Frequency,
		PowerFactor:  p.PowerFactor,
		Timestamp:    ts,
	}, nil
}

// DecodeAnomaly parses an anomaly payload.
func DecodeAnomaly(payload []byte) (string, time.Time, error) {
	var p AnomalyPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return "", time.Time{}, fmt.Errorf("decode anomaly: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, p.Timestamp)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("anomaly timestamp: %w", err)
	}
	return p.Text, ts, nil
}

// DecodeMessage parses a message payload.
func DecodeMessage(payload []byte) (domain.Message, error) {
	var p MessagePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return domain.Message{}, fmt.Errorf("decode message: %w", err)
	}
	id, err := uuid.Parse(p.ID)
	if err != nil {
		return domain.Message{}, fmt.Errorf("message id: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, p.Timestamp)
	if err != nil {
		return domain.Message{}, fmt.Errorf("message timestamp: %w", err)
	}
	return domain.Message{
		ID:          id,
		Sender:      p.Sender,
		Command:     p.Command,
		Description: p.Description,
		Timestamp:   ts,
		IsIncoming:  p.Incoming,
	}, nil
}

// DecodeCommand parses an inbound command.
func DecodeCommand(payload []byte) (CommandPayload, error) {
	var p CommandPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return CommandPayload{}, fmt.Errorf("decode command: %w", err)
	}
	if strings.TrimSpace(p.Command) == "" {
		return CommandPayload{}, fmt.Errorf("decode command: empty command")
	}
	return p, nil
}
