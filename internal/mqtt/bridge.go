package mqtt

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ANIKETSHETTY47/household-energy-simulator/internal/domain"
	"github.com/ANIKETSHETTY47/household-energy-simulator/internal/simulation"
)

// CommandHandler accepts utility commands arriving from the broker.
type CommandHandler interface {
	HandleUtilityCommand(command, description string) bool
}

const bridgeQueueSize = 256

type outbound struct {
	kind    string
	qos     byte
	payload []byte
}

// Bridge publishes engine events for one household and feeds inbound
// commands back into the engine. It implements simulation.Observer.
// Observer calls only enqueue; Run does the publishing.
type Bridge struct {
	simulation.NopObserver

	client    Client
	household string
	log       zerolog.Logger
	now       func() time.Time
	queue     chan outbound
}

// NewBridge creates a bridge for household over client.
func NewBridge(client Client, household string, log zerolog.Logger) *Bridge {
	return &Bridge{
		client:    client,
		household: household,
		log:       log.With().Str("component", "mqtt-bridge").Str("household", household).Logger(),
		now:       time.Now,
		queue:     make(chan outbound, bridgeQueueSize),
	}
}

// Run publishes queued events until ctx is done.
func (b *Bridge) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-b.queue:
			if err := b.client.Publish(Topic(b.household, m.kind), m.qos, m.payload); err != nil {
				b.log.Warn().Err(err).Str("kind", m.kind).Msg("publish failed")
			}
		}
	}
}

// Listen subscribes to the household command topic.
func (b *Bridge) Listen(h CommandHandler) error {
	topic := Topic(b.household, KindCommands)
	err := b.client.Subscribe(topic, 1, func(_ string, payload []byte) {
		cmd, err := DecodeCommand(payload)
		if err != nil {
			b.log.Warn().Err(err).Msg("ignoring command")
			return
		}
		h.HandleUtilityCommand(cmd.Command, cmd.Description)
	})
	if err != nil {
		return fmt.Errorf("listen for commands: %w", err)
	}
	b.log.Info().Str("topic", topic).Msg("listening for utility commands")
	return nil
}

func (b *Bridge) OnReading(r domain.LiveReading) {
	payload, err := FormatReading(r)
	b.publish(KindReadings, 0, payload, err)
}

func (b *Bridge) OnAnomaly(text string) {
	payload, err := FormatAnomaly(text, b.now())
	b.publish(KindAnomalies, 1, payload, err)
}

func (b *Bridge) OnMessage(m domain.Message) {
	payload, err := FormatMessage(m)
	b.publish(KindMessages, 1, payload, err)
}

func (b *Bridge) publish(kind string, qos byte, payload []byte, err error) {
	if err != nil {
		b.log.Error().Err(err).Str("kind", kind).Msg("format payload")
		return
	}
	select {
	case b.queue <- outbound{kind: kind, qos: qos, payload: payload}:
	default:
		b.log.Warn().Str("kind", kind).Msg("publish queue full, dropping")
	}
}
