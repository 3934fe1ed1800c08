package tasks

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

// NewPubSub builds the in-process task transport. Messages are buffered so
// a burst of published tasks does not block handlers publishing follow-ups.
func NewPubSub(logger watermill.LoggerAdapter) *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 256,
	}, logger)
}

// Publisher wraps the transport with JSON payload marshaling.
type Publisher struct {
	publisher message.Publisher
}

func NewPublisher(publisher message.Publisher) *Publisher {
	return &Publisher{publisher: publisher}
}

func (p *Publisher) Publish(topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal task payload: %w", err)
	}

	msg := message.NewMessage(uuid.NewString(), data)
	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish task: %w", err)
	}

	slog.Debug("Task published", "topic", topic, "message_id", msg.UUID)
	return nil
}

func decodePayload[T any](msg *message.Message) (T, error) {
	var payload T
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return payload, fmt.Errorf("failed to decode task payload: %w", err)
	}
	return payload, nil
}
