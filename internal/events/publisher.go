// Package events translates persisted messages to and from message_sent
// events on the pub/sub bus.
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/weiawesome/wes-io-live/messenger-service/internal/domain"
	"github.com/weiawesome/wes-io-live/messenger-service/pkg/pubsub"
)

// Publisher announces persisted messages.
type Publisher interface {
	MessageSent(ctx context.Context, m domain.Message, receiverID uuid.UUID) error
}

type BusPublisher struct {
	bus pubsub.Publisher
}

func NewBusPublisher(bus pubsub.Publisher) *BusPublisher {
	return &BusPublisher{bus: bus}
}

func (p *BusPublisher) MessageSent(ctx context.Context, m domain.Message, receiverID uuid.UUID) error {
	conversationID := m.ConversationID.String()

	event, err := pubsub.NewEvent(pubsub.EventMessageSent, conversationID, Encode(m, receiverID))
	if err != nil {
		return fmt.Errorf("failed to build message_sent event: %w", err)
	}

	if err := p.bus.Publish(ctx, pubsub.MessageSentChannel(conversationID), event); err != nil {
		return fmt.Errorf("failed to publish message_sent event: %w", err)
	}
	return nil
}

func Encode(m domain.Message, receiverID uuid.UUID) pubsub.MessageSentPayload {
	return pubsub.MessageSentPayload{
		MessageID:      m.ID.String(),
		ConversationID: m.ConversationID.String(),
		SenderID:       m.SenderID.String(),
		ReceiverID:     receiverID.String(),
		Content:        m.Content,
		CreatedAtMs:    m.CreatedAt.UnixMilli(),
	}
}

// Decode reverses Encode for a message_sent event.
func Decode(event *pubsub.Event) (domain.Message, uuid.UUID, error) {
	if event.Type != pubsub.EventMessageSent {
		return domain.Message{}, uuid.Nil, fmt.Errorf("unexpected event type %q", event.Type)
	}

	var p pubsub.MessageSentPayload
	if err := event.UnmarshalPayload(&p); err != nil {
		return domain.Message{}, uuid.Nil, fmt.Errorf("failed to unmarshal message_sent payload: %w", err)
	}

	var (
		m        domain.Message
		receiver uuid.UUID
		err      error
	)
	for _, f := range []struct {
		dst *uuid.UUID
		src string
	}{
		{&m.ID, p.MessageID},
		{&m.ConversationID, p.ConversationID},
		{&m.SenderID, p.SenderID},
		{&receiver, p.ReceiverID},
	} {
		if *f.dst, err = uuid.Parse(f.src); err != nil {
			return domain.Message{}, uuid.Nil, fmt.Errorf("invalid id %q in message_sent payload: %w", f.src, err)
		}
	}

	m.Content = p.Content
	m.CreatedAt = time.UnixMilli(p.CreatedAtMs).UTC()
	return m, receiver, nil
}
