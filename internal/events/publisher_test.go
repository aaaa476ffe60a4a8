package events

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiawesome/wes-io-live/messenger-service/internal/domain"
	"github.com/weiawesome/wes-io-live/messenger-service/pkg/pubsub"
)

type recordingBus struct {
	channels []string
	events   []*pubsub.Event
}

func (b *recordingBus) Publish(_ context.Context, channel string, event *pubsub.Event) error {
	b.channels = append(b.channels, channel)
	b.events = append(b.events, event)
	return nil
}

func TestPublishAndDecode(t *testing.T) {
	bus := &recordingBus{}
	m := domain.Message{
		ID:             uuid.New(),
		ConversationID: uuid.New(),
		SenderID:       uuid.New(),
		Content:        "hello",
		CreatedAt:      time.UnixMilli(1700000000123).UTC(),
	}
	receiver := uuid.New()

	require.NoError(t, NewBusPublisher(bus).MessageSent(context.Background(), m, receiver))
	require.Len(t, bus.events, 1)
	assert.Equal(t, pubsub.MessageSentChannel(m.ConversationID.String()), bus.channels[0])
	assert.Equal(t, m.ConversationID.String(), bus.events[0].Key)

	got, gotReceiver, err := Decode(bus.events[0])
	require.NoError(t, err)
	assert.Equal(t, m, got)
	assert.Equal(t, receiver, gotReceiver)
}

func TestDecodeRejectsBadEvents(t *testing.T) {
	other, err := pubsub.NewEvent("room_closed", "k", map[string]string{})
	require.NoError(t, err)
	_, _, err = Decode(other)
	assert.Error(t, err)

	bad, err := pubsub.NewEvent(pubsub.EventMessageSent, "k", pubsub.MessageSentPayload{MessageID: "nope"})
	require.NoError(t, err)
	_, _, err = Decode(bad)
	assert.Error(t, err)
}
