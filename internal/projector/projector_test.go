package projector

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiawesome/wes-io-live/messenger-service/internal/domain"
	"github.com/weiawesome/wes-io-live/messenger-service/internal/events"
	"github.com/weiawesome/wes-io-live/messenger-service/pkg/pubsub"
)

type fakeSubscriber struct {
	ch           chan *pubsub.Event
	pattern      string
	unsubscribed string
}

func (f *fakeSubscriber) Subscribe(context.Context, string) (<-chan *pubsub.Event, error) {
	return nil, errors.New("not supported")
}

func (f *fakeSubscriber) SubscribePattern(_ context.Context, pattern string) (<-chan *pubsub.Event, error) {
	f.pattern = pattern
	return f.ch, nil
}

func (f *fakeSubscriber) Unsubscribe(_ context.Context, channel string) error {
	f.unsubscribed = channel
	return nil
}

type recordingFeed struct {
	mu       sync.Mutex
	messages []domain.Message
	fail     bool
}

func (r *recordingFeed) UpdateOnSend(_ context.Context, m domain.Message, _ uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("storage unavailable")
	}
	r.messages = append(r.messages, m)
	return nil
}

func messageSentEvent(t *testing.T) (*pubsub.Event, domain.Message) {
	t.Helper()
	m := domain.Message{
		ID:             uuid.New(),
		ConversationID: uuid.New(),
		SenderID:       uuid.New(),
		Content:        "hi",
		CreatedAt:      time.UnixMilli(1700000000000).UTC(),
	}
	event, err := pubsub.NewEvent(pubsub.EventMessageSent, m.ConversationID.String(), events.Encode(m, uuid.New()))
	require.NoError(t, err)
	return event, m
}

func TestRunProjectsEventsUntilChannelCloses(t *testing.T) {
	sub := &fakeSubscriber{ch: make(chan *pubsub.Event, 3)}
	feed := &recordingFeed{}

	event, m := messageSentEvent(t)
	bogus, err := pubsub.NewEvent("other", "k", struct{}{})
	require.NoError(t, err)

	sub.ch <- event
	sub.ch <- bogus
	sub.ch <- event
	close(sub.ch)

	require.NoError(t, New(sub, feed).Run(context.Background()))
	assert.Equal(t, pubsub.ChannelMessageSentPattern, sub.pattern)
	assert.Equal(t, []domain.Message{m, m}, feed.messages)
}

func TestRunStopsOnCancel(t *testing.T) {
	sub := &fakeSubscriber{ch: make(chan *pubsub.Event)}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- New(sub, &recordingFeed{}).Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("projector did not stop")
	}
	assert.Equal(t, pubsub.ChannelMessageSentPattern, sub.unsubscribed)
}

func TestHandleReportsFeedErrors(t *testing.T) {
	event, _ := messageSentEvent(t)
	p := New(&fakeSubscriber{}, &recordingFeed{fail: true})
	assert.Error(t, p.handle(context.Background(), event))
}
