package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiawesome/wes-io-live/messenger-service/internal/cache"
	"github.com/weiawesome/wes-io-live/messenger-service/internal/domain"
	"github.com/weiawesome/wes-io-live/messenger-service/internal/idcodec"
	"github.com/weiawesome/wes-io-live/messenger-service/pkg/log"
)

type memoryCache struct {
	cache.NoopCache
	mu    sync.Mutex
	pages map[string]*domain.MessagePage
	hits  int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{pages: map[string]*domain.MessagePage{}}
}

func (c *memoryCache) Get(_ context.Context, key string) (*domain.MessagePage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	page, ok := c.pages[key]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	c.hits++
	return page, nil
}

func (c *memoryCache) Set(_ context.Context, key string, page *domain.MessagePage, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pages[key] = page
	return nil
}

func (c *memoryCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pages)
}

type sentEvent struct {
	message  domain.Message
	receiver uuid.UUID
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []sentEvent
	err    error
}

func (p *recordingPublisher) MessageSent(_ context.Context, m domain.Message, receiverID uuid.UUID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, sentEvent{m, receiverID})
	return p.err
}

func TestListMessagesBeforeUsesCacheForPastPages(t *testing.T) {
	c := newMemoryCache()
	f := newFixture(t, WithHistoryCache(c, time.Minute))
	ctx := context.Background()

	var last *domain.MessageResponse
	for i := 0; i < 3; i++ {
		last = f.send(t, "m", 1, 2)
	}
	before := last.CreatedAt.Add(time.Millisecond)

	first, err := f.messages.ListMessagesBefore(ctx, last.ConversationID, before, domain.PageRequest{Limit: 20})
	require.NoError(t, err)
	assert.Len(t, first.Data, 3)

	require.Eventually(t, func() bool { return c.size() == 1 }, 2*time.Second, 10*time.Millisecond)

	second, err := f.messages.ListMessagesBefore(ctx, last.ConversationID, before, domain.PageRequest{Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, c.hits)
}

func TestListMessagesBeforeSkipsCacheForFuture(t *testing.T) {
	c := newMemoryCache()
	f := newFixture(t, WithHistoryCache(c, time.Minute))

	msg := f.send(t, "m", 1, 2)
	future := msg.CreatedAt.Add(time.Hour)

	_, err := f.messages.ListMessagesBefore(context.Background(), msg.ConversationID, future, domain.PageRequest{})
	require.NoError(t, err)
	assert.Never(t, func() bool { return c.size() > 0 }, 100*time.Millisecond, 10*time.Millisecond)
}

func TestSendMessagePublishesEvent(t *testing.T) {
	pub := &recordingPublisher{}
	f := newFixture(t, WithPublisher(pub))

	msg := f.send(t, "hello", 1, 2)

	require.Len(t, pub.events, 1)
	ev := pub.events[0]
	assert.Equal(t, "hello", ev.message.Content)
	assert.Equal(t, msg.ConversationID, idcodec.Compact(ev.message.ConversationID))
	receiver, ok := idcodec.UserID(ev.receiver)
	require.True(t, ok)
	assert.Equal(t, int64(2), receiver)
}

func TestSendMessageSucceedsWhenPublishFails(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("bus down")}
	f := newFixture(t, WithPublisher(pub))

	msg := f.send(t, "hello", 1, 2)
	assert.Equal(t, "hello", msg.Content)

	feed, err := f.feed.ListForUser(context.Background(), 2, domain.PageRequest{})
	require.NoError(t, err)
	require.Len(t, feed.Data, 1)
}

func TestSendMessageLogsConversationIDOnce(t *testing.T) {
	f := newFixture(t)
	var buf bytes.Buffer
	ctx := log.WithLogger(context.Background(), log.New(log.Config{Level: "info"}, &buf))

	_, err := f.messages.SendMessage(ctx, domain.SendMessageRequest{Content: "hello", SenderID: 1, ReceiverID: 2})
	require.NoError(t, err)

	var audited bool
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if !strings.Contains(line, `"action":"message.send"`) {
			continue
		}
		audited = true
		assert.Equal(t, 1, strings.Count(line, `"conversation_id":`), line)
	}
	assert.True(t, audited, "send should write an audit line")
}
