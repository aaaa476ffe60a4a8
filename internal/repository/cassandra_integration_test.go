package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiawesome/wes-io-live/messenger-service/internal/cassandra"
	"github.com/weiawesome/wes-io-live/messenger-service/internal/config"
	"github.com/weiawesome/wes-io-live/messenger-service/internal/domain"
	pkgconfig "github.com/weiawesome/wes-io-live/messenger-service/pkg/config"
)

func liveStore(t *testing.T) *Store {
	t.Helper()
	hosts := pkgconfig.SplitList(os.Getenv("CASSANDRA_TEST_HOSTS"))
	if len(hosts) == 0 {
		t.Skip("CASSANDRA_TEST_HOSTS not set")
	}

	client, err := cassandra.NewClient(config.CassandraConfig{
		Hosts:             hosts,
		Keyspace:          "messenger_test",
		Consistency:       "ONE",
		ConnectTimeout:    10 * time.Second,
		Timeout:           10 * time.Second,
		ConnectAttempts:   3,
		BackoffBase:       500 * time.Millisecond,
		ReplicationFactor: 1,
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	require.NoError(t, client.EnsureSchema(ctx))

	return NewCassandraStore(client)
}

func TestCassandraStore(t *testing.T) {
	store := liveStore(t)
	ctx := context.Background()

	conv, u1, u2 := uuid.New(), uuid.New(), uuid.New()
	now := time.Now().UTC().Truncate(time.Millisecond)

	owner, err := store.Conversations.ClaimPair(ctx, u1, u2, conv)
	require.NoError(t, err)
	assert.Equal(t, conv, owner)
	owner, err = store.Conversations.ClaimPair(ctx, u1, u2, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, conv, owner)

	require.NoError(t, store.Participants.AddParticipants(ctx, conv, u1, u2))
	users, err := store.Participants.ListParticipants(ctx, conv)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{u1, u2}, users)

	require.NoError(t, store.Conversations.SaveSummary(ctx, domain.Conversation{ID: conv, User1ID: u1, User2ID: u2, CreatedAt: now}))

	for i := 0; i < 5; i++ {
		at := now.Add(time.Duration(i) * time.Millisecond)
		m := domain.Message{ID: uuid.New(), ConversationID: conv, SenderID: u1, Content: "m", CreatedAt: at}
		require.NoError(t, store.Messages.Insert(ctx, m))

		var previous time.Time
		if i > 0 {
			previous = at.Add(-time.Millisecond)
		}
		moved, _, err := store.Conversations.MoveLastMessage(ctx, conv, previous, at, "m")
		require.NoError(t, err)
		require.True(t, moved)
		require.NoError(t, store.Feed.Apply(ctx, FeedUpdate{
			ConversationID: conv, User1ID: u1, User2ID: u2,
			PreviousAt: previous, LastMessageAt: at, LastMessageContent: "m",
		}))
	}

	n, err := store.Messages.Count(ctx, conv, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	page, err := store.Messages.List(ctx, conv, ListQuery{Limit: 3})
	require.NoError(t, err)
	assert.Len(t, page.Items, 3)
	assert.NotEmpty(t, page.NextPageState)

	rest, err := store.Messages.List(ctx, conv, ListQuery{Limit: 3, PageState: page.NextPageState})
	require.NoError(t, err)
	assert.Len(t, rest.Items, 2)

	feedCount, err := store.Feed.Count(ctx, u1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), feedCount)

	summary, err := store.Conversations.GetSummary(ctx, conv)
	require.NoError(t, err)
	assert.True(t, summary.LastMessageAt.Equal(now.Add(4*time.Millisecond)))

	// A stale writer loses the summary, and its late feed batch is shadowed.
	moved, current, err := store.Conversations.MoveLastMessage(ctx, conv, now, now.Add(time.Millisecond), "stale")
	require.NoError(t, err)
	assert.False(t, moved)
	assert.True(t, current.Equal(now.Add(4*time.Millisecond)))

	require.NoError(t, store.Feed.Apply(ctx, FeedUpdate{
		ConversationID: conv, User1ID: u1, User2ID: u2,
		PreviousAt: now.Add(2 * time.Millisecond), LastMessageAt: now.Add(3 * time.Millisecond), LastMessageContent: "stale",
	}))
	feedCount, err = store.Feed.Count(ctx, u1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), feedCount)
}
