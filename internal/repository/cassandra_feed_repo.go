package repository

import (
	"context"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
	"github.com/weiawesome/wes-io-live/messenger-service/internal/cassandra"
	"github.com/weiawesome/wes-io-live/messenger-service/internal/domain"
)

type CassandraFeedRepository struct {
	client *cassandra.Client
}

func NewCassandraFeedRepository(client *cassandra.Client) *CassandraFeedRepository {
	return &CassandraFeedRepository{client: client}
}

func (r *CassandraFeedRepository) Count(ctx context.Context, userID uuid.UUID) (int64, error) {
	return count(ctx, r.client, `SELECT COUNT(*) FROM conversations WHERE user_id = ?`, cql(userID))
}

func (r *CassandraFeedRepository) List(ctx context.Context, userID uuid.UUID, q ListQuery) (Page[domain.FeedEntry], error) {
	return listPage(ctx, r.client, q,
		`SELECT user_id, conversation_id, other_user_id, last_message_at, last_message_content
		 FROM conversations WHERE user_id = ?`,
		[]interface{}{cql(userID)},
		func(s gocql.Scanner) (domain.FeedEntry, error) {
			var (
				user, conversation, peer gocql.UUID
				e                        domain.FeedEntry
			)
			if err := s.Scan(&user, &conversation, &peer, &e.LastMessageAt, &e.LastMessageContent); err != nil {
				return domain.FeedEntry{}, cassandra.Wrap("scan feed entry", err)
			}
			e.UserID = uuid.UUID(user)
			e.ConversationID = uuid.UUID(conversation)
			e.PeerID = uuid.UUID(peer)
			return e, nil
		})
}

// Apply moves both feed rows to the new clustering key. The old rows are
// deleted only when the key changes: a delete and an insert of the same
// key in one batch share a timestamp and the tombstone would win. The batch
// timestamp is the message time, so a late batch for an older message is
// shadowed by the tombstones of the newer one.
func (r *CassandraFeedRepository) Apply(ctx context.Context, u FeedUpdate) error {
	return r.client.ExecuteBatch(ctx, func(b *gocql.Batch) {
		b.WithTimestamp(u.LastMessageAt.UnixMicro())
		rows := [][2]uuid.UUID{{u.User1ID, u.User2ID}, {u.User2ID, u.User1ID}}

		if !u.PreviousAt.IsZero() && !u.PreviousAt.Equal(u.LastMessageAt) {
			for _, row := range rows {
				b.Query(`DELETE FROM conversations WHERE user_id = ? AND last_message_at = ? AND conversation_id = ?`,
					cql(row[0]), u.PreviousAt, cql(u.ConversationID))
			}
		}

		for _, row := range rows {
			b.Query(`INSERT INTO conversations (user_id, conversation_id, other_user_id, last_message_at, last_message_content)
				VALUES (?, ?, ?, ?, ?)`,
				cql(row[0]), cql(u.ConversationID), cql(row[1]), u.LastMessageAt, u.LastMessageContent)
		}
	})
}
