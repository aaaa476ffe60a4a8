package repository

import (
	"context"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
	"github.com/weiawesome/wes-io-live/messenger-service/internal/cassandra"
	"github.com/weiawesome/wes-io-live/messenger-service/internal/domain"
)

// CassandraConversationRepository serves the pair index and the
// conversation summaries.
type CassandraConversationRepository struct {
	client *cassandra.Client
}

func NewCassandraConversationRepository(client *cassandra.Client) *CassandraConversationRepository {
	return &CassandraConversationRepository{client: client}
}

func (r *CassandraConversationRepository) LookupPair(ctx context.Context, low, high uuid.UUID) (uuid.UUID, bool, error) {
	var id gocql.UUID
	err := scanOne(ctx, r.client,
		`SELECT conversation_id FROM conversation_pairs WHERE user_low = ? AND user_high = ?`,
		[]interface{}{cql(low), cql(high)}, &id)
	if err == ErrNotFound {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, err
	}
	return uuid.UUID(id), true, nil
}

func (r *CassandraConversationRepository) ClaimPair(ctx context.Context, low, high, conversationID uuid.UUID) (uuid.UUID, error) {
	applied, owner, err := insertIfNotExists(ctx, r.client,
		`INSERT INTO conversation_pairs (user_low, user_high, conversation_id) VALUES (?, ?, ?) IF NOT EXISTS`,
		[]interface{}{cql(low), cql(high), cql(conversationID)}, "conversation_id")
	if err != nil {
		return uuid.Nil, err
	}
	if applied {
		return conversationID, nil
	}
	return owner, nil
}

func (r *CassandraConversationRepository) SaveSummary(ctx context.Context, c domain.Conversation) error {
	return r.client.Exec(ctx,
		`INSERT INTO conversation_summaries (conversation_id, user1_id, user2_id, created_at) VALUES (?, ?, ?, ?)`,
		cql(c.ID), cql(c.User1ID), cql(c.User2ID), c.CreatedAt)
}

func (r *CassandraConversationRepository) GetSummary(ctx context.Context, conversationID uuid.UUID) (*domain.Conversation, error) {
	var (
		id, user1, user2         gocql.UUID
		createdAt, lastMessageAt time.Time
		lastMessageContent       string
	)
	err := scanOne(ctx, r.client,
		`SELECT conversation_id, user1_id, user2_id, created_at, last_message_at, last_message_content
		 FROM conversation_summaries WHERE conversation_id = ?`,
		[]interface{}{cql(conversationID)},
		&id, &user1, &user2, &createdAt, &lastMessageAt, &lastMessageContent)
	if err != nil {
		return nil, err
	}

	return &domain.Conversation{
		ID:                 uuid.UUID(id),
		User1ID:            uuid.UUID(user1),
		User2ID:            uuid.UUID(user2),
		CreatedAt:          createdAt,
		LastMessageAt:      lastMessageAt,
		LastMessageContent: lastMessageContent,
	}, nil
}

// MoveLastMessage is a lightweight transaction on the summary row. It cannot
// share a batch with the feed rows, which live in other partitions.
func (r *CassandraConversationRepository) MoveLastMessage(ctx context.Context, conversationID uuid.UUID, expected, at time.Time, content string) (bool, time.Time, error) {
	stmt := `UPDATE conversation_summaries SET last_message_at = ?, last_message_content = ?
		WHERE conversation_id = ? IF last_message_at = ?`
	args := []interface{}{at, content, cql(conversationID), expected}
	if expected.IsZero() {
		stmt = `UPDATE conversation_summaries SET last_message_at = ?, last_message_content = ?
			WHERE conversation_id = ? IF last_message_at = null`
		args = args[:3]
	}

	q, err := r.client.Query(ctx, stmt, args...)
	if err != nil {
		return false, time.Time{}, err
	}

	row := map[string]interface{}{}
	applied, err := q.MapScanCAS(row)
	if err != nil {
		return false, time.Time{}, cassandra.Wrap("update", err)
	}
	if applied {
		return true, at, nil
	}

	current, _ := row["last_message_at"].(time.Time)
	return false, current, nil
}
