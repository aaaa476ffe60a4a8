package repository

import (
	"context"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
	"github.com/weiawesome/wes-io-live/messenger-service/internal/cassandra"
	"github.com/weiawesome/wes-io-live/messenger-service/internal/domain"
)

const messageColumns = `conversation_id, message_id, sender_id, content, created_at`

type CassandraMessageRepository struct {
	client *cassandra.Client
}

func NewCassandraMessageRepository(client *cassandra.Client) *CassandraMessageRepository {
	return &CassandraMessageRepository{client: client}
}

func (r *CassandraMessageRepository) Insert(ctx context.Context, m domain.Message) error {
	return r.client.Exec(ctx,
		`INSERT INTO messages (`+messageColumns+`) VALUES (?, ?, ?, ?, ?)`,
		cql(m.ConversationID), cql(m.ID), cql(m.SenderID), m.Content, m.CreatedAt)
}

func (r *CassandraMessageRepository) Count(ctx context.Context, conversationID uuid.UUID, before *time.Time) (int64, error) {
	if before != nil {
		return count(ctx, r.client,
			`SELECT COUNT(*) FROM messages WHERE conversation_id = ? AND created_at < ?`,
			cql(conversationID), *before)
	}
	return count(ctx, r.client,
		`SELECT COUNT(*) FROM messages WHERE conversation_id = ?`,
		cql(conversationID))
}

// List reads the log newest first; ties on created_at are ordered by
// message id.
func (r *CassandraMessageRepository) List(ctx context.Context, conversationID uuid.UUID, q ListQuery) (Page[domain.Message], error) {
	stmt := `SELECT ` + messageColumns + ` FROM messages WHERE conversation_id = ?`
	args := []interface{}{cql(conversationID)}
	if q.Before != nil {
		stmt += ` AND created_at < ?`
		args = append(args, *q.Before)
	}

	return listPage(ctx, r.client, q, stmt, args, func(s gocql.Scanner) (domain.Message, error) {
		var (
			conversation, id, sender gocql.UUID
			m                        domain.Message
		)
		if err := s.Scan(&conversation, &id, &sender, &m.Content, &m.CreatedAt); err != nil {
			return domain.Message{}, cassandra.Wrap("scan message", err)
		}
		m.ConversationID = uuid.UUID(conversation)
		m.ID = uuid.UUID(id)
		m.SenderID = uuid.UUID(sender)
		return m, nil
	})
}
