package repository

import (
	"context"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
	"github.com/weiawesome/wes-io-live/messenger-service/internal/cassandra"
)

const scanPageSize = 500

type CassandraParticipantRepository struct {
	client *cassandra.Client
}

func NewCassandraParticipantRepository(client *cassandra.Client) *CassandraParticipantRepository {
	return &CassandraParticipantRepository{client: client}
}

func (r *CassandraParticipantRepository) AddParticipants(ctx context.Context, conversationID uuid.UUID, userIDs ...uuid.UUID) error {
	return r.client.ExecuteBatch(ctx, func(b *gocql.Batch) {
		for _, userID := range userIDs {
			b.Query(`INSERT INTO conversation_participants (conversation_id, user_id) VALUES (?, ?)`,
				cql(conversationID), cql(userID))
		}
	})
}

func (r *CassandraParticipantRepository) ListParticipants(ctx context.Context, conversationID uuid.UUID) ([]uuid.UUID, error) {
	q, err := r.client.Query(ctx,
		`SELECT user_id FROM conversation_participants WHERE conversation_id = ?`,
		cql(conversationID))
	if err != nil {
		return nil, err
	}

	var users []uuid.UUID
	var userID gocql.UUID
	iter := q.Iter()
	for iter.Scan(&userID) {
		users = append(users, uuid.UUID(userID))
	}
	if err := iter.Close(); err != nil {
		return nil, cassandra.Wrap("select", err)
	}
	return users, nil
}

func (r *CassandraParticipantRepository) ScanConversationIDs(ctx context.Context, fn func(uuid.UUID) bool) error {
	q, err := r.client.Query(ctx, `SELECT DISTINCT conversation_id FROM conversation_participants`)
	if err != nil {
		return err
	}

	var id gocql.UUID
	iter := q.PageSize(scanPageSize).Iter()
	for iter.Scan(&id) {
		if !fn(uuid.UUID(id)) {
			break
		}
	}
	if err := iter.Close(); err != nil {
		return cassandra.Wrap("scan", err)
	}
	return nil
}
