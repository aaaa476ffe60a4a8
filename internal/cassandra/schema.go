package cassandra

import (
	"context"
	"fmt"

	"github.com/weiawesome/wes-io-live/messenger-service/pkg/log"
)

const (
	TableMessages                 = "messages"
	TableConversations            = "conversations"
	TableConversationParticipants = "conversation_participants"
	TableConversationPairs        = "conversation_pairs"
	TableConversationSummaries    = "conversation_summaries"
	TableIDRegistry               = "id_registry"
)

// Schema lists the DDL for every table, in creation order. The first three
// tables keep the layout of earlier deployments.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS messages (
		conversation_id uuid,
		message_id uuid,
		sender_id uuid,
		content text,
		created_at timestamp,
		PRIMARY KEY ((conversation_id), created_at, message_id)
	) WITH CLUSTERING ORDER BY (created_at DESC, message_id ASC)`,

	`CREATE TABLE IF NOT EXISTS conversations (
		user_id uuid,
		conversation_id uuid,
		other_user_id uuid,
		last_message_at timestamp,
		last_message_content text,
		PRIMARY KEY ((user_id), last_message_at, conversation_id)
	) WITH CLUSTERING ORDER BY (last_message_at DESC, conversation_id ASC)`,

	`CREATE TABLE IF NOT EXISTS conversation_participants (
		conversation_id uuid,
		user_id uuid,
		PRIMARY KEY ((conversation_id), user_id)
	)`,

	`CREATE TABLE IF NOT EXISTS conversation_pairs (
		user_low uuid,
		user_high uuid,
		conversation_id uuid,
		PRIMARY KEY ((user_low, user_high))
	)`,

	`CREATE TABLE IF NOT EXISTS conversation_summaries (
		conversation_id uuid PRIMARY KEY,
		user1_id uuid,
		user2_id uuid,
		created_at timestamp,
		last_message_at timestamp,
		last_message_content text
	)`,

	`CREATE TABLE IF NOT EXISTS id_registry (
		kind text,
		compact_id bigint,
		wide_id uuid,
		created_at timestamp,
		PRIMARY KEY ((kind, compact_id))
	)`,
}

// EnsureSchema creates any missing table.
func (c *Client) EnsureSchema(ctx context.Context) error {
	for i, stmt := range Schema {
		if err := c.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}

	l := log.Ctx(ctx)
	l.Info().Str(log.FieldKeyspace, c.cfg.Keyspace).Int("tables", len(Schema)).Msg("cassandra schema ensured")
	return nil
}
