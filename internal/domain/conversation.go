package domain

import (
	"time"

	"github.com/google/uuid"
)

// Conversation is the summary row of a two-party conversation. The last
// message fields are zero until the first send.
type Conversation struct {
	ID                 uuid.UUID
	User1ID            uuid.UUID
	User2ID            uuid.UUID
	CreatedAt          time.Time
	LastMessageAt      time.Time
	LastMessageContent string
}

// HasMessages reports whether a message has been projected onto c.
func (c Conversation) HasMessages() bool {
	return !c.LastMessageAt.IsZero()
}

// FeedEntry is one row of a user's recency-ordered conversation list.
type FeedEntry struct {
	UserID             uuid.UUID
	ConversationID     uuid.UUID
	PeerID             uuid.UUID
	LastMessageAt      time.Time
	LastMessageContent string
}

type CreateConversationRequest struct {
	User1ID int64 `json:"user1_id" binding:"required"`
	User2ID int64 `json:"user2_id" binding:"required"`
}

type ConversationResponse struct {
	ID                 int64      `json:"id"`
	User1ID            int64      `json:"user1_id"`
	User2ID            int64      `json:"user2_id"`
	LastMessageAt      *time.Time `json:"last_message_at"`
	LastMessageContent *string    `json:"last_message_content"`
}
