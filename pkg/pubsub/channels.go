package pubsub

import "fmt"

// Channel naming: {prefix}:conversation:{conversationID}:{event}.
const (
	ChannelMessageSent        = "dm:conversation:%s:message_sent"
	ChannelMessageSentPattern = "dm:conversation:*:message_sent"
)

// Event types.
const (
	EventMessageSent = "message_sent"
)

// MessageSentChannel returns the channel a conversation's send events go to.
func MessageSentChannel(conversationID string) string {
	return fmt.Sprintf(ChannelMessageSent, conversationID)
}

// MessageSentPayload describes one persisted direct message. Identifiers are
// the canonical uuid strings used by the store.
type MessageSentPayload struct {
	MessageID      string `json:"message_id"`
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`
	ReceiverID     string `json:"receiver_id"`
	Content        string `json:"content"`
	CreatedAtMs    int64  `json:"created_at_ms"`
}
