package service

import (
	"github.com/google/uuid"
	"github.com/weiawesome/wes-io-live/messenger-service/internal/domain"
	"github.com/weiawesome/wes-io-live/messenger-service/internal/idcodec"
)

func toConversationResponse(c domain.Conversation) domain.ConversationResponse {
	resp := domain.ConversationResponse{
		ID:      idcodec.Compact(c.ID),
		User1ID: idcodec.PublicUserID(c.User1ID),
		User2ID: idcodec.PublicUserID(c.User2ID),
	}
	if c.HasMessages() {
		at, content := c.LastMessageAt, c.LastMessageContent
		resp.LastMessageAt = &at
		resp.LastMessageContent = &content
	}
	return resp
}

func toFeedResponse(userID int64, e domain.FeedEntry) domain.ConversationResponse {
	at, content := e.LastMessageAt, e.LastMessageContent
	return domain.ConversationResponse{
		ID:                 idcodec.Compact(e.ConversationID),
		User1ID:            userID,
		User2ID:            idcodec.PublicUserID(e.PeerID),
		LastMessageAt:      &at,
		LastMessageContent: &content,
	}
}

// toMessageResponse fills in the receiver as the participant other than
// the sender; it is 0 when the participant index has no such row.
func toMessageResponse(m domain.Message, conversationID int64, participants []uuid.UUID) domain.MessageResponse {
	resp := domain.MessageResponse{
		ID:             idcodec.Compact(m.ID),
		ConversationID: conversationID,
		SenderID:       idcodec.PublicUserID(m.SenderID),
		Content:        m.Content,
		CreatedAt:      m.CreatedAt,
	}
	for _, p := range participants {
		if p != m.SenderID {
			resp.ReceiverID = idcodec.PublicUserID(p)
			break
		}
	}
	return resp
}
