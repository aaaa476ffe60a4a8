package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/weiawesome/wes-io-live/messenger-service/internal/domain"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrInvalidParticipants  = errors.New("a conversation needs two distinct positive user ids")
	ErrInvalidUserID        = errors.New("user id must be positive")
	ErrEmptyContent         = errors.New("message content is empty")
	ErrPageOutOfRange       = errors.New("page out of range")
	ErrInvalidCursor        = errors.New("invalid cursor")
	ErrFeedContention       = errors.New("conversation summary kept changing")
)

type DirectoryService interface {
	// ResolveOrCreate returns the pair's conversation, creating it on first
	// use. The argument order does not matter.
	ResolveOrCreate(ctx context.Context, userA, userB int64) (*domain.Conversation, error)
	CreateConversation(ctx context.Context, userA, userB int64) (*domain.ConversationResponse, error)
	GetConversation(ctx context.Context, conversationID int64) (*domain.ConversationResponse, error)
}

type MessageService interface {
	SendMessage(ctx context.Context, req domain.SendMessageRequest) (*domain.MessageResponse, error)
	ListMessages(ctx context.Context, conversationID int64, req domain.PageRequest) (*domain.MessagePage, error)
	ListMessagesBefore(ctx context.Context, conversationID int64, before time.Time, req domain.PageRequest) (*domain.MessagePage, error)
}

type FeedService interface {
	ListForUser(ctx context.Context, userID int64, req domain.PageRequest) (*domain.ConversationPage, error)
	UpdateOnSend(ctx context.Context, m domain.Message, receiverID uuid.UUID) error
}
