package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/weiawesome/wes-io-live/messenger-service/internal/cassandra"
	"github.com/weiawesome/wes-io-live/messenger-service/internal/domain"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrStorageUnavailable is the gateway's error kind, re-exported so
	// callers need not import the driver package.
	ErrStorageUnavailable = cassandra.ErrUnavailable
)

// ListQuery reads one page of a partition in its clustering order.
// PageState is the opaque position returned by the previous page.
type ListQuery struct {
	Limit     int
	PageState []byte
	// Before restricts message reads to created_at < Before.
	Before *time.Time
}

type Page[T any] struct {
	Items []T
	// NextPageState is empty on the last page.
	NextPageState []byte
}

type ParticipantRepository interface {
	AddParticipants(ctx context.Context, conversationID uuid.UUID, userIDs ...uuid.UUID) error
	ListParticipants(ctx context.Context, conversationID uuid.UUID) ([]uuid.UUID, error)
	// ScanConversationIDs visits every conversation id in the index until fn
	// returns false.
	ScanConversationIDs(ctx context.Context, fn func(uuid.UUID) bool) error
}

type ConversationRepository interface {
	LookupPair(ctx context.Context, low, high uuid.UUID) (uuid.UUID, bool, error)
	// ClaimPair records conversationID for the pair unless one is already
	// recorded, and returns whichever id owns the pair.
	ClaimPair(ctx context.Context, low, high, conversationID uuid.UUID) (uuid.UUID, error)
	// SaveSummary writes the identity columns of c, leaving the last message
	// columns untouched.
	SaveSummary(ctx context.Context, c domain.Conversation) error
	GetSummary(ctx context.Context, conversationID uuid.UUID) (*domain.Conversation, error)
	// MoveLastMessage sets the summary's last message to (at, content) only
	// while its last_message_at still equals expected; a zero expected means
	// no message yet. When the condition fails it returns the stored value.
	MoveLastMessage(ctx context.Context, conversationID uuid.UUID, expected, at time.Time, content string) (bool, time.Time, error)
}

type MessageRepository interface {
	Insert(ctx context.Context, m domain.Message) error
	Count(ctx context.Context, conversationID uuid.UUID, before *time.Time) (int64, error)
	List(ctx context.Context, conversationID uuid.UUID, q ListQuery) (Page[domain.Message], error)
}

// FeedUpdate moves a conversation to a new last message in both
// participants' feeds.
type FeedUpdate struct {
	ConversationID     uuid.UUID
	User1ID            uuid.UUID
	User2ID            uuid.UUID
	PreviousAt         time.Time // zero when the feed has no rows yet
	LastMessageAt      time.Time
	LastMessageContent string
}

type FeedRepository interface {
	Count(ctx context.Context, userID uuid.UUID) (int64, error)
	List(ctx context.Context, userID uuid.UUID, q ListQuery) (Page[domain.FeedEntry], error)
	// Apply replaces both participants' feed rows in one logged batch. Rows
	// are written at LastMessageAt, so an update that arrives after a newer
	// one cannot bring back a row the newer update removed.
	Apply(ctx context.Context, u FeedUpdate) error
}

type RegistryRepository interface {
	Lookup(ctx context.Context, kind string, compact int64) (uuid.UUID, bool, error)
	Register(ctx context.Context, kind string, compact int64, wide uuid.UUID) (uuid.UUID, error)
	Release(ctx context.Context, kind string, compact int64, wide uuid.UUID) error
}

// Store bundles the repositories of one storage driver.
type Store struct {
	Participants  ParticipantRepository
	Conversations ConversationRepository
	Messages      MessageRepository
	Feed          FeedRepository
	Registry      RegistryRepository
}
